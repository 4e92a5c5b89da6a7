package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/api"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/api/handler"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/application"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/config"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/metrics"
)

// Deps はルーターが使うサービス群
type Deps struct {
	Reservations handler.ReservationServiceInterface
	Vehicles     handler.VehicleServiceInterface
	// Events が nil なら SSE エンドポイントは登録しない
	Events handler.EventSubscriber
	// Owners は車両単位の SSE 購読の所有者確認に使う
	Owners application.OwnerLookup
	Health *handler.HealthHandler

	// Metrics が nil なら /metrics とHTTPメトリクスは無効
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	MetricsAuth config.MetricsConfig
}

// NewRouter はルーティングとミドルウェアを設定した Echo を返す
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler

	middleware.SetupMiddleware(e)

	if d.Metrics != nil {
		e.Use(middleware.PrometheusMiddleware(d.Metrics))
		gatherer := d.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		e.GET("/metrics",
			echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})),
			middleware.MetricsBasicAuth(d.MetricsAuth))
	}

	health := d.Health
	if health == nil {
		health = handler.NewHealthHandler()
	}
	e.GET("/health", health.Check)

	v1 := e.Group("/api/v1")

	vehicleHandler := handler.NewVehicleHandler(d.Vehicles)
	v1.POST("/vehicles", vehicleHandler.Create)
	v1.GET("/vehicles", vehicleHandler.List)
	v1.GET("/vehicles/:id", vehicleHandler.GetByID)

	reservationHandler := handler.NewReservationHandler(d.Reservations)
	v1.POST("/reservations", reservationHandler.Create)
	v1.GET("/reservations", reservationHandler.GetUserReservations)
	if d.Events != nil {
		v1.GET("/reservations/events", handler.NewEventStreamHandler(d.Events, d.Owners).Stream)
	}
	v1.GET("/reservations/:id", reservationHandler.GetByID)
	v1.POST("/reservations/:id/pickup", reservationHandler.Pickup)
	v1.POST("/reservations/:id/return", reservationHandler.Return)
	v1.POST("/reservations/:id/approve-return", reservationHandler.ApproveReturn)
	v1.POST("/reservations/:id/cancel", reservationHandler.Cancel)

	return e
}
