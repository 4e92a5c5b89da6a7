package e2e

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/api/handler"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/api/router"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/application"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/config"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/domain/vehicle"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/broker"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/memory"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/metrics"
)

// TestServer はE2Eテスト用のサーバー
type TestServer struct {
	Echo    *echo.Echo
	Events  *broker.Broker
	Metrics *metrics.Metrics
	Cleanup func()
}

// newTestServer はテストごとに独立したサーバーを作成する
// E2E_STORE=postgres なら PostgreSQL を使い、接続できなければスキップする
func newTestServer(t *testing.T) *TestServer {
	t.Helper()

	var (
		reservations reservation.Repository
		vehicles     vehicle.Repository
		cleanup      = func() {}
	)
	health := handler.NewHealthHandler()

	switch os.Getenv("E2E_STORE") {
	case "postgres":
		cfg := config.Load()
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			t.Skipf("DB接続エラー: %v", err)
		}
		if err := postgres.RunMigrations(db.DB, "../migrations"); err != nil {
			db.Close()
			t.Skipf("マイグレーションエラー: %v", err)
		}
		db.Exec("TRUNCATE TABLE reservations, vehicles CASCADE")
		reservations = postgres.NewReservationRepository(db)
		vehicles = postgres.NewVehicleRepository(db)
		cleanup = func() {
			db.Exec("TRUNCATE TABLE reservations, vehicles CASCADE")
			db.Close()
		}
	default:
		reservations = memory.NewReservationStore()
		vehicles = memory.NewVehicleRepository()
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	events := broker.New(64, m)

	owners := application.NewVehicleOwnerLookup(vehicles)
	reservationService := application.NewReservationService(reservations,
		application.WithAuthorizer(application.NewOwnershipAuthorizer(owners)),
		application.WithPricer(application.NewHourlyRatePricer(vehicles)),
		application.WithNotifier(events),
		application.WithRetryPolicy(application.RetryPolicy{MaxAttempts: 3}),
		application.WithMetrics(m),
	)

	e := router.NewRouter(router.Deps{
		Reservations: reservationService,
		Vehicles:     application.NewVehicleService(vehicles),
		Events:       events,
		Owners:       owners,
		Health:       health,
		Metrics:      m,
		Gatherer:     reg,
	})

	return &TestServer{
		Echo:    e,
		Events:  events,
		Metrics: m,
		Cleanup: func() {
			events.Close()
			cleanup()
		},
	}
}

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body interface{}, userID string, headers ...map[string]string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
	}
	for _, h := range headers {
		for k, v := range h {
			req.Header.Set(k, v)
		}
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v (%s)", err, rec.Body.String())
	}
	return resp
}
