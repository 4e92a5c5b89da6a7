package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/metrics"
)

// pathUnmatched はルートに一致しなかったリクエストの path ラベル
const pathUnmatched = "unmatched"

// PrometheusMiddleware はHTTPメトリクスを収集するミドルウェア
// path にはルート定義（/api/v1/reservations/:id など）を使い、生のURLはラベルにしない
// SSE の接続時間はレイテンシとして記録しない
func PrometheusMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}

			path := c.Path()
			if path == "" {
				path = pathUnmatched
			}
			method := c.Request().Method

			m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			if !isEventStream(c) {
				m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			}
			return err
		}
	}
}

func isEventStream(c echo.Context) bool {
	return strings.HasPrefix(c.Response().Header().Get(echo.HeaderContentType), "text/event-stream")
}
