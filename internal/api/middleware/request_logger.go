package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
)

// RequestLogger はリクエストの構造化ログを出力するミドルウェア
// リクエストIDと操作者を付けたロガーを context に入れ、以降の処理ログにも同じ項目が出るようにする
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			// リクエストIDを取得（RequestID ミドルウェアがレスポンスヘッダーに設定する）
			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = res.Header().Get(echo.HeaderXRequestID)
			}

			scoped := logger.With(zap.String("request_id", requestID))
			if actor := req.Header.Get(HeaderUserID); actor != "" {
				scoped = scoped.With(zap.String("actor_id", actor))
			}
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), scoped)))

			// リクエスト処理
			err := next(c)

			// レスポンス後のログ
			status := res.Status
			if he, ok := err.(*echo.HTTPError); ok && !res.Committed {
				status = he.Code
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("query", req.URL.RawQuery),
				zap.Int("status", status),
				zap.Int64("size", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
			}

			if err != nil {
				fields = append(fields, zap.Error(err))
			}
			switch {
			case status >= 500:
				scoped.Error("server error", fields...)
			case status >= 400:
				scoped.Warn("client error", fields...)
			default:
				scoped.Info("request completed", fields...)
			}

			return err
		}
	}
}
