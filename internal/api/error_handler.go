package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-rental-reservation/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	// Blocking は予約できなかったときに重なっている有効な予約の件数
	Blocking int `json:"blocking,omitempty"`
	// CurrentState / RequestedState は拒否された状態遷移
	CurrentState   string `json:"current_state,omitempty"`
	RequestedState string `json:"requested_state,omitempty"`
}

// NewHTTPError は ErrorResponse を本文に持つ echo.HTTPError を作成する
func NewHTTPError(code int, resp ErrorResponse) *echo.HTTPError {
	resp.Code = code
	return echo.NewHTTPError(code, resp)
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	resp := ErrorResponse{
		Error: "内部サーバーエラー",
		Code:  http.StatusInternalServerError,
	}

	if he, ok := err.(*echo.HTTPError); ok {
		resp.Code = he.Code
		switch m := he.Message.(type) {
		case ErrorResponse:
			resp = m
			resp.Code = he.Code
		case string:
			resp.Error = m
		default:
			resp.Error = http.StatusText(he.Code)
		}
	}

	// エラーログを出力（5xx エラーの場合）
	if resp.Code >= 500 {
		logger.FromContext(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", resp.Code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	// HEAD にはボディを返さない
	if c.Request().Method == http.MethodHead {
		if err := c.NoContent(resp.Code); err != nil {
			logger.Error("エラーレスポンス送信失敗", zap.Error(err))
		}
		return
	}

	// JSONレスポンスを返す
	if err := c.JSON(resp.Code, resp); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
