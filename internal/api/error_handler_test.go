package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveError(t *testing.T, method string, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/api/v1/reservations", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	CustomHTTPErrorHandler(err, c)

	var resp ErrorResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestCustomHTTPErrorHandler(t *testing.T) {
	t.Run("ErrorResponseを本文に持つHTTPError", func(t *testing.T) {
		rec, resp := serveError(t, http.MethodPost, NewHTTPError(http.StatusConflict, ErrorResponse{
			Error:    "車両はその期間すでに予約されています",
			Blocking: 2,
		}))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, 2, resp.Blocking)
	})

	t.Run("文字列メッセージのHTTPError", func(t *testing.T) {
		rec, resp := serveError(t, http.MethodGet, echo.NewHTTPError(http.StatusNotFound, "見つかりません"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "見つかりません", resp.Error)
	})

	t.Run("HTTPError以外は500", func(t *testing.T) {
		rec, resp := serveError(t, http.MethodGet, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "内部サーバーエラー", resp.Error)
	})

	t.Run("HEADはボディなし", func(t *testing.T) {
		rec, _ := serveError(t, http.MethodHead, echo.NewHTTPError(http.StatusNotFound, "見つかりません"))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Zero(t, rec.Body.Len())
	})

	t.Run("送信済みなら何もしない", func(t *testing.T) {
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, c.String(http.StatusOK, "done"))

		CustomHTTPErrorHandler(errors.New("late"), c)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "done", rec.Body.String())
	})
}

func TestCustomValidator(t *testing.T) {
	type request struct {
		VehicleID string `validate:"required"`
		Rate      int64  `validate:"gte=0"`
	}
	v := NewValidator()

	assert.NoError(t, v.Validate(&request{VehicleID: "v-1"}))

	err := v.Validate(&request{Rate: -1})
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusBadRequest, he.Code)
	resp, ok := he.Message.(ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, "VehicleID:required, Rate:gte", resp.Details)
}
