package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator は新しいバリデーターを作成する
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return NewHTTPError(http.StatusBadRequest, ErrorResponse{
			Error:   "入力値が不正です",
			Details: describe(err),
		})
	}
	return nil
}

// describe は検証エラーを "field:tag" の列にする
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		parts[i] = fe.Field() + ":" + fe.Tag()
	}
	return strings.Join(parts, ", ")
}
