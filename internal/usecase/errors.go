package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// エラー種別。presentation側が「在庫切れ」と「存在しない」を出し分けるためのコード。
const (
	CodeNotFound          = "NOT_FOUND"
	CodeUnavailable       = "UNAVAILABLE"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeValidation        = "VALIDATION_ERROR"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func NewHTTPError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func NewNotFound(message string) error {
	return NewHTTPError(http.StatusNotFound, CodeNotFound, message)
}

func NewUnavailable(message string) error {
	return NewHTTPError(http.StatusBadRequest, CodeUnavailable, message)
}

func NewInvalidTransition(message string) error {
	return NewHTTPError(http.StatusConflict, CodeInvalidTransition, message)
}

func NewValidation(message string) error {
	return NewHTTPError(http.StatusBadRequest, CodeValidation, message)
}

// 在庫不足。どの商品が、いくつ欲しくて、いくつ残っているかを持ち回る。
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	InCart    int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"insufficient stock: product=%d requested=%d in_cart=%d available=%d",
		e.ProductID, e.Requested, e.InCart, e.Available,
	)
}

func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var se *InsufficientStockError
	ok := errors.As(err, &se)
	return se, ok
}
