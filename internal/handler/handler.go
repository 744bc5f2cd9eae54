package handler

import (
	"net/http"

	"shopcore/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`

	//在庫不足のときだけ埋まる詳細
	ProductID int64  `json:"product_id,omitempty"`
	Requested int64  `json:"requested,omitempty"`
	InCart    int64  `json:"in_cart,omitempty"`
	Available *int64 `json:"available,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	//在庫不足はクライアントが数量調整できるように詳細ごと返す
	if se, ok := usecase.AsInsufficientStock(err); ok {
		avail := se.Available
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     se.Error(),
			Code:      usecase.CodeInsufficientStock,
			ProductID: se.ProductID,
			Requested: se.Requested,
			InCart:    se.InCart,
			Available: &avail,
		})
	}

	if he, ok := usecase.AsHTTPError(err); ok {
		return c.JSON(he.Status, ErrorResponse{Error: he.Message, Code: he.Code})
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get("user_id")
	if v == nil {
		return 0, false
	}

	id, ok := v.(int64)
	if !ok {
		return 0, false
	}

	return id, true
}
