package handler

import (
	"net/http"

	"shopcore/internal/config"
	"shopcore/internal/middleware"
	"shopcore/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// POST /checkout
type CheckoutHandler struct {
	uc *usecase.CheckoutUsecase
}

func NewCheckoutHandler(uc *usecase.CheckoutUsecase) *CheckoutHandler {
	return &CheckoutHandler{uc: uc}
}

type CheckoutItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type CheckoutDiscountRequest struct {
	Kind  string          `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

type CheckoutRequest struct {
	//空ならACTIVEカートから注文する
	Items []CheckoutItemRequest `json:"items"`

	RecipientName   string                   `json:"recipient_name"`
	ShippingAddress string                   `json:"shipping_address"`
	Country         string                   `json:"country"`
	Discount        *CheckoutDiscountRequest `json:"discount"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/checkout")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("", h.checkout)
}

func (h *CheckoutHandler) checkout(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）。
	//クライアントが付けなかったらサーバー側で発行する（その場合リトライ保護は効かない）。
	idemKey := c.Request().Header.Get("X-Idempotency-Key")
	if idemKey == "" {
		idemKey = uuid.NewString()
	}

	items := make([]usecase.CheckoutItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, usecase.CheckoutItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}

	var discount *usecase.DiscountDescriptor
	if req.Discount != nil {
		discount = &usecase.DiscountDescriptor{
			Kind:  usecase.DiscountKind(req.Discount.Kind),
			Value: req.Discount.Value,
		}
	}

	out, err := h.uc.Checkout(c.Request().Context(), userID, usecase.CheckoutInput{
		Items:           items,
		RecipientName:   req.RecipientName,
		ShippingAddress: req.ShippingAddress,
		Country:         req.Country,
		Discount:        discount,
		IdempotencyKey:  idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, out)
}
