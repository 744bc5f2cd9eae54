package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"

	"github.com/shopspring/decimal"
)

// 注文の読み取り系（一覧・番号検索・タイムライン）。
type OrderUsecase struct {
	orderRepo repo.OrderRepository
}

func NewOrderUsecase(orderRepo repo.OrderRepository) *OrderUsecase {
	return &OrderUsecase{orderRepo: orderRepo}
}

type OrderItemOutput struct {
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	VATPercentage decimal.Decimal `json:"vat_percentage"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
}

type StatusHistoryOutput struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedBy *int64    `json:"updated_by"`
	Notes     string    `json:"notes,omitempty"`
}

type OrderOutput struct {
	ID             int64                 `json:"id"`
	OrderNumber    string                `json:"order_number"`
	UserID         int64                 `json:"user_id"`
	Country        string                `json:"country"`
	DeliveryStatus string                `json:"delivery_status"`
	PaymentStatus  string                `json:"payment_status"`
	Subtotal       decimal.Decimal       `json:"subtotal"`
	DiscountAmount decimal.Decimal       `json:"discount_amount"`
	VATAmount      decimal.Decimal       `json:"vat_amount"`
	TotalAmount    decimal.Decimal       `json:"total_amount"`
	Items          []OrderItemOutput     `json:"items"`
	PaymentMethod  string                `json:"payment_method,omitempty"`
	PaidAt         *time.Time            `json:"paid_at,omitempty"`
	TrackingNumber string                `json:"tracking_number,omitempty"`
	Carrier        string                `json:"carrier,omitempty"`
	StatusHistory  []StatusHistoryOutput `json:"status_history"`
	CreatedAt      time.Time             `json:"created_at"`
}

// タイムラインの1ステップ。未到達のステップはtimestampがnullで返る。
type TimelineStep struct {
	Status      string     `json:"status"`
	IsCompleted bool       `json:"is_completed"`
	IsCurrent   bool       `json:"is_current"`
	Timestamp   *time.Time `json:"timestamp"`
	Notes       string     `json:"notes,omitempty"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}

	//ページングはまずは固定で取る
	orders, _, err := u.orderRepo.ListByUserID(ctx, userID, 1, 50)
	if err != nil {
		return []OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o))
	}
	return outs, nil
}

func (u *OrderUsecase) GetByNumber(ctx context.Context, userID int64, orderNumber string) (OrderOutput, error) {
	o, err := u.findOwned(ctx, userID, orderNumber)
	if err != nil {
		return OrderOutput{}, err
	}
	return toOrderOutput(o), nil
}

// GetTimeline は正規の進行ステップ全体（到達済みだけではない）を返す。
// 各ステップはstatus_historyと突き合わせて完了・現在地・時刻を注釈する。
func (u *OrderUsecase) GetTimeline(ctx context.Context, userID int64, orderNumber string) ([]TimelineStep, error) {
	o, err := u.findOwned(ctx, userID, orderNumber)
	if err != nil {
		return nil, err
	}
	return BuildTimeline(o), nil
}

func (u *OrderUsecase) findOwned(ctx context.Context, userID int64, orderNumber string) (model.Order, error) {
	if userID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}
	if strings.TrimSpace(orderNumber) == "" {
		return model.Order{}, NewValidation("invalid order_number")
	}

	o, err := u.orderRepo.FindByNumber(ctx, orderNumber)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewNotFound("not found")
	}
	if err != nil {
		return model.Order{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}
	if o.UserID != userID {
		//他人の注文は「存在しない扱い」にする
		return model.Order{}, NewNotFound("not found")
	}
	return o, nil
}

// BuildTimeline は履歴から配送タイムラインを組み立てる純関数。
// 横道（CANCELLEDなど）で終わった注文は、到達済みステップの後ろにその終端を足す。
func BuildTimeline(o model.Order) []TimelineStep {
	//ステータスごとの最後の履歴エントリ
	latest := make(map[model.DeliveryStatus]model.StatusHistoryEntry)
	for _, e := range o.StatusHistory {
		latest[e.Status] = e
	}

	current := o.DeliveryStatus
	steps := make([]TimelineStep, 0, 7)

	for _, s := range model.DeliveryProgression() {
		step := TimelineStep{Status: string(s)}

		if e, ok := latest[s]; ok {
			ts := e.Timestamp
			step.IsCompleted = true
			step.Timestamp = &ts
			step.Notes = e.Notes
		}
		step.IsCurrent = s == current

		steps = append(steps, step)
	}

	//横道の終端はハッピーパスに無いので末尾に追加
	if current != "" && !containsStatus(model.DeliveryProgression(), current) {
		step := TimelineStep{Status: string(current), IsCompleted: true, IsCurrent: true}
		if e, ok := latest[current]; ok {
			ts := e.Timestamp
			step.Timestamp = &ts
			step.Notes = e.Notes
		}
		steps = append(steps, step)
	}

	return steps
}

func containsStatus(list []model.DeliveryStatus, s model.DeliveryStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toOrderOutput(o model.Order) OrderOutput {
	items := make([]OrderItemOutput, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemOutput{
			ProductID:     it.ProductID,
			Name:          it.Name,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			VATPercentage: it.VATPercentage,
			VATAmount:     it.VATAmount,
		})
	}

	history := make([]StatusHistoryOutput, 0, len(o.StatusHistory))
	for _, e := range o.StatusHistory {
		history = append(history, StatusHistoryOutput{
			Status:    string(e.Status),
			Timestamp: e.Timestamp,
			UpdatedBy: e.UpdatedBy,
			Notes:     e.Notes,
		})
	}

	return OrderOutput{
		ID:             o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Country:        o.Country,
		DeliveryStatus: string(o.DeliveryStatus),
		PaymentStatus:  string(o.PaymentStatus),
		Subtotal:       o.Subtotal,
		DiscountAmount: o.DiscountAmount,
		VATAmount:      o.VATAmount,
		TotalAmount:    o.TotalAmount,
		Items:          items,
		PaymentMethod:  o.PaymentMethod,
		PaidAt:         o.PaidAt,
		TrackingNumber: o.TrackingNumber,
		Carrier:        o.Carrier,
		StatusHistory:  history,
		CreatedAt:      o.CreatedAt,
	}
}
