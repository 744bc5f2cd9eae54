package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 配送ステータス
type DeliveryStatus string

const (
	DeliveryStatusPending        DeliveryStatus = "PENDING"
	DeliveryStatusProcessing     DeliveryStatus = "PROCESSING"
	DeliveryStatusShipped        DeliveryStatus = "SHIPPED"
	DeliveryStatusInTransit      DeliveryStatus = "IN_TRANSIT"
	DeliveryStatusOutForDelivery DeliveryStatus = "OUT_FOR_DELIVERY"
	DeliveryStatusDelivered      DeliveryStatus = "DELIVERED"
	DeliveryStatusFailedDelivery DeliveryStatus = "FAILED_DELIVERY"
	DeliveryStatusReturned       DeliveryStatus = "RETURNED"
	DeliveryStatusCancelled      DeliveryStatus = "CANCELLED"
)

// 支払いステータス
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// ハッピーパスの進行順。タイムライン表示にもこの順を使う。
var deliveryProgression = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusProcessing,
	DeliveryStatusShipped,
	DeliveryStatusInTransit,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
}

// 横道（どの非終端状態からでも入れる。すべて終端）
var deliverySideBranches = map[DeliveryStatus]bool{
	DeliveryStatusFailedDelivery: true,
	DeliveryStatusReturned:       true,
	DeliveryStatusCancelled:      true,
}

// DeliveryProgression はハッピーパスのコピーを返す。
func DeliveryProgression() []DeliveryStatus {
	out := make([]DeliveryStatus, len(deliveryProgression))
	copy(out, deliveryProgression)
	return out
}

func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	st := DeliveryStatus(s)
	if deliverySideBranches[st] {
		return st, true
	}
	for _, p := range deliveryProgression {
		if p == st {
			return st, true
		}
	}
	return "", false
}

// IsTerminal は配送ステータスがこれ以上遷移できない状態かどうか。
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || deliverySideBranches[s]
}

func progressionIndex(s DeliveryStatus) int {
	for i, p := range deliveryProgression {
		if p == s {
			return i
		}
	}
	return -1
}

// CanTransitionDelivery は配送ステータスの遷移が許されるかを判定する。
// ルール：終端からは遷移不可。進行方向（前進のみ）か、非終端からの横道だけを許す。
func CanTransitionDelivery(from, to DeliveryStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if deliverySideBranches[to] {
		return true
	}
	fi := progressionIndex(from)
	ti := progressionIndex(to)
	if fi < 0 || ti < 0 {
		return false
	}
	//後戻りと同一ステータスは不可
	return ti > fi
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusPaid:    {PaymentStatusRefunded},
}

// CanTransitionPayment は支払いステータスの遷移が許されるかを判定する。
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// 注文明細のスナップショット。確定時点の価格とVATを固定し、
// 後からカタログの価格が変わっても追従しない。
type OrderItem struct {
	ProductID     int64           `json:"product_id"`
	Name          string          `json:"name"`
	Quantity      int64           `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	VATPercentage decimal.Decimal `json:"vat_percentage"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
}

// 配送ステータス変更の監査エントリ。追記のみで編集・削除しない。
// 不変条件：末尾エントリのstatusは常に注文の現在のdelivery_statusと一致する。
type StatusHistoryEntry struct {
	Status    DeliveryStatus `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	UpdatedBy *int64         `json:"updated_by"`
	Notes     string         `json:"notes,omitempty"`
}

// 注文。金額と明細は確定時のスナップショットで、以後はステータス系と
// 支払い・配送の付帯フィールドだけが変わる。
// items / status_history は注文の行と一緒にアトミックに読める様にjsonbで持つ。
type Order struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber string `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`
	UserID      int64  `gorm:"not null;index" json:"user_id"`

	//注文番号のプレフィックスと配送先の国（ISO 3166-1 alpha-2）
	Country string `gorm:"type:varchar(2);not null" json:"country"`

	RecipientName   string `gorm:"type:varchar(255);not null" json:"recipient_name"`
	ShippingAddress string `gorm:"type:varchar(500);not null" json:"shipping_address"`

	Subtotal       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount_amount"`
	VATAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"vat_amount"`

	//送料は含まない（配送先が決まった後にプレゼンテーション側で足す）
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_amount"`

	Items []OrderItem `gorm:"type:jsonb;serializer:json;not null" json:"items"`

	DeliveryStatus DeliveryStatus `gorm:"type:varchar(20);not null;index" json:"delivery_status"`
	PaymentStatus  PaymentStatus  `gorm:"type:varchar(20);not null;index" json:"payment_status"`

	PaymentMethod    string     `gorm:"type:varchar(50)" json:"payment_method,omitempty"`
	PaymentReference string     `gorm:"type:varchar(255)" json:"payment_reference,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`

	TrackingNumber        string     `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	Carrier               string     `gorm:"type:varchar(100)" json:"carrier,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date,omitempty"`

	StatusHistory []StatusHistoryEntry `gorm:"type:jsonb;serializer:json;not null" json:"status_history"`

	//二重送信防止キー
	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
