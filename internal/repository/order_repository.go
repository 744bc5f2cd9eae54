package repository

import (
	"context"
	"time"

	"shopcore/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page           int
	Limit          int
	DeliveryStatus string
	PaymentStatus  string
	UserID         *int64
	From           *time.Time
	To             *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (model.Order, error)

	//行ロック付き取得。「ステータス更新＋履歴追記」を注文単位で直列化するために使う。
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	//配送まわり（delivery_status / status_history / 追跡情報）だけを更新する
	UpdateDelivery(ctx context.Context, order model.Order) error

	//支払いまわり（payment_status / method / reference / paid_at）だけを更新する
	UpdatePayment(ctx context.Context, order model.Order) error

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
