package model

import (
	"time"

	"gorm.io/datatypes"
)

// 注文ステータス更新、支払い確定など。
type AuditAction string

const (
	//配送ステータスを更新した操作。
	AuditActionUpdateDeliveryStatus AuditAction = "UPDATE_DELIVERY_STATUS"
	//支払いを確定した操作。
	AuditActionMarkOrderPaid AuditAction = "MARK_ORDER_PAID"
	//配送メモを追記した操作。
	AuditActionAddDeliveryNotes AuditAction = "ADD_DELIVERY_NOTES"
)

// 何に対する操作か
type AuditResourceType string

const (
	//注文に対する操作。
	AuditResourceOrder AuditResourceType = "order"

	//商品に対する操作。
	AuditResourceProduct AuditResourceType = "product"
)

// 監査ログ（管理者操作ログ）。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	//IDは監査ログの主キー
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作したユーザー（主に管理者）のID。
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	//対象の種類（order / product）。
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`

	//対象のID
	ResourceID int64 `gorm:"not null;index" json:"resource_id"`

	//変更前後の状態（jsonb）
	Before datatypes.JSON `gorm:"type:jsonb" json:"before"`
	After  datatypes.JSON `gorm:"type:jsonb" json:"after"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
