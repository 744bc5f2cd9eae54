package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 商品カタログ。このコアでは参照と在庫の増減だけを行う（商品CRUDは別システム）。
type Product struct {
	ID   int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"type:varchar(255);not null" json:"name"`

	//税抜き単価
	Price    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Currency string          `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`

	//この商品のVAT率（%）。注文明細のスナップショットへコピーされる。
	VATPercentage decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"vat_percentage"`

	Stock    int64 `gorm:"not null" json:"stock"`
	IsActive bool  `gorm:"not null;default:false" json:"is_active"`

	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
