package model

import "time"

// 国別の注文番号連番。行ロックで採番するので単調増加が保たれる。
type OrderSequence struct {
	Country   string    `gorm:"type:varchar(2);primaryKey" json:"country"`
	LastValue int64     `gorm:"not null" json:"last_value"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
