package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopcore/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderSequenceGormRepository struct {
	db *gorm.DB
}

func NewOrderSequenceGormRepository(db *gorm.DB) *OrderSequenceGormRepository {
	return &OrderSequenceGormRepository{db: db}
}

// Next は国別の連番をひとつ進めて注文番号を組み立てる。
// 行ロックで採番するので同じ国の番号が重複することはない。
func (r *OrderSequenceGormRepository) Next(ctx context.Context, country string, day time.Time) (string, error) {
	var value int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq model.OrderSequence

		findErr := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("country = ?", country).
			First(&seq).Error

		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			//この国の最初の注文
			seq = model.OrderSequence{Country: country, LastValue: 1}
			if err := tx.Create(&seq).Error; err != nil {
				return err
			}
			value = 1
			return nil
		}
		if findErr != nil {
			return findErr
		}

		seq.LastValue++
		if err := tx.Model(&model.OrderSequence{}).
			Where("country = ?", country).
			Update("last_value", seq.LastValue).Error; err != nil {
			return err
		}

		value = seq.LastValue
		return nil
	})

	if err != nil {
		return "", err
	}

	//例：DE-20260831-000042
	return fmt.Sprintf("%s-%s-%06d", country, day.Format("20060102"), value), nil
}
