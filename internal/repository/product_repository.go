package repository

import (
	"context"
	"errors"

	"shopcore/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// カタログ参照の窓口。商品の作成・更新は別システムの責務なのでここには無い。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}
