package repository

import (
	"context"
	"time"
)

// 国別・日付入りの注文番号を採番する（例：DE-20260831-000042）。
type OrderSequenceRepository interface {
	Next(ctx context.Context, country string, day time.Time) (string, error)
}
