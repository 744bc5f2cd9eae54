package usecase_test

import (
	"context"
	"testing"
	"time"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"
	"shopcore/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestOrderUsecase_ListMyOrders(t *testing.T) {
	ctx := context.Background()
	orderRepo := new(OrderRepoMock)
	uc := usecase.NewOrderUsecase(orderRepo)

	orderRepo.On("ListByUserID", mock.Anything, int64(1), 1, 50).Return([]model.Order{
		{ID: 10, OrderNumber: "DE-20260831-000001", UserID: 1},
	}, int64(1), nil)

	outs, err := uc.ListMyOrders(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(outs))
	assert.Equal(t, "DE-20260831-000001", outs[0].OrderNumber)

	orderRepo.AssertExpectations(t)
}

func TestOrderUsecase_GetByNumber_NotFound(t *testing.T) {
	ctx := context.Background()
	orderRepo := new(OrderRepoMock)
	uc := usecase.NewOrderUsecase(orderRepo)

	orderRepo.On("FindByNumber", mock.Anything, "DE-20260831-000099").Return(model.Order{}, repo.ErrNotFound)

	_, err := uc.GetByNumber(ctx, 1, "DE-20260831-000099")
	assertErrContains(t, err, "not found")
}

// 他人の注文は存在しない扱い（404）
func TestOrderUsecase_GetByNumber_OtherUsersOrderHidden(t *testing.T) {
	ctx := context.Background()
	orderRepo := new(OrderRepoMock)
	uc := usecase.NewOrderUsecase(orderRepo)

	orderRepo.On("FindByNumber", mock.Anything, "DE-20260831-000001").Return(model.Order{
		ID: 10, OrderNumber: "DE-20260831-000001", UserID: 2,
	}, nil)

	_, err := uc.GetByNumber(ctx, 1, "DE-20260831-000001")

	he, ok := usecase.AsHTTPError(err)
	assert.True(t, ok)
	assert.Equal(t, 404, he.Status)
}

// タイムラインは到達済みだけでなく正規の全ステップを返し、未到達はtimestampがnil
func TestBuildTimeline_HappyPathInProgress(t *testing.T) {
	t1 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	t3 := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	o := model.Order{
		DeliveryStatus: model.DeliveryStatusShipped,
		StatusHistory: []model.StatusHistoryEntry{
			{Status: model.DeliveryStatusPending, Timestamp: t1},
			{Status: model.DeliveryStatusProcessing, Timestamp: t2},
			{Status: model.DeliveryStatusShipped, Timestamp: t3, Notes: "handed to carrier"},
		},
	}

	steps := usecase.BuildTimeline(o)
	assert.Equal(t, 6, len(steps))

	assert.True(t, steps[0].IsCompleted)
	assert.True(t, steps[1].IsCompleted)
	assert.True(t, steps[2].IsCompleted)
	assert.True(t, steps[2].IsCurrent)
	assert.Equal(t, "handed to carrier", steps[2].Notes)

	//未到達ステップ
	assert.False(t, steps[3].IsCompleted)
	assert.Nil(t, steps[3].Timestamp)
	assert.False(t, steps[5].IsCompleted)
	assert.Nil(t, steps[5].Timestamp)
}

// 横道で終わった注文は、到達済みステップの後ろに終端を1件足す
func TestBuildTimeline_SideBranchAppended(t *testing.T) {
	t1 := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)

	o := model.Order{
		DeliveryStatus: model.DeliveryStatusCancelled,
		StatusHistory: []model.StatusHistoryEntry{
			{Status: model.DeliveryStatusPending, Timestamp: t1},
			{Status: model.DeliveryStatusCancelled, Timestamp: t2, Notes: "customer request"},
		},
	}

	steps := usecase.BuildTimeline(o)
	assert.Equal(t, 7, len(steps))

	last := steps[len(steps)-1]
	assert.Equal(t, string(model.DeliveryStatusCancelled), last.Status)
	assert.True(t, last.IsCompleted)
	assert.True(t, last.IsCurrent)
	assert.Equal(t, "customer request", last.Notes)

	//ハッピーパス側にcurrentは無い
	for _, s := range steps[:6] {
		assert.False(t, s.IsCurrent)
	}
}

func TestBuildTimeline_Delivered(t *testing.T) {
	now := time.Now()

	history := make([]model.StatusHistoryEntry, 0, 6)
	for _, s := range model.DeliveryProgression() {
		history = append(history, model.StatusHistoryEntry{Status: s, Timestamp: now})
	}

	o := model.Order{
		DeliveryStatus: model.DeliveryStatusDelivered,
		StatusHistory:  history,
	}

	steps := usecase.BuildTimeline(o)
	assert.Equal(t, 6, len(steps))

	for _, s := range steps {
		assert.True(t, s.IsCompleted)
	}
	assert.True(t, steps[5].IsCurrent)
}
