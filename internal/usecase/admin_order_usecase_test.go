package usecase_test

import (
	"context"
	"testing"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"
	"shopcore/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type adminMocks struct {
	tx        *TxManagerMock
	orders    *OrderRepoMock
	inventory *InventoryRepoMock
	audit     *AuditLogRepoMock
}

func newAdminOrderUsecase() (*usecase.AdminOrderUsecase, adminMocks) {
	m := adminMocks{
		tx:        new(TxManagerMock),
		orders:    new(OrderRepoMock),
		inventory: new(InventoryRepoMock),
		audit:     new(AuditLogRepoMock),
	}
	m.tx.Repos = &TxReposMock{
		orders:    m.orders,
		inventory: m.inventory,
		auditLogs: m.audit,
	}
	m.tx.On("WithinTx", mock.Anything).Return(nil)

	return usecase.NewAdminOrderUsecase(m.tx), m
}

// =====================
// List tests
// =====================

func TestAdminOrderUsecase_List_InvalidPage(t *testing.T) {
	uc, _ := newAdminOrderUsecase()

	outs, err := uc.List(context.Background(), repo.AdminOrderListFilter{Page: 0, Limit: 20})
	assert.Equal(t, 0, len(outs))
	assertErrContains(t, err, "invalid page")
}

func TestAdminOrderUsecase_List_InvalidLimit(t *testing.T) {
	uc, _ := newAdminOrderUsecase()

	outs, err := uc.List(context.Background(), repo.AdminOrderListFilter{Page: 1, Limit: 0})
	assert.Equal(t, 0, len(outs))
	assertErrContains(t, err, "invalid limit")
}

func TestAdminOrderUsecase_List_Success(t *testing.T) {
	ctx := context.Background()
	uc, m := newAdminOrderUsecase()

	f := repo.AdminOrderListFilter{Page: 1, Limit: 20, DeliveryStatus: "PENDING"}

	m.orders.On("ListAdmin", mock.Anything, f).Return([]model.Order{
		{ID: 10, OrderNumber: "DE-20260831-000001", DeliveryStatus: model.DeliveryStatusPending},
		{ID: 11, OrderNumber: "DE-20260831-000002", DeliveryStatus: model.DeliveryStatusPending},
	}, int64(2), nil)

	outs, err := uc.List(ctx, f)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(outs))

	m.orders.AssertExpectations(t)
}

func TestAdminOrderUsecase_ListAuditLogs(t *testing.T) {
	ctx := context.Background()
	uc, m := newAdminOrderUsecase()

	orderID := int64(1)
	f := repo.AuditLogFilter{ResourceID: &orderID, Limit: 10}

	m.audit.On("List", mock.Anything, f).Return([]model.AuditLog{
		{ID: 3, ActorUserID: 9, Action: model.AuditActionMarkOrderPaid, ResourceID: orderID},
		{ID: 2, ActorUserID: 9, Action: model.AuditActionUpdateDeliveryStatus, ResourceID: orderID},
	}, nil)

	logs, err := uc.ListAuditLogs(ctx, f)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(logs))

	m.audit.AssertExpectations(t)
}

// =====================
// ChangeDeliveryStatus tests
// =====================

func TestAdminOrderUsecase_ChangeDeliveryStatus_UnauthorizedActor(t *testing.T) {
	uc, _ := newAdminOrderUsecase()

	_, err := uc.ChangeDeliveryStatus(context.Background(), 0, 1, usecase.ChangeDeliveryStatusInput{Status: "PROCESSING"})
	assertErrContains(t, err, "unauthorized")
}

func TestAdminOrderUsecase_ChangeDeliveryStatus_InvalidStatus(t *testing.T) {
	uc, _ := newAdminOrderUsecase()

	_, err := uc.ChangeDeliveryStatus(context.Background(), 1, 1, usecase.ChangeDeliveryStatusInput{Status: "XXX"})
	assertErrContains(t, err, "invalid status")
}

func TestAdminOrderUsecase_ChangeDeliveryStatus_NotFound(t *testing.T) {
	ctx := context.Background()
	uc, m := newAdminOrderUsecase()

	m.orders.On("FindByIDForUpdate", mock.Anything, int64(99)).Return(model.Order{}, repo.ErrNotFound)

	_, err := uc.ChangeDeliveryStatus(ctx, 1, 99, usecase.ChangeDeliveryStatusInput{Status: "PROCESSING"})
	assertErrContains(t, err, "not found")
}

// 成功した遷移は履歴をちょうど1件追記し、監査ログも残す
func TestAdminOrderUsecase_ChangeDeliveryStatus_AppendsExactlyOneEntry(t *testing.T) {
	ctx := context.Background()
	uc, m := newAdminOrderUsecase()

	actorID := int64(9)
	order := model.Order{
		ID:             1,
		DeliveryStatus: model.DeliveryStatusPending,
		StatusHistory: []model.StatusHistoryEntry{
			{Status: model.DeliveryStatusPending},
		},
	}

	m.orders.On("FindByIDForUpdate", mock.Anything, int64(1)).Return(order, nil)
	m.orders.On("UpdateDelivery", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		if o.DeliveryStatus != model.DeliveryStatusProcessing {
			return false
		}
		if len(o.StatusHistory) != 2 {
			return false
		}
		last := o.StatusHistory[len(o.StatusHistory)-1]
		return last.Status == model.DeliveryStatusProcessing &&
			last.UpdatedBy != nil && *last.UpdatedBy == actorID &&
			last.Notes == "picked"
	})).Return(nil)
	m.audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdateDeliveryStatus && l.ResourceID == int64(1)
	})).Return(nil)

	out, err := uc.ChangeDeliveryStatus(ctx, actorID, 1, usecase.ChangeDeliveryStatusInput{
		Status: "PROCESSING",
		Notes:  "picked",
	})
	assert.NoError(t, err)
	assert.Equal(t, string(model.DeliveryStatusProcessing), out.DeliveryStatus)
	assert.Equal(t, 2, len(out.StatusHistory))

	m.orders.AssertExpectations(t)
	m.audit.AssertExpectations(t)
}

// 前進はステップを飛ばしてもよい（PENDING→SHIPPED）
func TestAdminOrderUsecase_ChangeDeliveryStatus_SkipAheadAllowed(t *testing.T) {
	ctx := context.Background()
	uc, m := newAdminOrderUsecase()

	m.orders.On("FindByIDForUpdate", mock.Anything, int64(1)).Return(model.Order{
		ID:             1,
		DeliveryStatus: model.DeliveryStatusPending,
	}, nil)
	m.orders.On("UpdateDelivery", mock.Anything, mock.AnythingOfType("model.Order")).Return(nil)
	m.audit.On("Create", mock.Anything, mock.AnythingOfType("model.AuditLog")).Return(nil)

	out, err := uc.ChangeDeliveryStatus(ctx, 1, 1, usecase.ChangeDeliveryStatusInput{
		Status:         "SHIPPED",
		TrackingNumber: "TRK-1",
		Carrier:        "DHL",
	})
	assert.NoError(t, err)
	assert.Equal(t, string(model.DeliveryStatusShipped), out.DeliveryStatus)
	assert.Equal(t, "TRK-1", out.TrackingNumber)
	assert.Equal(t, "DHL", out.Carrier)
}

// 後退は不可
func TestAdminOrderUsecase_ChangeDeliveryStatus_BackwardRejected(t *testing.T) {
	ctx := context.Background()
	uc, m := newAdminOrderUsecase()

	m.orders.On("FindByIDForUpdate", mock.Anything, int64(1)).Return(model.Order{
		ID:             1,
		DeliveryStatus: model.DeliveryStatusShipped,
	}, nil)

	_, err := uc.ChangeDeliveryStatus(ctx, 1, 1, usecase.ChangeDeliveryStatusInput{Status: "PROCESSING"})
	assertErrContains(t, err, "illegal delivery status transition")

	m.orders.AssertNotCalled(t, "UpdateDelivery", mock.Anything, mock.Anything)
	m.audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// 終端からはどこへも遷移できない
func TestAdminOrderUsecase_ChangeDeliveryStatus_TerminalRejected(t *testing.T) {
	ctx := context.Background()
	uc, m := newAdminOrderUsecase()

	m.orders.On("FindByIDForUpdate", mock.Anything, int64(1)).Return(model.Order{
		ID:             1,
		DeliveryStatus: model.DeliveryStatusDelivered,
	}, nil)

	_, err := uc.ChangeDeliveryStatus(ctx, 1, 1, usecase.ChangeDeliveryStatusInput{Status: "RETURNED"})
	assertErrContains(t, err, "terminal")

	m.orders.AssertNotCalled(t, "UpdateDelivery", mock.Anything, mock.Anything)
}

// CANCELLEDへの遷移は明細スナップショット分の在庫を戻す
func TestAdminOrderUsecase_ChangeDeliveryStatus_CancelRestoresStock(t *testing.T) {
	ctx := context.Background()
	uc, m := newAdminOrderUsecase()

	m.orders.On("FindByIDForUpdate", mock.Anything, int64(1)).Return(model.Order{
		ID:             1,
		DeliveryStatus: model.DeliveryStatusProcessing,
		Items: []model.OrderItem{
			{ProductID: 5, Quantity: 2},
			{ProductID: 6, Quantity: 1},
		},
	}, nil)
	m.inventory.On("IncreaseStock", mock.Anything, int64(5), int64(2)).Return(nil)
	m.inventory.On("IncreaseStock", mock.Anything, int64(6), int64(1)).Return(nil)
	m.orders.On("UpdateDelivery", mock.Anything, mock.AnythingOfType("model.Order")).Return(nil)
	m.audit.On("Create", mock.Anything, mock.AnythingOfType("model.AuditLog")).Return(nil)

	out, err := uc.ChangeDeliveryStatus(ctx, 1, 1, usecase.ChangeDeliveryStatusInput{Status: "CANCELLED"})
	assert.NoError(t, err)
	assert.Equal(t, string(model.DeliveryStatusCancelled), out.DeliveryStatus)

	m.inventory.AssertExpectations(t)
}

// =====================
// MarkAsPaid tests
// =====================

func TestAdminOrderUsecase_MarkAsPaid_MissingMethod(t *testing.T) {
	uc, _ := newAdminOrderUsecase()

	_, err := uc.MarkAsPaid(context.Background(), 1, 1, usecase.MarkAsPaidInput{Method: " "})
	assertErrContains(t, err, "invalid payment method")
}

func TestAdminOrderUsecase_MarkAsPaid_Success(t *testing.T) {
	ctx := context.Background()
	uc, m := newAdminOrderUsecase()

	m.orders.On("FindByIDForUpdate", mock.Anything, int64(1)).Return(model.Order{
		ID:            1,
		PaymentStatus: model.PaymentStatusPending,
	}, nil)
	m.orders.On("UpdatePayment", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.PaymentStatus == model.PaymentStatusPaid &&
			o.PaymentMethod == "bank_transfer" &&
			o.PaymentReference == "TX-123" &&
			o.PaidAt != nil
	})).Return(nil)
	m.audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionMarkOrderPaid
	})).Return(nil)

	out, err := uc.MarkAsPaid(ctx, 1, 1, usecase.MarkAsPaidInput{
		Method:    "bank_transfer",
		Reference: "TX-123",
	})
	assert.NoError(t, err)
	assert.Equal(t, string(model.PaymentStatusPaid), out.PaymentStatus)
	assert.NotNil(t, out.PaidAt)

	m.orders.AssertExpectations(t)
	m.audit.AssertExpectations(t)
}

// PENDING以外からはPAIDにできない
func TestAdminOrderUsecase_MarkAsPaid_AlreadyPaid(t *testing.T) {
	ctx := context.Background()
	uc, m := newAdminOrderUsecase()

	m.orders.On("FindByIDForUpdate", mock.Anything, int64(1)).Return(model.Order{
		ID:            1,
		PaymentStatus: model.PaymentStatusPaid,
	}, nil)

	_, err := uc.MarkAsPaid(ctx, 1, 1, usecase.MarkAsPaidInput{Method: "card"})
	assertErrContains(t, err, "not pending")

	m.orders.AssertNotCalled(t, "UpdatePayment", mock.Anything, mock.Anything)
}

// =====================
// AddDeliveryNotes tests
// =====================

func TestAdminOrderUsecase_AddDeliveryNotes_EmptyNotes(t *testing.T) {
	uc, _ := newAdminOrderUsecase()

	_, err := uc.AddDeliveryNotes(context.Background(), 1, 1, "  ")
	assertErrContains(t, err, "invalid notes")
}

// メモの追記は現在のステータスを変えず、末尾エントリのstatusは現在のステータスのまま
func TestAdminOrderUsecase_AddDeliveryNotes_KeepsStatus(t *testing.T) {
	ctx := context.Background()
	uc, m := newAdminOrderUsecase()

	m.orders.On("FindByIDForUpdate", mock.Anything, int64(1)).Return(model.Order{
		ID:             1,
		DeliveryStatus: model.DeliveryStatusShipped,
		StatusHistory: []model.StatusHistoryEntry{
			{Status: model.DeliveryStatusPending},
			{Status: model.DeliveryStatusShipped},
		},
	}, nil)
	m.orders.On("UpdateDelivery", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		if o.DeliveryStatus != model.DeliveryStatusShipped {
			return false
		}
		if len(o.StatusHistory) != 3 {
			return false
		}
		last := o.StatusHistory[len(o.StatusHistory)-1]
		return last.Status == model.DeliveryStatusShipped && last.Notes == "left at depot"
	})).Return(nil)
	m.audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionAddDeliveryNotes
	})).Return(nil)

	out, err := uc.AddDeliveryNotes(ctx, 1, 1, "left at depot")
	assert.NoError(t, err)
	assert.Equal(t, string(model.DeliveryStatusShipped), out.DeliveryStatus)
	assert.Equal(t, 3, len(out.StatusHistory))

	m.orders.AssertExpectations(t)
}
