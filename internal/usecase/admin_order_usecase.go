package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"
)

// 注文のステータス遷移（配送・支払い）と配送メモ。
// 「遷移＋履歴追記」は行ロックと同一Txで注文単位に直列化する。
type AdminOrderUsecase struct {
	tx repo.TransactionManager
}

func NewAdminOrderUsecase(tx repo.TransactionManager) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx}
}

type ChangeDeliveryStatusInput struct {
	Status                string
	Notes                 string
	TrackingNumber        string
	Carrier               string
	EstimatedDeliveryDate *time.Time
}

type MarkAsPaidInput struct {
	Method    string
	Reference string
	Notes     string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return []OrderOutput{}, NewValidation("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, NewValidation("invalid limit")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			outs = append(outs, toOrderOutput(o))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// ListAuditLogs は管理者操作ログを新しい順で返す。
func (u *AdminOrderUsecase) ListAuditLogs(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	var logs []model.AuditLog

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(ctx, f)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}
		return nil
	})

	if err != nil {
		return []model.AuditLog{}, err
	}
	return logs, nil
}

// ChangeDeliveryStatus は配送ステータスを進める。
// 成功したら必ず履歴を1件追記する。不正な遷移は注文も履歴も一切変えない。
// CANCELLEDへの遷移は明細スナップショット分の在庫を戻す。
func (u *AdminOrderUsecase) ChangeDeliveryStatus(ctx context.Context, actorID int64, orderID int64, in ChangeDeliveryStatusInput) (OrderOutput, error) {
	if actorID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewValidation("invalid id")
	}

	newStatus, ok := model.ParseDeliveryStatus(strings.TrimSpace(in.Status))
	if !ok {
		return OrderOutput{}, NewValidation("invalid status")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 行ロック付きで取得（同じ注文への遷移を直列化）
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound("not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		if !model.CanTransitionDelivery(o.DeliveryStatus, newStatus) {
			if o.DeliveryStatus.IsTerminal() {
				return NewInvalidTransition("delivery status is terminal")
			}
			return NewInvalidTransition("illegal delivery status transition")
		}

		// CANCELLEDのときだけ在庫戻し
		if newStatus == model.DeliveryStatusCancelled {
			for _, it := range o.Items {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "", "db error")
				}
			}
		}

		beforeStatus := o.DeliveryStatus
		now := time.Now()

		o.DeliveryStatus = newStatus
		if in.TrackingNumber != "" {
			o.TrackingNumber = in.TrackingNumber
		}
		if in.Carrier != "" {
			o.Carrier = in.Carrier
		}
		if in.EstimatedDeliveryDate != nil {
			o.EstimatedDeliveryDate = in.EstimatedDeliveryDate
		}

		//履歴追記はステータス更新と同じUPDATEに乗るので絶対にズレない
		o.StatusHistory = append(o.StatusHistory, model.StatusHistoryEntry{
			Status:    newStatus,
			Timestamp: now,
			UpdatedBy: &actorID,
			Notes:     in.Notes,
		})

		if err := r.Orders().UpdateDelivery(ctx, o); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewNotFound("not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		//監査ログ
		before, _ := json.Marshal(map[string]string{"delivery_status": string(beforeStatus)})
		after, _ := json.Marshal(map[string]string{"delivery_status": string(newStatus)})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorID,
			Action:       model.AuditActionUpdateDeliveryStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			Before:       before,
			After:        after,
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		out = toOrderOutput(o)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// MarkAsPaid は支払いをPENDING→PAIDにする。それ以外の状態からは失敗する。
func (u *AdminOrderUsecase) MarkAsPaid(ctx context.Context, actorID int64, orderID int64, in MarkAsPaidInput) (OrderOutput, error) {
	if actorID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewValidation("invalid id")
	}
	if strings.TrimSpace(in.Method) == "" {
		return OrderOutput{}, NewValidation("invalid payment method")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound("not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		if !model.CanTransitionPayment(o.PaymentStatus, model.PaymentStatusPaid) {
			return NewInvalidTransition("payment status is not pending")
		}

		beforeStatus := o.PaymentStatus
		now := time.Now()

		o.PaymentStatus = model.PaymentStatusPaid
		o.PaymentMethod = strings.TrimSpace(in.Method)
		o.PaymentReference = strings.TrimSpace(in.Reference)
		o.PaidAt = &now

		if err := r.Orders().UpdatePayment(ctx, o); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewNotFound("not found")
			}
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		before, _ := json.Marshal(map[string]string{"payment_status": string(beforeStatus)})
		after, _ := json.Marshal(map[string]string{
			"payment_status": string(model.PaymentStatusPaid),
			"method":         o.PaymentMethod,
			"reference":      o.PaymentReference,
			"notes":          in.Notes,
		})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorID,
			Action:       model.AuditActionMarkOrderPaid,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			Before:       before,
			After:        after,
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		out = toOrderOutput(o)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// AddDeliveryNotes は現在のステータスのままメモだけを履歴に追記する。
// 末尾エントリのstatus == 現在のdelivery_status の不変条件はこれで崩れない。
func (u *AdminOrderUsecase) AddDeliveryNotes(ctx context.Context, actorID int64, orderID int64, notes string) (OrderOutput, error) {
	if actorID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewValidation("invalid id")
	}
	if strings.TrimSpace(notes) == "" {
		return OrderOutput{}, NewValidation("invalid notes")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound("not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		now := time.Now()
		o.StatusHistory = append(o.StatusHistory, model.StatusHistoryEntry{
			Status:    o.DeliveryStatus,
			Timestamp: now,
			UpdatedBy: &actorID,
			Notes:     strings.TrimSpace(notes),
		})

		if err := r.Orders().UpdateDelivery(ctx, o); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		after, _ := json.Marshal(map[string]string{"notes": strings.TrimSpace(notes)})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorID,
			Action:       model.AuditActionAddDeliveryNotes,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			After:        after,
			CreatedAt:    now,
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		out = toOrderOutput(o)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}
