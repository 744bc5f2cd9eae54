package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"shopcore/internal/domain/model"
	repo "shopcore/internal/repository"
)

// 注文作成がユニークキー違反で負けたことを示す内部シグナル
var errIdempotencyRace = errors.New("idempotency race")

// CheckoutUsecase はカート（またはゲストの明細リスト）を注文に変える。
// 検証→価格計算→永続化を1トランザクションで行い、途中で失敗したら何も書かない。
type CheckoutUsecase struct {
	tx repo.TransactionManager
}

func NewCheckoutUsecase(tx repo.TransactionManager) *CheckoutUsecase {
	return &CheckoutUsecase{tx: tx}
}

type CheckoutItemInput struct {
	ProductID int64
	Quantity  int64
}

type CheckoutInput struct {
	//空なら本人のACTIVEカートを使う
	Items []CheckoutItemInput

	RecipientName   string
	ShippingAddress string
	Country         string

	Discount *DiscountDescriptor

	//二重送信防止キー
	IdempotencyKey string
}

// Checkout は注文を確定する。
// 在庫の検証はall-or-nothing：1件でも足りなければ注文全体を失敗させる（syncとは逆の思想）。
// 在庫の減算は永続化ステップの中で条件付きUPDATEにより行い、失敗したらTxごと巻き戻す。
func (u *CheckoutUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return OrderOutput{}, NewValidation("invalid idempotency_key")
	}

	country := strings.ToUpper(strings.TrimSpace(in.Country))
	if len(country) != 2 {
		return OrderOutput{}, NewValidation("invalid country")
	}
	if strings.TrimSpace(in.RecipientName) == "" {
		return OrderOutput{}, NewValidation("invalid recipient_name")
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return OrderOutput{}, NewValidation("invalid shipping_address")
	}
	for _, it := range in.Items {
		if it.ProductID <= 0 || it.Quantity < 1 {
			return OrderOutput{}, NewValidation("invalid items")
		}
	}
	if in.Discount != nil &&
		in.Discount.Kind != DiscountKindPercentage &&
		in.Discount.Kind != DiscountKindFixed {
		return OrderOutput{}, NewValidation("invalid discount kind")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}
		if found {
			out = toOrderOutput(existing)
			return nil
		}

		//明細の確定（入力 or ACTIVEカート）
		var cartID int64
		items := make([]CheckoutItemInput, 0, len(in.Items))

		if len(in.Items) > 0 {
			items = append(items, in.Items...)
		} else {
			cart, err := r.Carts().FindActiveByUserID(ctx, userID)
			if errors.Is(err, repo.ErrNotFound) {
				return NewValidation("cart empty")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "", "db error")
			}

			cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "", "db error")
			}
			for _, ci := range cartItems {
				items = append(items, CheckoutItemInput{ProductID: ci.ProductID, Quantity: ci.Quantity})
			}
			cartID = cart.ID
		}

		if len(items) == 0 {
			return NewValidation("cart empty")
		}

		//Validating：カタログの今の状態で再検証する。
		//syncと違って、ここでは1件でもダメなら全部ダメ。
		priced := make([]PricedLineItem, 0, len(items))
		for _, it := range items {
			p, err := r.Products().FindByID(ctx, it.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return &InsufficientStockError{ProductID: it.ProductID, Requested: it.Quantity, Available: 0}
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "", "db error")
			}
			if !p.IsActive {
				return &InsufficientStockError{ProductID: it.ProductID, Requested: it.Quantity, Available: 0}
			}
			if p.Stock < it.Quantity {
				return &InsufficientStockError{ProductID: it.ProductID, Requested: it.Quantity, Available: p.Stock}
			}

			priced = append(priced, PricedLineItem{
				ProductID:     p.ID,
				Name:          p.Name,
				Quantity:      it.Quantity,
				UnitPrice:     p.Price,
				VATPercentage: p.VATPercentage,
			})
		}

		//Pricing：注文全体は固定レート、明細は各自のVAT率でスナップショット
		priced = PriceLineItems(priced)
		totals := ComputeTotals(priced, CheckoutVATRate, in.Discount).Rounded()

		//Persisting：在庫の予約（足りなければ注文全体を失敗させてTxを巻き戻す）
		for _, it := range priced {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "", "db error")
			}
			if !ok {
				//検証の後に他の注文が在庫を取った。今の残数を読み直して返す
				avail := int64(0)
				if p2, err2 := r.Products().FindByID(ctx, it.ProductID); err2 == nil {
					avail = p2.Stock
				}
				return &InsufficientStockError{ProductID: it.ProductID, Requested: it.Quantity, Available: avail}
			}
		}

		now := time.Now()

		orderNumber, err := r.Sequences().Next(ctx, country, now)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		orderItems := make([]model.OrderItem, 0, len(priced))
		for _, it := range priced {
			orderItems = append(orderItems, model.OrderItem{
				ProductID:     it.ProductID,
				Name:          it.Name,
				Quantity:      it.Quantity,
				UnitPrice:     it.UnitPrice,
				VATPercentage: it.VATPercentage,
				VATAmount:     it.VATAmount.Round(2),
			})
		}

		order := model.Order{
			OrderNumber:     orderNumber,
			UserID:          userID,
			Country:         country,
			RecipientName:   strings.TrimSpace(in.RecipientName),
			ShippingAddress: strings.TrimSpace(in.ShippingAddress),
			Subtotal:        totals.Subtotal,
			DiscountAmount:  totals.DiscountAmount,
			VATAmount:       totals.VATAmount,
			TotalAmount:     totals.TotalAmount,
			Items:           orderItems,
			DeliveryStatus:  model.DeliveryStatusPending,
			PaymentStatus:   model.PaymentStatusPending,
			StatusHistory: []model.StatusHistoryEntry{
				{Status: model.DeliveryStatusPending, Timestamp: now, UpdatedBy: &userID},
			},
			IdempotencyKey: key,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			//ユニークキー違反の後はTxが中断しているので、ここでは読み直さない。
			//巻き戻してから新しいTxで勝った方の注文を探す
			return errIdempotencyRace
		}
		order.ID = orderID

		//カートからの注文ならCHECKED_OUTにして明細をクリア（再注文防止）
		if cartID > 0 {
			if err := r.Carts().UpdateStatus(ctx, cartID, model.CartStatusCheckedOut); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "", "db error")
			}
			if err := r.Carts().Clear(ctx, cartID); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "", "db error")
			}
		}

		out = toOrderOutput(order)
		return nil
	})

	if errors.Is(err, errIdempotencyRace) {
		//このTxの在庫減算は巻き戻し済み。勝った注文があればそれを返す
		replayErr := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			existing, found, err2 := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err2 != nil {
				return NewHTTPError(http.StatusInternalServerError, "", "db error")
			}
			if !found {
				return NewHTTPError(http.StatusConflict, CodeValidation, "idempotency conflict")
			}
			out = toOrderOutput(existing)
			return nil
		})
		if replayErr != nil {
			return OrderOutput{}, replayErr
		}
		return out, nil
	}
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}
