package usecase

import "github.com/shopspring/decimal"

// チェックアウト全体に適用する固定VAT率（%）。
var CheckoutVATRate = decimal.NewFromInt(18)

type DiscountKind string

const (
	DiscountKindPercentage DiscountKind = "percentage"
	DiscountKindFixed      DiscountKind = "fixed"
)

// 割引。注文には導出された金額だけが残り、割引そのものは保存しない。
type DiscountDescriptor struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// 計算時点の正式な単価とVAT率を持った明細。
type PricedLineItem struct {
	ProductID     int64
	Name          string
	Quantity      int64
	UnitPrice     decimal.Decimal
	VATPercentage decimal.Decimal

	//割引前の明細小計に対するVAT（監査用のスナップショット）
	VATAmount decimal.Decimal
}

type OrderTotals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	VATAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
}

func (i PricedLineItem) lineSubtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(i.Quantity))
}

// PriceLineItems は各明細のVATスナップショットを埋めて返す。
// 明細のVATは割引前の明細小計に対してそれぞれのVAT率で計算する。
func PriceLineItems(items []PricedLineItem) []PricedLineItem {
	out := make([]PricedLineItem, len(items))
	hundred := decimal.NewFromInt(100)

	for idx, it := range items {
		it.VATAmount = it.lineSubtotal().Mul(it.VATPercentage).Div(hundred)
		out[idx] = it
	}
	return out
}

// ComputeTotals は注文金額を導出する純関数。
//
//	subtotal       = Σ(unitPrice × quantity)
//	discountAmount = percentageならsubtotal×value/100、fixedならmin(value, subtotal)。負にはならない。
//	vatAmount      = 割引後小計 × vatRate/100（注文全体の単一レート）
//	totalAmount    = 割引後小計 + vatAmount
//
// 送料は含めない。丸めはここでは行わず、永続化の直前に一度だけ行う。
func ComputeTotals(items []PricedLineItem, vatRate decimal.Decimal, discount *DiscountDescriptor) OrderTotals {
	hundred := decimal.NewFromInt(100)

	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.lineSubtotal())
	}

	discountAmount := decimal.Zero
	if discount != nil {
		switch discount.Kind {
		case DiscountKindPercentage:
			discountAmount = subtotal.Mul(discount.Value).Div(hundred)
		case DiscountKindFixed:
			discountAmount = discount.Value
		}
	}

	//常に 0 <= discountAmount <= subtotal
	if discountAmount.IsNegative() {
		discountAmount = decimal.Zero
	}
	if discountAmount.GreaterThan(subtotal) {
		discountAmount = subtotal
	}

	afterDiscount := subtotal.Sub(discountAmount)
	vatAmount := afterDiscount.Mul(vatRate).Div(hundred)

	return OrderTotals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		VATAmount:      vatAmount,
		TotalAmount:    afterDiscount.Add(vatAmount),
	}
}

// Rounded は各金額を小数2桁に丸める（round-half-up）。永続化の直前に一度だけ呼ぶ。
// totalは丸めた構成要素から組み立て直すので、丸め後も
// total = subtotal - discount + vat が厳密に成り立つ。
func (t OrderTotals) Rounded() OrderTotals {
	subtotal := t.Subtotal.Round(2)
	discount := t.DiscountAmount.Round(2)
	vat := t.VATAmount.Round(2)

	return OrderTotals{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		VATAmount:      vat,
		TotalAmount:    subtotal.Sub(discount).Add(vat),
	}
}
