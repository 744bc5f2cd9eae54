package usecase

import (
	"context"
	"errors"
	"net/http"

	repo "shopcore/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart の業務ロジックです。
// カートは読むたびにカタログと突き合わせて、消えた商品の明細を落とす。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

// price はカタログの現在価格を返す（カートはスナップショットを持たない）。
type CartItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total decimal.Decimal    `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

type SyncCartItemInput struct {
	ProductID int64
	Quantity  int64
}

// GetCart はカート取得（無ければACTIVEを作って空を返す）。
// 副作用：カタログで解決できない商品の明細は返す前に削除する。
// 商品が消えるのはエラーではなく普通のライフサイクルなので黙って落とす。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// AddToCart はカートに追加（同一商品は数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewValidation("invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewValidation("invalid quantity")
	}

	// ACTIVEカート取得（無ければ作成）
	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	// 商品チェック
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewNotFound("product not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}
	if !p.IsActive {
		return CartResponse{}, NewUnavailable("product unavailable")
	}

	// 既存数量を調べる（加算後の合計で在庫チェックする）
	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	var existingQty int64 = 0
	for _, it := range items {
		if it.ProductID == in.ProductID {
			existingQty = it.Quantity
			break
		}
	}

	newQty := existingQty + in.Quantity
	if newQty > p.Stock {
		return CartResponse{}, &InsufficientStockError{
			ProductID: in.ProductID,
			Requested: in.Quantity,
			InCart:    existingQty,
			Available: p.Stock,
		}
	}

	// Upsert（同一商品は加算）
	if err := u.cartItemRepo.UpsertByCartAndProduct(ctx, cart.ID, in.ProductID, in.Quantity); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// 数量変更（所有チェック＋在庫チェック）。
// is_activeは見直さない：カートに入れた後に非公開になった商品の数量調整は許す。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewValidation("invalid id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewValidation("invalid quantity")
	}

	owned, err := u.cartItemRepo.IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}
	if !owned {
		return CartResponse{}, NewNotFound("not found")
	}

	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewNotFound("not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	//商品の在庫チェック
	p, err := u.productRepo.FindByID(ctx, item.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewNotFound("product not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}
	if in.Quantity > p.Stock {
		return CartResponse{}, &InsufficientStockError{
			ProductID: item.ProductID,
			Requested: in.Quantity,
			Available: p.Stock,
		}
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewNotFound("not found")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	cart, err := u.cartRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}
	return u.buildCartResponse(ctx, cart.ID)
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewValidation("invalid id")
	}

	owned, err := u.cartItemRepo.IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}
	if !owned {
		return CartResponse{}, NewNotFound("not found")
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewNotFound("not found")
		}
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	cart, err := u.cartRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}
	return u.buildCartResponse(ctx, cart.ID)
}

// ClearCart は明細を全削除する。空カートに対しては何もしない（冪等）。
func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	return CartResponse{Items: []CartItemResponse{}, Total: decimal.Zero}, nil
}

// SyncCart はクライアント側（オフライン）のカートをサーバー側の真実に合わせる。
// 置き換えセマンティクス：既存明細を全部消してから、要求された明細を1件ずつ独立に処理する。
// 消えた商品・非公開の商品はスキップ、数量は現在庫でキャップ。明細単位では絶対に失敗しない。
func (u *CartUsecase) SyncCart(ctx context.Context, userID int64, items []SyncCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeValidation, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	//同じ商品が複数行に分かれていても、キャップは合算後の数量に掛ける。
	//upsertは加算なので、行ごとに独立でキャップすると在庫を超えてしまう
	mergedQty := make(map[int64]int64)
	productOrder := make([]int64, 0, len(items))
	for _, in := range items {
		if in.ProductID <= 0 || in.Quantity <= 0 {
			continue
		}
		if _, seen := mergedQty[in.ProductID]; !seen {
			productOrder = append(productOrder, in.ProductID)
		}
		mergedQty[in.ProductID] += in.Quantity
	}

	for _, productID := range productOrder {
		p, err := u.productRepo.FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
		}
		if !p.IsActive {
			continue
		}

		//在庫でキャップ。0になったら入れない
		qty := mergedQty[productID]
		if qty > p.Stock {
			qty = p.Stock
		}
		if qty <= 0 {
			continue
		}

		if err := u.cartItemRepo.UpsertByCartAndProduct(ctx, cart.ID, productID, qty); err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
		}
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// cartIDの明細をまとめてCartResponseを作る。
// カタログで解決できない明細はここで削除する（読み取りの副作用として永続化）。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cartID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
	}

	respItems := make([]CartItemResponse, 0, len(items))
	total := decimal.Zero

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
			//孤児明細の掃除。失敗しても致命的ではないので結果は見ない
			_ = u.cartItemRepo.DeleteByID(ctx, it.ID)
			continue
		}
		if err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "", "db error")
		}

		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  it.Quantity,
		})

		total = total.Add(p.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}

	return CartResponse{Items: respItems, Total: total}, nil
}
