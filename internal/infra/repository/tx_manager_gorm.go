package repository

import (
	"context"

	repo "shopcore/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders    repo.OrderRepository
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	inventory repo.InventoryRepository
	products  repo.ProductRepository
	sequences repo.OrderSequenceRepository
	auditLogs repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository            { return r.orders }
func (r *txReposGorm) Carts() repo.CartRepository              { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository      { return r.cartItems }
func (r *txReposGorm) Inventory() repo.InventoryRepository     { return r.inventory }
func (r *txReposGorm) Products() repo.ProductRepository        { return r.products }
func (r *txReposGorm) Sequences() repo.OrderSequenceRepository { return r.sequences }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository      { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			orders:    NewOrderGormRepository(tx),
			carts:     NewCartGormRepository(tx),
			cartItems: NewCartGormRepository(tx),
			inventory: NewInventoryGormRepository(tx),
			products:  NewProductGormRepository(tx),
			sequences: NewOrderSequenceGormRepository(tx),
			auditLogs: NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}
