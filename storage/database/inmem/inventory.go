package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/inventory"
)

type inventoryRepository struct {
	db *DB
}

var _ inventory.Repository = (*inventoryRepository)(nil) // interface compliance check

func NewInventoryRepository(db *DB) *inventoryRepository {
	return &inventoryRepository{db: db}
}

func (repo *inventoryRepository) CodeExists(_ context.Context, code string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.products.exists(func(p inventory.Product) bool { return p.Code == code }), nil
}

func (repo *inventoryRepository) CreateProduct(ctx context.Context, p inventory.Product, _ ...core.DBExecutor) (inventory.Product, error) {
	if ok, _ := repo.CodeExists(ctx, p.Code); ok {
		return inventory.Product{}, core.NewUniqueViolation("code")
	}
	p.ID = uuid.NewString()
	repo.db.products.insert(p.ID, p)
	return p, nil
}

func (repo *inventoryRepository) GetProduct(_ context.Context, id string, _ ...core.DBExecutor) (inventory.Product, error) {
	return repo.db.getProduct(id)
}

func (db *DB) getProduct(id string) (inventory.Product, error) {
	if p, ok := db.products.get(id); ok {
		return p, nil
	}
	return inventory.Product{}, inventory.ErrNotFound
}

func (repo *inventoryRepository) LockProduct(_ context.Context, id string, _ ...core.DBExecutor) (inventory.Product, error) {
	return repo.db.getProduct(id)
}

func (repo *inventoryRepository) QueryProducts(_ context.Context, filter inventory.QueryFilter, _ ...core.DBExecutor) ([]inventory.Product, error) {
	products := repo.db.products.filter(func(p inventory.Product) bool {
		return (filter.Search == "" || contains(p.Name, filter.Search) || contains(p.Code, filter.Search)) &&
			(filter.Category == "" || p.Category == filter.Category) &&
			(!filter.ActiveOnly || p.IsActive) &&
			(!filter.Restock || p.NeedsRestock())
	})
	return sortBy(products, func(a, b inventory.Product) bool { return a.Name < b.Name }), nil
}

func (repo *inventoryRepository) UpdateProduct(_ context.Context, p inventory.Product, _ ...core.DBExecutor) (inventory.Product, error) {
	if p.Stock < 0 {
		return inventory.Product{}, core.NewFieldError("stock", "stock cannot be negative")
	}
	if !repo.db.products.update(p.ID, p) {
		return inventory.Product{}, inventory.ErrNotFound
	}
	return p, nil
}

func (repo *inventoryRepository) CreateMovement(_ context.Context, m inventory.StockMovement, _ ...core.DBExecutor) (inventory.StockMovement, error) {
	m.ID = uuid.NewString()
	repo.db.stockMovements.insert(m.ID, m)
	return m, nil
}

func (repo *inventoryRepository) QueryMovements(_ context.Context, productID string, _ ...core.DBExecutor) ([]inventory.StockMovement, error) {
	movements := repo.db.stockMovements.filter(func(m inventory.StockMovement) bool { return m.ProductID == productID })
	return sortBy(movements, func(a, b inventory.StockMovement) bool { return a.CreatedAt.Before(b.CreatedAt) }), nil
}
