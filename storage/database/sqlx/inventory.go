package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/inventory"
)

var (
	productColumns = columns{
		"id", "vendor_id", "code", "name", "description", "category", "unit", "cost_price", "sale_price", "stock",
		"min_stock", "max_stock", "is_active", "track_stock", "image_path", "created_at", "updated_at",
	}
	stockMovementColumns = columns{
		"id", "product_id", "kind", "reason", "quantity", "stock_before", "stock_after", "unit_value", "total",
		"vendor_id", "sale_id", "employee_id", "created_at",
	}
)

type inventoryRepository struct {
	repository
}

var _ inventory.Repository = (*inventoryRepository)(nil) // interface compliance check

func NewInventoryRepository(db *sqlx.DB) *inventoryRepository {
	return &inventoryRepository{repository{db: db}}
}

func (repo inventoryRepository) CodeExists(ctx context.Context, code string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM products WHERE code = $1", code)
	return ok, errors.Wrap(err, "checking product code")
}

func (repo inventoryRepository) CreateProduct(ctx context.Context, p inventory.Product, exec ...core.DBExecutor) (inventory.Product, error) {
	p.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), productColumns.insert("products"), p); err != nil {
		return inventory.Product{}, trapUniqueErr(err, "inserting product")
	}
	return p, nil
}

func (repo inventoryRepository) GetProduct(ctx context.Context, id string, exec ...core.DBExecutor) (inventory.Product, error) {
	return getProduct(ctx, repo.getExec(exec), id, false)
}

func (repo inventoryRepository) LockProduct(ctx context.Context, id string, exec ...core.DBExecutor) (inventory.Product, error) {
	return getProduct(ctx, repo.getExec(exec), id, true)
}

func getProduct(ctx context.Context, exec sqlx.ExtContext, id string, lock bool) (inventory.Product, error) {
	if !validID(id) {
		return inventory.Product{}, inventory.ErrNotFound
	}
	q := productColumns.selectFrom("products") + " WHERE id = $1"
	if lock {
		q += " FOR UPDATE"
	}
	var p inventory.Product
	if err := sqlx.GetContext(ctx, exec, &p, q, id); err != nil {
		return inventory.Product{}, trapNoRowsErr(err, inventory.ErrNotFound, "getting product")
	}
	return p, nil
}

func (repo inventoryRepository) QueryProducts(ctx context.Context, filter inventory.QueryFilter, exec ...core.DBExecutor) ([]inventory.Product, error) {
	var w where
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR code ILIKE ?)", val, val)
	}
	if filter.Category != "" {
		w.add("category = ?", filter.Category)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	if filter.Restock {
		w.add("track_stock AND stock <= min_stock")
	}
	products := make([]inventory.Product, 0)
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &products,
		productColumns.selectFrom("products")+w.String()+" ORDER BY name", w.args...)
	return products, errors.Wrap(err, "querying products")
}

func (repo inventoryRepository) UpdateProduct(ctx context.Context, p inventory.Product, exec ...core.DBExecutor) (inventory.Product, error) {
	if err := namedExec(ctx, repo.getExec(exec), productColumns.update("products"), p); err != nil {
		return inventory.Product{}, trapNoRowsErr(err, inventory.ErrNotFound, "updating product")
	}
	return p, nil
}

func (repo inventoryRepository) CreateMovement(ctx context.Context, m inventory.StockMovement, exec ...core.DBExecutor) (inventory.StockMovement, error) {
	m.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), stockMovementColumns.insert("stock_movements"), m); err != nil {
		return inventory.StockMovement{}, trapUniqueErr(err, "inserting stock movement")
	}
	return m, nil
}

func (repo inventoryRepository) QueryMovements(ctx context.Context, productID string, exec ...core.DBExecutor) ([]inventory.StockMovement, error) {
	movements := make([]inventory.StockMovement, 0)
	if !validID(productID) {
		return movements, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &movements,
		stockMovementColumns.selectFrom("stock_movements")+" WHERE product_id = $1 ORDER BY created_at", productID)
	return movements, errors.Wrap(err, "querying stock movements")
}
