package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/inventory"
	"github.com/somabem/erp/core/sales"
)

type salesRepository struct {
	db *DB
}

var _ sales.Repository = (*salesRepository)(nil) // interface compliance check

func NewSalesRepository(db *DB) *salesRepository {
	return &salesRepository{db: db}
}

func (repo *salesRepository) CreateSale(_ context.Context, s sales.Sale, _ ...core.DBExecutor) (sales.Sale, error) {
	if repo.db.sales.exists(func(o sales.Sale) bool { return o.Number == s.Number }) {
		return sales.Sale{}, core.NewUniqueViolation("number")
	}
	s.ID = uuid.NewString()
	repo.db.sales.insert(s.ID, s)
	return s, nil
}

func (repo *salesRepository) GetSale(_ context.Context, id string, _ ...core.DBExecutor) (sales.Sale, error) {
	if s, ok := repo.db.sales.get(id); ok {
		return s, nil
	}
	return sales.Sale{}, sales.ErrNotFound
}

func (repo *salesRepository) QuerySales(_ context.Context, filter sales.QueryFilter, _ ...core.DBExecutor) ([]sales.Sale, error) {
	return sortBy(repo.db.sales.filter(filter.Matches), func(a, b sales.Sale) bool { return a.SoldAt.After(b.SoldAt) }), nil
}

func (repo *salesRepository) UpdateSale(_ context.Context, s sales.Sale, _ ...core.DBExecutor) (sales.Sale, error) {
	if !repo.db.sales.update(s.ID, s) {
		return sales.Sale{}, sales.ErrNotFound
	}
	return s, nil
}

func (repo *salesRepository) CreateItem(_ context.Context, it sales.Item, _ ...core.DBExecutor) (sales.Item, error) {
	if !it.Total.Equal(sales.ItemTotal(it.Quantity, it.UnitPrice, it.DiscountValue)) {
		return sales.Item{}, core.NewFieldError("total", "the item total does not match its quantity and price")
	}
	if repo.db.saleItems.exists(func(o sales.Item) bool { return o.SaleID == it.SaleID && o.ProductID == it.ProductID }) {
		return sales.Item{}, core.NewUniqueViolation("product_id")
	}
	if it.ProductName == "" {
		if p, ok := repo.db.products.get(it.ProductID); ok {
			it.ProductName = p.Name
		}
	}
	it.ID = uuid.NewString()
	repo.db.saleItems.insert(it.ID, it)
	return it, nil
}

func (repo *salesRepository) QueryItems(_ context.Context, saleID string, _ ...core.DBExecutor) ([]sales.Item, error) {
	items := repo.db.saleItems.filter(func(it sales.Item) bool { return it.SaleID == saleID })
	return sortBy(items, func(a, b sales.Item) bool { return a.ProductName < b.ProductName }), nil
}

func (repo *salesRepository) CreateInstallment(_ context.Context, i sales.Installment, _ ...core.DBExecutor) (sales.Installment, error) {
	i.ID = uuid.NewString()
	repo.db.saleInstallments.insert(i.ID, i)
	return i, nil
}

func (repo *salesRepository) GetInstallment(_ context.Context, id string, _ ...core.DBExecutor) (sales.Installment, error) {
	if i, ok := repo.db.saleInstallments.get(id); ok {
		return i, nil
	}
	return sales.Installment{}, sales.ErrInstallmentNotFound
}

func (repo *salesRepository) QueryInstallments(_ context.Context, saleID string, _ ...core.DBExecutor) ([]sales.Installment, error) {
	installments := repo.db.saleInstallments.filter(func(i sales.Installment) bool { return i.SaleID == saleID })
	return sortBy(installments, func(a, b sales.Installment) bool { return a.Number < b.Number }), nil
}

func (repo *salesRepository) UpdateInstallment(_ context.Context, i sales.Installment, _ ...core.DBExecutor) (sales.Installment, error) {
	if i.Paid.GreaterThan(i.Amount) {
		return sales.Installment{}, core.NewFieldError("paid", "paid exceeds the amount")
	}
	if !repo.db.saleInstallments.update(i.ID, i) {
		return sales.Installment{}, sales.ErrInstallmentNotFound
	}
	return i, nil
}

func (repo *salesRepository) GetProduct(_ context.Context, id string, _ ...core.DBExecutor) (inventory.Product, error) {
	return repo.db.getProduct(id)
}
