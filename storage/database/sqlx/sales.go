package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/inventory"
	"github.com/somabem/erp/core/sales"
)

var (
	saleColumns = columns{
		"id", "student_id", "employee_id", "number", "total", "discount", "final", "paid", "change", "method",
		"status", "partially_paid", "installments", "sold_at", "paid_at", "cash_register_id", "notes",
	}
	saleItemColumns = columns{
		"id", "sale_id", "product_id", "product_name", "quantity", "unit_price", "discount_pct", "discount_value", "total",
	}
	saleInstallmentColumns = columns{
		"id", "sale_id", "number", "amount", "paid", "due_date", "paid_on", "status", "method", "receipt", "received_by",
	}
)

type salesRepository struct {
	repository
}

var _ sales.Repository = (*salesRepository)(nil) // interface compliance check

func NewSalesRepository(db *sqlx.DB) *salesRepository {
	return &salesRepository{repository{db: db}}
}

func (repo salesRepository) CreateSale(ctx context.Context, s sales.Sale, exec ...core.DBExecutor) (sales.Sale, error) {
	s.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), saleColumns.insert("sales"), s); err != nil {
		return sales.Sale{}, trapUniqueErr(err, "inserting sale")
	}
	return s, nil
}

func (repo salesRepository) GetSale(ctx context.Context, id string, exec ...core.DBExecutor) (sales.Sale, error) {
	if !validID(id) {
		return sales.Sale{}, sales.ErrNotFound
	}
	var s sales.Sale
	err := sqlx.GetContext(ctx, repo.getExec(exec), &s, saleColumns.selectFrom("sales")+" WHERE id = $1", id)
	if err != nil {
		return sales.Sale{}, trapNoRowsErr(err, sales.ErrNotFound, "getting sale")
	}
	return s, nil
}

func (repo salesRepository) QuerySales(ctx context.Context, filter sales.QueryFilter, exec ...core.DBExecutor) ([]sales.Sale, error) {
	list := make([]sales.Sale, 0)
	var w where
	if filter.StudentID != "" {
		if !validID(filter.StudentID) {
			return list, nil
		}
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if !filter.From.IsZero() {
		w.add("sold_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		w.add("sold_at < ?", filter.To.UTC())
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &list,
		saleColumns.selectFrom("sales")+w.String()+" ORDER BY sold_at DESC", w.args...)
	return list, errors.Wrap(err, "querying sales")
}

func (repo salesRepository) UpdateSale(ctx context.Context, s sales.Sale, exec ...core.DBExecutor) (sales.Sale, error) {
	if err := namedExec(ctx, repo.getExec(exec), saleColumns.update("sales"), s); err != nil {
		return sales.Sale{}, trapNoRowsErr(err, sales.ErrNotFound, "updating sale")
	}
	return s, nil
}

func (repo salesRepository) CreateItem(ctx context.Context, it sales.Item, exec ...core.DBExecutor) (sales.Item, error) {
	it.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), saleItemColumns.insert("sale_items"), it); err != nil {
		return sales.Item{}, trapUniqueErr(err, "inserting sale item")
	}
	return it, nil
}

func (repo salesRepository) QueryItems(ctx context.Context, saleID string, exec ...core.DBExecutor) ([]sales.Item, error) {
	items := make([]sales.Item, 0)
	if !validID(saleID) {
		return items, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &items,
		saleItemColumns.selectFrom("sale_items")+" WHERE sale_id = $1 ORDER BY product_name", saleID)
	return items, errors.Wrap(err, "querying sale items")
}

func (repo salesRepository) CreateInstallment(ctx context.Context, i sales.Installment, exec ...core.DBExecutor) (sales.Installment, error) {
	i.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), saleInstallmentColumns.insert("sale_installments"), i); err != nil {
		return sales.Installment{}, trapUniqueErr(err, "inserting sale installment")
	}
	return i, nil
}

func (repo salesRepository) GetInstallment(ctx context.Context, id string, exec ...core.DBExecutor) (sales.Installment, error) {
	if !validID(id) {
		return sales.Installment{}, sales.ErrInstallmentNotFound
	}
	var i sales.Installment
	err := sqlx.GetContext(ctx, repo.getExec(exec), &i,
		saleInstallmentColumns.selectFrom("sale_installments")+" WHERE id = $1", id)
	if err != nil {
		return sales.Installment{}, trapNoRowsErr(err, sales.ErrInstallmentNotFound, "getting sale installment")
	}
	return i, nil
}

func (repo salesRepository) QueryInstallments(ctx context.Context, saleID string, exec ...core.DBExecutor) ([]sales.Installment, error) {
	insts := make([]sales.Installment, 0)
	if !validID(saleID) {
		return insts, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &insts,
		saleInstallmentColumns.selectFrom("sale_installments")+" WHERE sale_id = $1 ORDER BY number", saleID)
	return insts, errors.Wrap(err, "querying sale installments")
}

func (repo salesRepository) UpdateInstallment(ctx context.Context, i sales.Installment, exec ...core.DBExecutor) (sales.Installment, error) {
	if err := namedExec(ctx, repo.getExec(exec), saleInstallmentColumns.update("sale_installments"), i); err != nil {
		return sales.Installment{}, trapNoRowsErr(err, sales.ErrInstallmentNotFound, "updating sale installment")
	}
	return i, nil
}

func (repo salesRepository) GetProduct(ctx context.Context, id string, exec ...core.DBExecutor) (inventory.Product, error) {
	return getProduct(ctx, repo.getExec(exec), id, false)
}
