package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/vendor"
)

var (
	vendorColumns = columns{
		"id", "name", "trade_name", "nif", "email", "phone", "contact", "address", "categories", "bank", "iban",
		"is_active", "created_at", "description",
	}
	contractColumns = columns{
		"id", "vendor_id", "number", "object", "total_value", "monthly_value", "starts_on", "ends_on",
		"auto_renew", "due_day", "status", "terminated_on", "termination_reason",
	}
	vendorPaymentColumns = columns{
		"id", "vendor_id", "contract_id", "reference", "description", "amount", "paid", "due_date", "paid_on",
		"status", "method", "employee_id", "created_at",
	}
)

type vendorRepository struct {
	repository
}

var _ vendor.Repository = (*vendorRepository)(nil) // interface compliance check

func NewVendorRepository(db *sqlx.DB) *vendorRepository {
	return &vendorRepository{repository{db: db}}
}

func (repo vendorRepository) NIFExists(ctx context.Context, nif string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM vendors WHERE nif = $1", nif)
	return ok, errors.Wrap(err, "checking vendor NIF")
}

func (repo vendorRepository) CreateVendor(ctx context.Context, v vendor.Vendor, exec ...core.DBExecutor) (vendor.Vendor, error) {
	v.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), vendorColumns.insert("vendors"), v); err != nil {
		return vendor.Vendor{}, trapUniqueErr(err, "inserting vendor")
	}
	return v, nil
}

func (repo vendorRepository) GetVendor(ctx context.Context, id string, exec ...core.DBExecutor) (vendor.Vendor, error) {
	if !validID(id) {
		return vendor.Vendor{}, vendor.ErrNotFound
	}
	var v vendor.Vendor
	err := sqlx.GetContext(ctx, repo.getExec(exec), &v, vendorColumns.selectFrom("vendors")+" WHERE id = $1", id)
	if err != nil {
		return vendor.Vendor{}, trapNoRowsErr(err, vendor.ErrNotFound, "getting vendor")
	}
	return v, nil
}

func (repo vendorRepository) QueryVendors(ctx context.Context, filter vendor.QueryFilter, exec ...core.DBExecutor) ([]vendor.Vendor, error) {
	var w where
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(name ILIKE ? OR trade_name ILIKE ? OR nif ILIKE ?)", val, val, val)
	}
	if filter.Category != "" {
		w.add("? = ANY (categories)", filter.Category)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	vendors := make([]vendor.Vendor, 0)
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &vendors,
		vendorColumns.selectFrom("vendors")+w.String()+" ORDER BY name", w.args...)
	return vendors, errors.Wrap(err, "querying vendors")
}

func (repo vendorRepository) ContractNumberExists(ctx context.Context, number string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM vendor_contracts WHERE number = $1", number)
	return ok, errors.Wrap(err, "checking contract number")
}

func (repo vendorRepository) CreateContract(ctx context.Context, c vendor.Contract, exec ...core.DBExecutor) (vendor.Contract, error) {
	c.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), contractColumns.insert("vendor_contracts"), c); err != nil {
		return vendor.Contract{}, trapUniqueErr(err, "inserting contract")
	}
	return c, nil
}

func (repo vendorRepository) GetContract(ctx context.Context, id string, exec ...core.DBExecutor) (vendor.Contract, error) {
	if !validID(id) {
		return vendor.Contract{}, vendor.ErrContractNotFound
	}
	var c vendor.Contract
	err := sqlx.GetContext(ctx, repo.getExec(exec), &c, contractColumns.selectFrom("vendor_contracts")+" WHERE id = $1", id)
	if err != nil {
		return vendor.Contract{}, trapNoRowsErr(err, vendor.ErrContractNotFound, "getting contract")
	}
	return c, nil
}

func (repo vendorRepository) QueryContracts(ctx context.Context, vendorID string, exec ...core.DBExecutor) ([]vendor.Contract, error) {
	contracts := make([]vendor.Contract, 0)
	if !validID(vendorID) {
		return contracts, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &contracts,
		contractColumns.selectFrom("vendor_contracts")+" WHERE vendor_id = $1 ORDER BY starts_on DESC", vendorID)
	return contracts, errors.Wrap(err, "querying contracts")
}

func (repo vendorRepository) UpdateContract(ctx context.Context, c vendor.Contract, exec ...core.DBExecutor) (vendor.Contract, error) {
	if err := namedExec(ctx, repo.getExec(exec), contractColumns.update("vendor_contracts"), c); err != nil {
		return vendor.Contract{}, trapNoRowsErr(err, vendor.ErrContractNotFound, "updating contract")
	}
	return c, nil
}

func (repo vendorRepository) ReferenceExists(ctx context.Context, ref string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM vendor_payments WHERE reference = $1", ref)
	return ok, errors.Wrap(err, "checking payment reference")
}

func (repo vendorRepository) CreatePayment(ctx context.Context, p vendor.Payment, exec ...core.DBExecutor) (vendor.Payment, error) {
	p.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), vendorPaymentColumns.insert("vendor_payments"), p); err != nil {
		return vendor.Payment{}, trapUniqueErr(err, "inserting vendor payment")
	}
	return p, nil
}

func (repo vendorRepository) GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (vendor.Payment, error) {
	if !validID(id) {
		return vendor.Payment{}, vendor.ErrPaymentNotFound
	}
	var p vendor.Payment
	err := sqlx.GetContext(ctx, repo.getExec(exec), &p,
		vendorPaymentColumns.selectFrom("vendor_payments")+" WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return vendor.Payment{}, trapNoRowsErr(err, vendor.ErrPaymentNotFound, "getting vendor payment")
	}
	return p, nil
}

func (repo vendorRepository) QueryPayments(ctx context.Context, vendorID string, exec ...core.DBExecutor) ([]vendor.Payment, error) {
	payments := make([]vendor.Payment, 0)
	if !validID(vendorID) {
		return payments, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &payments,
		vendorPaymentColumns.selectFrom("vendor_payments")+" WHERE vendor_id = $1 ORDER BY due_date", vendorID)
	return payments, errors.Wrap(err, "querying vendor payments")
}

func (repo vendorRepository) UpdatePayment(ctx context.Context, p vendor.Payment, exec ...core.DBExecutor) (vendor.Payment, error) {
	if err := namedExec(ctx, repo.getExec(exec), vendorPaymentColumns.update("vendor_payments"), p); err != nil {
		return vendor.Payment{}, trapNoRowsErr(err, vendor.ErrPaymentNotFound, "updating vendor payment")
	}
	return p, nil
}
