package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/vendor"
)

type vendorRepository struct {
	db *DB
}

var _ vendor.Repository = (*vendorRepository)(nil) // interface compliance check

func NewVendorRepository(db *DB) *vendorRepository {
	return &vendorRepository{db: db}
}

func (repo *vendorRepository) NIFExists(_ context.Context, nif string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.vendors.exists(func(v vendor.Vendor) bool { return v.NIF == nif }), nil
}

func (repo *vendorRepository) CreateVendor(_ context.Context, v vendor.Vendor, _ ...core.DBExecutor) (vendor.Vendor, error) {
	v.ID = uuid.NewString()
	repo.db.vendors.insert(v.ID, v)
	return v, nil
}

func (repo *vendorRepository) GetVendor(_ context.Context, id string, _ ...core.DBExecutor) (vendor.Vendor, error) {
	if v, ok := repo.db.vendors.get(id); ok {
		return v, nil
	}
	return vendor.Vendor{}, vendor.ErrNotFound
}

func (repo *vendorRepository) QueryVendors(_ context.Context, filter vendor.QueryFilter, _ ...core.DBExecutor) ([]vendor.Vendor, error) {
	vendors := repo.db.vendors.filter(func(v vendor.Vendor) bool {
		if filter.IsActive != nil && v.IsActive != *filter.IsActive {
			return false
		}
		if filter.Category != "" && !v.Categories.Contains(filter.Category) {
			return false
		}
		return filter.Search == "" ||
			contains(v.Name, filter.Search) || contains(v.TradeName, filter.Search) || contains(v.NIF, filter.Search)
	})
	return sortBy(vendors, func(a, b vendor.Vendor) bool { return a.Name < b.Name }), nil
}

func (repo *vendorRepository) ContractNumberExists(_ context.Context, number string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.contracts.exists(func(c vendor.Contract) bool { return c.Number == number }), nil
}

func (repo *vendorRepository) CreateContract(_ context.Context, c vendor.Contract, _ ...core.DBExecutor) (vendor.Contract, error) {
	c.ID = uuid.NewString()
	repo.db.contracts.insert(c.ID, c)
	return c, nil
}

func (repo *vendorRepository) GetContract(_ context.Context, id string, _ ...core.DBExecutor) (vendor.Contract, error) {
	if c, ok := repo.db.contracts.get(id); ok {
		return c, nil
	}
	return vendor.Contract{}, vendor.ErrContractNotFound
}

func (repo *vendorRepository) QueryContracts(_ context.Context, vendorID string, _ ...core.DBExecutor) ([]vendor.Contract, error) {
	contracts := repo.db.contracts.filter(func(c vendor.Contract) bool { return c.VendorID == vendorID })
	return sortBy(contracts, func(a, b vendor.Contract) bool { return a.StartsOn.After(b.StartsOn) }), nil
}

func (repo *vendorRepository) UpdateContract(_ context.Context, c vendor.Contract, _ ...core.DBExecutor) (vendor.Contract, error) {
	if !repo.db.contracts.update(c.ID, c) {
		return vendor.Contract{}, vendor.ErrContractNotFound
	}
	return c, nil
}

func (repo *vendorRepository) ReferenceExists(_ context.Context, ref string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.vendorPayments.exists(func(p vendor.Payment) bool { return p.Reference == ref }), nil
}

func (repo *vendorRepository) CreatePayment(_ context.Context, p vendor.Payment, _ ...core.DBExecutor) (vendor.Payment, error) {
	p.ID = uuid.NewString()
	repo.db.vendorPayments.insert(p.ID, p)
	return p, nil
}

func (repo *vendorRepository) GetPayment(_ context.Context, id string, _ ...core.DBExecutor) (vendor.Payment, error) {
	if p, ok := repo.db.vendorPayments.get(id); ok {
		return p, nil
	}
	return vendor.Payment{}, vendor.ErrPaymentNotFound
}

func (repo *vendorRepository) QueryPayments(_ context.Context, vendorID string, _ ...core.DBExecutor) ([]vendor.Payment, error) {
	payments := repo.db.vendorPayments.filter(func(p vendor.Payment) bool { return p.VendorID == vendorID })
	return sortBy(payments, func(a, b vendor.Payment) bool { return a.DueDate.Before(b.DueDate) }), nil
}

func (repo *vendorRepository) UpdatePayment(_ context.Context, p vendor.Payment, _ ...core.DBExecutor) (vendor.Payment, error) {
	if p.Paid.GreaterThan(p.Amount) {
		return vendor.Payment{}, core.NewFieldError("paid", "paid exceeds the amount")
	}
	if !repo.db.vendorPayments.update(p.ID, p) {
		return vendor.Payment{}, vendor.ErrPaymentNotFound
	}
	return p, nil
}
