package inventory

import (
	"context"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("product")

	ErrCodeExists        = errors.New("a product with this code already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type (
	Repository interface {
		CodeExists(ctx context.Context, code string, exec ...core.DBExecutor) (bool, error)
		CreateProduct(ctx context.Context, p Product, exec ...core.DBExecutor) (Product, error)
		GetProduct(ctx context.Context, id string, exec ...core.DBExecutor) (Product, error)
		// LockProduct returns the product, locking it until the end of the transaction.
		LockProduct(ctx context.Context, id string, exec ...core.DBExecutor) (Product, error)
		QueryProducts(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Product, error)
		UpdateProduct(ctx context.Context, p Product, exec ...core.DBExecutor) (Product, error)

		CreateMovement(ctx context.Context, m StockMovement, exec ...core.DBExecutor) (StockMovement, error)
		QueryMovements(ctx context.Context, productID string, exec ...core.DBExecutor) ([]StockMovement, error)
	}

	// ImageStore keeps product images and their thumbnails.
	ImageStore interface {
		// Save stores the image under name and returns its path, relative to the media dir.
		Save(ctx context.Context, name string, r io.Reader) (string, error)
	}

	// Mover changes stock as part of a transaction run by the caller.
	Mover interface {
		Move(ctx context.Context, exec core.DBExecutor, nm NewStockMovement) (StockMovement, error)
	}

	Service struct {
		repo     Repository
		tx       core.TxRunner
		validate *validator.Validate
		audit    audit.Recorder
		images   ImageStore
	}
)

var _ Mover = (*Service)(nil)

func NewService(
	repo Repository,
	tx core.TxRunner,
	validate *validator.Validate,
	rec audit.Recorder,
	images ImageStore,
) *Service {
	return &Service{repo: repo, tx: tx, validate: validate, audit: rec, images: images}
}

func (svc *Service) Create(ctx context.Context, np NewProduct) (Product, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Product{}, err
	}
	exists, err := svc.repo.CodeExists(ctx, np.Code)
	if err != nil {
		return Product{}, errors.Wrap(err, "checking product code")
	}
	if exists {
		return Product{}, core.NewValidationError(ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	}

	now := core.NowFunc().UTC()
	p := Product{
		VendorID:    np.VendorID,
		Code:        np.Code,
		Name:        np.Name,
		Description: np.Description,
		Category:    np.Category,
		Unit:        np.Unit,
		CostPrice:   np.CostPrice.Round(2),
		SalePrice:   np.SalePrice.Round(2),
		Stock:       np.Stock,
		MinStock:    DefaultMinStock,
		MaxStock:    np.MaxStock,
		IsActive:    true,
		TrackStock:  np.TrackStock == nil || *np.TrackStock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if np.MinStock != nil {
		p.MinStock = *np.MinStock
	}
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.CreateProduct(ctx, p, exec); err != nil {
			return errors.Wrap(err, "creating product")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModuleInventory, p.ID, nil, p, exec)
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Product, error) {
	return svc.repo.GetProduct(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Product, error) {
	filter.Clean()
	return svc.repo.QueryProducts(ctx, filter)
}

// RestockCandidates lists the active products whose stock reached the minimum.
func (svc *Service) RestockCandidates(ctx context.Context) ([]Product, error) {
	return svc.repo.QueryProducts(ctx, QueryFilter{ActiveOnly: true, Restock: true})
}

func (svc *Service) Update(ctx context.Context, id string, up UpdateProduct) (Product, error) {
	if err := svc.validate.Struct(up); err != nil {
		return Product{}, err
	}
	var p Product
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.LockProduct(ctx, id, exec)
		if err != nil {
			return err
		}
		p = orig
		if name := core.CleanString(up.Name); name != "" {
			p.Name = name
		}
		if up.Description != nil {
			p.Description = *up.Description
		}
		if up.CostPrice.Valid {
			p.CostPrice = up.CostPrice.Decimal.Round(2)
		}
		if up.SalePrice.Valid {
			p.SalePrice = up.SalePrice.Decimal.Round(2)
		}
		if err = checkPrices(p.CostPrice, p.SalePrice); err != nil {
			return err
		}
		if up.MinStock != nil {
			p.MinStock = *up.MinStock
		}
		if up.MaxStock != nil {
			p.MaxStock = *up.MaxStock
		}
		if up.IsActive != nil {
			p.IsActive = *up.IsActive
		}
		p.UpdatedAt = core.NowFunc().UTC()
		if p, err = svc.repo.UpdateProduct(ctx, p, exec); err != nil {
			return errors.Wrap(err, "updating product")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModuleInventory, id, orig, p, exec)
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

// signedQuantity gives the stock delta of a movement: "in" adds, "out" and "loss" remove,
// "adjustment" keeps the sign given.
func signedQuantity(kind string, qty int) int {
	abs := qty
	if abs < 0 {
		abs = -abs
	}
	switch kind {
	case MoveIn:
		return abs
	case MoveOut, MoveLoss:
		return -abs
	}
	return qty
}

// AdjustStock applies a manual stock movement. A resulting stock below zero is rejected.
func (svc *Service) AdjustStock(ctx context.Context, productID string, as AdjustStock) (StockMovement, error) {
	if err := svc.validate.Struct(as); err != nil {
		return StockMovement{}, err
	}
	var m StockMovement
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		m, err = svc.Move(ctx, exec, NewStockMovement{
			ProductID: productID,
			Kind:      as.Kind,
			Quantity:  signedQuantity(as.Kind, as.Quantity),
			Reason:    core.CleanString(as.Reason),
			UnitValue: as.UnitValue,
			VendorID:  as.VendorID,
		})
		return err
	})
	if err != nil {
		return StockMovement{}, err
	}
	return m, nil
}

// Move applies a signed stock change on exec and records it.
func (svc *Service) Move(ctx context.Context, exec core.DBExecutor, nm NewStockMovement) (StockMovement, error) {
	if nm.Quantity == 0 {
		return StockMovement{}, core.NewFieldError("quantity", "quantity cannot be zero")
	}
	p, err := svc.repo.LockProduct(ctx, nm.ProductID, exec)
	if err != nil {
		return StockMovement{}, err
	}
	after := p.Stock + nm.Quantity
	if after < 0 {
		msg := fmt.Sprintf("insufficient stock for %s: %d available", p.Name, p.Stock)
		return StockMovement{}, core.NewValidationError(ErrInsufficientStock, core.FieldError{Field: "quantity", Error: msg})
	}

	unit := nm.UnitValue
	if unit.IsZero() {
		unit = p.CostPrice
	}
	qty := nm.Quantity
	if qty < 0 {
		qty = -qty
	}
	m := StockMovement{
		ProductID:  p.ID,
		Kind:       nm.Kind,
		Reason:     nm.Reason,
		Quantity:   nm.Quantity,
		Before:     p.Stock,
		After:      after,
		UnitValue:  unit,
		Total:      unit.Mul(decimal.NewFromInt(int64(qty))).Round(2),
		VendorID:   nm.VendorID,
		SaleID:     nm.SaleID,
		EmployeeID: core.ActorFrom(ctx).UserID,
		CreatedAt:  core.NowFunc().UTC(),
	}
	if m, err = svc.repo.CreateMovement(ctx, m, exec); err != nil {
		return StockMovement{}, errors.Wrap(err, "creating stock movement")
	}

	orig := p
	p.Stock = after
	p.UpdatedAt = m.CreatedAt
	if _, err = svc.repo.UpdateProduct(ctx, p, exec); err != nil {
		return StockMovement{}, errors.Wrap(err, "updating stock")
	}
	if err = svc.audit.Record(ctx, audit.ActionStock, core.ModuleInventory, p.ID, orig, m, exec); err != nil {
		return StockMovement{}, err
	}
	return m, nil
}

func (svc *Service) Movements(ctx context.Context, productID string) ([]StockMovement, error) {
	if _, err := svc.repo.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMovements(ctx, productID)
}

// UploadImage stores the product image (and its thumbnail) and records its path.
func (svc *Service) UploadImage(ctx context.Context, id string, r io.Reader) (Product, error) {
	p, err := svc.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	path, err := svc.images.Save(ctx, "products/"+p.ID, r)
	if err != nil {
		return Product{}, errors.Wrap(err, "saving image")
	}
	p.ImagePath = path
	p.UpdatedAt = core.NowFunc().UTC()
	p, err = svc.repo.UpdateProduct(ctx, p)
	return p, errors.Wrap(err, "updating product")
}
