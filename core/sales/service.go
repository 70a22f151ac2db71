package sales

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
	"github.com/somabem/erp/core/cashier"
	"github.com/somabem/erp/core/inventory"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("sale")
	ErrInstallmentNotFound = core.NewNotFoundError("sale installment")

	ErrProductInactive = errors.New("the product is not for sale")
	ErrDiscount        = errors.New("the discount exceeds the sale total")
	ErrTendered        = errors.New("the tendered amount does not cover the sale")
	ErrCancelled       = errors.New("the sale is cancelled")
	ErrAlreadyPaid     = errors.New("already paid")
	ErrOverpayment     = errors.New("the amount exceeds what remains to be paid")
)

type (
	Repository interface {
		CreateSale(ctx context.Context, s Sale, exec ...core.DBExecutor) (Sale, error)
		GetSale(ctx context.Context, id string, exec ...core.DBExecutor) (Sale, error)
		QuerySales(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Sale, error)
		UpdateSale(ctx context.Context, s Sale, exec ...core.DBExecutor) (Sale, error)

		CreateItem(ctx context.Context, it Item, exec ...core.DBExecutor) (Item, error)
		// QueryItems returns the items of a sale with their product names.
		QueryItems(ctx context.Context, saleID string, exec ...core.DBExecutor) ([]Item, error)

		CreateInstallment(ctx context.Context, i Installment, exec ...core.DBExecutor) (Installment, error)
		GetInstallment(ctx context.Context, id string, exec ...core.DBExecutor) (Installment, error)
		QueryInstallments(ctx context.Context, saleID string, exec ...core.DBExecutor) ([]Installment, error)
		UpdateInstallment(ctx context.Context, i Installment, exec ...core.DBExecutor) (Installment, error)

		GetProduct(ctx context.Context, id string, exec ...core.DBExecutor) (inventory.Product, error)
	}

	Service struct {
		repo     Repository
		tx       core.TxRunner
		validate *validator.Validate
		audit    audit.Recorder
		stock    inventory.Mover
		ledger   cashier.Ledger
	}
)

func NewService(
	repo Repository,
	tx core.TxRunner,
	validate *validator.Validate,
	rec audit.Recorder,
	stock inventory.Mover,
	ledger cashier.Ledger,
) *Service {
	return &Service{repo: repo, tx: tx, validate: validate, audit: rec, stock: stock, ledger: ledger}
}

func fieldErr(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// Checkout records a sale of the cart. Stock, items, installments and the cash register inflow are
// written in a single transaction: any failure leaves no trace of the sale.
func (svc *Service) Checkout(ctx context.Context, cart Cart) (Receipt, error) {
	if err := cart.Validate(svc.validate); err != nil {
		return Receipt{}, err
	}

	var rcpt Receipt
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		products := make([]inventory.Product, len(cart.Lines))
		items := make([]Item, len(cart.Lines))
		total := decimal.Zero
		for i, line := range cart.Lines {
			p, err := svc.repo.GetProduct(ctx, line.ProductID, exec)
			if err != nil {
				return err
			}
			if !p.IsActive {
				return core.NewValidationError(ErrProductInactive, core.FieldError{
					Field: "lines", Error: fmt.Sprintf("%s is not for sale", p.Name),
				})
			}
			if p.TrackStock && p.Stock < line.Quantity {
				msg := fmt.Sprintf("insufficient stock for %s: %d available", p.Name, p.Stock)
				return core.NewValidationError(inventory.ErrInsufficientStock, core.FieldError{Field: "lines", Error: msg})
			}
			gross := p.SalePrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			discount := core.Percent(gross, line.DiscountPct)
			items[i] = Item{
				ProductID:     p.ID,
				ProductName:   p.Name,
				Quantity:      line.Quantity,
				UnitPrice:     p.SalePrice,
				DiscountPct:   line.DiscountPct,
				DiscountValue: discount,
				Total:         ItemTotal(line.Quantity, p.SalePrice, discount),
			}
			products[i] = p
			total = total.Add(items[i].Total)
		}

		discount := cart.Discount.Round(2)
		if discount.GreaterThan(total) {
			return fieldErr("discount", ErrDiscount)
		}
		now := core.NowFunc()
		s := Sale{
			StudentID:      cart.StudentID,
			EmployeeID:     core.ActorFrom(ctx).UserID,
			Number:         SaleNumber(now),
			Total:          total,
			Discount:       discount,
			Final:          total.Sub(discount),
			Paid:           decimal.Zero,
			Change:         decimal.Zero,
			Method:         cart.Method,
			Status:         StatusPending,
			Installments:   cart.Installments,
			SoldAt:         now.UTC(),
			CashRegisterID: cart.CashRegisterID,
			Notes:          cart.Notes,
		}
		if cart.Installments == 1 {
			tendered := cart.Tendered.Round(2)
			if tendered.IsZero() {
				tendered = s.Final
			}
			if tendered.LessThan(s.Final) {
				return fieldErr("tendered", ErrTendered)
			}
			paidAt := now.UTC()
			s.Paid = s.Final
			s.Change = tendered.Sub(s.Final)
			s.Status = StatusPaid
			s.PaidAt = &paidAt
		}

		var err error
		if s, err = svc.repo.CreateSale(ctx, s, exec); err != nil {
			return errors.Wrap(err, "creating sale")
		}
		for i := range items {
			items[i].SaleID = s.ID
			name := items[i].ProductName
			if items[i], err = svc.repo.CreateItem(ctx, items[i], exec); err != nil {
				return errors.Wrap(err, "creating sale item")
			}
			items[i].ProductName = name
			if !products[i].TrackStock {
				continue
			}
			_, err = svc.stock.Move(ctx, exec, inventory.NewStockMovement{
				ProductID: items[i].ProductID,
				Kind:      inventory.MoveOut,
				Quantity:  -items[i].Quantity,
				Reason:    "sale " + s.Number,
				UnitValue: items[i].UnitPrice,
				SaleID:    core.StringPtr(s.ID),
			})
			if err != nil {
				return err
			}
		}

		var insts []Installment
		if cart.Installments > 1 {
			day := core.DateOf(now)
			for n, amount := range core.Split(s.Final, cart.Installments) {
				inst := Installment{
					SaleID:  s.ID,
					Number:  n + 1,
					Amount:  amount,
					Paid:    decimal.Zero,
					DueDate: core.AddMonths(day, n+1),
					Status:  InstallmentPending,
				}
				if inst, err = svc.repo.CreateInstallment(ctx, inst, exec); err != nil {
					return errors.Wrap(err, "creating sale installment")
				}
				insts = append(insts, inst)
			}
		}

		if s.CashRegisterID != nil && s.Paid.IsPositive() {
			_, err = svc.ledger.Post(ctx, exec, cashier.NewMovement{
				RegisterID:    *s.CashRegisterID,
				Kind:          cashier.KindIn,
				Category:      cashier.CategorySale,
				Amount:        s.Paid,
				Description:   "sale " + s.Number,
				SaleID:        core.StringPtr(s.ID),
				ReceiptNumber: s.Number,
			})
			if err != nil {
				return err
			}
		}

		rcpt = Receipt{Sale: s, Items: items, Installments: insts}
		return svc.audit.Record(ctx, audit.ActionCheckout, core.ModuleSales, s.ID, nil, rcpt, exec)
	})
	if err != nil {
		return Receipt{}, err
	}
	return rcpt, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Sale, error) {
	return svc.repo.GetSale(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Sale, error) {
	return svc.repo.QuerySales(ctx, filter)
}

// Receipt returns the sale with its items and product names.
func (svc *Service) Receipt(ctx context.Context, id string) (Receipt, error) {
	s, err := svc.repo.GetSale(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	items, err := svc.repo.QueryItems(ctx, id)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "querying sale items")
	}
	insts, err := svc.repo.QueryInstallments(ctx, id)
	if err != nil {
		return Receipt{}, errors.Wrap(err, "querying sale installments")
	}
	return Receipt{Sale: s, Items: items, Installments: insts}, nil
}

// CancelSale puts the sold products back in stock and marks the sale cancelled. What was cashed
// leaves the register while it is still open.
func (svc *Service) CancelSale(ctx context.Context, id, reason string) (Sale, error) {
	reason = core.CleanString(reason)

	var s Sale
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetSale(ctx, id, exec)
		if err != nil {
			return err
		}
		if orig.Status == StatusCancelled {
			return fieldErr("status", ErrCancelled)
		}
		items, err := svc.repo.QueryItems(ctx, id, exec)
		if err != nil {
			return errors.Wrap(err, "querying sale items")
		}
		for _, it := range items {
			p, err := svc.repo.GetProduct(ctx, it.ProductID, exec)
			if err != nil {
				return err
			}
			if !p.TrackStock {
				continue
			}
			_, err = svc.stock.Move(ctx, exec, inventory.NewStockMovement{
				ProductID: it.ProductID,
				Kind:      inventory.MoveIn,
				Quantity:  it.Quantity,
				Reason:    "cancelled sale " + orig.Number,
				UnitValue: it.UnitPrice,
				SaleID:    core.StringPtr(orig.ID),
			})
			if err != nil {
				return err
			}
		}

		s = orig
		s.Status = StatusCancelled
		if reason != "" {
			s.Notes = reason
		}
		if s, err = svc.repo.UpdateSale(ctx, s, exec); err != nil {
			return errors.Wrap(err, "cancelling sale")
		}

		if s.CashRegisterID != nil && s.Paid.IsPositive() {
			_, err = svc.ledger.Post(ctx, exec, cashier.NewMovement{
				RegisterID:    *s.CashRegisterID,
				Kind:          cashier.KindOut,
				Category:      cashier.CategoryReversal,
				Amount:        s.Paid,
				Description:   "cancelled sale " + s.Number,
				SaleID:        core.StringPtr(s.ID),
				ReceiptNumber: s.Number,
			})
			if err != nil && errors.Cause(err) != cashier.ErrRegisterClosed {
				return err
			}
		}
		return svc.audit.Record(ctx, audit.ActionCancel, core.ModuleSales, s.ID, orig, s, exec)
	})
	if err != nil {
		return Sale{}, err
	}
	return s, nil
}

// PaySaleInstallment settles (part of) an installment of a sale. The sale is paid once all of its
// installments are.
func (svc *Service) PaySaleInstallment(ctx context.Context, id string, pi PayInstallment) (Installment, error) {
	if err := svc.validate.Struct(pi); err != nil {
		return Installment{}, err
	}
	amount := pi.Amount.Round(2)

	var inst Installment
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetInstallment(ctx, id, exec)
		if err != nil {
			return err
		}
		if orig.Status == InstallmentPaid {
			return fieldErr("id", ErrAlreadyPaid)
		}
		if amount.GreaterThan(orig.Remaining()) {
			return fieldErr("amount", ErrOverpayment)
		}
		s, err := svc.repo.GetSale(ctx, orig.SaleID, exec)
		if err != nil {
			return err
		}
		if s.Status == StatusCancelled {
			return fieldErr("sale_id", ErrCancelled)
		}

		now := core.NowFunc()
		inst = orig
		inst.Paid = inst.Paid.Add(amount)
		inst.Method = pi.Method
		inst.Receipt = SaleNumber(now)
		inst.ReceivedBy = core.ActorFrom(ctx).UserID
		if inst.Paid.Equal(inst.Amount) {
			today := core.DateOf(now)
			inst.Status = InstallmentPaid
			inst.PaidOn = &today
		} else {
			inst.Status = InstallmentPartial
		}
		if inst, err = svc.repo.UpdateInstallment(ctx, inst, exec); err != nil {
			return errors.Wrap(err, "updating sale installment")
		}

		s.Paid = s.Paid.Add(amount)
		s.PartiallyPaid = s.Paid.LessThan(s.Final)
		if !s.PartiallyPaid {
			paidAt := now.UTC()
			s.Status = StatusPaid
			s.PaidAt = &paidAt
		}
		if _, err = svc.repo.UpdateSale(ctx, s, exec); err != nil {
			return errors.Wrap(err, "updating sale")
		}

		if pi.CashRegisterID != nil {
			_, err = svc.ledger.Post(ctx, exec, cashier.NewMovement{
				RegisterID:    *pi.CashRegisterID,
				Kind:          cashier.KindIn,
				Category:      cashier.CategorySale,
				Amount:        amount,
				Description:   fmt.Sprintf("sale %s installment %d", s.Number, inst.Number),
				SaleID:        core.StringPtr(s.ID),
				ReceiptNumber: inst.Receipt,
			})
			if err != nil {
				return err
			}
		}
		return svc.audit.Record(ctx, audit.ActionPayment, core.ModuleSales, inst.ID, orig, inst, exec)
	})
	if err != nil {
		return Installment{}, err
	}
	return inst, nil
}
