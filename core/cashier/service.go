package cashier

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("cash register")

	ErrCodeExists        = errors.New("a cash register with this code already exists")
	ErrRegisterClosed    = errors.New("the cash register is closed")
	ErrRegisterOpen      = errors.New("the cash register is still open")
	ErrInsufficientFunds = errors.New("the outflow exceeds the cash register balance")
	ErrAlreadyChecked    = errors.New("the cash register was already checked")
)

type (
	Repository interface {
		CodeExists(ctx context.Context, code string, exec ...core.DBExecutor) (bool, error)
		CreateRegister(ctx context.Context, r Register, exec ...core.DBExecutor) (Register, error)
		GetRegister(ctx context.Context, id string, exec ...core.DBExecutor) (Register, error)
		// LockRegister returns the register, locking it until the end of the transaction.
		LockRegister(ctx context.Context, id string, exec ...core.DBExecutor) (Register, error)
		QueryRegisters(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Register, error)
		UpdateRegister(ctx context.Context, r Register, exec ...core.DBExecutor) (Register, error)

		CreateMovement(ctx context.Context, m Movement, exec ...core.DBExecutor) (Movement, error)
		QueryMovements(ctx context.Context, registerID string, exec ...core.DBExecutor) ([]Movement, error)
	}

	// Ledger posts cash movements as part of a transaction run by the caller.
	Ledger interface {
		Post(ctx context.Context, exec core.DBExecutor, nm NewMovement) (Movement, error)
	}

	Service struct {
		repo     Repository
		tx       core.TxRunner
		validate *validator.Validate
		audit    audit.Recorder
	}
)

var _ Ledger = (*Service)(nil)

func NewService(repo Repository, tx core.TxRunner, validate *validator.Validate, rec audit.Recorder) *Service {
	return &Service{repo: repo, tx: tx, validate: validate, audit: rec}
}

func fieldErr(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

func (svc *Service) Open(ctx context.Context, nr NewRegister) (Register, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return Register{}, err
	}
	exists, err := svc.repo.CodeExists(ctx, nr.Code)
	if err != nil {
		return Register{}, errors.Wrap(err, "checking register code")
	}
	if exists {
		return Register{}, fieldErr("code", ErrCodeExists)
	}

	r := Register{
		Code:           nr.Code,
		Description:    nr.Description,
		ResponsibleID:  core.ActorFrom(ctx).UserID,
		Period:         nr.Period,
		OpenedAt:       core.NowFunc().UTC(),
		OpeningBalance: nr.OpeningBalance.Round(2),
		TotalIn:        decimal.Zero,
		TotalOut:       decimal.Zero,
		IsOpen:         true,
	}
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if r, err = svc.repo.CreateRegister(ctx, r, exec); err != nil {
			return errors.Wrap(err, "opening register")
		}
		return svc.audit.Record(ctx, audit.ActionOpen, core.ModuleCashier, r.ID, nil, r, exec)
	})
	if err != nil {
		return Register{}, err
	}
	return r, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Register, error) {
	return svc.repo.GetRegister(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Register, error) {
	return svc.repo.QueryRegisters(ctx, filter)
}

// AddMovement records a manual inflow or outflow.
func (svc *Service) AddMovement(ctx context.Context, nm NewMovement) (Movement, error) {
	var m Movement
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		m, err = svc.Post(ctx, exec, nm)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	return m, nil
}

// Post records a movement on exec and updates the register totals. The register must be open
// and an outflow cannot exceed its current balance.
func (svc *Service) Post(ctx context.Context, exec core.DBExecutor, nm NewMovement) (Movement, error) {
	if err := nm.Validate(svc.validate); err != nil {
		return Movement{}, err
	}
	r, err := svc.repo.LockRegister(ctx, nm.RegisterID, exec)
	if err != nil {
		return Movement{}, err
	}
	if !r.IsOpen {
		return Movement{}, fieldErr("register_id", ErrRegisterClosed)
	}

	orig := r
	switch nm.Kind {
	case KindIn:
		r.TotalIn = r.TotalIn.Add(nm.Amount)
	case KindOut:
		if nm.Amount.GreaterThan(r.CurrentBalance()) {
			return Movement{}, fieldErr("amount", ErrInsufficientFunds)
		}
		r.TotalOut = r.TotalOut.Add(nm.Amount)
	}

	m := Movement{
		RegisterID:      r.ID,
		Kind:            nm.Kind,
		Category:        nm.Category,
		Amount:          nm.Amount,
		Description:     nm.Description,
		PaymentID:       nm.PaymentID,
		VendorPaymentID: nm.VendorPaymentID,
		SaleID:          nm.SaleID,
		EmployeeID:      core.ActorFrom(ctx).UserID,
		ReceiptNumber:   nm.ReceiptNumber,
		CreatedAt:       core.NowFunc().UTC(),
	}
	if m, err = svc.repo.CreateMovement(ctx, m, exec); err != nil {
		return Movement{}, errors.Wrap(err, "creating movement")
	}
	if r, err = svc.repo.UpdateRegister(ctx, r, exec); err != nil {
		return Movement{}, errors.Wrap(err, "updating register totals")
	}
	if err = svc.audit.Record(ctx, audit.ActionMovement, core.ModuleCashier, r.ID, orig, m, exec); err != nil {
		return Movement{}, err
	}
	return m, nil
}

// Close freezes the closing balance to the current balance.
func (svc *Service) Close(ctx context.Context, id string) (Register, error) {
	var r Register
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.LockRegister(ctx, id, exec)
		if err != nil {
			return err
		}
		if !orig.IsOpen {
			return fieldErr("id", ErrRegisterClosed)
		}
		r = orig
		now := core.NowFunc().UTC()
		r.ClosingBalance = decimal.NewNullDecimal(r.CurrentBalance())
		r.ClosedAt = &now
		r.IsOpen = false
		r.ClosedBy = core.StringPtr(core.ActorFrom(ctx).UserID)
		if r, err = svc.repo.UpdateRegister(ctx, r, exec); err != nil {
			return errors.Wrap(err, "closing register")
		}
		return svc.audit.Record(ctx, audit.ActionClose, core.ModuleCashier, id, orig, r, exec)
	})
	if err != nil {
		return Register{}, err
	}
	return r, nil
}

// MarkChecked records the conference of a closed register.
func (svc *Service) MarkChecked(ctx context.Context, id string) (Register, error) {
	var r Register
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.LockRegister(ctx, id, exec)
		if err != nil {
			return err
		}
		if orig.IsOpen {
			return fieldErr("id", ErrRegisterOpen)
		}
		if orig.Checked {
			return fieldErr("id", ErrAlreadyChecked)
		}
		r = orig
		now := core.NowFunc().UTC()
		r.Checked = true
		r.CheckedAt = &now
		r.CheckedBy = core.StringPtr(core.ActorFrom(ctx).UserID)
		if r, err = svc.repo.UpdateRegister(ctx, r, exec); err != nil {
			return errors.Wrap(err, "checking register")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModuleCashier, id, orig, r, exec)
	})
	if err != nil {
		return Register{}, err
	}
	return r, nil
}

func (svc *Service) Movements(ctx context.Context, registerID string) ([]Movement, error) {
	if _, err := svc.repo.GetRegister(ctx, registerID); err != nil {
		return nil, err
	}
	return svc.repo.QueryMovements(ctx, registerID)
}
