package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/cashier"
)

var (
	registerColumns = columns{
		"id", "code", "description", "responsible_id", "period", "opened_at", "closed_at", "opening_balance",
		"closing_balance", "total_in", "total_out", "is_open", "closed_by", "checked", "checked_by", "checked_at",
	}
	movementColumns = columns{
		"id", "register_id", "kind", "category", "amount", "description", "payment_id", "vendor_payment_id",
		"sale_id", "employee_id", "receipt_number", "created_at",
	}
)

type cashierRepository struct {
	repository
}

var _ cashier.Repository = (*cashierRepository)(nil) // interface compliance check

func NewCashierRepository(db *sqlx.DB) *cashierRepository {
	return &cashierRepository{repository{db: db}}
}

func (repo cashierRepository) CodeExists(ctx context.Context, code string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM cash_registers WHERE code = $1", code)
	return ok, errors.Wrap(err, "checking register code")
}

func (repo cashierRepository) CreateRegister(ctx context.Context, r cashier.Register, exec ...core.DBExecutor) (cashier.Register, error) {
	r.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), registerColumns.insert("cash_registers"), r); err != nil {
		return cashier.Register{}, trapUniqueErr(err, "inserting cash register")
	}
	return r, nil
}

func (repo cashierRepository) getRegister(ctx context.Context, id string, lock bool, exec []core.DBExecutor) (cashier.Register, error) {
	if !validID(id) {
		return cashier.Register{}, cashier.ErrNotFound
	}
	q := registerColumns.selectFrom("cash_registers") + " WHERE id = $1"
	if lock {
		q += " FOR UPDATE"
	}
	var r cashier.Register
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &r, q, id); err != nil {
		return cashier.Register{}, trapNoRowsErr(err, cashier.ErrNotFound, "getting cash register")
	}
	return r, nil
}

func (repo cashierRepository) GetRegister(ctx context.Context, id string, exec ...core.DBExecutor) (cashier.Register, error) {
	return repo.getRegister(ctx, id, false, exec)
}

func (repo cashierRepository) LockRegister(ctx context.Context, id string, exec ...core.DBExecutor) (cashier.Register, error) {
	return repo.getRegister(ctx, id, true, exec)
}

func (repo cashierRepository) QueryRegisters(ctx context.Context, filter cashier.QueryFilter, exec ...core.DBExecutor) ([]cashier.Register, error) {
	var w where
	if filter.OpenOnly {
		w.add("is_open")
	}
	if !filter.From.IsZero() {
		w.add("opened_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		w.add("opened_at <= ?", filter.To.UTC())
	}
	registers := make([]cashier.Register, 0)
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &registers,
		registerColumns.selectFrom("cash_registers")+w.String()+" ORDER BY opened_at DESC", w.args...)
	return registers, errors.Wrap(err, "querying cash registers")
}

func (repo cashierRepository) UpdateRegister(ctx context.Context, r cashier.Register, exec ...core.DBExecutor) (cashier.Register, error) {
	if err := namedExec(ctx, repo.getExec(exec), registerColumns.update("cash_registers"), r); err != nil {
		return cashier.Register{}, trapNoRowsErr(err, cashier.ErrNotFound, "updating cash register")
	}
	return r, nil
}

func (repo cashierRepository) CreateMovement(ctx context.Context, m cashier.Movement, exec ...core.DBExecutor) (cashier.Movement, error) {
	m.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), movementColumns.insert("cash_movements"), m); err != nil {
		return cashier.Movement{}, trapUniqueErr(err, "inserting cash movement")
	}
	return m, nil
}

func (repo cashierRepository) QueryMovements(ctx context.Context, registerID string, exec ...core.DBExecutor) ([]cashier.Movement, error) {
	movements := make([]cashier.Movement, 0)
	if !validID(registerID) {
		return movements, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &movements,
		movementColumns.selectFrom("cash_movements")+" WHERE register_id = $1 ORDER BY created_at", registerID)
	return movements, errors.Wrap(err, "querying cash movements")
}
