package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/cashier"
)

type cashierRepository struct {
	db *DB
}

var _ cashier.Repository = (*cashierRepository)(nil) // interface compliance check

func NewCashierRepository(db *DB) *cashierRepository {
	return &cashierRepository{db: db}
}

func (repo *cashierRepository) CodeExists(_ context.Context, code string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.registers.exists(func(r cashier.Register) bool { return r.Code == code }), nil
}

func (repo *cashierRepository) CreateRegister(ctx context.Context, r cashier.Register, _ ...core.DBExecutor) (cashier.Register, error) {
	if ok, _ := repo.CodeExists(ctx, r.Code); ok {
		return cashier.Register{}, core.NewUniqueViolation("code")
	}
	r.ID = uuid.NewString()
	repo.db.registers.insert(r.ID, r)
	return r, nil
}

func (repo *cashierRepository) GetRegister(_ context.Context, id string, _ ...core.DBExecutor) (cashier.Register, error) {
	if r, ok := repo.db.registers.get(id); ok {
		return r, nil
	}
	return cashier.Register{}, cashier.ErrNotFound
}

func (repo *cashierRepository) LockRegister(ctx context.Context, id string, _ ...core.DBExecutor) (cashier.Register, error) {
	return repo.GetRegister(ctx, id)
}

func (repo *cashierRepository) QueryRegisters(_ context.Context, filter cashier.QueryFilter, _ ...core.DBExecutor) ([]cashier.Register, error) {
	registers := repo.db.registers.filter(func(r cashier.Register) bool {
		return (!filter.OpenOnly || r.IsOpen) &&
			(filter.From.IsZero() || !r.OpenedAt.Before(filter.From)) &&
			(filter.To.IsZero() || !r.OpenedAt.After(filter.To))
	})
	return sortBy(registers, func(a, b cashier.Register) bool { return a.OpenedAt.After(b.OpenedAt) }), nil
}

func (repo *cashierRepository) UpdateRegister(_ context.Context, r cashier.Register, _ ...core.DBExecutor) (cashier.Register, error) {
	if !repo.db.registers.update(r.ID, r) {
		return cashier.Register{}, cashier.ErrNotFound
	}
	return r, nil
}

func (repo *cashierRepository) CreateMovement(_ context.Context, m cashier.Movement, _ ...core.DBExecutor) (cashier.Movement, error) {
	m.ID = uuid.NewString()
	repo.db.cashMovements.insert(m.ID, m)
	return m, nil
}

func (repo *cashierRepository) QueryMovements(_ context.Context, registerID string, _ ...core.DBExecutor) ([]cashier.Movement, error) {
	movements := repo.db.cashMovements.filter(func(m cashier.Movement) bool { return m.RegisterID == registerID })
	return sortBy(movements, func(a, b cashier.Movement) bool { return a.CreatedAt.Before(b.CreatedAt) }), nil
}
