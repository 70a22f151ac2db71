package cashier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
	"github.com/somabem/erp/core/cashier"
	"github.com/somabem/erp/core/user"
	"github.com/somabem/erp/tests"
)

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Tesouraria", "tes", "tes@school.ao", "Kw4nz4-Sul!", []string{user.RoleAdminSuper}, true)
	ctx := testutil.Ctx(admin)

	r, err := env.CashierSvc.Open(ctx, cashier.NewRegister{Code: "CX-01", OpeningBalance: testutil.Dec("1000")})
	require.NoError(t, err)
	assert.True(t, r.IsOpen)
	assert.Equal(t, "daily", r.Period)
	assert.Equal(t, admin.ID, r.ResponsibleID)

	_, err = env.CashierSvc.Open(ctx, cashier.NewRegister{Code: "CX-01"})
	assert.Equal(t, cashier.ErrCodeExists, testutil.Cause(err))

	tests := []struct {
		name        string
		nm          cashier.NewMovement
		wantErr     error
		wantBalance string
	}{
		{name: "inflow", nm: cashier.NewMovement{Kind: cashier.KindIn, Category: cashier.CategoryOther, Amount: testutil.Dec("250.50")}, wantBalance: "1250.5"},
		{name: "expense", nm: cashier.NewMovement{Kind: cashier.KindOut, Category: cashier.CategoryExpense, Amount: testutil.Dec("200")}, wantBalance: "1050.5"},
		{name: "outflow above balance", nm: cashier.NewMovement{Kind: cashier.KindOut, Category: cashier.CategoryExpense, Amount: testutil.Dec("1050.51")}, wantErr: cashier.ErrInsufficientFunds, wantBalance: "1050.5"},
		{name: "whole balance", nm: cashier.NewMovement{Kind: cashier.KindOut, Category: cashier.CategoryExpense, Amount: testutil.Dec("1050.5")}, wantBalance: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.nm.RegisterID = r.ID
			_, err := env.CashierSvc.AddMovement(ctx, tt.nm)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, testutil.Cause(err))
			} else {
				require.NoError(t, err)
			}
			got, err := env.CashierSvc.Get(ctx, r.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, got.CurrentBalance().String())
		})
	}

	moves, err := env.CashierSvc.Movements(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, moves, 3)

	_, err = env.CashierSvc.MarkChecked(ctx, r.ID)
	assert.Equal(t, cashier.ErrRegisterOpen, testutil.Cause(err))

	r, err = env.CashierSvc.Close(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, r.IsOpen)
	assert.True(t, r.ClosingBalance.Valid)
	assert.Equal(t, admin.ID, *r.ClosedBy)

	_, err = env.CashierSvc.Close(ctx, r.ID)
	assert.Equal(t, cashier.ErrRegisterClosed, testutil.Cause(err))
	_, err = env.CashierSvc.AddMovement(ctx, cashier.NewMovement{RegisterID: r.ID, Kind: cashier.KindIn, Category: cashier.CategoryOther, Amount: testutil.Dec("1")})
	assert.Equal(t, cashier.ErrRegisterClosed, testutil.Cause(err))

	r, err = env.CashierSvc.MarkChecked(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, r.Checked)
	_, err = env.CashierSvc.MarkChecked(ctx, r.ID)
	assert.Equal(t, cashier.ErrAlreadyChecked, testutil.Cause(err))

	open, err := env.CashierSvc.Query(ctx, cashier.QueryFilter{OpenOnly: true})
	require.NoError(t, err)
	assert.Empty(t, open)

	entries, err := env.AuditSvc.Query(ctx, &audit.QueryFilter{EntityID: r.ID, Module: string(core.ModuleCashier)}, nil)
	require.NoError(t, err)
	assert.Len(t, entries, 6, "open, 3 movements, close, check")
}
