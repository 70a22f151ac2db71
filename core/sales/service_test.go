package sales_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/cashier"
	"github.com/somabem/erp/core/inventory"
	"github.com/somabem/erp/core/sales"
	"github.com/somabem/erp/core/user"
	"github.com/somabem/erp/tests"
)

func setup(t *testing.T) (*testutil.Env, context.Context) {
	testutil.FreezeClock(t, time.Date(2025, time.May, 20, 9, 0, 0, 0, time.UTC))
	env := testutil.NewEnv(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Caixa", "caixa", "caixa@school.ao", "Kw4nz4-Sul!", []string{user.RoleAdminSuper}, true)
	return env, testutil.Ctx(admin)
}

func TestService_Checkout(t *testing.T) {
	env, ctx := setup(t)
	p := testutil.CreateProduct(t, env, ctx, "500", 10, 2)
	reg := testutil.OpenRegister(t, env, ctx)

	rcpt, err := env.SalesSvc.Checkout(ctx, sales.Cart{
		Lines:          []sales.CartLine{{ProductID: p.ID, Quantity: 3, DiscountPct: testutil.Dec("10")}},
		Discount:       testutil.Dec("50"),
		Method:         "Cash",
		Tendered:       testutil.Dec("2000"),
		CashRegisterID: &reg.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "1350", rcpt.Total.String())
	assert.Equal(t, "1300", rcpt.Final.String())
	assert.Equal(t, "700", rcpt.Change.String())
	assert.Equal(t, sales.StatusPaid, rcpt.Status)
	require.Len(t, rcpt.Items, 1)
	assert.Equal(t, "150", rcpt.Items[0].DiscountValue.String())
	assert.Equal(t, "Caderno A4", rcpt.Items[0].ProductName)
	assert.Empty(t, rcpt.Installments)

	got, err := env.InventorySvc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)

	moves, err := env.InventorySvc.Movements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, moves, 1)
	assert.Equal(t, -3, moves[0].Quantity)
	assert.Equal(t, rcpt.ID, *moves[0].SaleID)

	r, err := env.CashierSvc.Get(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "1300", r.TotalIn.String())

	stored, err := env.SalesSvc.Receipt(ctx, rcpt.ID)
	require.NoError(t, err)
	assert.Equal(t, rcpt.Number, stored.Number)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "Caderno A4", stored.Items[0].ProductName)
}

func TestService_Checkout_rejected(t *testing.T) {
	env, ctx := setup(t)
	p := testutil.CreateProduct(t, env, ctx, "500", 10, 2)
	off := testutil.CreateProduct(t, env, ctx, "100", 5, 0)
	_, err := env.InventorySvc.Update(ctx, off.ID, inventory.UpdateProduct{IsActive: core.BoolPtr(false)})
	require.NoError(t, err)
	closed := testutil.OpenRegister(t, env, ctx)
	_, err = env.CashierSvc.Close(ctx, closed.ID)
	require.NoError(t, err)

	line := func(qty int) []sales.CartLine { return []sales.CartLine{{ProductID: p.ID, Quantity: qty}} }

	tests := []struct {
		name    string
		cart    sales.Cart
		wantErr error
	}{
		{name: "insufficient stock", cart: sales.Cart{Lines: line(11), Method: "cash"}, wantErr: inventory.ErrInsufficientStock},
		{name: "inactive product", cart: sales.Cart{Lines: []sales.CartLine{{ProductID: off.ID, Quantity: 1}}, Method: "cash"}, wantErr: sales.ErrProductInactive},
		{name: "discount above total", cart: sales.Cart{Lines: line(1), Discount: testutil.Dec("501"), Method: "cash"}, wantErr: sales.ErrDiscount},
		{name: "short tendered", cart: sales.Cart{Lines: line(2), Tendered: testutil.Dec("999"), Method: "cash"}, wantErr: sales.ErrTendered},
		{name: "unknown product", cart: sales.Cart{Lines: []sales.CartLine{{ProductID: "00000000-0000-0000-0000-000000000000", Quantity: 1}}, Method: "cash"}, wantErr: inventory.ErrNotFound},
		{name: "closed register", cart: sales.Cart{Lines: line(2), Method: "cash", CashRegisterID: &closed.ID}, wantErr: cashier.ErrRegisterClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.SalesSvc.Checkout(ctx, tt.cart)
			assert.Equal(t, tt.wantErr, testutil.Cause(err))
		})
	}

	t.Run("invalid carts", func(t *testing.T) {
		_, err := env.SalesSvc.Checkout(ctx, sales.Cart{Method: "cash"})
		assert.True(t, core.IsValidationError(err), "empty")
		_, err = env.SalesSvc.Checkout(ctx, sales.Cart{Lines: append(line(1), line(2)...), Method: "cash"})
		assert.True(t, core.IsValidationError(err), "product twice")
	})

	// none of the failed checkouts left anything behind
	all, err := env.SalesSvc.Query(ctx, sales.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	got, err := env.InventorySvc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)
	moves, err := env.InventorySvc.Movements(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, moves)
}

func TestService_PaySaleInstallment(t *testing.T) {
	env, ctx := setup(t)
	p := testutil.CreateProduct(t, env, ctx, "300", 10, 2)
	reg := testutil.OpenRegister(t, env, ctx)

	rcpt, err := env.SalesSvc.Checkout(ctx, sales.Cart{
		Lines:        []sales.CartLine{{ProductID: p.ID, Quantity: 3}},
		Method:       "multicaixa",
		Installments: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPending, rcpt.Status)
	assert.True(t, rcpt.Paid.IsZero())
	require.Len(t, rcpt.Installments, 3)
	assert.Equal(t, core.Date(2025, time.June, 20), rcpt.Installments[0].DueDate)
	assert.Equal(t, core.Date(2025, time.August, 20), rcpt.Installments[2].DueDate)
	for _, inst := range rcpt.Installments {
		assert.Equal(t, "300", inst.Amount.String())
	}

	first := rcpt.Installments[0]
	_, err = env.SalesSvc.PaySaleInstallment(ctx, first.ID, sales.PayInstallment{Amount: testutil.Dec("300.01"), Method: "cash"})
	assert.Equal(t, sales.ErrOverpayment, testutil.Cause(err))

	part, err := env.SalesSvc.PaySaleInstallment(ctx, first.ID, sales.PayInstallment{Amount: testutil.Dec("100"), Method: "cash", CashRegisterID: &reg.ID})
	require.NoError(t, err)
	assert.Equal(t, sales.InstallmentPartial, part.Status)
	assert.NotEmpty(t, part.Receipt)

	for _, tc := range []struct {
		id     string
		amount string
	}{{first.ID, "200"}, {rcpt.Installments[1].ID, "300"}, {rcpt.Installments[2].ID, "300"}} {
		inst, err := env.SalesSvc.PaySaleInstallment(ctx, tc.id, sales.PayInstallment{Amount: testutil.Dec(tc.amount), Method: "cash", CashRegisterID: &reg.ID})
		require.NoError(t, err)
		assert.Equal(t, sales.InstallmentPaid, inst.Status)
		assert.NotNil(t, inst.PaidOn)
	}

	_, err = env.SalesSvc.PaySaleInstallment(ctx, first.ID, sales.PayInstallment{Amount: testutil.Dec("1"), Method: "cash"})
	assert.Equal(t, sales.ErrAlreadyPaid, testutil.Cause(err))

	s, err := env.SalesSvc.Get(ctx, rcpt.ID)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPaid, s.Status)
	assert.False(t, s.PartiallyPaid)
	assert.Equal(t, "900", s.Paid.String())
	assert.NotNil(t, s.PaidAt)

	r, err := env.CashierSvc.Get(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "900", r.TotalIn.String())
}

func TestService_CancelSale(t *testing.T) {
	env, ctx := setup(t)
	p := testutil.CreateProduct(t, env, ctx, "250", 4, 1)
	reg := testutil.OpenRegister(t, env, ctx)

	paid, err := env.SalesSvc.Checkout(ctx, sales.Cart{
		Lines:          []sales.CartLine{{ProductID: p.ID, Quantity: 2}},
		Method:         "cash",
		CashRegisterID: &reg.ID,
	})
	require.NoError(t, err)
	credit, err := env.SalesSvc.Checkout(ctx, sales.Cart{
		Lines:        []sales.CartLine{{ProductID: p.ID, Quantity: 2}},
		Method:       "transfer",
		Installments: 2,
	})
	require.NoError(t, err)

	restock, err := env.InventorySvc.RestockCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, restock, 1, "stock went down to zero")

	s, err := env.SalesSvc.CancelSale(ctx, paid.ID, " wrong size ")
	require.NoError(t, err)
	assert.Equal(t, sales.StatusCancelled, s.Status)
	assert.Equal(t, "wrong size", s.Notes)

	_, err = env.SalesSvc.CancelSale(ctx, paid.ID, "")
	assert.Equal(t, sales.ErrCancelled, testutil.Cause(err))

	_, err = env.SalesSvc.CancelSale(ctx, credit.ID, "")
	require.NoError(t, err)
	_, err = env.SalesSvc.PaySaleInstallment(ctx, credit.Installments[0].ID, sales.PayInstallment{Amount: testutil.Dec("10"), Method: "cash"})
	assert.Equal(t, sales.ErrCancelled, testutil.Cause(err))

	got, err := env.InventorySvc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Stock)

	r, err := env.CashierSvc.Get(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "500", r.TotalIn.String())
	assert.Equal(t, "500", r.TotalOut.String())
	assert.True(t, r.CurrentBalance().Equal(decimal.Zero))

	cancelled, err := env.SalesSvc.Query(ctx, sales.QueryFilter{Status: sales.StatusCancelled})
	require.NoError(t, err)
	assert.Len(t, cancelled, 2)
}
