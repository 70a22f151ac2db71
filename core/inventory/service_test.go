package inventory_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/inventory"
	"github.com/somabem/erp/core/user"
	"github.com/somabem/erp/tests"
)

func TestService_Create(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Stock", "stock", "stock@school.ao", "Kw4nz4-Sul!", []string{user.RoleAdminSuper}, true)
	ctx := testutil.Ctx(admin)

	p, err := env.InventorySvc.Create(ctx, inventory.NewProduct{
		Code: "UNI-01", Name: " Bata branca ", CostPrice: testutil.Dec("4000"), SalePrice: testutil.Dec("5000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Bata branca", p.Name)
	assert.Equal(t, "other", p.Category)
	assert.Equal(t, "un", p.Unit)
	assert.Equal(t, inventory.DefaultMinStock, p.MinStock)
	assert.True(t, p.TrackStock)
	assert.Equal(t, "25", p.Margin().String())

	tests := []struct {
		name  string
		np    inventory.NewProduct
		field string
	}{
		{name: "duplicate code", np: inventory.NewProduct{Code: "UNI-01", Name: "x"}, field: "code"},
		{name: "sale below cost", np: inventory.NewProduct{Code: "UNI-02", Name: "x", CostPrice: testutil.Dec("10"), SalePrice: testutil.Dec("9")}, field: "sale_price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.InventorySvc.Create(ctx, tt.np)
			require.True(t, core.IsValidationError(err), "err = %v", err)
			assert.Equal(t, tt.field, err.(*core.ValidationError).Fields[0].Field)
		})
	}
}

func TestService_AdjustStock(t *testing.T) {
	testutil.FreezeClock(t, time.Date(2025, time.September, 1, 8, 0, 0, 0, time.UTC))
	env := testutil.NewEnv(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Stock", "stock", "stock@school.ao", "Kw4nz4-Sul!", []string{user.RoleAdminSuper}, true)
	ctx := testutil.Ctx(admin)
	p := testutil.CreateProduct(t, env, ctx, "800", 5, 3)

	tests := []struct {
		name      string
		as        inventory.AdjustStock
		wantStock int
		wantErr   error
	}{
		{name: "in ignores the sign", as: inventory.AdjustStock{Kind: inventory.MoveIn, Quantity: -4, Reason: "delivery"}, wantStock: 9},
		{name: "out", as: inventory.AdjustStock{Kind: inventory.MoveOut, Quantity: 2, Reason: "class use"}, wantStock: 7},
		{name: "loss", as: inventory.AdjustStock{Kind: inventory.MoveLoss, Quantity: 1, Reason: "damaged"}, wantStock: 6},
		{name: "adjustment keeps the sign", as: inventory.AdjustStock{Kind: inventory.MoveAdjustment, Quantity: -3, Reason: "count"}, wantStock: 3},
		{name: "below zero", as: inventory.AdjustStock{Kind: inventory.MoveOut, Quantity: 4, Reason: "x"}, wantStock: 3, wantErr: inventory.ErrInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := env.InventorySvc.AdjustStock(ctx, p.ID, tt.as)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, testutil.Cause(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStock, m.After)
				assert.Equal(t, admin.ID, m.EmployeeID)
			}
			got, err := env.InventorySvc.Get(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStock, got.Stock)
		})
	}

	moves, err := env.InventorySvc.Movements(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, moves, 4)
	assert.Equal(t, "1600", moves[0].Total.String(), "4 units at cost price")

	restock, err := env.InventorySvc.RestockCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, restock, 1)
	assert.Equal(t, p.ID, restock[0].ID)

	// untracked products never need restocking
	_, err = env.InventorySvc.Create(ctx, inventory.NewProduct{Code: "SRV-1", Name: "Fotocópia", TrackStock: core.BoolPtr(false)})
	require.NoError(t, err)
	restock, err = env.InventorySvc.Query(ctx, inventory.QueryFilter{Restock: true})
	require.NoError(t, err)
	assert.Len(t, restock, 1)

	_, err = env.InventorySvc.Update(ctx, p.ID, inventory.UpdateProduct{SalePrice: decimal.NewNullDecimal(testutil.Dec("100"))})
	assert.True(t, core.IsValidationError(err), "sale price below cost")
}

func TestService_UploadImage(t *testing.T) {
	env := testutil.NewEnv(t)
	admin := testutil.CreateUser(t, env.UserRepo, "Stock", "stock", "stock@school.ao", "Kw4nz4-Sul!", []string{user.RoleAdminSuper}, true)
	ctx := testutil.Ctx(admin)
	p := testutil.CreateProduct(t, env, ctx, "800", 5, 3)

	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	img.Set(1, 1, color.NRGBA{G: 255, A: 255})
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))

	got, err := env.InventorySvc.UploadImage(ctx, p.ID, buf)
	require.NoError(t, err)
	assert.Equal(t, "products/"+p.ID+".jpg", got.ImagePath)
	_, err = os.Stat(filepath.Join(env.Conf.MediaDir, got.ImagePath))
	assert.NoError(t, err)

	_, err = env.InventorySvc.UploadImage(ctx, p.ID, bytes.NewBufferString("not an image"))
	assert.Error(t, err)
}
