package inmemdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/sales"
	"github.com/somabem/erp/core/tuition"
	inmemdb "github.com/somabem/erp/storage/database/inmem"
	"github.com/somabem/erp/tests"
)

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	require.True(t, core.IsValidationError(err), "err = %v", err)
	verr := err.(*core.ValidationError)
	require.Len(t, verr.Fields, 1)
	return verr.Fields[0].Field
}

func Test_tuitionRepository_CreateTemplate(t *testing.T) {
	repo := inmemdb.NewTuitionRepository(inmemdb.Open())
	ctx := context.Background()
	tmpl := func(planID string, number, month, dueDay int) tuition.InstallmentTemplate {
		return tuition.InstallmentTemplate{PlanID: planID, Number: number, Month: month, DueDay: dueDay, Amount: testutil.Dec("10000")}
	}

	_, err := repo.CreateTemplate(ctx, tmpl("plan-1", 1, 2, 10))
	require.NoError(t, err)

	tests := []struct {
		name      string
		tmpl      tuition.InstallmentTemplate
		wantField string
	}{
		{name: "same number", tmpl: tmpl("plan-1", 1, 3, 10), wantField: "number"},
		{name: "same month", tmpl: tmpl("plan-1", 2, 2, 10), wantField: "month"},
		{name: "due day past 28", tmpl: tmpl("plan-1", 2, 3, 29), wantField: "due_day"},
		{name: "month 13", tmpl: tmpl("plan-1", 2, 13, 10), wantField: "month"},
		{name: "next month", tmpl: tmpl("plan-1", 2, 3, 10)},
		{name: "same number and month on another plan", tmpl: tmpl("plan-2", 1, 2, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.CreateTemplate(ctx, tt.tmpl)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantField, fieldOf(t, err))
		})
	}

	tmpls, err := repo.QueryTemplates(ctx, "plan-1")
	require.NoError(t, err)
	assert.Len(t, tmpls, 2)
}

func Test_salesRepository_CreateItem(t *testing.T) {
	repo := inmemdb.NewSalesRepository(inmemdb.Open())
	ctx := context.Background()

	tests := []struct {
		name      string
		item      sales.Item
		wantField string
	}{
		{
			name: "total matches",
			item: sales.Item{SaleID: "s-1", ProductID: "p-1", Quantity: 3, UnitPrice: testutil.Dec("500"),
				DiscountValue: testutil.Dec("100"), Total: testutil.Dec("1400")},
		},
		{
			name: "total ignores the discount",
			item: sales.Item{SaleID: "s-1", ProductID: "p-2", Quantity: 3, UnitPrice: testutil.Dec("500"),
				DiscountValue: testutil.Dec("100"), Total: testutil.Dec("1500")},
			wantField: "total",
		},
		{
			name: "same product twice",
			item: sales.Item{SaleID: "s-1", ProductID: "p-1", Quantity: 1, UnitPrice: testutil.Dec("500"),
				Total: testutil.Dec("500")},
			wantField: "product_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.CreateItem(ctx, tt.item)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantField, fieldOf(t, err))
		})
	}
}
