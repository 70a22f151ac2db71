package report_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/report"
	"github.com/somabem/erp/core/sales"
	"github.com/somabem/erp/core/tuition"
	"github.com/somabem/erp/tests"
)

func TestAverageOccupancy(t *testing.T) {
	tests := []struct {
		name  string
		loads []report.SectionLoad
		want  string
	}{
		{name: "no sections", want: "0"},
		{name: "half", loads: []report.SectionLoad{{Capacity: 30, Active: 15}}, want: "50"},
		{name: "mean", loads: []report.SectionLoad{{Capacity: 30, Active: 30}, {Capacity: 40, Active: 10}, {Capacity: 0}}, want: "41.67"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, report.AverageOccupancy(tt.loads).String())
		})
	}
}

func TestNewMonthlyFinance(t *testing.T) {
	mf := report.NewMonthlyFinance(2025, time.May, testutil.Dec("8000"), testutil.Dec("9000"))
	assert.True(t, mf.Pending.IsZero(), "overpaid months have nothing pending")
	assert.True(t, mf.Delinquency.IsZero())

	mf = report.NewMonthlyFinance(2025, time.May, decimal.Zero, decimal.Zero)
	assert.True(t, mf.Delinquency.IsZero(), "no division by zero")
}

func TestService_Reports(t *testing.T) {
	today := core.Date(2025, time.March, 15)
	testutil.FreezeClock(t, today.Add(11*time.Hour))
	env := testutil.NewEnv(t)
	s := testutil.SeedSchool(t, env, 4)
	ctx := testutil.Ctx(s.Admin)

	plan, err := env.TuitionSvc.CreatePlan(ctx, tuition.NewPaymentPlan{
		AcademicYearID: s.Year.ID, GradeID: s.Grade.ID, Name: "Propina", TotalAmount: testutil.Dec("30000"), Installments: 3,
	})
	require.NoError(t, err)
	_, err = env.TuitionSvc.GenerateTemplates(ctx, plan.ID, tuition.GenerateTemplates{FirstMonth: 2})
	require.NoError(t, err)

	ana := testutil.Enroll(t, env, s, "Ana", &plan.ID)
	beto := testutil.Enroll(t, env, s, "Beto", &plan.ID)
	var march tuition.Installment
	for _, e := range []enrollment.Enrollment{ana, beto} {
		insts, err := env.TuitionSvc.InstantiateInstallments(ctx, e.ID)
		require.NoError(t, err)
		if e.ID == ana.ID {
			march = insts[1]
		}
	}
	_, err = env.TuitionSvc.RegisterPayment(ctx, tuition.NewPayment{InstallmentID: march.ID, Amount: testutil.Dec("10000"), Method: "transfer"})
	require.NoError(t, err)

	p := testutil.CreateProduct(t, env, ctx, "500", 3, 2)
	_, err = env.SalesSvc.Checkout(ctx, sales.Cart{Lines: []sales.CartLine{{ProductID: p.ID, Quantity: 1}}, Method: "cash"})
	require.NoError(t, err)

	t.Run("dashboard", func(t *testing.T) {
		d, err := env.ReportSvc.Dashboard(ctx, today)
		require.NoError(t, err)
		assert.Equal(t, 2, d.ActiveStudents)
		assert.Equal(t, 1, d.ActiveTeachers)
		assert.Equal(t, 1, d.OpenSections)
		assert.Equal(t, "50", d.AverageOccupancy.String())
		assert.Equal(t, "10500", d.MonthRevenue.String(), "tuition and sales")
		assert.Equal(t, 3, d.OverdueInstallments, "both February installments and Beto's March one")
		assert.Equal(t, 1, d.RestockProducts)
	})

	t.Run("monthly finance", func(t *testing.T) {
		mf, err := env.ReportSvc.MonthlyFinance(ctx, 2025, time.March)
		require.NoError(t, err)
		assert.Equal(t, "20000", mf.Expected.String())
		assert.Equal(t, "10000", mf.Received.String())
		assert.Equal(t, "10000", mf.Pending.String())
		assert.Equal(t, "50", mf.Delinquency.String())

		_, err = env.ReportSvc.MonthlyFinance(ctx, 2025, 13)
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("active students", func(t *testing.T) {
		rows, err := env.ReportSvc.ActiveStudents(ctx, s.Year.ID)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		status := make(map[string]enrollment.PaymentStatus)
		for _, r := range rows {
			assert.Equal(t, s.Grade.Name, r.Grade)
			status[r.Name] = r.PaymentStatus
		}
		assert.Equal(t, enrollment.PaymentPartial, status["Ana"])
		assert.Equal(t, enrollment.PaymentPending, status["Beto"])

		rows, err = env.ReportSvc.ActiveStudents(ctx, "00000000-0000-0000-0000-000000000000")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}
