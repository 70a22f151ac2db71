package tuition_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/cashier"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/tuition"
	"github.com/somabem/erp/tests"
)

var today = core.Date(2025, time.March, 15)

type fixture struct {
	env    *testutil.Env
	school testutil.School
	ctx    context.Context
	plan   tuition.PaymentPlan
}

// setup creates a 30 000 Kz plan paid in 3 installments due on Feb 10, Mar 10 and Apr 10.
func setup(t *testing.T) fixture {
	testutil.FreezeClock(t, today.Add(10*time.Hour))
	env := testutil.NewEnv(t)
	school := testutil.SeedSchool(t, env, 30)
	ctx := testutil.Ctx(school.Admin)

	plan, err := env.TuitionSvc.CreatePlan(ctx, tuition.NewPaymentPlan{
		AcademicYearID:     school.Year.ID,
		GradeID:            school.Grade.ID,
		Name:               "Propina 7ª",
		TotalAmount:        testutil.Dec("30000"),
		Installments:       3,
		SiblingDiscountPct: testutil.Dec("10"),
	})
	require.NoError(t, err)

	tmpls, err := env.TuitionSvc.GenerateTemplates(ctx, plan.ID, tuition.GenerateTemplates{FirstMonth: 2})
	require.NoError(t, err)
	require.Len(t, tmpls, 3)
	assert.Equal(t, 2, tmpls[0].Month)
	assert.Equal(t, 10, tmpls[0].DueDay)

	_, err = env.TuitionSvc.GenerateTemplates(ctx, plan.ID, tuition.GenerateTemplates{FirstMonth: 2})
	assert.Equal(t, tuition.ErrTemplatesExist, testutil.Cause(err))

	return fixture{env: env, school: school, ctx: ctx, plan: plan}
}

func (f fixture) enroll(t *testing.T, name, discount string) (enrollment.Enrollment, []tuition.Installment) {
	sd := testutil.CreateStudent(t, f.env, f.ctx, name)
	e, err := f.env.EnrollmentSvc.Enroll(f.ctx, enrollment.NewEnrollment{
		StudentID:     sd.ID,
		SectionID:     f.school.Section.ID,
		PaymentPlanID: &f.plan.ID,
		DiscountKind:  discount,
	})
	require.NoError(t, err)
	insts, err := f.env.TuitionSvc.InstantiateInstallments(f.ctx, e.ID)
	require.NoError(t, err)
	return e, insts
}

func TestService_InstantiateInstallments(t *testing.T) {
	f := setup(t)

	e, insts := f.enroll(t, "Ana", "")
	require.Len(t, insts, 3)
	for i, inst := range insts {
		assert.Equal(t, "10000", inst.ValueAfterDiscount.String(), "installment %d", i+1)
		assert.Equal(t, tuition.StatusPending, inst.Status)
	}
	assert.Equal(t, core.Date(2025, time.February, 10), insts[0].DueDate)
	assert.Equal(t, core.Date(2025, time.April, 10), insts[2].DueDate)

	_, err := f.env.TuitionSvc.InstantiateInstallments(f.ctx, e.ID)
	assert.Equal(t, tuition.ErrInstallmentsExist, testutil.Cause(err))

	got, err := f.env.EnrollmentSvc.Get(f.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "30000", got.TuitionFee.String())

	_, sibling := f.enroll(t, "Beto", enrollment.DiscountSiblings)
	assert.Equal(t, "9000", sibling[0].ValueAfterDiscount.String())
	assert.Equal(t, "1000", sibling[0].DiscountValue.String())
}

func TestService_OverdueAndLateFees(t *testing.T) {
	f := setup(t)
	_, insts := f.enroll(t, "Ana", "")

	overdue, err := f.env.TuitionSvc.Overdue(f.ctx, today)
	require.NoError(t, err)
	assert.Len(t, overdue, 2, "February and March")

	updated, err := f.env.TuitionSvc.ApplyLateFees(f.ctx, today)
	require.NoError(t, err)
	require.Len(t, updated, 1, "March is still within the grace days")
	feb := updated[0]
	assert.Equal(t, insts[0].ID, feb.ID)
	assert.Equal(t, 33, feb.DaysLate)
	assert.Equal(t, "200", feb.Penalty.String())
	assert.Equal(t, "330", feb.Interest.String())
	assert.Equal(t, "10530", feb.Remaining().String())

	// re-running on the same day gives the same amounts
	updated, err = f.env.TuitionSvc.ApplyLateFees(f.ctx, today)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "330", updated[0].Interest.String())
}

func TestService_RegisterPayment(t *testing.T) {
	f := setup(t)
	e, insts := f.enroll(t, "Ana", "")
	reg := testutil.OpenRegister(t, f.env, f.ctx)
	inst := insts[1]

	tests := []struct {
		name    string
		np      tuition.NewPayment
		wantErr error
	}{
		{
			name:    "overpayment",
			np:      tuition.NewPayment{InstallmentID: inst.ID, Amount: testutil.Dec("10000.01"), Method: "cash"},
			wantErr: tuition.ErrOverpayment,
		},
		{
			name:    "unknown installment",
			np:      tuition.NewPayment{InstallmentID: "00000000-0000-0000-0000-000000000000", Amount: testutil.Dec("1"), Method: "cash"},
			wantErr: tuition.ErrInstallmentNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.env.TuitionSvc.RegisterPayment(f.ctx, tt.np)
			assert.Equal(t, tt.wantErr, testutil.Cause(err))
		})
	}

	first, err := f.env.TuitionSvc.RegisterPayment(f.ctx, tuition.NewPayment{
		InstallmentID:  inst.ID,
		Amount:         testutil.Dec("4000"),
		Tendered:       testutil.Dec("5000"),
		Method:         "cash",
		CashRegisterID: &reg.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "1000", first.Change.String())
	assert.Equal(t, first.ReceiptNumber, first.Reference)
	assert.Equal(t, e.StudentID, first.StudentID)

	second, err := f.env.TuitionSvc.RegisterPayment(f.ctx, tuition.NewPayment{
		InstallmentID: inst.ID, Amount: testutil.Dec("6000"), Method: "transfer", Reference: "TRF-889",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ReceiptNumber, second.ReceiptNumber)

	paid, err := f.env.TuitionSvc.QueryInstallments(f.ctx, tuition.InstallmentFilter{EnrollmentID: e.ID, Status: tuition.StatusPaid})
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, inst.ID, paid[0].ID)

	_, err = f.env.TuitionSvc.RegisterPayment(f.ctx, tuition.NewPayment{InstallmentID: inst.ID, Amount: testutil.Dec("1"), Method: "cash"})
	assert.Equal(t, tuition.ErrNotPayable, testutil.Cause(err))

	r, err := f.env.CashierSvc.Get(f.ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "4000", r.TotalIn.String(), "only the cash payment went through the register")

	got, err := f.env.EnrollmentSvc.Get(f.ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "10000", got.AmountPaid.String())
}

func TestService_RegisterPayment_closedRegister(t *testing.T) {
	f := setup(t)
	e, insts := f.enroll(t, "Ana", "")
	reg := testutil.OpenRegister(t, f.env, f.ctx)
	_, err := f.env.CashierSvc.Close(f.ctx, reg.ID)
	require.NoError(t, err)

	p, err := f.env.TuitionSvc.RegisterPayment(f.ctx, tuition.NewPayment{
		InstallmentID: insts[0].ID, Amount: testutil.Dec("500"), Method: "cash", CashRegisterID: &reg.ID,
	})
	assert.Equal(t, cashier.ErrRegisterClosed, testutil.Cause(err))
	assert.Equal(t, tuition.Payment{}, p, "no receipt for a rolled back payment")

	// nothing of the payment was kept
	payments, err := f.env.TuitionSvc.QueryPayments(f.ctx, tuition.PaymentFilter{StudentID: e.StudentID})
	require.NoError(t, err)
	assert.Empty(t, payments)
	pending, err := f.env.TuitionSvc.QueryInstallments(f.ctx, tuition.InstallmentFilter{EnrollmentID: e.ID, Status: tuition.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestService_ReversePayment(t *testing.T) {
	f := setup(t)
	e, insts := f.enroll(t, "Ana", "")
	reg := testutil.OpenRegister(t, f.env, f.ctx)

	p, err := f.env.TuitionSvc.RegisterPayment(f.ctx, tuition.NewPayment{
		InstallmentID: insts[2].ID, Amount: testutil.Dec("10000"), Method: "cash", CashRegisterID: &reg.ID,
	})
	require.NoError(t, err)

	_, err = f.env.TuitionSvc.ReversePayment(f.ctx, p.ID, "  ")
	assert.Equal(t, tuition.ErrReversalReason, testutil.Cause(err))

	rev, err := f.env.TuitionSvc.ReversePayment(f.ctx, p.ID, "duplicated payment")
	require.NoError(t, err)
	assert.True(t, rev.Reversed)
	assert.Equal(t, "duplicated payment", rev.ReversalReason)

	_, err = f.env.TuitionSvc.ReversePayment(f.ctx, p.ID, "again")
	assert.Equal(t, tuition.ErrAlreadyReversed, testutil.Cause(err))

	pending, err := f.env.TuitionSvc.QueryInstallments(f.ctx, tuition.InstallmentFilter{EnrollmentID: e.ID, Status: tuition.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 3, "the installment is pending again")

	r, err := f.env.CashierSvc.Get(f.ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, "10000", r.TotalOut.String())
	assert.True(t, r.CurrentBalance().IsZero())

	got, err := f.env.EnrollmentSvc.Get(f.ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountPaid.IsZero())
}
