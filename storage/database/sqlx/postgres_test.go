package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/audit"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/inventory"
	"github.com/somabem/erp/core/people"
	"github.com/somabem/erp/core/sales"
	"github.com/somabem/erp/core/tuition"
	"github.com/somabem/erp/core/user"
	sqlxrepos "github.com/somabem/erp/storage/database/sqlx"
	"github.com/somabem/erp/tests"
)

// Runs the main school flows against PostgreSQL. Skipped unless TEST_DATABASE_URL is set.
func TestPostgres_schoolYear(t *testing.T) {
	today := core.Date(2025, time.March, 15)
	testutil.FreezeClock(t, today.Add(11*time.Hour))
	env := testutil.NewPostgresEnv(t)
	s := testutil.SeedSchool(t, env, 4)
	ctx := testutil.Ctx(s.Admin)

	t.Run("unique violations", func(t *testing.T) {
		_, err := env.UserRepo.CreateUser(context.Background(), user.User{
			Name: "Copy", Username: s.Admin.Username, Email: "copy@school.ao", Roles: core.Strings{},
			Theme: user.ThemeLight, Language: "pt", CreatedAt: core.NowFunc(), UpdatedAt: core.NowFunc(),
		})
		require.Error(t, err)
		assert.True(t, core.IsValidationError(err))
	})

	plan, err := env.TuitionSvc.CreatePlan(ctx, tuition.NewPaymentPlan{
		AcademicYearID: s.Year.ID, GradeID: s.Grade.ID, Name: "Propina", TotalAmount: testutil.Dec("30000"), Installments: 3,
	})
	require.NoError(t, err)
	_, err = env.TuitionSvc.GenerateTemplates(ctx, plan.ID, tuition.GenerateTemplates{FirstMonth: 2})
	require.NoError(t, err)

	ana := testutil.Enroll(t, env, s, "Ana", &plan.ID)
	beto := testutil.Enroll(t, env, s, "Beto", &plan.ID)
	installments := make(map[string][]tuition.Installment)
	for _, e := range []enrollment.Enrollment{ana, beto} {
		insts, err := env.TuitionSvc.InstantiateInstallments(ctx, e.ID)
		require.NoError(t, err)
		require.Len(t, insts, 3)
		installments[e.ID] = insts
	}

	reg := testutil.OpenRegister(t, env, ctx)
	pay, err := env.TuitionSvc.RegisterPayment(ctx, tuition.NewPayment{
		InstallmentID: installments[ana.ID][1].ID, Amount: testutil.Dec("10000"), Method: "cash",
		Tendered: testutil.Dec("10000"), CashRegisterID: &reg.ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pay.ReceiptNumber)

	t.Run("late fees", func(t *testing.T) {
		updated, err := env.TuitionSvc.ApplyLateFees(ctx, today)
		require.NoError(t, err)
		require.Len(t, updated, 2, "both February installments")
		for _, inst := range updated {
			assert.Equal(t, 33, inst.DaysLate)
			assert.Equal(t, "10530", inst.Remaining().String())
		}
	})

	t.Run("checkout rollback", func(t *testing.T) {
		p := testutil.CreateProduct(t, env, ctx, "500", 3, 2)
		_, err := env.SalesSvc.Checkout(ctx, sales.Cart{
			Lines: []sales.CartLine{{ProductID: p.ID, Quantity: 4}}, Method: "cash", CashRegisterID: &reg.ID,
		})
		assert.Equal(t, inventory.ErrInsufficientStock, testutil.Cause(err))
		p, err = env.InventorySvc.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, p.Stock)

		rcpt, err := env.SalesSvc.Checkout(ctx, sales.Cart{
			Lines: []sales.CartLine{{ProductID: p.ID, Quantity: 1}}, Method: "cash",
			Tendered: testutil.Dec("500"), CashRegisterID: &reg.ID,
		})
		require.NoError(t, err)
		require.Len(t, rcpt.Items, 1)

		r, err := env.CashierSvc.Get(ctx, reg.ID)
		require.NoError(t, err)
		assert.Equal(t, "10500", r.TotalIn.String())

		other := testutil.CreateProduct(t, env, ctx, "200", 5, 1)
		_, err = sqlxrepos.NewSalesRepository(env.SQL).CreateItem(ctx, sales.Item{
			SaleID: rcpt.ID, ProductID: other.ID, Quantity: 2, UnitPrice: testutil.Dec("200"), Total: testutil.Dec("500"),
		})
		assert.Error(t, err, "the item total check rejects 2 x 200 = 500")
	})

	t.Run("template constraints", func(t *testing.T) {
		repo := sqlxrepos.NewTuitionRepository(env.SQL)
		_, err := repo.CreateTemplate(ctx, tuition.InstallmentTemplate{
			PlanID: plan.ID, Number: 9, Name: "Copy", Amount: testutil.Dec("1"), DueDay: 10, Month: 2,
		})
		require.True(t, core.IsValidationError(err), "err = %v", err)
		assert.Equal(t, "month", err.(*core.ValidationError).Fields[0].Field)

		_, err = repo.CreateTemplate(ctx, tuition.InstallmentTemplate{
			PlanID: plan.ID, Number: 9, Name: "Late", Amount: testutil.Dec("1"), DueDay: 30, Month: 9,
		})
		assert.Error(t, err, "due day is capped at 28")
	})

	t.Run("qualifications and documents", func(t *testing.T) {
		_, err := sqlxrepos.NewAcademicRepository(env.SQL).CreateTeacherSubject(ctx, academic.TeacherSubject{
			TeacherID: s.Teacher.ID, SubjectID: s.Subject.ID, Level: academic.LevelMaster, IsActive: true,
		})
		require.True(t, core.IsValidationError(err), "err = %v", err)
		assert.Equal(t, "subject_id", err.(*core.ValidationError).Fields[0].Field)

		slot, err := env.AcademicSvc.AddSlot(ctx, academic.NewTimetableSlot{
			SectionID: s.Section.ID, SubjectID: s.Subject.ID, TeacherID: s.Teacher.ID,
			Weekday: 2, StartsAt: "07:30", EndsAt: "08:15",
		})
		require.NoError(t, err)
		assert.Equal(t, 45, slot.Duration())

		doc, err := env.PeopleSvc.IssueDocument(ctx, ana.StudentID, people.NewStudentDocument{Kind: "certificate", Number: "C-1"})
		require.NoError(t, err)
		_, err = sqlxrepos.NewPeopleRepository(env.SQL).CreateDocument(ctx, people.StudentDocument{
			StudentID: beto.StudentID, Kind: "certificate", Number: "C-1", IssuedOn: today, IsValid: true, CreatedAt: today,
		})
		require.True(t, core.IsValidationError(err), "err = %v", err)
		assert.Equal(t, "number", err.(*core.ValidationError).Fields[0].Field)

		doc, err = env.PeopleSvc.InvalidateDocument(ctx, doc.ID, "lost")
		require.NoError(t, err)
		docs, err := env.PeopleSvc.Documents(ctx, ana.StudentID)
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, doc.ID, docs[0].ID)
		assert.False(t, docs[0].IsValid)
		assert.Equal(t, "lost", docs[0].InvalidationReason)
	})

	t.Run("reports", func(t *testing.T) {
		d, err := env.ReportSvc.Dashboard(ctx, today)
		require.NoError(t, err)
		assert.Equal(t, 2, d.ActiveStudents)
		assert.Equal(t, 1, d.ActiveTeachers)
		assert.Equal(t, 1, d.OpenSections)
		assert.Equal(t, "50", d.AverageOccupancy.String())
		assert.Equal(t, "10500", d.MonthRevenue.String())
		assert.Equal(t, 3, d.OverdueInstallments)
		assert.Equal(t, 1, d.RestockProducts)

		mf, err := env.ReportSvc.MonthlyFinance(ctx, 2025, time.March)
		require.NoError(t, err)
		assert.Equal(t, "20000", mf.Expected.String())
		assert.Equal(t, "10000", mf.Received.String())
	})

	t.Run("audit", func(t *testing.T) {
		entries, err := env.AuditSvc.Query(ctx, &audit.QueryFilter{Module: string(core.ModuleSales)}, nil)
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		for _, e := range entries {
			assert.Equal(t, s.Admin.ID, e.UserID)
		}
	})
}
