package sqlxrepos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/institution"
	"github.com/somabem/erp/core/tuition"
)

var (
	planColumns = columns{
		"id", "academic_year_id", "grade_id", "name", "kind", "billing_cycle", "total_amount", "enrollment_fee",
		"installments", "upfront_discount_pct", "sibling_discount_pct", "staff_discount_pct", "is_active", "created_at",
	}
	templateColumns = columns{
		"id", "plan_id", "number", "name", "amount", "percentage", "due_day", "month", "includes_tuition",
		"includes_meals", "includes_transport", "includes_material", "includes_uniform", "includes_activities",
	}
	installmentColumns = columns{
		"id", "enrollment_id", "template_id", "number", "name", "month", "year", "original_value", "discount_pct",
		"discount_value", "value_after_discount", "amount_paid", "due_date", "paid_on", "interest", "penalty",
		"days_late", "status",
	}
	paymentColumns = columns{
		"id", "student_id", "installment_id", "guardian_id", "receipt_number", "reference", "amount", "change",
		"method", "details", "posted_on", "received_by", "cash_register_id", "reversed", "reversed_on",
		"reversal_reason", "created_at",
	}
)

type tuitionRepository struct {
	repository
}

var _ tuition.Repository = (*tuitionRepository)(nil) // interface compliance check

func NewTuitionRepository(db *sqlx.DB) *tuitionRepository {
	return &tuitionRepository{repository{db: db}}
}

func (repo tuitionRepository) PlanNameExists(ctx context.Context, yearID, gradeID, name string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec),
		"SELECT 1 FROM payment_plans WHERE academic_year_id = $1 AND grade_id = $2 AND lower(name) = lower($3)",
		yearID, gradeID, name)
	return ok, errors.Wrap(err, "checking payment plan name")
}

func (repo tuitionRepository) CreatePlan(ctx context.Context, p tuition.PaymentPlan, exec ...core.DBExecutor) (tuition.PaymentPlan, error) {
	p.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), planColumns.insert("payment_plans"), p); err != nil {
		return tuition.PaymentPlan{}, trapUniqueErr(err, "inserting payment plan")
	}
	return p, nil
}

func (repo tuitionRepository) GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (tuition.PaymentPlan, error) {
	if !validID(id) {
		return tuition.PaymentPlan{}, tuition.ErrPlanNotFound
	}
	var p tuition.PaymentPlan
	err := sqlx.GetContext(ctx, repo.getExec(exec), &p, planColumns.selectFrom("payment_plans")+" WHERE id = $1", id)
	if err != nil {
		return tuition.PaymentPlan{}, trapNoRowsErr(err, tuition.ErrPlanNotFound, "getting payment plan")
	}
	return p, nil
}

func (repo tuitionRepository) QueryPlans(ctx context.Context, yearID string, exec ...core.DBExecutor) ([]tuition.PaymentPlan, error) {
	plans := make([]tuition.PaymentPlan, 0)
	if !validID(yearID) {
		return plans, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &plans,
		planColumns.selectFrom("payment_plans")+" WHERE academic_year_id = $1 ORDER BY name", yearID)
	return plans, errors.Wrap(err, "querying payment plans")
}

func (repo tuitionRepository) CreateTemplate(ctx context.Context, t tuition.InstallmentTemplate, exec ...core.DBExecutor) (tuition.InstallmentTemplate, error) {
	t.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), templateColumns.insert("installment_templates"), t); err != nil {
		return tuition.InstallmentTemplate{}, trapUniqueErr(err, "inserting installment template")
	}
	return t, nil
}

func (repo tuitionRepository) QueryTemplates(ctx context.Context, planID string, exec ...core.DBExecutor) ([]tuition.InstallmentTemplate, error) {
	tmpls := make([]tuition.InstallmentTemplate, 0)
	if !validID(planID) {
		return tmpls, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &tmpls,
		templateColumns.selectFrom("installment_templates")+" WHERE plan_id = $1 ORDER BY number", planID)
	return tmpls, errors.Wrap(err, "querying installment templates")
}

func (repo tuitionRepository) CreateInstallment(ctx context.Context, i tuition.Installment, exec ...core.DBExecutor) (tuition.Installment, error) {
	i.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), installmentColumns.insert("installments"), i); err != nil {
		return tuition.Installment{}, trapUniqueErr(err, "inserting installment")
	}
	return i, nil
}

func (repo tuitionRepository) getInstallment(ctx context.Context, id string, lock bool, exec []core.DBExecutor) (tuition.Installment, error) {
	if !validID(id) {
		return tuition.Installment{}, tuition.ErrInstallmentNotFound
	}
	q := installmentColumns.selectFrom("installments") + " WHERE id = $1"
	if lock {
		q += " FOR UPDATE"
	}
	var i tuition.Installment
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &i, q, id); err != nil {
		return tuition.Installment{}, trapNoRowsErr(err, tuition.ErrInstallmentNotFound, "getting installment")
	}
	return i, nil
}

func (repo tuitionRepository) GetInstallment(ctx context.Context, id string, exec ...core.DBExecutor) (tuition.Installment, error) {
	return repo.getInstallment(ctx, id, false, exec)
}

func (repo tuitionRepository) LockInstallment(ctx context.Context, id string, exec ...core.DBExecutor) (tuition.Installment, error) {
	return repo.getInstallment(ctx, id, true, exec)
}

func (repo tuitionRepository) QueryInstallments(ctx context.Context, filter tuition.InstallmentFilter, exec ...core.DBExecutor) ([]tuition.Installment, error) {
	insts := make([]tuition.Installment, 0)
	var w where
	if filter.EnrollmentID != "" {
		if !validID(filter.EnrollmentID) {
			return insts, nil
		}
		w.add("enrollment_id = ?", filter.EnrollmentID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	if !filter.DueBefore.IsZero() {
		w.add("due_date < ?", core.DateOf(filter.DueBefore))
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &insts,
		installmentColumns.selectFrom("installments")+w.String()+" ORDER BY due_date, number", w.args...)
	return insts, errors.Wrap(err, "querying installments")
}

func (repo tuitionRepository) UpdateInstallment(ctx context.Context, i tuition.Installment, exec ...core.DBExecutor) (tuition.Installment, error) {
	if err := namedExec(ctx, repo.getExec(exec), installmentColumns.update("installments"), i); err != nil {
		return tuition.Installment{}, trapNoRowsErr(err, tuition.ErrInstallmentNotFound, "updating installment")
	}
	return i, nil
}

func (repo tuitionRepository) QueryLateInstallments(ctx context.Context, day time.Time, exec ...core.DBExecutor) ([]tuition.LateInstallment, error) {
	late := make([]tuition.LateInstallment, 0)
	q := fmt.Sprintf(`SELECT %s, ay.institution_id
		FROM installments i
		JOIN enrollments e ON e.id = i.enrollment_id
		JOIN academic_years ay ON ay.id = e.academic_year_id
		WHERE i.status IN ($1, $2) AND i.due_date < $3
		ORDER BY i.due_date
		FOR UPDATE OF i`, prefixed("i", installmentColumns))
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &late, q, tuition.StatusPending, tuition.StatusPartial, core.DateOf(day))
	return late, errors.Wrap(err, "querying late installments")
}

func (repo tuitionRepository) CreatePayment(ctx context.Context, p tuition.Payment, exec ...core.DBExecutor) (tuition.Payment, error) {
	p.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), paymentColumns.insert("payments"), p); err != nil {
		return tuition.Payment{}, trapUniqueErr(err, "inserting payment")
	}
	return p, nil
}

func (repo tuitionRepository) GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (tuition.Payment, error) {
	if !validID(id) {
		return tuition.Payment{}, tuition.ErrPaymentNotFound
	}
	var p tuition.Payment
	err := sqlx.GetContext(ctx, repo.getExec(exec), &p, paymentColumns.selectFrom("payments")+" WHERE id = $1", id)
	if err != nil {
		return tuition.Payment{}, trapNoRowsErr(err, tuition.ErrPaymentNotFound, "getting payment")
	}
	return p, nil
}

func (repo tuitionRepository) QueryPayments(ctx context.Context, filter tuition.PaymentFilter, exec ...core.DBExecutor) ([]tuition.Payment, error) {
	payments := make([]tuition.Payment, 0)
	var w where
	for col, id := range map[string]string{
		"student_id":     filter.StudentID,
		"installment_id": filter.InstallmentID,
	} {
		if id == "" {
			continue
		}
		if !validID(id) {
			return payments, nil
		}
		w.add(col+" = ?", id)
	}
	if !filter.From.IsZero() {
		w.add("posted_on >= ?", core.DateOf(filter.From))
	}
	if !filter.To.IsZero() {
		w.add("posted_on <= ?", core.DateOf(filter.To))
	}
	if !filter.IncludeReversed {
		w.add("NOT reversed")
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &payments,
		paymentColumns.selectFrom("payments")+w.String()+" ORDER BY posted_on, created_at", w.args...)
	return payments, errors.Wrap(err, "querying payments")
}

func (repo tuitionRepository) UpdatePayment(ctx context.Context, p tuition.Payment, exec ...core.DBExecutor) (tuition.Payment, error) {
	if err := namedExec(ctx, repo.getExec(exec), paymentColumns.update("payments"), p); err != nil {
		return tuition.Payment{}, trapNoRowsErr(err, tuition.ErrPaymentNotFound, "updating payment")
	}
	return p, nil
}

func (repo tuitionRepository) GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	return getEnrollment(ctx, repo.getExec(exec), id)
}

func (repo tuitionRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	return updateEnrollment(ctx, repo.getExec(exec), e)
}

func (repo tuitionRepository) GetYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	return getYear(ctx, repo.getExec(exec), id)
}

func (repo tuitionRepository) GetSettings(ctx context.Context, institutionID string, exec ...core.DBExecutor) (institution.Settings, error) {
	return getSettings(ctx, repo.getExec(exec), institutionID)
}
