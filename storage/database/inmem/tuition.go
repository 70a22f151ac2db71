package inmemdb

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/institution"
	"github.com/somabem/erp/core/tuition"
)

type tuitionRepository struct {
	db *DB
}

var _ tuition.Repository = (*tuitionRepository)(nil) // interface compliance check

func NewTuitionRepository(db *DB) *tuitionRepository {
	return &tuitionRepository{db: db}
}

func (repo *tuitionRepository) PlanNameExists(_ context.Context, yearID, gradeID, name string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.plans.exists(func(p tuition.PaymentPlan) bool {
		return p.AcademicYearID == yearID && p.GradeID == gradeID && strings.EqualFold(p.Name, name)
	}), nil
}

func (repo *tuitionRepository) CreatePlan(_ context.Context, p tuition.PaymentPlan, _ ...core.DBExecutor) (tuition.PaymentPlan, error) {
	p.ID = uuid.NewString()
	repo.db.plans.insert(p.ID, p)
	return p, nil
}

func (repo *tuitionRepository) GetPlan(_ context.Context, id string, _ ...core.DBExecutor) (tuition.PaymentPlan, error) {
	if p, ok := repo.db.plans.get(id); ok {
		return p, nil
	}
	return tuition.PaymentPlan{}, tuition.ErrPlanNotFound
}

func (repo *tuitionRepository) QueryPlans(_ context.Context, yearID string, _ ...core.DBExecutor) ([]tuition.PaymentPlan, error) {
	plans := repo.db.plans.filter(func(p tuition.PaymentPlan) bool { return p.AcademicYearID == yearID })
	return sortBy(plans, func(a, b tuition.PaymentPlan) bool { return a.Name < b.Name }), nil
}

func (repo *tuitionRepository) CreateTemplate(_ context.Context, t tuition.InstallmentTemplate, _ ...core.DBExecutor) (tuition.InstallmentTemplate, error) {
	if t.DueDay < 1 || t.DueDay > 28 {
		return tuition.InstallmentTemplate{}, core.NewFieldError("due_day", "must be between 1 and 28")
	}
	if t.Month < 1 || t.Month > 12 {
		return tuition.InstallmentTemplate{}, core.NewFieldError("month", "must be between 1 and 12")
	}
	for _, o := range repo.db.templates.filter(func(o tuition.InstallmentTemplate) bool { return o.PlanID == t.PlanID }) {
		switch {
		case o.Number == t.Number:
			return tuition.InstallmentTemplate{}, core.NewUniqueViolation("number")
		case o.Month == t.Month:
			return tuition.InstallmentTemplate{}, core.NewUniqueViolation("month")
		}
	}
	t.ID = uuid.NewString()
	repo.db.templates.insert(t.ID, t)
	return t, nil
}

func (repo *tuitionRepository) QueryTemplates(_ context.Context, planID string, _ ...core.DBExecutor) ([]tuition.InstallmentTemplate, error) {
	templates := repo.db.templates.filter(func(t tuition.InstallmentTemplate) bool { return t.PlanID == planID })
	return sortBy(templates, func(a, b tuition.InstallmentTemplate) bool { return a.Number < b.Number }), nil
}

func (repo *tuitionRepository) CreateInstallment(_ context.Context, i tuition.Installment, _ ...core.DBExecutor) (tuition.Installment, error) {
	if i.AmountPaid.GreaterThan(i.Owed()) {
		return tuition.Installment{}, core.NewFieldError("amount_paid", "amount paid exceeds what is owed")
	}
	i.ID = uuid.NewString()
	repo.db.installments.insert(i.ID, i)
	return i, nil
}

func (repo *tuitionRepository) GetInstallment(_ context.Context, id string, _ ...core.DBExecutor) (tuition.Installment, error) {
	if i, ok := repo.db.installments.get(id); ok {
		return i, nil
	}
	return tuition.Installment{}, tuition.ErrInstallmentNotFound
}

func (repo *tuitionRepository) LockInstallment(ctx context.Context, id string, _ ...core.DBExecutor) (tuition.Installment, error) {
	return repo.GetInstallment(ctx, id)
}

func (repo *tuitionRepository) QueryInstallments(_ context.Context, filter tuition.InstallmentFilter, _ ...core.DBExecutor) ([]tuition.Installment, error) {
	installments := repo.db.installments.filter(func(i tuition.Installment) bool {
		return (filter.EnrollmentID == "" || i.EnrollmentID == filter.EnrollmentID) &&
			(filter.Status == "" || i.Status == filter.Status) &&
			(filter.DueBefore.IsZero() || i.DueDate.Before(core.DateOf(filter.DueBefore)))
	})
	return sortBy(installments, func(a, b tuition.Installment) bool {
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.Number < b.Number
	}), nil
}

func (repo *tuitionRepository) UpdateInstallment(_ context.Context, i tuition.Installment, _ ...core.DBExecutor) (tuition.Installment, error) {
	if i.AmountPaid.GreaterThan(i.Owed()) {
		return tuition.Installment{}, core.NewFieldError("amount_paid", "amount paid exceeds what is owed")
	}
	if !repo.db.installments.update(i.ID, i) {
		return tuition.Installment{}, tuition.ErrInstallmentNotFound
	}
	return i, nil
}

func (repo *tuitionRepository) QueryLateInstallments(_ context.Context, day time.Time, _ ...core.DBExecutor) ([]tuition.LateInstallment, error) {
	day = core.DateOf(day)
	late := make([]tuition.LateInstallment, 0)
	for _, i := range repo.db.installments.filter(func(i tuition.Installment) bool {
		return (i.Status == tuition.StatusPending || i.Status == tuition.StatusPartial) && i.DueDate.Before(day)
	}) {
		e, ok := repo.db.enrollments.get(i.EnrollmentID)
		if !ok {
			continue
		}
		ay, ok := repo.db.years.get(e.AcademicYearID)
		if !ok {
			continue
		}
		late = append(late, tuition.LateInstallment{Installment: i, InstitutionID: ay.InstitutionID})
	}
	return sortBy(late, func(a, b tuition.LateInstallment) bool { return a.DueDate.Before(b.DueDate) }), nil
}

func (repo *tuitionRepository) CreatePayment(_ context.Context, p tuition.Payment, _ ...core.DBExecutor) (tuition.Payment, error) {
	if repo.db.payments.exists(func(o tuition.Payment) bool { return o.ReceiptNumber == p.ReceiptNumber }) {
		return tuition.Payment{}, core.NewUniqueViolation("receipt_number")
	}
	p.ID = uuid.NewString()
	repo.db.payments.insert(p.ID, p)
	return p, nil
}

func (repo *tuitionRepository) GetPayment(_ context.Context, id string, _ ...core.DBExecutor) (tuition.Payment, error) {
	if p, ok := repo.db.payments.get(id); ok {
		return p, nil
	}
	return tuition.Payment{}, tuition.ErrPaymentNotFound
}

func (repo *tuitionRepository) QueryPayments(_ context.Context, filter tuition.PaymentFilter, _ ...core.DBExecutor) ([]tuition.Payment, error) {
	payments := repo.db.payments.filter(filter.Matches)
	return sortBy(payments, func(a, b tuition.Payment) bool {
		if !a.PostedOn.Equal(b.PostedOn) {
			return a.PostedOn.Before(b.PostedOn)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}), nil
}

func (repo *tuitionRepository) UpdatePayment(_ context.Context, p tuition.Payment, _ ...core.DBExecutor) (tuition.Payment, error) {
	if !repo.db.payments.update(p.ID, p) {
		return tuition.Payment{}, tuition.ErrPaymentNotFound
	}
	return p, nil
}

func (repo *tuitionRepository) GetEnrollment(_ context.Context, id string, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	return repo.db.getEnrollment(id)
}

func (repo *tuitionRepository) UpdateEnrollment(_ context.Context, e enrollment.Enrollment, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	return repo.db.updateEnrollment(e)
}

func (repo *tuitionRepository) GetYear(_ context.Context, id string, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	return repo.db.getYear(id)
}

func (repo *tuitionRepository) GetSettings(_ context.Context, institutionID string, _ ...core.DBExecutor) (institution.Settings, error) {
	return repo.db.getSettings(institutionID)
}
