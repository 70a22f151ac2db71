package inmemdb

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/inventory"
	"github.com/somabem/erp/core/people"
	"github.com/somabem/erp/core/report"
	"github.com/somabem/erp/core/sales"
	"github.com/somabem/erp/core/tuition"
)

type reportRepository struct {
	db *DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *DB) *reportRepository {
	return &reportRepository{db: db}
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (repo *reportRepository) CountActiveStudents(_ context.Context) (int, error) {
	return len(repo.db.students.filter(func(s people.Student) bool { return s.Status == people.StudentActive })), nil
}

func (repo *reportRepository) CountActiveTeachers(_ context.Context) (int, error) {
	return len(repo.db.teachers.filter(func(t people.Teacher) bool { return t.Status == people.StaffActive })), nil
}

func (repo *reportRepository) SectionLoads(_ context.Context) ([]report.SectionLoad, error) {
	loads := make([]report.SectionLoad, 0)
	for _, cs := range repo.db.sections.filter(func(cs academic.ClassSection) bool { return cs.IsActive }) {
		if ay, ok := repo.db.years.get(cs.AcademicYearID); !ok || !ay.IsActive {
			continue
		}
		loads = append(loads, report.SectionLoad{
			SectionID: cs.ID,
			Capacity:  cs.Capacity,
			Active:    repo.db.countActiveEnrollments(cs.ID),
		})
	}
	return loads, nil
}

func (repo *reportRepository) Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	total, _ := repo.Received(ctx, from, to)
	for _, s := range repo.db.sales.filter(func(s sales.Sale) bool {
		return s.Status != sales.StatusCancelled && within(s.SoldAt, from, to)
	}) {
		total = total.Add(s.Paid)
	}
	return total, nil
}

func (repo *reportRepository) CountOverdue(_ context.Context, day time.Time) (int, error) {
	return len(repo.db.installments.filter(func(i tuition.Installment) bool { return i.IsOverdue(day) })), nil
}

func (repo *reportRepository) CountRestock(_ context.Context) (int, error) {
	return len(repo.db.products.filter(func(p inventory.Product) bool { return p.IsActive && p.NeedsRestock() })), nil
}

func (repo *reportRepository) Expected(_ context.Context, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, i := range repo.db.installments.filter(func(i tuition.Installment) bool {
		return i.Status != tuition.StatusCancelled && i.Status != tuition.StatusExempt && within(i.DueDate, from, to)
	}) {
		total = total.Add(i.Owed())
	}
	return total, nil
}

func (repo *reportRepository) Received(_ context.Context, from, to time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, p := range repo.db.payments.filter(func(p tuition.Payment) bool { return !p.Reversed && within(p.PostedOn, from, to) }) {
		total = total.Add(p.Amount)
	}
	return total, nil
}

func (repo *reportRepository) ActiveStudents(_ context.Context, academicYearID string) ([]report.ActiveStudent, error) {
	type row struct {
		report.ActiveStudent
		gradeOrder int
	}
	rows := make([]row, 0)
	for _, e := range repo.db.enrollments.filter(func(e enrollment.Enrollment) bool {
		return e.Status == enrollment.StatusActive && (academicYearID == "" || e.AcademicYearID == academicYearID)
	}) {
		s, ok1 := repo.db.students.get(e.StudentID)
		p, ok2 := repo.db.persons.get(e.StudentID)
		cs, ok3 := repo.db.sections.get(e.SectionID)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		g, ok := repo.db.grades.get(cs.GradeID)
		if !ok {
			continue
		}
		rows = append(rows, row{
			ActiveStudent: report.ActiveStudent{
				EnrollmentID:   e.ID,
				StudentID:      e.StudentID,
				StudentCode:    s.Code,
				Name:           p.FullName,
				Grade:          g.Name,
				Section:        cs.Name,
				AcademicYearID: e.AcademicYearID,
				TuitionFee:     e.TuitionFee,
				AmountPaid:     e.AmountPaid,
			},
			gradeOrder: g.Order,
		})
	}
	sortBy(rows, func(a, b row) bool {
		if a.gradeOrder != b.gradeOrder {
			return a.gradeOrder < b.gradeOrder
		}
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		return a.Name < b.Name
	})
	students := make([]report.ActiveStudent, len(rows))
	for i, r := range rows {
		students[i] = r.ActiveStudent
	}
	return students, nil
}
