package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/people"
	"github.com/somabem/erp/core/report"
	"github.com/somabem/erp/core/sales"
	"github.com/somabem/erp/core/tuition"
)

type reportRepository struct {
	db *gorm.DB
}

var _ report.Repository = (*reportRepository)(nil) // interface compliance check

func NewReportRepository(db *gorm.DB) *reportRepository {
	return &reportRepository{db: db}
}

func (repo reportRepository) count(ctx context.Context, msg, query string, args ...interface{}) (int, error) {
	var n int64
	err := repo.db.WithContext(ctx).Raw(query, args...).Row().Scan(&n)
	return int(n), errors.Wrap(err, msg)
}

func (repo reportRepository) sum(ctx context.Context, msg, query string, args ...interface{}) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := repo.db.WithContext(ctx).Raw(query, args...).Row().Scan(&total); err != nil {
		return decimal.Zero, errors.Wrap(err, msg)
	}
	return total, nil
}

func (repo reportRepository) CountActiveStudents(ctx context.Context) (int, error) {
	return repo.count(ctx, "counting active students",
		"SELECT COUNT(*) FROM students WHERE status = ?", people.StudentActive)
}

func (repo reportRepository) CountActiveTeachers(ctx context.Context) (int, error) {
	return repo.count(ctx, "counting active teachers",
		"SELECT COUNT(*) FROM teachers WHERE status = ?", people.StaffActive)
}

func (repo reportRepository) SectionLoads(ctx context.Context) ([]report.SectionLoad, error) {
	loads := make([]report.SectionLoad, 0)
	err := repo.db.WithContext(ctx).Raw(`
		SELECT cs.id AS section_id, cs.capacity, COUNT(e.id) AS active
		FROM class_sections cs
		JOIN academic_years ay ON ay.id = cs.academic_year_id AND ay.is_active
		LEFT JOIN enrollments e ON e.section_id = cs.id AND e.status = ?
		WHERE cs.is_active
		GROUP BY cs.id, cs.capacity`, enrollment.StatusActive).Scan(&loads).Error
	return loads, errors.Wrap(err, "querying section loads")
}

func (repo reportRepository) Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return repo.sum(ctx, "summing revenue", `
		SELECT
			(SELECT COALESCE(SUM(amount), 0) FROM payments WHERE NOT reversed AND posted_on >= ? AND posted_on < ?) +
			(SELECT COALESCE(SUM(paid), 0) FROM sales WHERE status <> ? AND sold_at >= ? AND sold_at < ?)`,
		from, to, sales.StatusCancelled, from, to)
}

func (repo reportRepository) CountOverdue(ctx context.Context, day time.Time) (int, error) {
	return repo.count(ctx, "counting overdue installments",
		"SELECT COUNT(*) FROM installments WHERE status = ? AND due_date < ?", tuition.StatusPending, day)
}

func (repo reportRepository) CountRestock(ctx context.Context) (int, error) {
	return repo.count(ctx, "counting products to restock",
		"SELECT COUNT(*) FROM products WHERE is_active AND track_stock AND stock <= min_stock")
}

func (repo reportRepository) Expected(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return repo.sum(ctx, "summing expected tuition", `
		SELECT COALESCE(SUM(value_after_discount + interest + penalty), 0)
		FROM installments
		WHERE status NOT IN (?, ?) AND due_date >= ? AND due_date < ?`,
		tuition.StatusCancelled, tuition.StatusExempt, from, to)
}

func (repo reportRepository) Received(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return repo.sum(ctx, "summing received tuition",
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE NOT reversed AND posted_on >= ? AND posted_on < ?",
		from, to)
}

func (repo reportRepository) ActiveStudents(ctx context.Context, academicYearID string) ([]report.ActiveStudent, error) {
	q := repo.db.WithContext(ctx).
		Table("enrollments e").
		Select(`e.id AS enrollment_id, e.student_id, s.code AS student_code, p.full_name AS name,
			g.name AS grade, cs.name AS section, e.academic_year_id, e.tuition_fee, e.amount_paid`).
		Joins("JOIN students s ON s.person_id = e.student_id").
		Joins("JOIN persons p ON p.id = e.student_id").
		Joins("JOIN class_sections cs ON cs.id = e.section_id").
		Joins("JOIN grades g ON g.id = cs.grade_id").
		Where("e.status = ?", enrollment.StatusActive)
	if academicYearID != "" {
		q = q.Where("e.academic_year_id = ?", academicYearID)
	}

	students := make([]report.ActiveStudent, 0)
	err := q.Order("g.sort_order, cs.name, p.full_name").Scan(&students).Error
	return students, errors.Wrap(err, "querying active students")
}
