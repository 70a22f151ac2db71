package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/people"
)

var enrollmentColumns = columns{
	"id", "student_id", "academic_year_id", "section_id", "number", "enrolled_on", "status", "payment_plan_id",
	"discount_kind", "tuition_fee", "amount_paid", "notes", "created_at", "updated_at",
}

type enrollmentRepository struct {
	repository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) *enrollmentRepository {
	return &enrollmentRepository{repository{db: db}}
}

func (repo enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	e.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), enrollmentColumns.insert("enrollments"), e); err != nil {
		return enrollment.Enrollment{}, trapUniqueErr(err, "inserting enrollment")
	}
	return e, nil
}

func (repo enrollmentRepository) GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	return getEnrollment(ctx, repo.getExec(exec), id)
}

func getEnrollment(ctx context.Context, exec sqlx.ExtContext, id string) (enrollment.Enrollment, error) {
	if !validID(id) {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	var e enrollment.Enrollment
	err := sqlx.GetContext(ctx, exec, &e, enrollmentColumns.selectFrom("enrollments")+" WHERE id = $1", id)
	if err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "getting enrollment")
	}
	return e, nil
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, filter enrollment.QueryFilter, exec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	enrollments := make([]enrollment.Enrollment, 0)
	var w where
	for col, id := range map[string]string{
		"student_id":       filter.StudentID,
		"academic_year_id": filter.AcademicYearID,
		"section_id":       filter.SectionID,
	} {
		if id == "" {
			continue
		}
		if !validID(id) {
			return enrollments, nil
		}
		w.add(col+" = ?", id)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &enrollments,
		enrollmentColumns.selectFrom("enrollments")+w.String()+" ORDER BY enrolled_on, number", w.args...)
	return enrollments, errors.Wrap(err, "querying enrollments")
}

func (repo enrollmentRepository) UpdateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error) {
	return updateEnrollment(ctx, repo.getExec(exec), e)
}

func updateEnrollment(ctx context.Context, exec sqlx.ExtContext, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	if err := namedExec(ctx, exec, enrollmentColumns.update("enrollments"), e); err != nil {
		return enrollment.Enrollment{}, trapNoRowsErr(err, enrollment.ErrNotFound, "updating enrollment")
	}
	return e, nil
}

func (repo enrollmentRepository) StudentYearExists(ctx context.Context, studentID, yearID string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec),
		"SELECT 1 FROM enrollments WHERE student_id = $1 AND academic_year_id = $2 AND status <> $3",
		studentID, yearID, enrollment.StatusCancelled)
	return ok, errors.Wrap(err, "checking student enrollment")
}

// NextNumber serializes the numbering of a year's enrollments with a transaction-scoped advisory lock.
func (repo enrollmentRepository) NextNumber(ctx context.Context, yearID string, exec ...core.DBExecutor) (int, error) {
	e := repo.getExec(exec)
	if _, err := e.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", yearID); err != nil {
		return 0, errors.Wrap(err, "locking enrollment numbering")
	}
	n, err := count(ctx, e, "SELECT COUNT(*) + 1 FROM enrollments WHERE academic_year_id = $1", yearID)
	return n, errors.Wrap(err, "counting enrollments")
}

func (repo enrollmentRepository) CountActive(ctx context.Context, sectionID string, exec ...core.DBExecutor) (int, error) {
	return countActiveEnrollments(ctx, repo.getExec(exec), sectionID)
}

func (repo enrollmentRepository) GetStudent(ctx context.Context, personID string, exec ...core.DBExecutor) (people.Student, error) {
	return getStudent(ctx, repo.getExec(exec), personID)
}

func (repo enrollmentRepository) GetYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	return getYear(ctx, repo.getExec(exec), id)
}

func (repo enrollmentRepository) LockSection(ctx context.Context, id string, exec ...core.DBExecutor) (academic.ClassSection, error) {
	return getSection(ctx, repo.getExec(exec), id, true)
}
