package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/people"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) CreateEnrollment(ctx context.Context, e enrollment.Enrollment, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	if e.Status != enrollment.StatusCancelled {
		if ok, _ := repo.StudentYearExists(ctx, e.StudentID, e.AcademicYearID); ok {
			return enrollment.Enrollment{}, core.NewUniqueViolation("student_year")
		}
	}
	if repo.db.enrollments.exists(func(o enrollment.Enrollment) bool { return o.Number == e.Number }) {
		return enrollment.Enrollment{}, core.NewUniqueViolation("number")
	}
	e.ID = uuid.NewString()
	repo.db.enrollments.insert(e.ID, e)
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, id string, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	return repo.db.getEnrollment(id)
}

func (db *DB) getEnrollment(id string) (enrollment.Enrollment, error) {
	if e, ok := db.enrollments.get(id); ok {
		return e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, filter enrollment.QueryFilter, _ ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	enrollments := repo.db.enrollments.filter(func(e enrollment.Enrollment) bool {
		return (filter.StudentID == "" || e.StudentID == filter.StudentID) &&
			(filter.AcademicYearID == "" || e.AcademicYearID == filter.AcademicYearID) &&
			(filter.SectionID == "" || e.SectionID == filter.SectionID) &&
			(filter.Status == "" || e.Status == filter.Status)
	})
	return sortBy(enrollments, func(a, b enrollment.Enrollment) bool {
		if !a.EnrolledOn.Equal(b.EnrolledOn) {
			return a.EnrolledOn.Before(b.EnrolledOn)
		}
		return a.Number < b.Number
	}), nil
}

func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, e enrollment.Enrollment, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	return repo.db.updateEnrollment(e)
}

func (db *DB) updateEnrollment(e enrollment.Enrollment) (enrollment.Enrollment, error) {
	if !db.enrollments.update(e.ID, e) {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return e, nil
}

func (repo *enrollmentRepository) StudentYearExists(_ context.Context, studentID, yearID string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.enrollments.exists(func(e enrollment.Enrollment) bool {
		return e.StudentID == studentID && e.AcademicYearID == yearID && e.Status != enrollment.StatusCancelled
	}), nil
}

func (repo *enrollmentRepository) NextNumber(_ context.Context, yearID string, _ ...core.DBExecutor) (int, error) {
	n := len(repo.db.enrollments.filter(func(e enrollment.Enrollment) bool { return e.AcademicYearID == yearID }))
	return n + 1, nil
}

func (repo *enrollmentRepository) CountActive(_ context.Context, sectionID string, _ ...core.DBExecutor) (int, error) {
	return repo.db.countActiveEnrollments(sectionID), nil
}

func (repo *enrollmentRepository) GetStudent(_ context.Context, personID string, _ ...core.DBExecutor) (people.Student, error) {
	return repo.db.getStudent(personID)
}

func (repo *enrollmentRepository) GetYear(_ context.Context, id string, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	return repo.db.getYear(id)
}

// LockSection needs no lock: the in-memory transactions already run one at a time.
func (repo *enrollmentRepository) LockSection(_ context.Context, id string, _ ...core.DBExecutor) (academic.ClassSection, error) {
	return repo.db.getSection(id)
}
