package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/grading"
	"github.com/somabem/erp/core/institution"
)

type gradingRepository struct {
	db *DB
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *DB) *gradingRepository {
	return &gradingRepository{db: db}
}

func (repo *gradingRepository) CreateMark(_ context.Context, m grading.Mark, _ ...core.DBExecutor) (grading.Mark, error) {
	m.ID = uuid.NewString()
	repo.db.marks.insert(m.ID, m)
	return m, nil
}

func (repo *gradingRepository) QueryMarks(_ context.Context, filter grading.MarkFilter, _ ...core.DBExecutor) ([]grading.Mark, error) {
	return sortBy(repo.db.marks.filter(filter.Matches), func(a, b grading.Mark) bool {
		if !a.TakenOn.Equal(b.TakenOn) {
			return a.TakenOn.Before(b.TakenOn)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}), nil
}

func (repo *gradingRepository) AttendanceExists(_ context.Context, na grading.NewAttendance, _ ...core.DBExecutor) (bool, error) {
	day := core.DateOf(na.Day)
	return repo.db.attendance.exists(func(a grading.Attendance) bool {
		return a.StudentID == na.StudentID && a.SectionID == na.SectionID && a.SubjectID == na.SubjectID && a.Day.Equal(day)
	}), nil
}

func (repo *gradingRepository) CreateAttendance(ctx context.Context, a grading.Attendance, _ ...core.DBExecutor) (grading.Attendance, error) {
	dup, _ := repo.AttendanceExists(ctx, grading.NewAttendance{
		StudentID: a.StudentID,
		SectionID: a.SectionID,
		SubjectID: a.SubjectID,
		Day:       a.Day,
	})
	if dup {
		return grading.Attendance{}, core.NewUniqueViolation("day")
	}
	a.ID = uuid.NewString()
	repo.db.attendance.insert(a.ID, a)
	return a, nil
}

func (repo *gradingRepository) QueryAttendance(_ context.Context, filter grading.AttendanceFilter, _ ...core.DBExecutor) ([]grading.Attendance, error) {
	return sortBy(repo.db.attendance.filter(filter.Matches), func(a, b grading.Attendance) bool { return a.Day.Before(b.Day) }), nil
}

func (repo *gradingRepository) DeleteRecords(_ context.Context, sectionID string, _ ...core.DBExecutor) error {
	repo.db.records.deleteWhere(
		func(r grading.Record) bool { return r.SectionID == sectionID },
		func(r grading.Record) string { return r.ID },
	)
	return nil
}

func (repo *gradingRepository) CreateRecord(_ context.Context, r grading.Record, _ ...core.DBExecutor) (grading.Record, error) {
	r.ID = uuid.NewString()
	repo.db.records.insert(r.ID, r)
	return r, nil
}

func (repo *gradingRepository) QueryRecords(_ context.Context, filter grading.RecordFilter, _ ...core.DBExecutor) ([]grading.Record, error) {
	return sortBy(repo.db.records.filter(filter.Matches), func(a, b grading.Record) bool {
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return a.SubjectID < b.SubjectID
	}), nil
}

func (repo *gradingRepository) GetSection(_ context.Context, id string, _ ...core.DBExecutor) (academic.ClassSection, error) {
	return repo.db.getSection(id)
}

func (repo *gradingRepository) GetYear(_ context.Context, id string, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	return repo.db.getYear(id)
}

func (repo *gradingRepository) QueryGradeSubjects(_ context.Context, gradeID string, _ ...core.DBExecutor) ([]academic.GradeSubject, error) {
	return repo.db.queryGradeSubjects(gradeID), nil
}

func (repo *gradingRepository) QuerySectionEnrollments(_ context.Context, sectionID string, _ ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	enrollments := repo.db.enrollments.filter(func(e enrollment.Enrollment) bool {
		return e.SectionID == sectionID && e.Status == enrollment.StatusActive
	})
	return sortBy(enrollments, func(a, b enrollment.Enrollment) bool { return a.Number < b.Number }), nil
}

func (repo *gradingRepository) GetSettings(_ context.Context, institutionID string, _ ...core.DBExecutor) (institution.Settings, error) {
	return repo.db.getSettings(institutionID)
}
