package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/grading"
	"github.com/somabem/erp/core/institution"
)

var (
	markColumns = columns{
		"id", "student_id", "section_id", "subject_id", "term", "kind", "value", "weight", "taken_on", "teacher_id",
		"notes", "created_at",
	}
	attendanceColumns = columns{
		"id", "student_id", "section_id", "subject_id", "slot_id", "day", "present", "justified", "note", "recorded_by",
	}
	recordColumns = columns{
		"id", "student_id", "academic_year_id", "grade_id", "section_id", "subject_id", "final_average",
		"attendance_rate", "result", "closed_at",
	}
)

type gradingRepository struct {
	repository
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *sqlx.DB) *gradingRepository {
	return &gradingRepository{repository{db: db}}
}

func (repo gradingRepository) CreateMark(ctx context.Context, m grading.Mark, exec ...core.DBExecutor) (grading.Mark, error) {
	m.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), markColumns.insert("marks"), m); err != nil {
		return grading.Mark{}, trapUniqueErr(err, "inserting mark")
	}
	return m, nil
}

func (repo gradingRepository) QueryMarks(ctx context.Context, filter grading.MarkFilter, exec ...core.DBExecutor) ([]grading.Mark, error) {
	marks := make([]grading.Mark, 0)
	var w where
	if !idConditions(&w, map[string]string{
		"student_id": filter.StudentID,
		"section_id": filter.SectionID,
		"subject_id": filter.SubjectID,
	}) {
		return marks, nil
	}
	if filter.Term != 0 {
		w.add("term = ?", filter.Term)
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &marks,
		markColumns.selectFrom("marks")+w.String()+" ORDER BY taken_on, created_at", w.args...)
	return marks, errors.Wrap(err, "querying marks")
}

func (repo gradingRepository) AttendanceExists(ctx context.Context, na grading.NewAttendance, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec),
		"SELECT 1 FROM attendance WHERE student_id = $1 AND section_id = $2 AND subject_id = $3 AND day = $4",
		na.StudentID, na.SectionID, na.SubjectID, core.DateOf(na.Day))
	return ok, errors.Wrap(err, "checking attendance")
}

func (repo gradingRepository) CreateAttendance(ctx context.Context, a grading.Attendance, exec ...core.DBExecutor) (grading.Attendance, error) {
	a.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), attendanceColumns.insert("attendance"), a); err != nil {
		return grading.Attendance{}, trapUniqueErr(err, "inserting attendance")
	}
	return a, nil
}

func (repo gradingRepository) QueryAttendance(ctx context.Context, filter grading.AttendanceFilter, exec ...core.DBExecutor) ([]grading.Attendance, error) {
	entries := make([]grading.Attendance, 0)
	var w where
	if !idConditions(&w, map[string]string{
		"student_id": filter.StudentID,
		"section_id": filter.SectionID,
		"subject_id": filter.SubjectID,
	}) {
		return entries, nil
	}
	if !filter.From.IsZero() {
		w.add("day >= ?", core.DateOf(filter.From))
	}
	if !filter.To.IsZero() {
		w.add("day <= ?", core.DateOf(filter.To))
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &entries,
		attendanceColumns.selectFrom("attendance")+w.String()+" ORDER BY day", w.args...)
	return entries, errors.Wrap(err, "querying attendance")
}

func (repo gradingRepository) DeleteRecords(ctx context.Context, sectionID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM academic_records WHERE section_id = $1", sectionID)
	return errors.Wrap(err, "deleting academic records")
}

func (repo gradingRepository) CreateRecord(ctx context.Context, r grading.Record, exec ...core.DBExecutor) (grading.Record, error) {
	r.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), recordColumns.insert("academic_records"), r); err != nil {
		return grading.Record{}, trapUniqueErr(err, "inserting academic record")
	}
	return r, nil
}

func (repo gradingRepository) QueryRecords(ctx context.Context, filter grading.RecordFilter, exec ...core.DBExecutor) ([]grading.Record, error) {
	records := make([]grading.Record, 0)
	var w where
	if !idConditions(&w, map[string]string{
		"student_id":       filter.StudentID,
		"section_id":       filter.SectionID,
		"academic_year_id": filter.AcademicYearID,
	}) {
		return records, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &records,
		recordColumns.selectFrom("academic_records")+w.String()+" ORDER BY student_id, subject_id", w.args...)
	return records, errors.Wrap(err, "querying academic records")
}

func (repo gradingRepository) GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (academic.ClassSection, error) {
	return getSection(ctx, repo.getExec(exec), id, false)
}

func (repo gradingRepository) GetYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	return getYear(ctx, repo.getExec(exec), id)
}

func (repo gradingRepository) QueryGradeSubjects(ctx context.Context, gradeID string, exec ...core.DBExecutor) ([]academic.GradeSubject, error) {
	return queryGradeSubjects(ctx, repo.getExec(exec), gradeID)
}

func (repo gradingRepository) QuerySectionEnrollments(ctx context.Context, sectionID string, exec ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	enrollments := make([]enrollment.Enrollment, 0)
	if !validID(sectionID) {
		return enrollments, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &enrollments,
		enrollmentColumns.selectFrom("enrollments")+" WHERE section_id = $1 AND status = $2 ORDER BY number",
		sectionID, enrollment.StatusActive)
	return enrollments, errors.Wrap(err, "querying section enrollments")
}

func (repo gradingRepository) GetSettings(ctx context.Context, institutionID string, exec ...core.DBExecutor) (institution.Settings, error) {
	return getSettings(ctx, repo.getExec(exec), institutionID)
}
