package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/enrollment"
)

var (
	yearColumns = columns{
		"id", "institution_id", "year", "code", "name", "starts_on", "ends_on", "enrollment_start",
		"enrollment_end", "is_active", "is_closed", "created_at",
	}
	gradeColumns = columns{
		"id", "institution_id", "name", "sort_order", "level", "min_age", "max_age", "weekly_hours", "is_active",
	}
	subjectColumns      = columns{"id", "institution_id", "code", "name", "area", "is_active"}
	gradeSubjectColumns = columns{"id", "grade_id", "subject_id", "weekly_hours", "weight", "mandatory"}
	sectionColumns      = columns{
		"id", "academic_year_id", "grade_id", "room_id", "teacher_id", "code", "name", "shift", "capacity",
		"is_active", "created_at",
	}
	teacherSubjectColumns = columns{
		"id", "teacher_id", "subject_id", "level", "years_experience", "preferred", "is_active",
	}
	slotColumns  = columns{"id", "section_id", "subject_id", "teacher_id", "room_id", "weekday", "starts_at", "ends_at"}
	eventColumns = columns{
		"id", "institution_id", "academic_year_id", "title", "kind", "description", "starts_on", "ends_on",
	}
)

type academicRepository struct {
	repository
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *sqlx.DB) *academicRepository {
	return &academicRepository{repository{db: db}}
}

func (repo academicRepository) CheckYearUniqueness(ctx context.Context, institutionID string, year int, code string, exec ...core.DBExecutor) error {
	var found []struct {
		Year int    `db:"year"`
		Code string `db:"code"`
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &found,
		"SELECT year, code FROM academic_years WHERE institution_id = $1 AND (year = $2 OR code = $3)",
		institutionID, year, code)
	if err != nil {
		return errors.Wrap(err, "checking academic year uniqueness")
	}
	for _, f := range found {
		if f.Year == year {
			return academic.ErrYearExists
		}
	}
	if len(found) > 0 {
		return academic.ErrCodeExists
	}
	return nil
}

func (repo academicRepository) CreateYear(ctx context.Context, ay academic.AcademicYear, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	ay.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), yearColumns.insert("academic_years"), ay); err != nil {
		return academic.AcademicYear{}, trapUniqueErr(err, "inserting academic year")
	}
	return ay, nil
}

func (repo academicRepository) GetYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	return getYear(ctx, repo.getExec(exec), id)
}

func getYear(ctx context.Context, exec sqlx.ExtContext, id string) (academic.AcademicYear, error) {
	if !validID(id) {
		return academic.AcademicYear{}, academic.ErrYearNotFound
	}
	var ay academic.AcademicYear
	err := sqlx.GetContext(ctx, exec, &ay, yearColumns.selectFrom("academic_years")+" WHERE id = $1", id)
	if err != nil {
		return academic.AcademicYear{}, trapNoRowsErr(err, academic.ErrYearNotFound, "getting academic year")
	}
	return ay, nil
}

func (repo academicRepository) QueryYears(ctx context.Context, institutionID string, exec ...core.DBExecutor) ([]academic.AcademicYear, error) {
	years := make([]academic.AcademicYear, 0)
	if !validID(institutionID) {
		return years, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &years,
		yearColumns.selectFrom("academic_years")+" WHERE institution_id = $1 ORDER BY year DESC", institutionID)
	return years, errors.Wrap(err, "querying academic years")
}

func (repo academicRepository) UpdateYear(ctx context.Context, ay academic.AcademicYear, exec ...core.DBExecutor) (academic.AcademicYear, error) {
	if err := namedExec(ctx, repo.getExec(exec), yearColumns.update("academic_years"), ay); err != nil {
		return academic.AcademicYear{}, trapNoRowsErr(err, academic.ErrYearNotFound, "updating academic year")
	}
	return ay, nil
}

func (repo academicRepository) CreateGrade(ctx context.Context, g academic.Grade, exec ...core.DBExecutor) (academic.Grade, error) {
	g.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), gradeColumns.insert("grades"), g); err != nil {
		return academic.Grade{}, trapUniqueErr(err, "inserting grade")
	}
	return g, nil
}

func (repo academicRepository) GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Grade, error) {
	if !validID(id) {
		return academic.Grade{}, academic.ErrGradeNotFound
	}
	var g academic.Grade
	err := sqlx.GetContext(ctx, repo.getExec(exec), &g, gradeColumns.selectFrom("grades")+" WHERE id = $1", id)
	if err != nil {
		return academic.Grade{}, trapNoRowsErr(err, academic.ErrGradeNotFound, "getting grade")
	}
	return g, nil
}

func (repo academicRepository) QueryGrades(ctx context.Context, institutionID string, exec ...core.DBExecutor) ([]academic.Grade, error) {
	grades := make([]academic.Grade, 0)
	if !validID(institutionID) {
		return grades, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &grades,
		gradeColumns.selectFrom("grades")+" WHERE institution_id = $1 ORDER BY sort_order", institutionID)
	return grades, errors.Wrap(err, "querying grades")
}

func (repo academicRepository) SubjectCodeExists(ctx context.Context, institutionID, code string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM subjects WHERE institution_id = $1 AND code = $2", institutionID, code)
	return ok, errors.Wrap(err, "checking subject code")
}

func (repo academicRepository) CreateSubject(ctx context.Context, s academic.Subject, exec ...core.DBExecutor) (academic.Subject, error) {
	s.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), subjectColumns.insert("subjects"), s); err != nil {
		return academic.Subject{}, trapUniqueErr(err, "inserting subject")
	}
	return s, nil
}

func (repo academicRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (academic.Subject, error) {
	if !validID(id) {
		return academic.Subject{}, academic.ErrSubjectNotFound
	}
	var s academic.Subject
	err := sqlx.GetContext(ctx, repo.getExec(exec), &s, subjectColumns.selectFrom("subjects")+" WHERE id = $1", id)
	if err != nil {
		return academic.Subject{}, trapNoRowsErr(err, academic.ErrSubjectNotFound, "getting subject")
	}
	return s, nil
}

func (repo academicRepository) QuerySubjects(ctx context.Context, institutionID string, exec ...core.DBExecutor) ([]academic.Subject, error) {
	subjects := make([]academic.Subject, 0)
	if !validID(institutionID) {
		return subjects, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &subjects,
		subjectColumns.selectFrom("subjects")+" WHERE institution_id = $1 ORDER BY name", institutionID)
	return subjects, errors.Wrap(err, "querying subjects")
}

func (repo academicRepository) GradeSubjectExists(ctx context.Context, gradeID, subjectID string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM grade_subjects WHERE grade_id = $1 AND subject_id = $2", gradeID, subjectID)
	return ok, errors.Wrap(err, "checking grade subject")
}

func (repo academicRepository) CreateGradeSubject(ctx context.Context, gs academic.GradeSubject, exec ...core.DBExecutor) (academic.GradeSubject, error) {
	gs.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), gradeSubjectColumns.insert("grade_subjects"), gs); err != nil {
		return academic.GradeSubject{}, trapUniqueErr(err, "inserting grade subject")
	}
	return gs, nil
}

func (repo academicRepository) QueryGradeSubjects(ctx context.Context, gradeID string, exec ...core.DBExecutor) ([]academic.GradeSubject, error) {
	return queryGradeSubjects(ctx, repo.getExec(exec), gradeID)
}

func queryGradeSubjects(ctx context.Context, exec sqlx.ExtContext, gradeID string) ([]academic.GradeSubject, error) {
	gss := make([]academic.GradeSubject, 0)
	if !validID(gradeID) {
		return gss, nil
	}
	err := sqlx.SelectContext(ctx, exec, &gss, gradeSubjectColumns.selectFrom("grade_subjects")+" WHERE grade_id = $1", gradeID)
	return gss, errors.Wrap(err, "querying grade subjects")
}

func (repo academicRepository) SectionCodeExists(ctx context.Context, yearID, gradeID, code string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec),
		"SELECT 1 FROM class_sections WHERE academic_year_id = $1 AND grade_id = $2 AND code = $3", yearID, gradeID, code)
	return ok, errors.Wrap(err, "checking section code")
}

func (repo academicRepository) CreateSection(ctx context.Context, cs academic.ClassSection, exec ...core.DBExecutor) (academic.ClassSection, error) {
	cs.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), sectionColumns.insert("class_sections"), cs); err != nil {
		return academic.ClassSection{}, trapUniqueErr(err, "inserting class section")
	}
	return cs, nil
}

func (repo academicRepository) GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (academic.ClassSection, error) {
	return getSection(ctx, repo.getExec(exec), id, false)
}

// getSection reads a section, with a row lock when `lock` is set.
func getSection(ctx context.Context, exec sqlx.ExtContext, id string, lock bool) (academic.ClassSection, error) {
	if !validID(id) {
		return academic.ClassSection{}, academic.ErrSectionNotFound
	}
	q := sectionColumns.selectFrom("class_sections") + " WHERE id = $1"
	if lock {
		q += " FOR UPDATE"
	}
	var cs academic.ClassSection
	if err := sqlx.GetContext(ctx, exec, &cs, q, id); err != nil {
		return academic.ClassSection{}, trapNoRowsErr(err, academic.ErrSectionNotFound, "getting class section")
	}
	return cs, nil
}

func (repo academicRepository) QuerySections(ctx context.Context, filter academic.SectionFilter, exec ...core.DBExecutor) ([]academic.ClassSection, error) {
	sections := make([]academic.ClassSection, 0)
	var w where
	for col, id := range map[string]string{
		"academic_year_id": filter.AcademicYearID,
		"grade_id":         filter.GradeID,
		"teacher_id":       filter.TeacherID,
	} {
		if id == "" {
			continue
		}
		if !validID(id) {
			return sections, nil
		}
		w.add(col+" = ?", id)
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &sections,
		sectionColumns.selectFrom("class_sections")+w.String()+" ORDER BY code", w.args...)
	return sections, errors.Wrap(err, "querying class sections")
}

func (repo academicRepository) UpdateSection(ctx context.Context, cs academic.ClassSection, exec ...core.DBExecutor) (academic.ClassSection, error) {
	if err := namedExec(ctx, repo.getExec(exec), sectionColumns.update("class_sections"), cs); err != nil {
		return academic.ClassSection{}, trapNoRowsErr(err, academic.ErrSectionNotFound, "updating class section")
	}
	return cs, nil
}

func (repo academicRepository) CountActiveEnrollments(ctx context.Context, sectionID string, exec ...core.DBExecutor) (int, error) {
	return countActiveEnrollments(ctx, repo.getExec(exec), sectionID)
}

func countActiveEnrollments(ctx context.Context, exec sqlx.ExtContext, sectionID string) (int, error) {
	if !validID(sectionID) {
		return 0, nil
	}
	n, err := count(ctx, exec, "SELECT COUNT(*) FROM enrollments WHERE section_id = $1 AND status = $2",
		sectionID, enrollment.StatusActive)
	return n, errors.Wrap(err, "counting active enrollments")
}

func (repo academicRepository) TeacherExists(ctx context.Context, teacherID string, exec ...core.DBExecutor) (bool, error) {
	if !validID(teacherID) {
		return false, nil
	}
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM teachers WHERE person_id = $1", teacherID)
	return ok, errors.Wrap(err, "checking teacher")
}

func (repo academicRepository) TeacherSubjectExists(ctx context.Context, teacherID, subjectID string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec),
		"SELECT 1 FROM teacher_subjects WHERE teacher_id = $1 AND subject_id = $2", teacherID, subjectID)
	return ok, errors.Wrap(err, "checking teacher subject")
}

func (repo academicRepository) CreateTeacherSubject(ctx context.Context, ts academic.TeacherSubject, exec ...core.DBExecutor) (academic.TeacherSubject, error) {
	ts.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), teacherSubjectColumns.insert("teacher_subjects"), ts); err != nil {
		return academic.TeacherSubject{}, trapUniqueErr(err, "inserting teacher subject")
	}
	return ts, nil
}

func (repo academicRepository) GetTeacherSubject(ctx context.Context, id string, exec ...core.DBExecutor) (academic.TeacherSubject, error) {
	var ts academic.TeacherSubject
	if !validID(id) {
		return ts, academic.ErrQualificationNotFound
	}
	err := sqlx.GetContext(ctx, repo.getExec(exec), &ts, teacherSubjectColumns.selectFrom("teacher_subjects")+" WHERE id = $1", id)
	return ts, trapNoRowsErr(err, academic.ErrQualificationNotFound, "querying teacher subject")
}

func (repo academicRepository) UpdateTeacherSubject(ctx context.Context, ts academic.TeacherSubject, exec ...core.DBExecutor) (academic.TeacherSubject, error) {
	if err := namedExec(ctx, repo.getExec(exec), teacherSubjectColumns.update("teacher_subjects"), ts); err != nil {
		return academic.TeacherSubject{}, trapNoRowsErr(err, academic.ErrQualificationNotFound, "updating teacher subject")
	}
	return ts, nil
}

func (repo academicRepository) QueryTeacherSubjects(ctx context.Context, filter academic.TeacherSubjectFilter, exec ...core.DBExecutor) ([]academic.TeacherSubject, error) {
	tss := make([]academic.TeacherSubject, 0)
	var w where
	if !idConditions(&w, map[string]string{"teacher_id": filter.TeacherID, "subject_id": filter.SubjectID}) {
		return tss, nil
	}
	if filter.ActiveOnly {
		w.add("is_active")
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &tss,
		teacherSubjectColumns.selectFrom("teacher_subjects")+w.String()+" ORDER BY preferred DESC, years_experience DESC", w.args...)
	return tss, errors.Wrap(err, "querying teacher subjects")
}

func (repo academicRepository) CreateSlot(ctx context.Context, s academic.TimetableSlot, exec ...core.DBExecutor) (academic.TimetableSlot, error) {
	s.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), slotColumns.insert("timetable_slots"), s); err != nil {
		return academic.TimetableSlot{}, trapUniqueErr(err, "inserting timetable slot")
	}
	return s, nil
}

func (repo academicRepository) QuerySlots(ctx context.Context, filter academic.SlotFilter, exec ...core.DBExecutor) ([]academic.TimetableSlot, error) {
	slots := make([]academic.TimetableSlot, 0)
	var w where
	for col, id := range map[string]string{
		"section_id": filter.SectionID,
		"teacher_id": filter.TeacherID,
		"room_id":    filter.RoomID,
	} {
		if id == "" {
			continue
		}
		if !validID(id) {
			return slots, nil
		}
		w.add(col+" = ?", id)
	}
	if filter.Weekday != 0 {
		w.add("weekday = ?", filter.Weekday)
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &slots,
		slotColumns.selectFrom("timetable_slots")+w.String()+" ORDER BY weekday, starts_at", w.args...)
	return slots, errors.Wrap(err, "querying timetable slots")
}

func (repo academicRepository) DeleteSlot(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return academic.ErrSlotNotFound
	}
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM timetable_slots WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting timetable slot")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return academic.ErrSlotNotFound
	}
	return nil
}

func (repo academicRepository) CreateEvent(ctx context.Context, e academic.CalendarEvent, exec ...core.DBExecutor) (academic.CalendarEvent, error) {
	e.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), eventColumns.insert("calendar_events"), e); err != nil {
		return academic.CalendarEvent{}, trapUniqueErr(err, "inserting calendar event")
	}
	return e, nil
}

func (repo academicRepository) QueryEvents(ctx context.Context, institutionID string, from, to time.Time, exec ...core.DBExecutor) ([]academic.CalendarEvent, error) {
	events := make([]academic.CalendarEvent, 0)
	if !validID(institutionID) {
		return events, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &events,
		eventColumns.selectFrom("calendar_events")+
			" WHERE institution_id = $1 AND starts_on <= $3 AND ends_on >= $2 ORDER BY starts_on",
		institutionID, core.DateOf(from), core.DateOf(to))
	return events, errors.Wrap(err, "querying calendar events")
}
