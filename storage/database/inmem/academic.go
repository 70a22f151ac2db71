package inmemdb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/enrollment"
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) *academicRepository {
	return &academicRepository{db: db}
}

// is reports whether the optional id p equals id.
func is(p *string, id string) bool {
	return p != nil && *p == id
}

func (repo *academicRepository) CheckYearUniqueness(_ context.Context, institutionID string, year int, code string, _ ...core.DBExecutor) error {
	if repo.db.years.exists(func(ay academic.AcademicYear) bool { return ay.InstitutionID == institutionID && ay.Year == year }) {
		return academic.ErrYearExists
	}
	if repo.db.years.exists(func(ay academic.AcademicYear) bool { return ay.InstitutionID == institutionID && ay.Code == code }) {
		return academic.ErrCodeExists
	}
	return nil
}

func (repo *academicRepository) CreateYear(_ context.Context, ay academic.AcademicYear, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	ay.ID = uuid.NewString()
	repo.db.years.insert(ay.ID, ay)
	return ay, nil
}

func (repo *academicRepository) GetYear(_ context.Context, id string, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	return repo.db.getYear(id)
}

func (db *DB) getYear(id string) (academic.AcademicYear, error) {
	if ay, ok := db.years.get(id); ok {
		return ay, nil
	}
	return academic.AcademicYear{}, academic.ErrYearNotFound
}

func (repo *academicRepository) QueryYears(_ context.Context, institutionID string, _ ...core.DBExecutor) ([]academic.AcademicYear, error) {
	years := repo.db.years.filter(func(ay academic.AcademicYear) bool { return ay.InstitutionID == institutionID })
	return sortBy(years, func(a, b academic.AcademicYear) bool { return a.Year > b.Year }), nil
}

func (repo *academicRepository) UpdateYear(_ context.Context, ay academic.AcademicYear, _ ...core.DBExecutor) (academic.AcademicYear, error) {
	if ay.IsActive && repo.db.years.exists(func(o academic.AcademicYear) bool {
		return o.ID != ay.ID && o.InstitutionID == ay.InstitutionID && o.IsActive
	}) {
		return academic.AcademicYear{}, core.NewUniqueViolation("is_active")
	}
	if !repo.db.years.update(ay.ID, ay) {
		return academic.AcademicYear{}, academic.ErrYearNotFound
	}
	return ay, nil
}

func (repo *academicRepository) CreateGrade(_ context.Context, g academic.Grade, _ ...core.DBExecutor) (academic.Grade, error) {
	g.ID = uuid.NewString()
	repo.db.grades.insert(g.ID, g)
	return g, nil
}

func (repo *academicRepository) GetGrade(_ context.Context, id string, _ ...core.DBExecutor) (academic.Grade, error) {
	if g, ok := repo.db.grades.get(id); ok {
		return g, nil
	}
	return academic.Grade{}, academic.ErrGradeNotFound
}

func (repo *academicRepository) QueryGrades(_ context.Context, institutionID string, _ ...core.DBExecutor) ([]academic.Grade, error) {
	grades := repo.db.grades.filter(func(g academic.Grade) bool { return g.InstitutionID == institutionID })
	return sortBy(grades, func(a, b academic.Grade) bool { return a.Order < b.Order }), nil
}

func (repo *academicRepository) SubjectCodeExists(_ context.Context, institutionID, code string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.subjects.exists(func(s academic.Subject) bool { return s.InstitutionID == institutionID && s.Code == code }), nil
}

func (repo *academicRepository) CreateSubject(_ context.Context, s academic.Subject, _ ...core.DBExecutor) (academic.Subject, error) {
	s.ID = uuid.NewString()
	repo.db.subjects.insert(s.ID, s)
	return s, nil
}

func (repo *academicRepository) GetSubject(_ context.Context, id string, _ ...core.DBExecutor) (academic.Subject, error) {
	if s, ok := repo.db.subjects.get(id); ok {
		return s, nil
	}
	return academic.Subject{}, academic.ErrSubjectNotFound
}

func (repo *academicRepository) QuerySubjects(_ context.Context, institutionID string, _ ...core.DBExecutor) ([]academic.Subject, error) {
	subjects := repo.db.subjects.filter(func(s academic.Subject) bool { return s.InstitutionID == institutionID })
	return sortBy(subjects, func(a, b academic.Subject) bool { return a.Name < b.Name }), nil
}

func (repo *academicRepository) GradeSubjectExists(_ context.Context, gradeID, subjectID string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.gradeSubjects.exists(func(gs academic.GradeSubject) bool {
		return gs.GradeID == gradeID && gs.SubjectID == subjectID
	}), nil
}

func (repo *academicRepository) CreateGradeSubject(_ context.Context, gs academic.GradeSubject, _ ...core.DBExecutor) (academic.GradeSubject, error) {
	gs.ID = uuid.NewString()
	repo.db.gradeSubjects.insert(gs.ID, gs)
	return gs, nil
}

func (repo *academicRepository) QueryGradeSubjects(_ context.Context, gradeID string, _ ...core.DBExecutor) ([]academic.GradeSubject, error) {
	return repo.db.queryGradeSubjects(gradeID), nil
}

func (db *DB) queryGradeSubjects(gradeID string) []academic.GradeSubject {
	return db.gradeSubjects.filter(func(gs academic.GradeSubject) bool { return gs.GradeID == gradeID })
}

func (repo *academicRepository) SectionCodeExists(_ context.Context, yearID, gradeID, code string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.sections.exists(func(cs academic.ClassSection) bool {
		return cs.AcademicYearID == yearID && cs.GradeID == gradeID && cs.Code == code
	}), nil
}

func (repo *academicRepository) CreateSection(_ context.Context, cs academic.ClassSection, _ ...core.DBExecutor) (academic.ClassSection, error) {
	cs.ID = uuid.NewString()
	repo.db.sections.insert(cs.ID, cs)
	return cs, nil
}

func (repo *academicRepository) GetSection(_ context.Context, id string, _ ...core.DBExecutor) (academic.ClassSection, error) {
	return repo.db.getSection(id)
}

func (db *DB) getSection(id string) (academic.ClassSection, error) {
	if cs, ok := db.sections.get(id); ok {
		return cs, nil
	}
	return academic.ClassSection{}, academic.ErrSectionNotFound
}

func (repo *academicRepository) QuerySections(_ context.Context, filter academic.SectionFilter, _ ...core.DBExecutor) ([]academic.ClassSection, error) {
	sections := repo.db.sections.filter(func(cs academic.ClassSection) bool {
		return (filter.AcademicYearID == "" || cs.AcademicYearID == filter.AcademicYearID) &&
			(filter.GradeID == "" || cs.GradeID == filter.GradeID) &&
			(filter.TeacherID == "" || is(cs.TeacherID, filter.TeacherID)) &&
			(!filter.ActiveOnly || cs.IsActive)
	})
	return sortBy(sections, func(a, b academic.ClassSection) bool { return a.Code < b.Code }), nil
}

func (repo *academicRepository) UpdateSection(_ context.Context, cs academic.ClassSection, _ ...core.DBExecutor) (academic.ClassSection, error) {
	if !repo.db.sections.update(cs.ID, cs) {
		return academic.ClassSection{}, academic.ErrSectionNotFound
	}
	return cs, nil
}

func (repo *academicRepository) CountActiveEnrollments(_ context.Context, sectionID string, _ ...core.DBExecutor) (int, error) {
	return repo.db.countActiveEnrollments(sectionID), nil
}

func (db *DB) countActiveEnrollments(sectionID string) int {
	return len(db.enrollments.filter(func(e enrollment.Enrollment) bool {
		return e.SectionID == sectionID && e.Status == enrollment.StatusActive
	}))
}

func (repo *academicRepository) TeacherExists(_ context.Context, teacherID string, _ ...core.DBExecutor) (bool, error) {
	_, ok := repo.db.teachers.get(teacherID)
	return ok, nil
}

func (repo *academicRepository) TeacherSubjectExists(_ context.Context, teacherID, subjectID string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.qualifications.exists(func(ts academic.TeacherSubject) bool {
		return ts.TeacherID == teacherID && ts.SubjectID == subjectID
	}), nil
}

func (repo *academicRepository) CreateTeacherSubject(_ context.Context, ts academic.TeacherSubject, _ ...core.DBExecutor) (academic.TeacherSubject, error) {
	if repo.db.qualifications.exists(func(o academic.TeacherSubject) bool {
		return o.TeacherID == ts.TeacherID && o.SubjectID == ts.SubjectID
	}) {
		return academic.TeacherSubject{}, core.NewUniqueViolation("subject_id")
	}
	ts.ID = uuid.NewString()
	repo.db.qualifications.insert(ts.ID, ts)
	return ts, nil
}

func (repo *academicRepository) GetTeacherSubject(_ context.Context, id string, _ ...core.DBExecutor) (academic.TeacherSubject, error) {
	if ts, ok := repo.db.qualifications.get(id); ok {
		return ts, nil
	}
	return academic.TeacherSubject{}, academic.ErrQualificationNotFound
}

func (repo *academicRepository) UpdateTeacherSubject(_ context.Context, ts academic.TeacherSubject, _ ...core.DBExecutor) (academic.TeacherSubject, error) {
	if !repo.db.qualifications.update(ts.ID, ts) {
		return academic.TeacherSubject{}, academic.ErrQualificationNotFound
	}
	return ts, nil
}

func (repo *academicRepository) QueryTeacherSubjects(_ context.Context, filter academic.TeacherSubjectFilter, _ ...core.DBExecutor) ([]academic.TeacherSubject, error) {
	tss := repo.db.qualifications.filter(func(ts academic.TeacherSubject) bool {
		return (filter.TeacherID == "" || ts.TeacherID == filter.TeacherID) &&
			(filter.SubjectID == "" || ts.SubjectID == filter.SubjectID) &&
			(!filter.ActiveOnly || ts.IsActive)
	})
	// preferred subjects first
	return sortBy(tss, func(a, b academic.TeacherSubject) bool {
		if a.Preferred != b.Preferred {
			return a.Preferred
		}
		return a.YearsExperience > b.YearsExperience
	}), nil
}

func (repo *academicRepository) CreateSlot(_ context.Context, s academic.TimetableSlot, _ ...core.DBExecutor) (academic.TimetableSlot, error) {
	s.ID = uuid.NewString()
	repo.db.slots.insert(s.ID, s)
	return s, nil
}

func (repo *academicRepository) QuerySlots(_ context.Context, filter academic.SlotFilter, _ ...core.DBExecutor) ([]academic.TimetableSlot, error) {
	slots := repo.db.slots.filter(func(s academic.TimetableSlot) bool {
		return (filter.SectionID == "" || s.SectionID == filter.SectionID) &&
			(filter.TeacherID == "" || s.TeacherID == filter.TeacherID) &&
			(filter.RoomID == "" || is(s.RoomID, filter.RoomID)) &&
			(filter.Weekday == 0 || s.Weekday == filter.Weekday)
	})
	return sortBy(slots, func(a, b academic.TimetableSlot) bool {
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		return a.StartsAt < b.StartsAt
	}), nil
}

func (repo *academicRepository) DeleteSlot(_ context.Context, id string, _ ...core.DBExecutor) error {
	if _, ok := repo.db.slots.get(id); !ok {
		return academic.ErrSlotNotFound
	}
	repo.db.slots.delete(id)
	return nil
}

func (repo *academicRepository) CreateEvent(_ context.Context, e academic.CalendarEvent, _ ...core.DBExecutor) (academic.CalendarEvent, error) {
	e.ID = uuid.NewString()
	repo.db.events.insert(e.ID, e)
	return e, nil
}

func (repo *academicRepository) QueryEvents(_ context.Context, institutionID string, from, to time.Time, _ ...core.DBExecutor) ([]academic.CalendarEvent, error) {
	from, to = core.DateOf(from), core.DateOf(to)
	events := repo.db.events.filter(func(e academic.CalendarEvent) bool {
		return e.InstitutionID == institutionID && !e.StartsOn.After(to) && !e.EndsOn.Before(from)
	})
	return sortBy(events, func(a, b academic.CalendarEvent) bool { return a.StartsOn.Before(b.StartsOn) }), nil
}
