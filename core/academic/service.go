package academic

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
)

var (
	// errors
	ErrYearNotFound    = core.NewNotFoundError("academic year")
	ErrGradeNotFound   = core.NewNotFoundError("grade")
	ErrSubjectNotFound = core.NewNotFoundError("subject")
	ErrSectionNotFound = core.NewNotFoundError("class section")
	ErrSlotNotFound    = core.NewNotFoundError("timetable slot")
	ErrTeacherNotFound = core.NewNotFoundError("teacher")

	ErrQualificationNotFound = core.NewNotFoundError("teacher subject")

	ErrYearExists    = errors.New("this academic year already exists")
	ErrCodeExists    = errors.New("this code is already in use")
	ErrSubjectExists = errors.New("this subject is already in the curriculum of the grade")
	ErrYearClosed    = errors.New("the academic year is closed")
	ErrQualified     = errors.New("the teacher is already qualified for this subject")
	ErrNotQualified  = errors.New("the teacher is not qualified for this subject")
)

type (
	SectionFilter struct {
		AcademicYearID string `query:"academic_year_id"`
		GradeID        string `query:"grade_id"`
		TeacherID      string `query:"teacher_id"`
		ActiveOnly     bool   `query:"active"`
	}

	// SlotFilter fields are AND-ed; zero values are ignored.
	SlotFilter struct {
		SectionID string
		TeacherID string
		RoomID    string
		Weekday   int
	}

	TeacherSubjectFilter struct {
		TeacherID  string `query:"teacher_id"`
		SubjectID  string `query:"subject_id"`
		ActiveOnly bool   `query:"active"`
	}

	Repository interface {
		// CheckYearUniqueness returns ErrYearExists or ErrCodeExists.
		CheckYearUniqueness(ctx context.Context, institutionID string, year int, code string, exec ...core.DBExecutor) error
		CreateYear(ctx context.Context, ay AcademicYear, exec ...core.DBExecutor) (AcademicYear, error)
		GetYear(ctx context.Context, id string, exec ...core.DBExecutor) (AcademicYear, error)
		QueryYears(ctx context.Context, institutionID string, exec ...core.DBExecutor) ([]AcademicYear, error)
		UpdateYear(ctx context.Context, ay AcademicYear, exec ...core.DBExecutor) (AcademicYear, error)

		CreateGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (Grade, error)
		QueryGrades(ctx context.Context, institutionID string, exec ...core.DBExecutor) ([]Grade, error)

		SubjectCodeExists(ctx context.Context, institutionID, code string, exec ...core.DBExecutor) (bool, error)
		CreateSubject(ctx context.Context, s Subject, exec ...core.DBExecutor) (Subject, error)
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
		QuerySubjects(ctx context.Context, institutionID string, exec ...core.DBExecutor) ([]Subject, error)

		GradeSubjectExists(ctx context.Context, gradeID, subjectID string, exec ...core.DBExecutor) (bool, error)
		CreateGradeSubject(ctx context.Context, gs GradeSubject, exec ...core.DBExecutor) (GradeSubject, error)
		QueryGradeSubjects(ctx context.Context, gradeID string, exec ...core.DBExecutor) ([]GradeSubject, error)

		SectionCodeExists(ctx context.Context, yearID, gradeID, code string, exec ...core.DBExecutor) (bool, error)
		CreateSection(ctx context.Context, cs ClassSection, exec ...core.DBExecutor) (ClassSection, error)
		GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (ClassSection, error)
		QuerySections(ctx context.Context, filter SectionFilter, exec ...core.DBExecutor) ([]ClassSection, error)
		UpdateSection(ctx context.Context, cs ClassSection, exec ...core.DBExecutor) (ClassSection, error)
		// CountActiveEnrollments counts the active enrollments of a section.
		CountActiveEnrollments(ctx context.Context, sectionID string, exec ...core.DBExecutor) (int, error)

		TeacherExists(ctx context.Context, teacherID string, exec ...core.DBExecutor) (bool, error)
		TeacherSubjectExists(ctx context.Context, teacherID, subjectID string, exec ...core.DBExecutor) (bool, error)
		CreateTeacherSubject(ctx context.Context, ts TeacherSubject, exec ...core.DBExecutor) (TeacherSubject, error)
		GetTeacherSubject(ctx context.Context, id string, exec ...core.DBExecutor) (TeacherSubject, error)
		UpdateTeacherSubject(ctx context.Context, ts TeacherSubject, exec ...core.DBExecutor) (TeacherSubject, error)
		QueryTeacherSubjects(ctx context.Context, filter TeacherSubjectFilter, exec ...core.DBExecutor) ([]TeacherSubject, error)

		CreateSlot(ctx context.Context, s TimetableSlot, exec ...core.DBExecutor) (TimetableSlot, error)
		QuerySlots(ctx context.Context, filter SlotFilter, exec ...core.DBExecutor) ([]TimetableSlot, error)
		DeleteSlot(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateEvent(ctx context.Context, e CalendarEvent, exec ...core.DBExecutor) (CalendarEvent, error)
		// QueryEvents returns the events of the institution overlapping [from, to].
		QueryEvents(ctx context.Context, institutionID string, from, to time.Time, exec ...core.DBExecutor) ([]CalendarEvent, error)
	}

	Service struct {
		repo     Repository
		tx       core.TxRunner
		validate *validator.Validate
		audit    audit.Recorder
	}
)

func NewService(repo Repository, tx core.TxRunner, validate *validator.Validate, rec audit.Recorder) *Service {
	return &Service{repo: repo, tx: tx, validate: validate, audit: rec}
}

func fieldTaken(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// create runs save and its audit entry in one transaction.
func (svc *Service) create(ctx context.Context, save func(exec core.DBExecutor) (string, interface{}, error)) error {
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		id, rec, err := save(exec)
		if err != nil {
			return err
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModuleAcademic, id, nil, rec, exec)
	})
}

// Academic years

func (svc *Service) CreateYear(ctx context.Context, ny NewAcademicYear) (AcademicYear, error) {
	if err := ny.Validate(svc.validate); err != nil {
		return AcademicYear{}, err
	}
	if err := svc.repo.CheckYearUniqueness(ctx, ny.InstitutionID, ny.Year, ny.Code); err != nil {
		switch err {
		case ErrYearExists:
			return AcademicYear{}, fieldTaken("year", err)
		case ErrCodeExists:
			return AcademicYear{}, fieldTaken("code", err)
		}
		return AcademicYear{}, errors.Wrap(err, "checking academic year uniqueness")
	}

	ay := AcademicYear{
		InstitutionID:   ny.InstitutionID,
		Year:            ny.Year,
		Code:            ny.Code,
		Name:            ny.Name,
		StartsOn:        ny.StartsOn,
		EndsOn:          ny.EndsOn,
		EnrollmentStart: ny.EnrollmentStart,
		EnrollmentEnd:   ny.EnrollmentEnd,
		IsActive:        true,
		CreatedAt:       core.NowFunc().UTC(),
	}
	err := svc.create(ctx, func(exec core.DBExecutor) (string, interface{}, error) {
		var err error
		if ay, err = svc.repo.CreateYear(ctx, ay, exec); err != nil {
			return "", nil, errors.Wrap(err, "creating academic year")
		}
		return ay.ID, ay, nil
	})
	if err != nil {
		return AcademicYear{}, err
	}
	return ay, nil
}

func (svc *Service) GetYear(ctx context.Context, id string) (AcademicYear, error) {
	return svc.repo.GetYear(ctx, id)
}

func (svc *Service) QueryYears(ctx context.Context, institutionID string) ([]AcademicYear, error) {
	return svc.repo.QueryYears(ctx, institutionID)
}

// CloseYear marks the year closed and inactive. Closed years refuse new sections and enrollments.
func (svc *Service) CloseYear(ctx context.Context, id string) (AcademicYear, error) {
	var ay AcademicYear
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetYear(ctx, id, exec)
		if err != nil {
			return err
		}
		ay = orig
		ay.IsClosed = true
		ay.IsActive = false
		if ay, err = svc.repo.UpdateYear(ctx, ay, exec); err != nil {
			return errors.Wrap(err, "closing academic year")
		}
		return svc.audit.Record(ctx, audit.ActionClose, core.ModuleAcademic, id, orig, ay, exec)
	})
	if err != nil {
		return AcademicYear{}, err
	}
	return ay, nil
}

// Grades & subjects

func (svc *Service) CreateGrade(ctx context.Context, ng NewGrade) (Grade, error) {
	if err := ng.Validate(svc.validate); err != nil {
		return Grade{}, err
	}
	g := Grade{
		InstitutionID: ng.InstitutionID,
		Name:          ng.Name,
		Order:         ng.Order,
		Level:         ng.Level,
		MinAge:        ng.MinAge,
		MaxAge:        ng.MaxAge,
		WeeklyHours:   ng.WeeklyHours,
		IsActive:      true,
	}
	err := svc.create(ctx, func(exec core.DBExecutor) (string, interface{}, error) {
		var err error
		if g, err = svc.repo.CreateGrade(ctx, g, exec); err != nil {
			return "", nil, errors.Wrap(err, "creating grade")
		}
		return g.ID, g, nil
	})
	if err != nil {
		return Grade{}, err
	}
	return g, nil
}

func (svc *Service) QueryGrades(ctx context.Context, institutionID string) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, institutionID)
}

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Subject{}, err
	}
	exists, err := svc.repo.SubjectCodeExists(ctx, ns.InstitutionID, ns.Code)
	if err != nil {
		return Subject{}, errors.Wrap(err, "checking subject code")
	}
	if exists {
		return Subject{}, fieldTaken("code", ErrCodeExists)
	}

	s := Subject{InstitutionID: ns.InstitutionID, Code: ns.Code, Name: ns.Name, Area: ns.Area, IsActive: true}
	err = svc.create(ctx, func(exec core.DBExecutor) (string, interface{}, error) {
		var err error
		if s, err = svc.repo.CreateSubject(ctx, s, exec); err != nil {
			return "", nil, errors.Wrap(err, "creating subject")
		}
		return s.ID, s, nil
	})
	if err != nil {
		return Subject{}, err
	}
	return s, nil
}

func (svc *Service) QuerySubjects(ctx context.Context, institutionID string) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, institutionID)
}

// AddGradeSubject puts a subject in the curriculum of a grade.
func (svc *Service) AddGradeSubject(ctx context.Context, ngs NewGradeSubject) (GradeSubject, error) {
	if err := ngs.Validate(svc.validate); err != nil {
		return GradeSubject{}, err
	}
	g, err := svc.repo.GetGrade(ctx, ngs.GradeID)
	if err != nil {
		return GradeSubject{}, err
	}
	s, err := svc.repo.GetSubject(ctx, ngs.SubjectID)
	if err != nil {
		return GradeSubject{}, err
	}
	if g.InstitutionID != s.InstitutionID {
		return GradeSubject{}, core.NewFieldError("subject_id", "subject belongs to another institution")
	}
	exists, err := svc.repo.GradeSubjectExists(ctx, ngs.GradeID, ngs.SubjectID)
	if err != nil {
		return GradeSubject{}, errors.Wrap(err, "checking grade subject")
	}
	if exists {
		return GradeSubject{}, fieldTaken("subject_id", ErrSubjectExists)
	}

	gs := GradeSubject{
		GradeID:     ngs.GradeID,
		SubjectID:   ngs.SubjectID,
		WeeklyHours: ngs.WeeklyHours,
		Weight:      ngs.Weight,
		Mandatory:   ngs.Mandatory == nil || *ngs.Mandatory,
	}
	gs, err = svc.repo.CreateGradeSubject(ctx, gs)
	return gs, errors.Wrap(err, "creating grade subject")
}

func (svc *Service) QueryGradeSubjects(ctx context.Context, gradeID string) ([]GradeSubject, error) {
	return svc.repo.QueryGradeSubjects(ctx, gradeID)
}

// Class sections

func (svc *Service) CreateSection(ctx context.Context, nc NewClassSection) (ClassSection, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return ClassSection{}, err
	}
	ay, err := svc.repo.GetYear(ctx, nc.AcademicYearID)
	if err != nil {
		return ClassSection{}, err
	}
	if ay.IsClosed {
		return ClassSection{}, core.NewValidationError(ErrYearClosed, core.FieldError{Field: "academic_year_id", Error: ErrYearClosed.Error()})
	}
	g, err := svc.repo.GetGrade(ctx, nc.GradeID)
	if err != nil {
		return ClassSection{}, err
	}
	if g.InstitutionID != ay.InstitutionID {
		return ClassSection{}, core.NewFieldError("grade_id", "grade belongs to another institution")
	}
	exists, err := svc.repo.SectionCodeExists(ctx, nc.AcademicYearID, nc.GradeID, nc.Code)
	if err != nil {
		return ClassSection{}, errors.Wrap(err, "checking section code")
	}
	if exists {
		return ClassSection{}, fieldTaken("code", ErrCodeExists)
	}

	cs := ClassSection{
		AcademicYearID: nc.AcademicYearID,
		GradeID:        nc.GradeID,
		RoomID:         nc.RoomID,
		TeacherID:      nc.TeacherID,
		Code:           nc.Code,
		Name:           nc.Name,
		Shift:          nc.Shift,
		Capacity:       nc.Capacity,
		IsActive:       true,
		CreatedAt:      core.NowFunc().UTC(),
	}
	err = svc.create(ctx, func(exec core.DBExecutor) (string, interface{}, error) {
		var err error
		if cs, err = svc.repo.CreateSection(ctx, cs, exec); err != nil {
			return "", nil, errors.Wrap(err, "creating class section")
		}
		return cs.ID, cs, nil
	})
	if err != nil {
		return ClassSection{}, err
	}
	return cs, nil
}

func (svc *Service) GetSection(ctx context.Context, id string) (ClassSection, error) {
	return svc.repo.GetSection(ctx, id)
}

func (svc *Service) QuerySections(ctx context.Context, filter SectionFilter) ([]ClassSection, error) {
	return svc.repo.QuerySections(ctx, filter)
}

func (svc *Service) UpdateSection(ctx context.Context, id string, uc UpdateClassSection) (ClassSection, error) {
	if err := svc.validate.Struct(uc); err != nil {
		return ClassSection{}, err
	}
	var cs ClassSection
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetSection(ctx, id, exec)
		if err != nil {
			return err
		}
		cs = orig
		if uc.RoomID != nil {
			cs.RoomID = uc.RoomID
		}
		if uc.TeacherID != nil {
			cs.TeacherID = uc.TeacherID
		}
		if name := core.CleanString(uc.Name); name != "" {
			cs.Name = name
		}
		if uc.Capacity > 0 {
			active, err := svc.repo.CountActiveEnrollments(ctx, id, exec)
			if err != nil {
				return errors.Wrap(err, "counting enrollments")
			}
			if uc.Capacity < active {
				return core.NewFieldError("capacity", "capacity cannot be lower than the number of enrolled students")
			}
			cs.Capacity = uc.Capacity
		}
		if uc.IsActive != nil {
			cs.IsActive = *uc.IsActive
		}
		if cs, err = svc.repo.UpdateSection(ctx, cs, exec); err != nil {
			return errors.Wrap(err, "updating class section")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModuleAcademic, id, orig, cs, exec)
	})
	if err != nil {
		return ClassSection{}, err
	}
	return cs, nil
}

func (svc *Service) SectionOccupancy(ctx context.Context, id string) (SectionOccupancy, error) {
	cs, err := svc.repo.GetSection(ctx, id)
	if err != nil {
		return SectionOccupancy{}, err
	}
	active, err := svc.repo.CountActiveEnrollments(ctx, id)
	if err != nil {
		return SectionOccupancy{}, errors.Wrap(err, "counting enrollments")
	}
	available := cs.Capacity - active
	if available < 0 {
		available = 0
	}
	return SectionOccupancy{
		Section:   cs,
		Active:    active,
		Available: available,
		Occupancy: Occupancy(active, cs.Capacity),
	}, nil
}

// Teacher qualifications

// QualifyTeacher records that a teacher may give lessons of a subject.
func (svc *Service) QualifyTeacher(ctx context.Context, nts NewTeacherSubject) (TeacherSubject, error) {
	if err := nts.Validate(svc.validate); err != nil {
		return TeacherSubject{}, err
	}
	if _, err := svc.repo.GetSubject(ctx, nts.SubjectID); err != nil {
		return TeacherSubject{}, err
	}
	ok, err := svc.repo.TeacherExists(ctx, nts.TeacherID)
	if err != nil {
		return TeacherSubject{}, errors.Wrap(err, "checking teacher")
	}
	if !ok {
		return TeacherSubject{}, ErrTeacherNotFound
	}

	ts := TeacherSubject{
		TeacherID:       nts.TeacherID,
		SubjectID:       nts.SubjectID,
		Level:           nts.Level,
		YearsExperience: nts.YearsExperience,
		Preferred:       nts.Preferred,
		IsActive:        true,
	}
	err = svc.create(ctx, func(exec core.DBExecutor) (string, interface{}, error) {
		exists, err := svc.repo.TeacherSubjectExists(ctx, ts.TeacherID, ts.SubjectID, exec)
		if err != nil {
			return "", nil, errors.Wrap(err, "checking teacher subject")
		}
		if exists {
			return "", nil, fieldTaken("subject_id", ErrQualified)
		}
		if ts, err = svc.repo.CreateTeacherSubject(ctx, ts, exec); err != nil {
			return "", nil, errors.Wrap(err, "creating teacher subject")
		}
		return ts.ID, ts, nil
	})
	if err != nil {
		return TeacherSubject{}, err
	}
	return ts, nil
}

func (svc *Service) UpdateTeacherSubject(ctx context.Context, id string, uts UpdateTeacherSubject) (TeacherSubject, error) {
	if err := uts.Validate(svc.validate); err != nil {
		return TeacherSubject{}, err
	}
	var ts TeacherSubject
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		before, err := svc.repo.GetTeacherSubject(ctx, id, exec)
		if err != nil {
			return err
		}
		ts = before
		if uts.Level != "" {
			ts.Level = uts.Level
		}
		if uts.YearsExperience != nil {
			ts.YearsExperience = *uts.YearsExperience
		}
		if uts.Preferred != nil {
			ts.Preferred = *uts.Preferred
		}
		if uts.IsActive != nil {
			ts.IsActive = *uts.IsActive
		}
		if ts, err = svc.repo.UpdateTeacherSubject(ctx, ts, exec); err != nil {
			return errors.Wrap(err, "updating teacher subject")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModuleAcademic, ts.ID, before, ts, exec)
	})
	if err != nil {
		return TeacherSubject{}, err
	}
	return ts, nil
}

func (svc *Service) QueryTeacherSubjects(ctx context.Context, filter TeacherSubjectFilter) ([]TeacherSubject, error) {
	return svc.repo.QueryTeacherSubjects(ctx, filter)
}

// Timetable

// AddSlot adds a lesson to the weekly timetable of a section. The teacher must hold an active
// qualification for the subject; overlapping lessons of the same section, teacher or room are
// rejected.
func (svc *Service) AddSlot(ctx context.Context, ns NewTimetableSlot) (TimetableSlot, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return TimetableSlot{}, err
	}
	if _, err := svc.repo.GetSection(ctx, ns.SectionID); err != nil {
		return TimetableSlot{}, err
	}
	if _, err := svc.repo.GetSubject(ctx, ns.SubjectID); err != nil {
		return TimetableSlot{}, err
	}

	slot := TimetableSlot{
		SectionID: ns.SectionID,
		SubjectID: ns.SubjectID,
		TeacherID: ns.TeacherID,
		RoomID:    ns.RoomID,
		Weekday:   ns.Weekday,
		StartsAt:  ns.StartsAt,
		EndsAt:    ns.EndsAt,
	}
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		qualified, err := svc.repo.QueryTeacherSubjects(ctx, TeacherSubjectFilter{
			TeacherID: slot.TeacherID, SubjectID: slot.SubjectID, ActiveOnly: true,
		}, exec)
		if err != nil {
			return errors.Wrap(err, "querying teacher subjects")
		}
		if len(qualified) == 0 {
			return core.NewFieldError("teacher_id", ErrNotQualified.Error())
		}

		filters := []SlotFilter{
			{SectionID: slot.SectionID, Weekday: slot.Weekday},
			{TeacherID: slot.TeacherID, Weekday: slot.Weekday},
		}
		if slot.RoomID != nil {
			filters = append(filters, SlotFilter{RoomID: *slot.RoomID, Weekday: slot.Weekday})
		}
		for _, f := range filters {
			slots, err := svc.repo.QuerySlots(ctx, f, exec)
			if err != nil {
				return errors.Wrap(err, "querying timetable")
			}
			for _, other := range slots {
				if field, clash := slot.Clashes(other); clash {
					return core.NewFieldError(field, "overlaps the lesson from "+other.StartsAt+" to "+other.EndsAt)
				}
			}
		}

		if slot, err = svc.repo.CreateSlot(ctx, slot, exec); err != nil {
			return errors.Wrap(err, "creating timetable slot")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModuleAcademic, slot.ID, nil, slot, exec)
	})
	if err != nil {
		return TimetableSlot{}, err
	}
	return slot, nil
}

func (svc *Service) RemoveSlot(ctx context.Context, id string) error {
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.DeleteSlot(ctx, id, exec); err != nil {
			return err
		}
		return svc.audit.Record(ctx, audit.ActionDelete, core.ModuleAcademic, id, nil, nil, exec)
	})
}

func (svc *Service) SectionTimetable(ctx context.Context, sectionID string) ([]TimetableSlot, error) {
	return svc.repo.QuerySlots(ctx, SlotFilter{SectionID: sectionID})
}

func (svc *Service) TeacherTimetable(ctx context.Context, teacherID string) ([]TimetableSlot, error) {
	return svc.repo.QuerySlots(ctx, SlotFilter{TeacherID: teacherID})
}

// Calendar

func (svc *Service) CreateEvent(ctx context.Context, ne NewCalendarEvent) (CalendarEvent, error) {
	if err := ne.Validate(svc.validate); err != nil {
		return CalendarEvent{}, err
	}
	e := CalendarEvent{
		InstitutionID:  ne.InstitutionID,
		AcademicYearID: ne.AcademicYearID,
		Title:          ne.Title,
		Kind:           ne.Kind,
		Description:    ne.Description,
		StartsOn:       ne.StartsOn,
		EndsOn:         ne.EndsOn,
	}
	e, err := svc.repo.CreateEvent(ctx, e)
	return e, errors.Wrap(err, "creating calendar event")
}

func (svc *Service) QueryEvents(ctx context.Context, institutionID string, from, to time.Time) ([]CalendarEvent, error) {
	if !to.IsZero() && to.Before(from) {
		return nil, core.NewFieldError("to", "to must be on or after from")
	}
	return svc.repo.QueryEvents(ctx, institutionID, core.DateOf(from), core.DateOf(to))
}
