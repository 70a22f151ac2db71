package academic

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
)

// Section shifts
const (
	ShiftMorning   = "morning"
	ShiftAfternoon = "afternoon"
	ShiftEvening   = "evening"
	ShiftFullDay   = "full_day"

	DefaultSectionCapacity = 35
)

// Calendar event kinds
const (
	EventHoliday = "holiday"
	EventExam    = "exam"
	EventMeeting = "meeting"
	EventEvent   = "event"
	EventTerm    = "term"
)

const clockLayout = "15:04"

type AcademicYear struct {
	ID              string     `json:"id" db:"id"`
	InstitutionID   string     `json:"institution_id" db:"institution_id"`
	Year            int        `json:"year" db:"year"`
	Code            string     `json:"code" db:"code"`
	Name            string     `json:"name" db:"name"`
	StartsOn        time.Time  `json:"starts_on" db:"starts_on"`
	EndsOn          time.Time  `json:"ends_on" db:"ends_on"`
	EnrollmentStart *time.Time `json:"enrollment_start" db:"enrollment_start"`
	EnrollmentEnd   *time.Time `json:"enrollment_end" db:"enrollment_end"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	IsClosed        bool       `json:"is_closed" db:"is_closed"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// IsEnrollmentOpen reports whether enrollments are accepted on `day`.
func (ay AcademicYear) IsEnrollmentOpen(day time.Time) bool {
	if ay.IsClosed {
		return false
	}
	day = core.DateOf(day)
	if ay.EnrollmentStart != nil && day.Before(core.DateOf(*ay.EnrollmentStart)) {
		return false
	}
	if ay.EnrollmentEnd != nil && day.After(core.DateOf(*ay.EnrollmentEnd)) {
		return false
	}
	return true
}

type Grade struct {
	ID            string `json:"id" db:"id"`
	InstitutionID string `json:"institution_id" db:"institution_id"`
	Name          string `json:"name" db:"name"`
	Order         int    `json:"order" db:"sort_order"`
	Level         string `json:"level" db:"level"` // primary, first_cycle, second_cycle
	MinAge        int    `json:"min_age" db:"min_age"`
	MaxAge        int    `json:"max_age" db:"max_age"`
	WeeklyHours   int    `json:"weekly_hours" db:"weekly_hours"`
	IsActive      bool   `json:"is_active" db:"is_active"`
}

type Subject struct {
	ID            string `json:"id" db:"id"`
	InstitutionID string `json:"institution_id" db:"institution_id"`
	Code          string `json:"code" db:"code"`
	Name          string `json:"name" db:"name"`
	Area          string `json:"area" db:"area"`
	IsActive      bool   `json:"is_active" db:"is_active"`
}

// GradeSubject is a Subject in the curriculum of a Grade.
type GradeSubject struct {
	ID          string          `json:"id" db:"id"`
	GradeID     string          `json:"grade_id" db:"grade_id"`
	SubjectID   string          `json:"subject_id" db:"subject_id"`
	WeeklyHours int             `json:"weekly_hours" db:"weekly_hours"`
	Weight      decimal.Decimal `json:"weight" db:"weight"`
	Mandatory   bool            `json:"mandatory" db:"mandatory"`
}

// ClassSection is a class ("turma") of a Grade in an AcademicYear.
type ClassSection struct {
	ID             string    `json:"id" db:"id"`
	AcademicYearID string    `json:"academic_year_id" db:"academic_year_id"`
	GradeID        string    `json:"grade_id" db:"grade_id"`
	RoomID         *string   `json:"room_id" db:"room_id"`
	TeacherID      *string   `json:"teacher_id" db:"teacher_id"` // homeroom teacher
	Code           string    `json:"code" db:"code"`
	Name           string    `json:"name" db:"name"`
	Shift          string    `json:"shift" db:"shift"`
	Capacity       int       `json:"capacity" db:"capacity"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Occupancy is 100 * active / capacity, 0 when the capacity is 0.
func Occupancy(active, capacity int) decimal.Decimal {
	return core.Ratio(decimal.NewFromInt(int64(active)), decimal.NewFromInt(int64(capacity)))
}

// IsFull reports whether `active` enrollments leave no room in the section.
func (cs ClassSection) IsFull(active int) bool {
	return active >= cs.Capacity
}

type SectionOccupancy struct {
	Section   ClassSection    `json:"section"`
	Active    int             `json:"active"`
	Available int             `json:"available"`
	Occupancy decimal.Decimal `json:"occupancy"`
}

// Teaching levels of a TeacherSubject
const (
	LevelBachelor  = "bachelor"
	LevelMaster    = "master"
	LevelDoctorate = "doctorate"
)

// TeacherSubject qualifies a teacher to give lessons of a Subject. A teacher holds at most one
// qualification per subject.
type TeacherSubject struct {
	ID              string `json:"id" db:"id"`
	TeacherID       string `json:"teacher_id" db:"teacher_id"`
	SubjectID       string `json:"subject_id" db:"subject_id"`
	Level           string `json:"level" db:"level"`
	YearsExperience int    `json:"years_experience" db:"years_experience"`
	Preferred       bool   `json:"preferred" db:"preferred"`
	IsActive        bool   `json:"is_active" db:"is_active"`
}

// TimetableSlot is a weekly lesson of a Subject given to a ClassSection.
type TimetableSlot struct {
	ID        string  `json:"id" db:"id"`
	SectionID string  `json:"section_id" db:"section_id"`
	SubjectID string  `json:"subject_id" db:"subject_id"`
	TeacherID string  `json:"teacher_id" db:"teacher_id"`
	RoomID    *string `json:"room_id" db:"room_id"`
	Weekday   int     `json:"weekday" db:"weekday"` // 1 (Monday) - 7 (Sunday)
	StartsAt  string  `json:"starts_at" db:"starts_at"`
	EndsAt    string  `json:"ends_at" db:"ends_at"`
}

// Duration returns the length of the lesson in minutes.
func (s TimetableSlot) Duration() int {
	start, err1 := ParseClock(s.StartsAt)
	end, err2 := ParseClock(s.EndsAt)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(end.Sub(start).Minutes())
}

// Overlaps reports whether both slots share the weekday and some minutes.
func (s TimetableSlot) Overlaps(o TimetableSlot) bool {
	if s.Weekday != o.Weekday {
		return false
	}
	return s.StartsAt < o.EndsAt && o.StartsAt < s.EndsAt
}

// Clashes reports whether o double-books the section, the teacher or the room of s.
func (s TimetableSlot) Clashes(o TimetableSlot) (string, bool) {
	if s.ID == o.ID || !s.Overlaps(o) {
		return "", false
	}
	switch {
	case s.SectionID == o.SectionID:
		return "section_id", true
	case s.TeacherID == o.TeacherID:
		return "teacher_id", true
	case s.RoomID != nil && o.RoomID != nil && *s.RoomID == *o.RoomID:
		return "room_id", true
	}
	return "", false
}

// ParseClock accepts "15:04" and "15:04:05".
func ParseClock(s string) (time.Time, error) {
	if t, err := time.Parse(clockLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid time %q", s)
	}
	return t, nil
}

type CalendarEvent struct {
	ID             string    `json:"id" db:"id"`
	InstitutionID  string    `json:"institution_id" db:"institution_id"`
	AcademicYearID *string   `json:"academic_year_id" db:"academic_year_id"`
	Title          string    `json:"title" db:"title"`
	Kind           string    `json:"kind" db:"kind"`
	Description    string    `json:"description" db:"description"`
	StartsOn       time.Time `json:"starts_on" db:"starts_on"`
	EndsOn         time.Time `json:"ends_on" db:"ends_on"`
}

// NewAcademicYear contains information needed to create a new AcademicYear.
type NewAcademicYear struct {
	InstitutionID   string     `json:"institution_id" validate:"required,uuid"`
	Year            int        `json:"year" validate:"gte=1975,lte=2100"`
	Code            string     `json:"code" validate:"required,code,max=20"`
	Name            string     `json:"name" validate:"required,max=100"`
	StartsOn        time.Time  `json:"starts_on" validate:"required"`
	EndsOn          time.Time  `json:"ends_on" validate:"required,gtfield=StartsOn"`
	EnrollmentStart *time.Time `json:"enrollment_start"`
	EnrollmentEnd   *time.Time `json:"enrollment_end"`
}

func (ny *NewAcademicYear) Validate(validate *validator.Validate) error {
	ny.Code = core.CleanString(ny.Code)
	ny.Name = core.CleanString(ny.Name)
	ny.StartsOn = core.DateOf(ny.StartsOn)
	ny.EndsOn = core.DateOf(ny.EndsOn)
	if err := validate.Struct(ny); err != nil {
		return err
	}
	if ny.EnrollmentStart != nil && ny.EnrollmentEnd != nil && ny.EnrollmentEnd.Before(*ny.EnrollmentStart) {
		return core.NewFieldError("enrollment_end", "enrollment_end must be on or after enrollment_start")
	}
	return nil
}

type NewGrade struct {
	InstitutionID string `json:"institution_id" validate:"required,uuid"`
	Name          string `json:"name" validate:"required,max=50"`
	Order         int    `json:"order" validate:"gte=0"`
	Level         string `json:"level" validate:"omitempty,oneof=preschool primary first_cycle second_cycle"`
	MinAge        int    `json:"min_age" validate:"gte=0"`
	MaxAge        int    `json:"max_age" validate:"omitempty,gtefield=MinAge"`
	WeeklyHours   int    `json:"weekly_hours" validate:"gte=0"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Level = core.CleanString(ng.Level, true /* lower */)
	return validate.Struct(ng)
}

type NewSubject struct {
	InstitutionID string `json:"institution_id" validate:"required,uuid"`
	Code          string `json:"code" validate:"required,code,max=20"`
	Name          string `json:"name" validate:"required,max=100"`
	Area          string `json:"area" validate:"max=50"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Code = core.CleanString(ns.Code)
	ns.Name = core.CleanString(ns.Name)
	ns.Area = core.CleanString(ns.Area)
	return validate.Struct(ns)
}

type NewGradeSubject struct {
	GradeID     string          `json:"grade_id" validate:"required,uuid"`
	SubjectID   string          `json:"subject_id" validate:"required,uuid"`
	WeeklyHours int             `json:"weekly_hours" validate:"gte=0"`
	Weight      decimal.Decimal `json:"weight" validate:"gt=0"`
	Mandatory   *bool           `json:"mandatory"`
}

func (ngs *NewGradeSubject) Validate(validate *validator.Validate) error {
	if ngs.Weight.IsZero() {
		ngs.Weight = decimal.NewFromInt(1)
	}
	return validate.Struct(ngs)
}

type NewClassSection struct {
	AcademicYearID string  `json:"academic_year_id" validate:"required,uuid"`
	GradeID        string  `json:"grade_id" validate:"required,uuid"`
	RoomID         *string `json:"room_id" validate:"omitempty,uuid"`
	TeacherID      *string `json:"teacher_id" validate:"omitempty,uuid"`
	Code           string  `json:"code" validate:"required,code,max=20"`
	Name           string  `json:"name" validate:"max=100"`
	Shift          string  `json:"shift" validate:"required,oneof=morning afternoon evening full_day"`
	Capacity       int     `json:"capacity" validate:"gt=0"`
}

func (nc *NewClassSection) Validate(validate *validator.Validate) error {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	nc.Shift = core.CleanString(nc.Shift, true /* lower */)
	if nc.Capacity == 0 {
		nc.Capacity = DefaultSectionCapacity
	}
	if nc.Name == "" {
		nc.Name = nc.Code
	}
	return validate.Struct(nc)
}

// UpdateClassSection defines what information may be provided to modify an existing ClassSection.
type UpdateClassSection struct {
	RoomID    *string `json:"room_id" validate:"omitempty,uuid"`
	TeacherID *string `json:"teacher_id" validate:"omitempty,uuid"`
	Name      string  `json:"name" validate:"max=100"`
	Capacity  int     `json:"capacity" validate:"gte=0"`
	IsActive  *bool   `json:"is_active"`
}

type NewTimetableSlot struct {
	SectionID string  `json:"section_id" validate:"required,uuid"`
	SubjectID string  `json:"subject_id" validate:"required,uuid"`
	TeacherID string  `json:"teacher_id" validate:"required,uuid"`
	RoomID    *string `json:"room_id" validate:"omitempty,uuid"`
	Weekday   int     `json:"weekday" validate:"gte=1,lte=7"`
	StartsAt  string  `json:"starts_at" validate:"required"`
	EndsAt    string  `json:"ends_at" validate:"required"`
}

func (ns *NewTimetableSlot) Validate(validate *validator.Validate) error {
	if err := validate.Struct(ns); err != nil {
		return err
	}
	start, err := ParseClock(core.CleanString(ns.StartsAt))
	if err != nil {
		return core.NewFieldError("starts_at", err.Error())
	}
	end, err := ParseClock(core.CleanString(ns.EndsAt))
	if err != nil {
		return core.NewFieldError("ends_at", err.Error())
	}
	if !end.After(start) {
		return core.NewFieldError("ends_at", "ends_at must be after starts_at")
	}
	ns.StartsAt = start.Format(clockLayout)
	ns.EndsAt = end.Format(clockLayout)
	return nil
}

type NewTeacherSubject struct {
	TeacherID       string `json:"teacher_id" validate:"required,uuid"`
	SubjectID       string `json:"subject_id" validate:"required,uuid"`
	Level           string `json:"level" validate:"required,oneof=bachelor master doctorate"`
	YearsExperience int    `json:"years_experience" validate:"gte=0,lte=60"`
	Preferred       bool   `json:"preferred"`
}

func (nts *NewTeacherSubject) Validate(validate *validator.Validate) error {
	nts.Level = core.CleanString(nts.Level, true /* lower */)
	return validate.Struct(nts)
}

// UpdateTeacherSubject defines what information may be provided to modify an existing TeacherSubject.
type UpdateTeacherSubject struct {
	Level           string `json:"level" validate:"omitempty,oneof=bachelor master doctorate"`
	YearsExperience *int   `json:"years_experience" validate:"omitempty,gte=0,lte=60"`
	Preferred       *bool  `json:"preferred"`
	IsActive        *bool  `json:"is_active"`
}

func (uts *UpdateTeacherSubject) Validate(validate *validator.Validate) error {
	uts.Level = core.CleanString(uts.Level, true /* lower */)
	return validate.Struct(uts)
}

type NewCalendarEvent struct {
	InstitutionID  string    `json:"institution_id" validate:"required,uuid"`
	AcademicYearID *string   `json:"academic_year_id" validate:"omitempty,uuid"`
	Title          string    `json:"title" validate:"required,max=200"`
	Kind           string    `json:"kind" validate:"required,oneof=holiday exam meeting event term"`
	Description    string    `json:"description"`
	StartsOn       time.Time `json:"starts_on" validate:"required"`
	EndsOn         time.Time `json:"ends_on" validate:"required,gtefield=StartsOn"`
}

func (ne *NewCalendarEvent) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Kind = core.CleanString(ne.Kind, true /* lower */)
	ne.StartsOn = core.DateOf(ne.StartsOn)
	ne.EndsOn = core.DateOf(ne.EndsOn)
	return validate.Struct(ne)
}
