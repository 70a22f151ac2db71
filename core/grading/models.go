package grading

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
)

// Assessment kinds
const (
	KindWrittenTest   = "written_test"
	KindPractical     = "practical"
	KindProject       = "project"
	KindPresentation  = "presentation"
	KindParticipation = "participation"
	KindQuiz          = "quiz"
	KindExam          = "exam"
)

// Academic record results
const (
	ResultApproved    = "approved"
	ResultFailed      = "failed"
	ResultRecovery    = "recovery"
	ResultTransferred = "transferred"
	ResultInProgress  = "in_progress"
)

// RecoveryMargin is how far below the pass mark an average still earns a recovery exam.
var RecoveryMargin = decimal.NewFromInt(2)

// Mark is the value a student got in an assessment.
type Mark struct {
	ID        string          `json:"id" db:"id"`
	StudentID string          `json:"student_id" db:"student_id"`
	SectionID string          `json:"section_id" db:"section_id"`
	SubjectID string          `json:"subject_id" db:"subject_id"`
	Term      int             `json:"term" db:"term"`
	Kind      string          `json:"kind" db:"kind"`
	Value     decimal.Decimal `json:"value" db:"value"`
	Weight    decimal.Decimal `json:"weight" db:"weight"`
	TakenOn   time.Time       `json:"taken_on" db:"taken_on"`
	TeacherID string          `json:"teacher_id" db:"teacher_id"`
	Notes     string          `json:"notes" db:"notes"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type Attendance struct {
	ID         string    `json:"id" db:"id"`
	StudentID  string    `json:"student_id" db:"student_id"`
	SectionID  string    `json:"section_id" db:"section_id"`
	SubjectID  string    `json:"subject_id" db:"subject_id"`
	SlotID     *string   `json:"slot_id" db:"slot_id"`
	Day        time.Time `json:"day" db:"day"`
	Present    bool      `json:"present" db:"present"`
	Justified  bool      `json:"justified" db:"justified"`
	Note       string    `json:"note" db:"note"`
	RecordedBy string    `json:"recorded_by" db:"recorded_by"`
}

// Record is the closed result of a student in a subject for an academic year.
type Record struct {
	ID             string          `json:"id" db:"id"`
	StudentID      string          `json:"student_id" db:"student_id"`
	AcademicYearID string          `json:"academic_year_id" db:"academic_year_id"`
	GradeID        string          `json:"grade_id" db:"grade_id"`
	SectionID      string          `json:"section_id" db:"section_id"`
	SubjectID      string          `json:"subject_id" db:"subject_id"`
	FinalAverage   decimal.Decimal `json:"final_average" db:"final_average"`
	AttendanceRate decimal.Decimal `json:"attendance_rate" db:"attendance_rate"`
	Result         string          `json:"result" db:"result"`
	ClosedAt       time.Time       `json:"closed_at" db:"closed_at"`
}

// WeightedAverage is the weighted mean of the marks rounded to 2 places, 0 without marks.
func WeightedAverage(marks []Mark) decimal.Decimal {
	sum, weights := decimal.Zero, decimal.Zero
	for _, m := range marks {
		sum = sum.Add(m.Value.Mul(m.Weight))
		weights = weights.Add(m.Weight)
	}
	if weights.IsZero() {
		return decimal.Zero
	}
	return sum.Div(weights).Round(2)
}

// AttendanceRate is the share of present (or justified) entries in percent, 100 without entries.
func AttendanceRate(entries []Attendance) decimal.Decimal {
	if len(entries) == 0 {
		return core.Hundred
	}
	attended := 0
	for _, a := range entries {
		if a.Present || a.Justified {
			attended++
		}
	}
	return core.Ratio(decimal.NewFromInt(int64(attended)), decimal.NewFromInt(int64(len(entries))))
}

// ResultOf classifies a final average and attendance rate against the pass mark and the minimum attendance.
func ResultOf(average, attendance, passMark, minAttendance decimal.Decimal) string {
	passes := !average.LessThan(passMark)
	attends := !attendance.LessThan(minAttendance)
	switch {
	case passes && attends:
		return ResultApproved
	case attends && !average.LessThan(passMark.Sub(RecoveryMargin)):
		return ResultRecovery
	}
	return ResultFailed
}

// NewMark contains information needed to record a Mark.
type NewMark struct {
	StudentID string          `json:"student_id" validate:"required,uuid"`
	SectionID string          `json:"section_id" validate:"required,uuid"`
	SubjectID string          `json:"subject_id" validate:"required,uuid"`
	Term      int             `json:"term" validate:"gte=1,lte=3"`
	Kind      string          `json:"kind" validate:"required,oneof=written_test practical project presentation participation quiz exam"`
	Value     decimal.Decimal `json:"value" validate:"gte=0,lte=20"`
	Weight    decimal.Decimal `json:"weight" validate:"gt=0"`
	TakenOn   time.Time       `json:"taken_on"`
	Notes     string          `json:"notes" validate:"max=500"`
}

func (nm *NewMark) Validate(validate *validator.Validate) error {
	nm.Kind = core.CleanString(nm.Kind, true /* lower */)
	nm.Notes = core.CleanString(nm.Notes)
	nm.Value = nm.Value.Round(2)
	if nm.Weight.IsZero() {
		nm.Weight = decimal.NewFromInt(1)
	}
	if nm.TakenOn.IsZero() {
		nm.TakenOn = core.Today()
	}
	nm.TakenOn = core.DateOf(nm.TakenOn)
	return validate.Struct(nm)
}

// NewAttendance contains information needed to record an Attendance entry.
type NewAttendance struct {
	StudentID string    `json:"student_id" validate:"required,uuid"`
	SectionID string    `json:"section_id" validate:"required,uuid"`
	SubjectID string    `json:"subject_id" validate:"required,uuid"`
	SlotID    *string   `json:"slot_id" validate:"omitempty,uuid"`
	Day       time.Time `json:"day" validate:"required"`
	Present   bool      `json:"present"`
	Justified bool      `json:"justified"`
	Note      string    `json:"note" validate:"max=500"`
}

func (na *NewAttendance) Validate(validate *validator.Validate) error {
	na.Note = core.CleanString(na.Note)
	na.Day = core.DateOf(na.Day)
	if err := validate.Struct(na); err != nil {
		return err
	}
	if na.Day.After(core.Today()) {
		return core.NewFieldError("day", "attendance cannot be recorded for a future day")
	}
	return nil
}

type MarkFilter struct {
	StudentID string `query:"student_id"`
	SectionID string `query:"section_id"`
	SubjectID string `query:"subject_id"`
	Term      int    `query:"term"`
}

func (f MarkFilter) Matches(m Mark) bool {
	return (f.StudentID == "" || m.StudentID == f.StudentID) &&
		(f.SectionID == "" || m.SectionID == f.SectionID) &&
		(f.SubjectID == "" || m.SubjectID == f.SubjectID) &&
		(f.Term == 0 || m.Term == f.Term)
}

type AttendanceFilter struct {
	StudentID string    `query:"student_id"`
	SectionID string    `query:"section_id"`
	SubjectID string    `query:"subject_id"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}

func (f AttendanceFilter) Matches(a Attendance) bool {
	return (f.StudentID == "" || a.StudentID == f.StudentID) &&
		(f.SectionID == "" || a.SectionID == f.SectionID) &&
		(f.SubjectID == "" || a.SubjectID == f.SubjectID) &&
		(f.From.IsZero() || !a.Day.Before(f.From)) &&
		(f.To.IsZero() || !a.Day.After(f.To))
}

type RecordFilter struct {
	StudentID      string `query:"student_id"`
	SectionID      string `query:"section_id"`
	AcademicYearID string `query:"academic_year_id"`
}

func (f RecordFilter) Matches(r Record) bool {
	return (f.StudentID == "" || r.StudentID == f.StudentID) &&
		(f.SectionID == "" || r.SectionID == f.SectionID) &&
		(f.AcademicYearID == "" || r.AcademicYearID == f.AcademicYearID)
}
