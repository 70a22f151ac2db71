package grading

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/audit"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/institution"
)

var (
	ErrAttendanceExists = errors.New("attendance was already recorded for this student, subject and day")
	ErrNotEnrolled      = errors.New("the student is not enrolled in this section")
	ErrSubjectNotTaught = errors.New("the subject is not taught in this grade")
	ErrYearClosed       = errors.New("the academic year is closed")
)

type (
	Repository interface {
		CreateMark(ctx context.Context, m Mark, exec ...core.DBExecutor) (Mark, error)
		QueryMarks(ctx context.Context, filter MarkFilter, exec ...core.DBExecutor) ([]Mark, error)

		AttendanceExists(ctx context.Context, na NewAttendance, exec ...core.DBExecutor) (bool, error)
		CreateAttendance(ctx context.Context, a Attendance, exec ...core.DBExecutor) (Attendance, error)
		QueryAttendance(ctx context.Context, filter AttendanceFilter, exec ...core.DBExecutor) ([]Attendance, error)

		DeleteRecords(ctx context.Context, sectionID string, exec ...core.DBExecutor) error
		CreateRecord(ctx context.Context, r Record, exec ...core.DBExecutor) (Record, error)
		QueryRecords(ctx context.Context, filter RecordFilter, exec ...core.DBExecutor) ([]Record, error)

		GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (academic.ClassSection, error)
		GetYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error)
		QueryGradeSubjects(ctx context.Context, gradeID string, exec ...core.DBExecutor) ([]academic.GradeSubject, error)
		// QuerySectionEnrollments returns the active enrollments of a section.
		QuerySectionEnrollments(ctx context.Context, sectionID string, exec ...core.DBExecutor) ([]enrollment.Enrollment, error)
		GetSettings(ctx context.Context, institutionID string, exec ...core.DBExecutor) (institution.Settings, error)
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

func fieldErr(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// checkStudy makes sure the student is actively enrolled in the section and that the subject
// belongs to the section's grade.
func (svc *Service) checkStudy(ctx context.Context, studentID, sectionID, subjectID string) error {
	sec, err := svc.repo.GetSection(ctx, sectionID)
	if err != nil {
		return err
	}
	enrs, err := svc.repo.QuerySectionEnrollments(ctx, sectionID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	enrolled := false
	for _, e := range enrs {
		if e.StudentID == studentID {
			enrolled = true
			break
		}
	}
	if !enrolled {
		return fieldErr("student_id", ErrNotEnrolled)
	}
	subjects, err := svc.repo.QueryGradeSubjects(ctx, sec.GradeID)
	if err != nil {
		return errors.Wrap(err, "querying grade subjects")
	}
	for _, gs := range subjects {
		if gs.SubjectID == subjectID {
			return nil
		}
	}
	return fieldErr("subject_id", ErrSubjectNotTaught)
}

func (svc *Service) AddMark(ctx context.Context, nm NewMark) (Mark, error) {
	if err := nm.Validate(svc.validate); err != nil {
		return Mark{}, err
	}
	if err := svc.checkStudy(ctx, nm.StudentID, nm.SectionID, nm.SubjectID); err != nil {
		return Mark{}, err
	}

	m := Mark{
		StudentID: nm.StudentID,
		SectionID: nm.SectionID,
		SubjectID: nm.SubjectID,
		Term:      nm.Term,
		Kind:      nm.Kind,
		Value:     nm.Value,
		Weight:    nm.Weight,
		TakenOn:   nm.TakenOn,
		TeacherID: core.ActorFrom(ctx).UserID,
		Notes:     nm.Notes,
		CreatedAt: core.NowFunc().UTC(),
	}
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if m, err = svc.repo.CreateMark(ctx, m, exec); err != nil {
			return errors.Wrap(err, "creating mark")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModuleGrading, m.ID, nil, m, exec)
	})
	if err != nil {
		return Mark{}, err
	}
	return m, nil
}

func (svc *Service) QueryMarks(ctx context.Context, filter MarkFilter) ([]Mark, error) {
	return svc.repo.QueryMarks(ctx, filter)
}

// RecordAttendance records whether a student attended a subject on a day. There is one entry per
// student, section, subject and day.
func (svc *Service) RecordAttendance(ctx context.Context, na NewAttendance) (Attendance, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Attendance{}, err
	}
	if err := svc.checkStudy(ctx, na.StudentID, na.SectionID, na.SubjectID); err != nil {
		return Attendance{}, err
	}

	var a Attendance
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		exists, err := svc.repo.AttendanceExists(ctx, na, exec)
		if err != nil {
			return errors.Wrap(err, "checking attendance")
		}
		if exists {
			return fieldErr("day", ErrAttendanceExists)
		}
		a = Attendance{
			StudentID:  na.StudentID,
			SectionID:  na.SectionID,
			SubjectID:  na.SubjectID,
			SlotID:     na.SlotID,
			Day:        na.Day,
			Present:    na.Present,
			Justified:  na.Justified,
			Note:       na.Note,
			RecordedBy: core.ActorFrom(ctx).UserID,
		}
		a, err = svc.repo.CreateAttendance(ctx, a, exec)
		return errors.Wrap(err, "creating attendance")
	})
	if err != nil {
		return Attendance{}, err
	}
	return a, nil
}

func (svc *Service) QueryAttendance(ctx context.Context, filter AttendanceFilter) ([]Attendance, error) {
	return svc.repo.QueryAttendance(ctx, filter)
}

// SubjectAverage is the weighted mean of the student's marks in a subject, over one term or over
// the whole year when term is 0.
func (svc *Service) SubjectAverage(ctx context.Context, studentID, sectionID, subjectID string, term int) (decimal.Decimal, error) {
	marks, err := svc.repo.QueryMarks(ctx, MarkFilter{
		StudentID: studentID, SectionID: sectionID, SubjectID: subjectID, Term: term,
	})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "querying marks")
	}
	return WeightedAverage(marks), nil
}

// AttendanceRate is the share of classes the student attended (or was excused from) in percent.
// An empty subjectID covers every subject of the section.
func (svc *Service) AttendanceRate(ctx context.Context, studentID, sectionID, subjectID string) (decimal.Decimal, error) {
	entries, err := svc.repo.QueryAttendance(ctx, AttendanceFilter{
		StudentID: studentID, SectionID: sectionID, SubjectID: subjectID,
	})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "querying attendance")
	}
	return AttendanceRate(entries), nil
}

// CloseRecords computes the academic record of every active student of the section in every subject
// of its grade, replacing the records computed before.
func (svc *Service) CloseRecords(ctx context.Context, sectionID string) ([]Record, error) {
	var records []Record
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		sec, err := svc.repo.GetSection(ctx, sectionID, exec)
		if err != nil {
			return err
		}
		year, err := svc.repo.GetYear(ctx, sec.AcademicYearID, exec)
		if err != nil {
			return err
		}
		if year.IsClosed {
			return fieldErr("academic_year_id", ErrYearClosed)
		}
		settings, err := svc.repo.GetSettings(ctx, year.InstitutionID, exec)
		if err != nil {
			if errors.Cause(err) != institution.ErrSettingsNotFound {
				return errors.Wrap(err, "getting settings")
			}
			settings = institution.DefaultSettings(year.InstitutionID)
		}
		enrs, err := svc.repo.QuerySectionEnrollments(ctx, sectionID, exec)
		if err != nil {
			return errors.Wrap(err, "querying enrollments")
		}
		subjects, err := svc.repo.QueryGradeSubjects(ctx, sec.GradeID, exec)
		if err != nil {
			return errors.Wrap(err, "querying grade subjects")
		}
		if err = svc.repo.DeleteRecords(ctx, sectionID, exec); err != nil {
			return errors.Wrap(err, "deleting records")
		}

		now := core.NowFunc().UTC()
		for _, e := range enrs {
			for _, gs := range subjects {
				marks, err := svc.repo.QueryMarks(ctx, MarkFilter{
					StudentID: e.StudentID, SectionID: sectionID, SubjectID: gs.SubjectID,
				}, exec)
				if err != nil {
					return errors.Wrap(err, "querying marks")
				}
				entries, err := svc.repo.QueryAttendance(ctx, AttendanceFilter{
					StudentID: e.StudentID, SectionID: sectionID, SubjectID: gs.SubjectID,
				}, exec)
				if err != nil {
					return errors.Wrap(err, "querying attendance")
				}
				avg, rate := WeightedAverage(marks), AttendanceRate(entries)
				r := Record{
					StudentID:      e.StudentID,
					AcademicYearID: year.ID,
					GradeID:        sec.GradeID,
					SectionID:      sectionID,
					SubjectID:      gs.SubjectID,
					FinalAverage:   avg,
					AttendanceRate: rate,
					Result:         ResultOf(avg, rate, settings.PassMark, settings.MinAttendancePct),
					ClosedAt:       now,
				}
				if r, err = svc.repo.CreateRecord(ctx, r, exec); err != nil {
					return errors.Wrap(err, "creating record")
				}
				records = append(records, r)
			}
		}
		return svc.audit.Record(ctx, audit.ActionClose, core.ModuleGrading, sectionID, nil, records, exec)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (svc *Service) QueryRecords(ctx context.Context, filter RecordFilter) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, filter)
}
