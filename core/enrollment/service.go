package enrollment

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/audit"
	"github.com/somabem/erp/core/people"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("enrollment")

	ErrAlreadyEnrolled  = errors.New("the student is already enrolled in this academic year")
	ErrSectionFull      = errors.New("the class section is full")
	ErrEnrollmentClosed = errors.New("enrollments are closed for this academic year")
	ErrNotActive        = errors.New("the enrollment is not active")
	ErrOtherYear        = errors.New("the class section belongs to another academic year")
)

type (
	Repository interface {
		CreateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (Enrollment, error)
		QueryEnrollments(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, e Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		// StudentYearExists reports whether the student has a non-cancelled enrollment in the year.
		StudentYearExists(ctx context.Context, studentID, yearID string, exec ...core.DBExecutor) (bool, error)
		// NextNumber returns the next sequence number of the year's enrollments.
		NextNumber(ctx context.Context, yearID string, exec ...core.DBExecutor) (int, error)
		CountActive(ctx context.Context, sectionID string, exec ...core.DBExecutor) (int, error)

		GetStudent(ctx context.Context, personID string, exec ...core.DBExecutor) (people.Student, error)
		GetYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error)
		// LockSection returns the section, locking it until the end of the transaction.
		LockSection(ctx context.Context, id string, exec ...core.DBExecutor) (academic.ClassSection, error)
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

// checkRoom fails when the section has no free seat.
func (svc *Service) checkRoom(ctx context.Context, cs academic.ClassSection, exec core.DBExecutor) error {
	active, err := svc.repo.CountActive(ctx, cs.ID, exec)
	if err != nil {
		return errors.Wrap(err, "counting enrollments")
	}
	if cs.IsFull(active) {
		return fieldErr("section_id", ErrSectionFull)
	}
	return nil
}

// Enroll registers the student in the section, for the section's academic year.
func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	if err := ne.Validate(svc.validate); err != nil {
		return Enrollment{}, err
	}
	student, err := svc.repo.GetStudent(ctx, ne.StudentID)
	if err != nil {
		return Enrollment{}, err
	}
	if student.Status != people.StudentActive {
		return Enrollment{}, core.NewFieldError("student_id", "the student is not active")
	}

	var e Enrollment
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		cs, err := svc.repo.LockSection(ctx, ne.SectionID, exec)
		if err != nil {
			return err
		}
		if !cs.IsActive {
			return core.NewFieldError("section_id", "the class section is not active")
		}
		ay, err := svc.repo.GetYear(ctx, cs.AcademicYearID, exec)
		if err != nil {
			return err
		}
		if !ay.IsEnrollmentOpen(ne.EnrolledOn) {
			return fieldErr("enrolled_on", ErrEnrollmentClosed)
		}
		exists, err := svc.repo.StudentYearExists(ctx, ne.StudentID, ay.ID, exec)
		if err != nil {
			return errors.Wrap(err, "checking enrollments")
		}
		if exists {
			return fieldErr("student_id", ErrAlreadyEnrolled)
		}
		if err = svc.checkRoom(ctx, cs, exec); err != nil {
			return err
		}
		seq, err := svc.repo.NextNumber(ctx, ay.ID, exec)
		if err != nil {
			return errors.Wrap(err, "numbering enrollment")
		}

		now := core.NowFunc().UTC()
		e = Enrollment{
			StudentID:      ne.StudentID,
			AcademicYearID: ay.ID,
			SectionID:      cs.ID,
			Number:         fmt.Sprintf("%d/%05d", ay.Year, seq),
			EnrolledOn:     ne.EnrolledOn,
			Status:         StatusActive,
			PaymentPlanID:  ne.PaymentPlanID,
			DiscountKind:   ne.DiscountKind,
			TuitionFee:     ne.TuitionFee.Round(2),
			Notes:          ne.Notes,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if e, err = svc.repo.CreateEnrollment(ctx, e, exec); err != nil {
			return errors.Wrap(err, "creating enrollment")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModuleEnrollment, e.ID, nil, e, exec)
	})
	if err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Enrollment, error) {
	filter.Clean()
	return svc.repo.QueryEnrollments(ctx, filter)
}

// Transfer moves an active enrollment to another section of the same academic year.
func (svc *Service) Transfer(ctx context.Context, id, sectionID string) (Enrollment, error) {
	var e Enrollment
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetEnrollment(ctx, id, exec)
		if err != nil {
			return err
		}
		if !orig.IsActive() {
			return fieldErr("status", ErrNotActive)
		}
		if orig.SectionID == sectionID {
			return core.NewFieldError("section_id", "the student is already in this class section")
		}
		cs, err := svc.repo.LockSection(ctx, sectionID, exec)
		if err != nil {
			return err
		}
		if cs.AcademicYearID != orig.AcademicYearID {
			return fieldErr("section_id", ErrOtherYear)
		}
		if err = svc.checkRoom(ctx, cs, exec); err != nil {
			return err
		}

		e = orig
		e.SectionID = cs.ID
		e.UpdatedAt = core.NowFunc().UTC()
		if e, err = svc.repo.UpdateEnrollment(ctx, e, exec); err != nil {
			return errors.Wrap(err, "transferring enrollment")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModuleEnrollment, id, orig, e, exec)
	})
	if err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

// Cancel cancels the enrollment; the record is kept.
func (svc *Service) Cancel(ctx context.Context, id, reason string) (Enrollment, error) {
	var e Enrollment
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetEnrollment(ctx, id, exec)
		if err != nil {
			return err
		}
		if !orig.IsActive() {
			return fieldErr("status", ErrNotActive)
		}
		e = orig
		e.Status = StatusCancelled
		if reason = core.CleanString(reason); reason != "" {
			e.Notes = reason
		}
		e.UpdatedAt = core.NowFunc().UTC()
		if e, err = svc.repo.UpdateEnrollment(ctx, e, exec); err != nil {
			return errors.Wrap(err, "cancelling enrollment")
		}
		return svc.audit.Record(ctx, audit.ActionCancel, core.ModuleEnrollment, id, orig, e, exec)
	})
	if err != nil {
		return Enrollment{}, err
	}
	return e, nil
}

func (svc *Service) CountActive(ctx context.Context, sectionID string) (int, error) {
	return svc.repo.CountActive(ctx, sectionID)
}
