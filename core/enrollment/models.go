package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
)

// Statuses
const (
	StatusActive      = "active"
	StatusTransferred = "transferred"
	StatusCancelled   = "cancelled"
	StatusCompleted   = "completed"
)

// Discount kinds
const (
	DiscountNone        = "none"
	DiscountSiblings    = "siblings"
	DiscountStaff       = "staff"
	DiscountPunctuality = "punctuality"
)

type PaymentStatus string

const (
	PaymentExempt  PaymentStatus = "exempt"
	PaymentPaid    PaymentStatus = "paid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPending PaymentStatus = "pending"
)

// PaymentStatusOf classifies what was paid against the fee: Exempt when the fee is zero whatever
// was paid, Paid once the fee is covered, Partial for a positive amount below the fee, Pending otherwise.
func PaymentStatusOf(fee, paid decimal.Decimal) PaymentStatus {
	switch {
	case fee.IsZero():
		return PaymentExempt
	case paid.GreaterThanOrEqual(fee):
		return PaymentPaid
	case paid.IsPositive():
		return PaymentPartial
	default:
		return PaymentPending
	}
}

// Enrollment ("matrícula") registers a student in a class section for an academic year.
type Enrollment struct {
	ID             string          `json:"id" db:"id"`
	StudentID      string          `json:"student_id" db:"student_id"`
	AcademicYearID string          `json:"academic_year_id" db:"academic_year_id"`
	SectionID      string          `json:"section_id" db:"section_id"`
	Number         string          `json:"number" db:"number"`
	EnrolledOn     time.Time       `json:"enrolled_on" db:"enrolled_on"`
	Status         string          `json:"status" db:"status"`
	PaymentPlanID  *string         `json:"payment_plan_id" db:"payment_plan_id"`
	DiscountKind   string          `json:"discount_kind" db:"discount_kind"`
	TuitionFee     decimal.Decimal `json:"tuition_fee" db:"tuition_fee"`
	AmountPaid     decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	Notes          string          `json:"notes" db:"notes"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

func (e Enrollment) PaymentStatus() PaymentStatus {
	return PaymentStatusOf(e.TuitionFee, e.AmountPaid)
}

// Balance is what remains to be paid, never negative.
func (e Enrollment) Balance() decimal.Decimal {
	if bal := e.TuitionFee.Sub(e.AmountPaid); bal.IsPositive() {
		return bal
	}
	return decimal.Zero
}

func (e Enrollment) IsActive() bool {
	return e.Status == StatusActive
}

// NewEnrollment contains information needed to enroll a student.
type NewEnrollment struct {
	StudentID     string          `json:"student_id" validate:"required,uuid"`
	SectionID     string          `json:"section_id" validate:"required,uuid"`
	EnrolledOn    time.Time       `json:"enrolled_on"`
	PaymentPlanID *string         `json:"payment_plan_id" validate:"omitempty,uuid"`
	DiscountKind  string          `json:"discount_kind" validate:"oneof=none siblings staff punctuality"`
	TuitionFee    decimal.Decimal `json:"tuition_fee" validate:"gte=0"`
	Notes         string          `json:"notes"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.DiscountKind = core.CleanString(ne.DiscountKind, true /* lower */)
	if ne.DiscountKind == "" {
		ne.DiscountKind = DiscountNone
	}
	if ne.EnrolledOn.IsZero() {
		ne.EnrolledOn = core.Today()
	}
	ne.EnrolledOn = core.DateOf(ne.EnrolledOn)
	ne.Notes = core.CleanString(ne.Notes)
	return validate.Struct(ne)
}

type QueryFilter struct {
	StudentID      string `query:"student_id"`
	AcademicYearID string `query:"academic_year_id"`
	SectionID      string `query:"section_id"`
	Status         string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.AcademicYearID = core.CleanString(qf.AcademicYearID)
	qf.SectionID = core.CleanString(qf.SectionID)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

func (qf *QueryFilter) Matches(e Enrollment) bool {
	return (qf.StudentID == "" || e.StudentID == qf.StudentID) &&
		(qf.AcademicYearID == "" || e.AcademicYearID == qf.AcademicYearID) &&
		(qf.SectionID == "" || e.SectionID == qf.SectionID) &&
		(qf.Status == "" || e.Status == qf.Status)
}
