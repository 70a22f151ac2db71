package tuition

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/enrollment"
)

// Installment statuses. "overdue" is never stored: see Installment.EffectiveStatus.
const (
	StatusPending   = "pending"
	StatusPartial   = "partial"
	StatusPaid      = "paid"
	StatusOverdue   = "overdue"
	StatusCancelled = "cancelled"
	StatusExempt    = "exempt"
)

// Payment methods
const (
	MethodCash       = "cash"
	MethodTransfer   = "transfer"
	MethodDeposit    = "deposit"
	MethodMulticaixa = "multicaixa"
	MethodCheque     = "cheque"
	MethodCredit     = "credit"
	MethodDebit      = "debit"
)

// PaymentPlan defines the yearly tuition of a grade, split into installments.
type PaymentPlan struct {
	ID                 string          `json:"id" db:"id"`
	AcademicYearID     string          `json:"academic_year_id" db:"academic_year_id"`
	GradeID            string          `json:"grade_id" db:"grade_id"`
	Name               string          `json:"name" db:"name"`
	Kind               string          `json:"kind" db:"kind"`                   // regular, scholarship, special
	BillingCycle       string          `json:"billing_cycle" db:"billing_cycle"` // monthly, quarterly, semiannual, annual
	TotalAmount        decimal.Decimal `json:"total_amount" db:"total_amount"`
	EnrollmentFee      decimal.Decimal `json:"enrollment_fee" db:"enrollment_fee"`
	Installments       int             `json:"installments" db:"installments"`
	UpfrontDiscountPct decimal.Decimal `json:"upfront_discount_pct" db:"upfront_discount_pct"`
	SiblingDiscountPct decimal.Decimal `json:"sibling_discount_pct" db:"sibling_discount_pct"`
	StaffDiscountPct   decimal.Decimal `json:"staff_discount_pct" db:"staff_discount_pct"`
	IsActive           bool            `json:"is_active" db:"is_active"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
}

// DiscountPct returns the discount percentage the plan grants to an enrollment discount kind.
func (p PaymentPlan) DiscountPct(kind string) decimal.Decimal {
	switch kind {
	case enrollment.DiscountSiblings:
		return p.SiblingDiscountPct
	case enrollment.DiscountStaff:
		return p.StaffDiscountPct
	case enrollment.DiscountPunctuality:
		return p.UpfrontDiscountPct
	}
	return decimal.Zero
}

// InstallmentTemplate is one installment of a PaymentPlan, instantiated for each enrollment.
type InstallmentTemplate struct {
	ID                 string          `json:"id" db:"id"`
	PlanID             string          `json:"plan_id" db:"plan_id"`
	Number             int             `json:"number" db:"number"`
	Name               string          `json:"name" db:"name"`
	Amount             decimal.Decimal `json:"amount" db:"amount"`
	Percentage         decimal.Decimal `json:"percentage" db:"percentage"`
	DueDay             int             `json:"due_day" db:"due_day"`
	Month              int             `json:"month" db:"month"`
	IncludesTuition    bool            `json:"includes_tuition" db:"includes_tuition"`
	IncludesMeals      bool            `json:"includes_meals" db:"includes_meals"`
	IncludesTransport  bool            `json:"includes_transport" db:"includes_transport"`
	IncludesMaterial   bool            `json:"includes_material" db:"includes_material"`
	IncludesUniform    bool            `json:"includes_uniform" db:"includes_uniform"`
	IncludesActivities bool            `json:"includes_activities" db:"includes_activities"`
}

// Installment ("parcela de propina") is what an enrollment owes for one month.
type Installment struct {
	ID                 string          `json:"id" db:"id"`
	EnrollmentID       string          `json:"enrollment_id" db:"enrollment_id"`
	TemplateID         *string         `json:"template_id" db:"template_id"`
	Number             int             `json:"number" db:"number"`
	Name               string          `json:"name" db:"name"`
	Month              int             `json:"month" db:"month"`
	Year               int             `json:"year" db:"year"`
	OriginalValue      decimal.Decimal `json:"original_value" db:"original_value"`
	DiscountPct        decimal.Decimal `json:"discount_pct" db:"discount_pct"`
	DiscountValue      decimal.Decimal `json:"discount_value" db:"discount_value"`
	ValueAfterDiscount decimal.Decimal `json:"value_after_discount" db:"value_after_discount"`
	AmountPaid         decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	DueDate            time.Time       `json:"due_date" db:"due_date"`
	PaidOn             *time.Time      `json:"paid_on" db:"paid_on"`
	Interest           decimal.Decimal `json:"interest" db:"interest"`
	Penalty            decimal.Decimal `json:"penalty" db:"penalty"`
	DaysLate           int             `json:"days_late" db:"days_late"`
	Status             string          `json:"status" db:"status"`
}

// Owed is the value after discount plus interest and penalty.
func (i Installment) Owed() decimal.Decimal {
	return i.ValueAfterDiscount.Add(i.Interest).Add(i.Penalty)
}

// Remaining is what is still owed.
func (i Installment) Remaining() decimal.Decimal {
	return i.Owed().Sub(i.AmountPaid)
}

// IsOverdue reports whether a pending installment is past its due date on `today`.
func (i Installment) IsOverdue(today time.Time) bool {
	return i.Status == StatusPending && core.DateOf(today).After(core.DateOf(i.DueDate))
}

// DaysUntilDue is negative once the due date is past.
func (i Installment) DaysUntilDue(today time.Time) int {
	return int(core.DateOf(i.DueDate).Sub(core.DateOf(today)).Hours() / 24)
}

// EffectiveStatus is the stored status, or "overdue" when IsOverdue.
func (i Installment) EffectiveStatus(today time.Time) string {
	if i.IsOverdue(today) {
		return StatusOverdue
	}
	return i.Status
}

// IsPayable reports whether payments may still be registered against the installment.
func (i Installment) IsPayable() bool {
	return i.Status == StatusPending || i.Status == StatusPartial
}

// settle updates the status after AmountPaid changed.
func (i *Installment) settle(today time.Time) {
	switch {
	case i.AmountPaid.GreaterThanOrEqual(i.Owed()):
		i.Status = StatusPaid
		i.PaidOn = &today
	case i.AmountPaid.IsPositive():
		i.Status = StatusPartial
		i.PaidOn = nil
	default:
		i.Status = StatusPending
		i.PaidOn = nil
	}
}

// Payment is a tuition payment. Payments are reversed, never deleted.
type Payment struct {
	ID             string          `json:"id" db:"id"`
	StudentID      string          `json:"student_id" db:"student_id"`
	InstallmentID  string          `json:"installment_id" db:"installment_id"`
	GuardianID     *string         `json:"guardian_id" db:"guardian_id"`
	ReceiptNumber  string          `json:"receipt_number" db:"receipt_number"`
	Reference      string          `json:"reference" db:"reference"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Change         decimal.Decimal `json:"change" db:"change"`
	Method         string          `json:"method" db:"method"`
	Details        string          `json:"details" db:"details"`
	PostedOn       time.Time       `json:"posted_on" db:"posted_on"`
	ReceivedBy     string          `json:"received_by" db:"received_by"`
	CashRegisterID *string         `json:"cash_register_id" db:"cash_register_id"`
	Reversed       bool            `json:"reversed" db:"reversed"`
	ReversedOn     *time.Time      `json:"reversed_on" db:"reversed_on"`
	ReversalReason string          `json:"reversal_reason" db:"reversal_reason"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// ReceiptNumber numbers receipts after the current time, down to the millisecond.
func ReceiptNumber(now time.Time) string {
	return fmt.Sprintf("R%s%03d", now.Format("20060102150405"), now.Nanosecond()/int(time.Millisecond))
}

// NewPaymentPlan contains information needed to create a new PaymentPlan.
type NewPaymentPlan struct {
	AcademicYearID     string          `json:"academic_year_id" validate:"required,uuid"`
	GradeID            string          `json:"grade_id" validate:"required,uuid"`
	Name               string          `json:"name" validate:"required,max=100"`
	Kind               string          `json:"kind" validate:"oneof=regular scholarship special"`
	BillingCycle       string          `json:"billing_cycle" validate:"oneof=monthly quarterly semiannual annual"`
	TotalAmount        decimal.Decimal `json:"total_amount" validate:"gt=0"`
	EnrollmentFee      decimal.Decimal `json:"enrollment_fee" validate:"gte=0"`
	Installments       int             `json:"installments" validate:"gt=0,lte=12"`
	UpfrontDiscountPct decimal.Decimal `json:"upfront_discount_pct" validate:"gte=0,lte=100"`
	SiblingDiscountPct decimal.Decimal `json:"sibling_discount_pct" validate:"gte=0,lte=100"`
	StaffDiscountPct   decimal.Decimal `json:"staff_discount_pct" validate:"gte=0,lte=100"`
}

func (np *NewPaymentPlan) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Kind = core.CleanString(np.Kind, true /* lower */)
	if np.Kind == "" {
		np.Kind = "regular"
	}
	np.BillingCycle = core.CleanString(np.BillingCycle, true /* lower */)
	if np.BillingCycle == "" {
		np.BillingCycle = "monthly"
	}
	return validate.Struct(np)
}

// GenerateTemplates describes how a plan total is split into monthly templates.
type GenerateTemplates struct {
	FirstMonth         int  `json:"first_month" validate:"gte=1,lte=12"`
	IncludesMeals      bool `json:"includes_meals"`
	IncludesTransport  bool `json:"includes_transport"`
	IncludesMaterial   bool `json:"includes_material"`
	IncludesUniform    bool `json:"includes_uniform"`
	IncludesActivities bool `json:"includes_activities"`
}

type NewPayment struct {
	InstallmentID  string          `json:"installment_id" validate:"required,uuid"`
	GuardianID     *string         `json:"guardian_id" validate:"omitempty,uuid"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Tendered       decimal.Decimal `json:"tendered" validate:"gte=0"` // cash handed over, for the change
	Method         string          `json:"method" validate:"required,oneof=cash transfer deposit multicaixa cheque credit debit"`
	Reference      string          `json:"reference" validate:"max=100"`
	Details        string          `json:"details" validate:"max=500"`
	CashRegisterID *string         `json:"cash_register_id" validate:"omitempty,uuid"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Method = core.CleanString(np.Method, true /* lower */)
	np.Reference = core.CleanString(np.Reference)
	np.Details = core.CleanString(np.Details)
	np.Amount = np.Amount.Round(2)
	return validate.Struct(np)
}

type InstallmentFilter struct {
	EnrollmentID string    `query:"enrollment_id"`
	Status       string    `query:"status"`
	DueBefore    time.Time `query:"due_before"` // exclusive
}

type PaymentFilter struct {
	StudentID       string    `query:"student_id"`
	InstallmentID   string    `query:"installment_id"`
	From            time.Time `query:"from"`
	To              time.Time `query:"to"`
	IncludeReversed bool      `query:"include_reversed"`
}

func (pf *PaymentFilter) Matches(p Payment) bool {
	return (pf.StudentID == "" || p.StudentID == pf.StudentID) &&
		(pf.InstallmentID == "" || p.InstallmentID == pf.InstallmentID) &&
		(pf.From.IsZero() || !p.PostedOn.Before(core.DateOf(pf.From))) &&
		(pf.To.IsZero() || !p.PostedOn.After(core.DateOf(pf.To))) &&
		(pf.IncludeReversed || !p.Reversed)
}
