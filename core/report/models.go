package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/enrollment"
)

// Dashboard holds the counters shown on the management home screen.
type Dashboard struct {
	ActiveStudents      int             `json:"active_students"`
	ActiveTeachers      int             `json:"active_teachers"`
	OpenSections        int             `json:"open_sections"`
	AverageOccupancy    decimal.Decimal `json:"average_occupancy"`
	MonthRevenue        decimal.Decimal `json:"month_revenue"`
	OverdueInstallments int             `json:"overdue_installments"`
	RestockProducts     int             `json:"restock_products"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// SectionLoad is the capacity and active enrollment count of an open class section.
type SectionLoad struct {
	SectionID string `json:"section_id" gorm:"column:section_id"`
	Capacity  int    `json:"capacity" gorm:"column:capacity"`
	Active    int    `json:"active" gorm:"column:active"`
}

// AverageOccupancy is the mean occupancy of the sections, 0 without sections.
func AverageOccupancy(loads []SectionLoad) decimal.Decimal {
	if len(loads) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, l := range loads {
		if l.Capacity > 0 {
			sum = sum.Add(decimal.NewFromInt(int64(l.Active)).Mul(core.Hundred).Div(decimal.NewFromInt(int64(l.Capacity))))
		}
	}
	return sum.Div(decimal.NewFromInt(int64(len(loads)))).Round(2)
}

// MonthlyFinance compares what was expected from tuition in a month with what was received.
type MonthlyFinance struct {
	Year        int             `json:"year"`
	Month       time.Month      `json:"month"`
	Expected    decimal.Decimal `json:"expected"`
	Received    decimal.Decimal `json:"received"`
	Pending     decimal.Decimal `json:"pending"`
	Delinquency decimal.Decimal `json:"delinquency"` // percent of expected
}

// NewMonthlyFinance derives the pending amount (never negative) and the delinquency rate.
func NewMonthlyFinance(year int, month time.Month, expected, received decimal.Decimal) MonthlyFinance {
	pending := expected.Sub(received)
	if pending.IsNegative() {
		pending = decimal.Zero
	}
	return MonthlyFinance{
		Year:        year,
		Month:       month,
		Expected:    expected,
		Received:    received,
		Pending:     pending,
		Delinquency: core.Ratio(pending, expected),
	}
}

// ActiveStudent is a row of the active students view.
type ActiveStudent struct {
	EnrollmentID   string          `json:"enrollment_id" gorm:"column:enrollment_id"`
	StudentID      string          `json:"student_id" gorm:"column:student_id"`
	StudentCode    string          `json:"student_code" gorm:"column:student_code"`
	Name           string          `json:"name" gorm:"column:name"`
	Grade          string          `json:"grade" gorm:"column:grade"`
	Section        string          `json:"section" gorm:"column:section"`
	AcademicYearID string          `json:"academic_year_id" gorm:"column:academic_year_id"`
	TuitionFee     decimal.Decimal `json:"tuition_fee" gorm:"column:tuition_fee"`
	AmountPaid     decimal.Decimal `json:"amount_paid" gorm:"column:amount_paid"`
}

// PaymentStatus classifies what the student paid of the enrollment fee.
func (as ActiveStudent) PaymentStatus() enrollment.PaymentStatus {
	return enrollment.PaymentStatusOf(as.TuitionFee, as.AmountPaid)
}

// ActiveStudentRow is the JSON form of ActiveStudent, with its payment status.
type ActiveStudentRow struct {
	ActiveStudent
	PaymentStatus enrollment.PaymentStatus `json:"payment_status"`
}
