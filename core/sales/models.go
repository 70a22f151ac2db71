package sales

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
)

// Sale statuses
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Sale installment statuses
const (
	InstallmentPending = "pending"
	InstallmentPartial = "partial"
	InstallmentPaid    = "paid"
)

type Sale struct {
	ID             string          `json:"id" db:"id"`
	StudentID      *string         `json:"student_id" db:"student_id"`
	EmployeeID     string          `json:"employee_id" db:"employee_id"`
	Number         string          `json:"number" db:"number"`
	Total          decimal.Decimal `json:"total" db:"total"`
	Discount       decimal.Decimal `json:"discount" db:"discount"`
	Final          decimal.Decimal `json:"final" db:"final"`
	Paid           decimal.Decimal `json:"paid" db:"paid"`
	Change         decimal.Decimal `json:"change" db:"change"`
	Method         string          `json:"method" db:"method"`
	Status         string          `json:"status" db:"status"`
	PartiallyPaid  bool            `json:"partially_paid" db:"partially_paid"`
	Installments   int             `json:"installments" db:"installments"`
	SoldAt         time.Time       `json:"sold_at" db:"sold_at"`
	PaidAt         *time.Time      `json:"paid_at" db:"paid_at"`
	CashRegisterID *string         `json:"cash_register_id" db:"cash_register_id"`
	Notes          string          `json:"notes" db:"notes"`
}

// Remaining is what is still owed on the sale.
func (s Sale) Remaining() decimal.Decimal {
	r := s.Final.Sub(s.Paid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// SaleNumber numbers sales after the current time, down to the millisecond.
func SaleNumber(now time.Time) string {
	return fmt.Sprintf("V%s%03d", now.Format("20060102150405"), now.Nanosecond()/int(time.Millisecond))
}

type Item struct {
	ID            string          `json:"id" db:"id"`
	SaleID        string          `json:"sale_id" db:"sale_id"`
	ProductID     string          `json:"product_id" db:"product_id"`
	ProductName   string          `json:"product_name,omitempty" db:"product_name"`
	Quantity      int             `json:"quantity" db:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price" db:"unit_price"`
	DiscountPct   decimal.Decimal `json:"discount_pct" db:"discount_pct"`
	DiscountValue decimal.Decimal `json:"discount_value" db:"discount_value"`
	Total         decimal.Decimal `json:"total" db:"total"`
}

// ItemTotal is quantity x unit price - discount value.
func ItemTotal(qty int, unit, discount decimal.Decimal) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty))).Sub(discount).Round(2)
}

// Installment is one part of a sale paid over several months.
type Installment struct {
	ID         string          `json:"id" db:"id"`
	SaleID     string          `json:"sale_id" db:"sale_id"`
	Number     int             `json:"number" db:"number"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Paid       decimal.Decimal `json:"paid" db:"paid"`
	DueDate    time.Time       `json:"due_date" db:"due_date"`
	PaidOn     *time.Time      `json:"paid_on" db:"paid_on"`
	Status     string          `json:"status" db:"status"`
	Method     string          `json:"method" db:"method"`
	Receipt    string          `json:"receipt" db:"receipt"`
	ReceivedBy string          `json:"received_by" db:"received_by"`
}

func (i Installment) Remaining() decimal.Decimal {
	return i.Amount.Sub(i.Paid)
}

// Receipt is a sale with its items.
type Receipt struct {
	Sale
	Items        []Item        `json:"items"`
	Installments []Installment `json:"installments,omitempty"`
}

// CartLine is one product line of a checkout.
type CartLine struct {
	ProductID   string          `json:"product_id" validate:"required,uuid"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	DiscountPct decimal.Decimal `json:"discount_pct" validate:"gte=0,lte=100"`
}

// Cart contains information needed to check out a Sale.
type Cart struct {
	StudentID      *string         `json:"student_id" validate:"omitempty,uuid"`
	Lines          []CartLine      `json:"lines" validate:"dive"`
	Discount       decimal.Decimal `json:"discount" validate:"gte=0"`
	Method         string          `json:"method" validate:"required,oneof=cash transfer deposit multicaixa"`
	Tendered       decimal.Decimal `json:"tendered" validate:"gte=0"`
	Installments   int             `json:"installments" validate:"gte=0,lte=12"`
	CashRegisterID *string         `json:"cash_register_id" validate:"omitempty,uuid"`
	Notes          string          `json:"notes" validate:"max=500"`
}

func (c *Cart) Validate(validate *validator.Validate) error {
	if len(c.Lines) == 0 {
		return core.NewFieldError("lines", "the cart is empty")
	}
	c.Method = core.CleanString(c.Method, true /* lower */)
	c.Notes = core.CleanString(c.Notes)
	if c.Installments == 0 {
		c.Installments = 1
	}
	seen := make(map[string]bool, len(c.Lines))
	for _, l := range c.Lines {
		if seen[l.ProductID] {
			return core.NewFieldError("lines", "a product can only appear once in the cart")
		}
		seen[l.ProductID] = true
	}
	return validate.Struct(c)
}

// PayInstallment settles (part of) a sale installment.
type PayInstallment struct {
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	Method         string          `json:"method" validate:"required,oneof=cash transfer deposit multicaixa"`
	CashRegisterID *string         `json:"cash_register_id" validate:"omitempty,uuid"`
}

type QueryFilter struct {
	StudentID string    `query:"student_id"`
	Status    string    `query:"status"`
	From      time.Time `query:"from"`
	To        time.Time `query:"to"`
}

func (qf QueryFilter) Matches(s Sale) bool {
	if qf.StudentID != "" && (s.StudentID == nil || *s.StudentID != qf.StudentID) {
		return false
	}
	if qf.Status != "" && s.Status != qf.Status {
		return false
	}
	if !qf.From.IsZero() && s.SoldAt.Before(qf.From) {
		return false
	}
	if !qf.To.IsZero() && !s.SoldAt.Before(qf.To) {
		return false
	}
	return true
}
