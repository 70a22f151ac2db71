package cashier

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
)

// Movement kinds
const (
	KindIn  = "in"
	KindOut = "out"
)

// Movement categories
const (
	CategoryTuition    = "tuition"
	CategoryEnrollment = "enrollment"
	CategorySale       = "sale"
	CategoryVendor     = "vendor"
	CategoryExpense    = "expense"
	CategoryReversal   = "reversal"
	CategoryOther      = "other"
)

// Register is a cash register ("caixa"), opened for a period then closed and checked.
type Register struct {
	ID             string              `json:"id" db:"id"`
	Code           string              `json:"code" db:"code"`
	Description    string              `json:"description" db:"description"`
	ResponsibleID  string              `json:"responsible_id" db:"responsible_id"`
	Period         string              `json:"period" db:"period"` // daily, weekly, monthly
	OpenedAt       time.Time           `json:"opened_at" db:"opened_at"`
	ClosedAt       *time.Time          `json:"closed_at" db:"closed_at"`
	OpeningBalance decimal.Decimal     `json:"opening_balance" db:"opening_balance"`
	ClosingBalance decimal.NullDecimal `json:"closing_balance" db:"closing_balance"`
	TotalIn        decimal.Decimal     `json:"total_in" db:"total_in"`
	TotalOut       decimal.Decimal     `json:"total_out" db:"total_out"`
	IsOpen         bool                `json:"is_open" db:"is_open"`
	ClosedBy       *string             `json:"closed_by" db:"closed_by"`
	Checked        bool                `json:"checked" db:"checked"`
	CheckedBy      *string             `json:"checked_by" db:"checked_by"`
	CheckedAt      *time.Time          `json:"checked_at" db:"checked_at"`
}

// CurrentBalance is the closing balance once set, opening + inflows - outflows otherwise.
func (r Register) CurrentBalance() decimal.Decimal {
	if r.ClosingBalance.Valid {
		return r.ClosingBalance.Decimal
	}
	return r.OpeningBalance.Add(r.TotalIn).Sub(r.TotalOut)
}

type Movement struct {
	ID              string          `json:"id" db:"id"`
	RegisterID      string          `json:"register_id" db:"register_id"`
	Kind            string          `json:"kind" db:"kind"`
	Category        string          `json:"category" db:"category"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Description     string          `json:"description" db:"description"`
	PaymentID       *string         `json:"payment_id" db:"payment_id"`
	VendorPaymentID *string         `json:"vendor_payment_id" db:"vendor_payment_id"`
	SaleID          *string         `json:"sale_id" db:"sale_id"`
	EmployeeID      string          `json:"employee_id" db:"employee_id"`
	ReceiptNumber   string          `json:"receipt_number" db:"receipt_number"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// NewRegister contains information needed to open a Register.
type NewRegister struct {
	Code           string          `json:"code" validate:"required,code,max=20"`
	Description    string          `json:"description" validate:"max=200"`
	Period         string          `json:"period" validate:"oneof=daily weekly monthly"`
	OpeningBalance decimal.Decimal `json:"opening_balance" validate:"gte=0"`
}

func (nr *NewRegister) Validate(validate *validator.Validate) error {
	nr.Code = core.CleanString(nr.Code)
	nr.Description = core.CleanString(nr.Description)
	nr.Period = core.CleanString(nr.Period, true /* lower */)
	if nr.Period == "" {
		nr.Period = "daily"
	}
	return validate.Struct(nr)
}

type NewMovement struct {
	RegisterID      string          `json:"register_id" validate:"required,uuid"`
	Kind            string          `json:"kind" validate:"required,oneof=in out"`
	Category        string          `json:"category" validate:"required,oneof=tuition enrollment sale vendor expense reversal other"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	Description     string          `json:"description" validate:"max=500"`
	PaymentID       *string         `json:"-"`
	VendorPaymentID *string         `json:"-"`
	SaleID          *string         `json:"-"`
	ReceiptNumber   string          `json:"receipt_number" validate:"max=50"`
}

func (nm *NewMovement) Validate(validate *validator.Validate) error {
	nm.Kind = core.CleanString(nm.Kind, true /* lower */)
	nm.Category = core.CleanString(nm.Category, true /* lower */)
	nm.Description = core.CleanString(nm.Description)
	nm.Amount = nm.Amount.Round(2)
	return validate.Struct(nm)
}

type QueryFilter struct {
	OpenOnly bool      `query:"open"`
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`
}
