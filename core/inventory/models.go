package inventory

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
)

// Stock movement kinds
const (
	MoveIn         = "in"
	MoveOut        = "out"
	MoveAdjustment = "adjustment"
	MoveLoss       = "loss"

	DefaultMinStock = 10
)

type Product struct {
	ID          string          `json:"id" db:"id"`
	VendorID    *string         `json:"vendor_id" db:"vendor_id"`
	Code        string          `json:"code" db:"code"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Category    string          `json:"category" db:"category"` // uniform, book, stationery, food, other
	Unit        string          `json:"unit" db:"unit"`
	CostPrice   decimal.Decimal `json:"cost_price" db:"cost_price"`
	SalePrice   decimal.Decimal `json:"sale_price" db:"sale_price"`
	Stock       int             `json:"stock" db:"stock"`
	MinStock    int             `json:"min_stock" db:"min_stock"`
	MaxStock    int             `json:"max_stock" db:"max_stock"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	TrackStock  bool            `json:"track_stock" db:"track_stock"`
	ImagePath   string          `json:"image_path" db:"image_path"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// NeedsRestock reports whether the stock of a tracked product reached the minimum.
func (p Product) NeedsRestock() bool {
	return p.TrackStock && p.Stock <= p.MinStock
}

// Margin is the profit margin in percent of the cost price.
func (p Product) Margin() decimal.Decimal {
	return core.Ratio(p.SalePrice.Sub(p.CostPrice), p.CostPrice)
}

type StockMovement struct {
	ID         string          `json:"id" db:"id"`
	ProductID  string          `json:"product_id" db:"product_id"`
	Kind       string          `json:"kind" db:"kind"`
	Reason     string          `json:"reason" db:"reason"`
	Quantity   int             `json:"quantity" db:"quantity"` // signed: negative removes stock
	Before     int             `json:"before" db:"stock_before"`
	After      int             `json:"after" db:"stock_after"`
	UnitValue  decimal.Decimal `json:"unit_value" db:"unit_value"`
	Total      decimal.Decimal `json:"total" db:"total"`
	VendorID   *string         `json:"vendor_id" db:"vendor_id"`
	SaleID     *string         `json:"sale_id" db:"sale_id"`
	EmployeeID string          `json:"employee_id" db:"employee_id"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// NewProduct contains information needed to create a new Product.
type NewProduct struct {
	VendorID    *string         `json:"vendor_id" validate:"omitempty,uuid"`
	Code        string          `json:"code" validate:"required,code,max=30"`
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description"`
	Category    string          `json:"category" validate:"oneof=uniform book stationery food other"`
	Unit        string          `json:"unit" validate:"max=10"`
	CostPrice   decimal.Decimal `json:"cost_price" validate:"gte=0"`
	SalePrice   decimal.Decimal `json:"sale_price" validate:"gte=0"`
	Stock       int             `json:"stock" validate:"gte=0"`
	MinStock    *int            `json:"min_stock" validate:"omitempty,gte=0"`
	MaxStock    int             `json:"max_stock" validate:"gte=0"`
	TrackStock  *bool           `json:"track_stock"`
}

func (np *NewProduct) Validate(validate *validator.Validate) error {
	np.Code = core.CleanString(np.Code)
	np.Name = core.CleanString(np.Name)
	np.Category = core.CleanString(np.Category, true /* lower */)
	if np.Category == "" {
		np.Category = "other"
	}
	if np.Unit = core.CleanString(np.Unit); np.Unit == "" {
		np.Unit = "un"
	}
	if err := validate.Struct(np); err != nil {
		return err
	}
	return checkPrices(np.CostPrice, np.SalePrice)
}

func checkPrices(cost, sale decimal.Decimal) error {
	if sale.LessThan(cost) {
		return core.NewFieldError("sale_price", "sale_price cannot be lower than cost_price")
	}
	return nil
}

// UpdateProduct defines what information may be provided to modify an existing Product.
type UpdateProduct struct {
	Name        string              `json:"name" validate:"max=200"`
	Description *string             `json:"description"`
	CostPrice   decimal.NullDecimal `json:"cost_price" validate:"omitempty,gte=0"`
	SalePrice   decimal.NullDecimal `json:"sale_price" validate:"omitempty,gte=0"`
	MinStock    *int                `json:"min_stock" validate:"omitempty,gte=0"`
	MaxStock    *int                `json:"max_stock" validate:"omitempty,gte=0"`
	IsActive    *bool               `json:"is_active"`
}

// AdjustStock describes a manual stock change.
type AdjustStock struct {
	Kind      string          `json:"kind" validate:"required,oneof=in out adjustment loss"`
	Quantity  int             `json:"quantity" validate:"ne=0"`
	Reason    string          `json:"reason" validate:"required,max=200"`
	UnitValue decimal.Decimal `json:"unit_value" validate:"gte=0"`
	VendorID  *string         `json:"vendor_id" validate:"omitempty,uuid"`
}

// NewStockMovement is a stock change made by another module (sales).
type NewStockMovement struct {
	ProductID string
	Kind      string
	Quantity  int // signed
	Reason    string
	UnitValue decimal.Decimal
	SaleID    *string
	VendorID  *string
}

type QueryFilter struct {
	Search     string `query:"search"`
	Category   string `query:"category"`
	ActiveOnly bool   `query:"active"`
	Restock    bool   `query:"restock"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category, true /* lower */)
}
