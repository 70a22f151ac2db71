package institution

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
)

type Kind string

const (
	KindPublic        Kind = "public"
	KindPrivate       Kind = "private"
	KindPublicPrivate Kind = "public_private"
	KindPartnership   Kind = "partnership"
)

type Institution struct {
	ID            string     `json:"id" db:"id"`
	MEDCode       string     `json:"med_code" db:"med_code"`
	Name          string     `json:"name" db:"name"`
	TradeName     string     `json:"trade_name" db:"trade_name"`
	Kind          Kind       `json:"kind" db:"kind"`
	NIF           string     `json:"nif" db:"nif"`
	PermitNumber  string     `json:"permit_number" db:"permit_number"`
	AuthorizedOn  time.Time  `json:"authorized_on" db:"authorized_on"`
	FoundedOn     *time.Time `json:"founded_on" db:"founded_on"`
	Email         string     `json:"email" db:"email"`
	Phone         string     `json:"phone" db:"phone"`
	Website       string     `json:"website" db:"website"`
	Province      string     `json:"province" db:"province"`
	Municipality  string     `json:"municipality" db:"municipality"`
	Neighbourhood string     `json:"neighbourhood" db:"neighbourhood"`
	Street        string     `json:"street" db:"street"`
	Currency      string     `json:"currency" db:"currency"`
	Language      string     `json:"language" db:"language"`
	Timezone      string     `json:"timezone" db:"timezone"`
	Director      string     `json:"director" db:"director"`
	SchoolDays    int        `json:"school_days" db:"school_days"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"` // UTC
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"` // UTC
}

// Address joins the non-empty address parts.
func (inst Institution) Address() string {
	var addr string
	for _, part := range []string{inst.Street, inst.Neighbourhood, inst.Municipality, inst.Province} {
		if part == "" {
			continue
		}
		if addr != "" {
			addr += ", "
		}
		addr += part
	}
	return addr
}

type Campus struct {
	ID            string    `json:"id" db:"id"`
	InstitutionID string    `json:"institution_id" db:"institution_id"`
	Code          string    `json:"code" db:"code"`
	Name          string    `json:"name" db:"name"`
	Province      string    `json:"province" db:"province"`
	Municipality  string    `json:"municipality" db:"municipality"`
	Street        string    `json:"street" db:"street"`
	Phone         string    `json:"phone" db:"phone"`
	Email         string    `json:"email" db:"email"`
	StudentCap    int       `json:"student_capacity" db:"student_capacity"`
	Director      string    `json:"director" db:"director"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Block struct {
	ID          string    `json:"id" db:"id"`
	CampusID    string    `json:"campus_id" db:"campus_id"`
	Code        string    `json:"code" db:"code"`
	Name        string    `json:"name" db:"name"`
	Floors      int       `json:"floors" db:"floors"`
	Condition   string    `json:"condition" db:"condition"` // regular, renovation, closed
	HasElevator bool      `json:"has_elevator" db:"has_elevator"`
	HasRamp     bool      `json:"has_ramp" db:"has_ramp"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Room struct {
	ID               string     `json:"id" db:"id"`
	CampusID         string     `json:"campus_id" db:"campus_id"`
	BlockID          *string    `json:"block_id" db:"block_id"`
	Code             string     `json:"code" db:"code"`
	Name             string     `json:"name" db:"name"`
	Kind             string     `json:"kind" db:"kind"` // classroom, lab, computer_lab, library, office
	Capacity         int        `json:"capacity" db:"capacity"`
	Floor            int        `json:"floor" db:"floor"`
	HasProjector     bool       `json:"has_projector" db:"has_projector"`
	HasAC            bool       `json:"has_air_conditioning" db:"has_air_conditioning"`
	HasInternet      bool       `json:"has_internet" db:"has_internet"`
	Computers        int        `json:"computers" db:"computers"`
	Available        bool       `json:"available" db:"available"`
	MaintenanceUntil *time.Time `json:"maintenance_until" db:"maintenance_until"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// IsAvailable reports whether the room can be booked on `day`.
func (r Room) IsAvailable(day time.Time) bool {
	if !r.Available {
		return false
	}
	return r.MaintenanceUntil == nil || core.DateOf(*r.MaintenanceUntil).Before(core.DateOf(day))
}

// Settings are the per-institution rules used by grading, tuition and authentication.
type Settings struct {
	ID                     string          `json:"id" db:"id"`
	InstitutionID          string          `json:"institution_id" db:"institution_id"`
	PassMark               decimal.Decimal `json:"pass_mark" db:"pass_mark" validate:"gte=0"`
	MaxMark                decimal.Decimal `json:"max_mark" db:"max_mark" validate:"gt=0"`
	MinAttendancePct       decimal.Decimal `json:"min_attendance_pct" db:"min_attendance_pct" validate:"gte=0,lte=100"`
	MaxUnexcusedAbsences   int             `json:"max_unexcused_absences" db:"max_unexcused_absences" validate:"gte=0"`
	TuitionDueDay          int             `json:"tuition_due_day" db:"tuition_due_day" validate:"gte=1,lte=28"`
	GraceDays              int             `json:"grace_days" db:"grace_days" validate:"gte=0"`
	DailyInterestPct       decimal.Decimal `json:"daily_interest_pct" db:"daily_interest_pct" validate:"gte=0"`
	LatePenaltyPct         decimal.Decimal `json:"late_penalty_pct" db:"late_penalty_pct" validate:"gte=0"`
	SiblingDiscountPct     decimal.Decimal `json:"sibling_discount_pct" db:"sibling_discount_pct" validate:"gte=0,lte=100"`
	PunctualityDiscountPct decimal.Decimal `json:"punctuality_discount_pct" db:"punctuality_discount_pct" validate:"gte=0,lte=100"`
	StaffDiscountPct       decimal.Decimal `json:"staff_discount_pct" db:"staff_discount_pct" validate:"gte=0,lte=100"`
	MaxLoginAttempts       int             `json:"max_login_attempts" db:"max_login_attempts" validate:"gte=1"`
	SessionMinutes         int             `json:"session_minutes" db:"session_minutes" validate:"gte=1"`
	UpdatedAt              time.Time       `json:"updated_at" db:"updated_at"`
}

func (s *Settings) Validate(validate *validator.Validate) error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	if s.PassMark.GreaterThan(s.MaxMark) {
		return core.NewFieldError("pass_mark", "pass mark cannot exceed the maximum mark")
	}
	return nil
}

// DefaultSettings returns the settings every institution starts with.
func DefaultSettings(institutionID string) Settings {
	return Settings{
		InstitutionID:          institutionID,
		PassMark:               decimal.NewFromInt(10),
		MaxMark:                decimal.NewFromInt(20),
		MinAttendancePct:       decimal.NewFromInt(75),
		MaxUnexcusedAbsences:   10,
		TuitionDueDay:          10,
		GraceDays:              5,
		DailyInterestPct:       decimal.RequireFromString("0.1"),
		LatePenaltyPct:         decimal.NewFromInt(2),
		SiblingDiscountPct:     decimal.NewFromInt(10),
		PunctualityDiscountPct: decimal.NewFromInt(5),
		StaffDiscountPct:       decimal.NewFromInt(20),
		MaxLoginAttempts:       5,
		SessionMinutes:         60,
	}
}

type LicenseStatus string

const (
	LicenseInactive LicenseStatus = "inactive"
	LicenseExpired  LicenseStatus = "expired"
	LicenseExpiring LicenseStatus = "expiring"
	LicenseActive   LicenseStatus = "active"

	licenseWarningDays = 30
)

type License struct {
	ID            string       `json:"id" db:"id"`
	InstitutionID string       `json:"institution_id" db:"institution_id"`
	Code          string       `json:"code" db:"code"`
	Product       string       `json:"product" db:"product"`
	Version       string       `json:"version" db:"version"`
	ActivatedOn   time.Time    `json:"activated_on" db:"activated_on"`
	ExpiresOn     time.Time    `json:"expires_on" db:"expires_on"`
	MaxUsers      int          `json:"max_users" db:"max_users"`
	MaxStudents   int          `json:"max_students" db:"max_students"`
	Modules       core.Strings `json:"modules" db:"modules"`
	IsActive      bool         `json:"is_active" db:"is_active"`
	AutoRenew     bool         `json:"auto_renew" db:"auto_renew"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// DaysRemaining is the number of days until expiry, never negative.
func (l License) DaysRemaining(today time.Time) int {
	if !l.IsActive {
		return 0
	}
	today = core.DateOf(today)
	exp := core.DateOf(l.ExpiresOn)
	if today.After(exp) {
		return 0
	}
	return int(exp.Sub(today).Hours() / 24)
}

func (l License) Status(today time.Time) LicenseStatus {
	if !l.IsActive {
		return LicenseInactive
	}
	switch days := l.DaysRemaining(today); {
	case days <= 0:
		return LicenseExpired
	case days <= licenseWarningDays:
		return LicenseExpiring
	default:
		return LicenseActive
	}
}

// NewInstitution contains information needed to create a new Institution.
type NewInstitution struct {
	MEDCode       string     `json:"med_code" validate:"required,code"`
	Name          string     `json:"name" validate:"required,max=200"`
	TradeName     string     `json:"trade_name" validate:"max=200"`
	Kind          Kind       `json:"kind" validate:"required,oneof=public private public_private partnership"`
	NIF           string     `json:"nif" validate:"required,alphanum,max=20"`
	PermitNumber  string     `json:"permit_number" validate:"max=50"`
	AuthorizedOn  time.Time  `json:"authorized_on" validate:"required"`
	FoundedOn     *time.Time `json:"founded_on"`
	Email         string     `json:"email" validate:"required,email"`
	Phone         string     `json:"phone" validate:"max=20"`
	Website       string     `json:"website" validate:"omitempty,url"`
	Province      string     `json:"province" validate:"required"`
	Municipality  string     `json:"municipality" validate:"required"`
	Neighbourhood string     `json:"neighbourhood" validate:"required"`
	Street        string     `json:"street"`
	Currency      string     `json:"currency" validate:"max=10"`
	Director      string     `json:"director"`
}

func (ni *NewInstitution) Validate(validate *validator.Validate) error {
	ni.MEDCode = core.CleanString(ni.MEDCode)
	ni.Name = core.CleanString(ni.Name)
	ni.TradeName = core.CleanString(ni.TradeName)
	ni.NIF = core.CleanString(ni.NIF)
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	ni.Currency = core.CleanString(ni.Currency)
	if ni.Currency == "" {
		ni.Currency = "Kz"
	}
	return validate.Struct(ni)
}

// UpdateInstitution defines what information may be provided to modify an existing Institution.
type UpdateInstitution struct {
	Name     string `json:"name" validate:"max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"max=20"`
	Website  string `json:"website" validate:"omitempty,url"`
	Director string `json:"director"`
	Street   string `json:"street"`
	IsActive *bool  `json:"is_active"`
}

func (ui *UpdateInstitution) Validate(validate *validator.Validate) error {
	ui.Name = core.CleanString(ui.Name)
	ui.Email = core.CleanString(ui.Email, true /* lower */)
	return validate.Struct(ui)
}

type NewCampus struct {
	InstitutionID string `json:"institution_id" validate:"required,uuid"`
	Code          string `json:"code" validate:"required,code,max=20"`
	Name          string `json:"name" validate:"required,max=150"`
	Province      string `json:"province"`
	Municipality  string `json:"municipality"`
	Street        string `json:"street"`
	Phone         string `json:"phone" validate:"max=20"`
	Email         string `json:"email" validate:"omitempty,email"`
	StudentCap    int    `json:"student_capacity" validate:"gte=0"`
	Director      string `json:"director"`
}

func (nc *NewCampus) Validate(validate *validator.Validate) error {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	nc.Email = core.CleanString(nc.Email, true /* lower */)
	return validate.Struct(nc)
}

type NewBlock struct {
	CampusID    string `json:"campus_id" validate:"required,uuid"`
	Code        string `json:"code" validate:"required,code,max=20"`
	Name        string `json:"name" validate:"required,max=150"`
	Floors      int    `json:"floors" validate:"gte=0"`
	HasElevator bool   `json:"has_elevator"`
	HasRamp     bool   `json:"has_ramp"`
}

func (nb *NewBlock) Validate(validate *validator.Validate) error {
	nb.Code = core.CleanString(nb.Code)
	nb.Name = core.CleanString(nb.Name)
	if nb.Floors == 0 {
		nb.Floors = 1
	}
	return validate.Struct(nb)
}

type NewRoom struct {
	CampusID     string  `json:"campus_id" validate:"required,uuid"`
	BlockID      *string `json:"block_id" validate:"omitempty,uuid"`
	Code         string  `json:"code" validate:"required,code,max=20"`
	Name         string  `json:"name" validate:"max=150"`
	Kind         string  `json:"kind" validate:"required,oneof=classroom lab computer_lab library office"`
	Capacity     int     `json:"capacity" validate:"gt=0"`
	Floor        int     `json:"floor"`
	HasProjector bool    `json:"has_projector"`
	HasAC        bool    `json:"has_air_conditioning"`
	HasInternet  bool    `json:"has_internet"`
	Computers    int     `json:"computers" validate:"gte=0"`
}

func (nr *NewRoom) Validate(validate *validator.Validate) error {
	nr.Code = core.CleanString(nr.Code)
	nr.Name = core.CleanString(nr.Name)
	nr.Kind = core.CleanString(nr.Kind, true /* lower */)
	return validate.Struct(nr)
}

// UpdateRoom changes the availability of a Room.
type UpdateRoom struct {
	Capacity         int        `json:"capacity" validate:"gte=0"`
	Available        *bool      `json:"available"`
	MaintenanceUntil *time.Time `json:"maintenance_until"`
}

type NewLicense struct {
	InstitutionID string       `json:"institution_id" validate:"required,uuid"`
	Code          string       `json:"code" validate:"required,max=100"`
	Product       string       `json:"product" validate:"required"`
	Version       string       `json:"version" validate:"required"`
	ActivatedOn   time.Time    `json:"activated_on" validate:"required"`
	ExpiresOn     time.Time    `json:"expires_on" validate:"required,gtfield=ActivatedOn"`
	MaxUsers      int          `json:"max_users" validate:"gte=0"`
	MaxStudents   int          `json:"max_students" validate:"gte=0"`
	Modules       core.Strings `json:"modules"`
	AutoRenew     bool         `json:"auto_renew"`
}

func (nl *NewLicense) Validate(validate *validator.Validate) error {
	nl.Code = core.CleanString(nl.Code)
	nl.ActivatedOn = core.DateOf(nl.ActivatedOn)
	nl.ExpiresOn = core.DateOf(nl.ExpiresOn)
	return validate.Struct(nl)
}
