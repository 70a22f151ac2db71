package people

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
)

// Student statuses
const (
	StudentActive      = "active"
	StudentInactive    = "inactive"
	StudentSuspended   = "suspended"
	StudentTransferred = "transferred"
	StudentExpelled    = "expelled"
	StudentGraduated   = "graduated"
)

// Student document kinds
const (
	DocumentCertificate = "certificate"
	DocumentTranscript  = "transcript"
	DocumentDeclaration = "declaration"
	DocumentAttestation = "attestation"
)

// Staff statuses
const (
	StaffActive    = "active"
	StaffVacation  = "vacation"
	StaffLeave     = "leave"
	StaffDismissed = "dismissed"
	StaffRetired   = "retired"
)

// Person holds the identity shared by students, teachers, staff and guardians.
type Person struct {
	ID               string     `json:"id" db:"id"`
	FullName         string     `json:"full_name" db:"full_name"`
	BirthDate        *time.Time `json:"birth_date" db:"birth_date"`
	Gender           string     `json:"gender" db:"gender"`                 // M, F
	MaritalStatus    string     `json:"marital_status" db:"marital_status"` // single, married, divorced, widowed
	Nationality      string     `json:"nationality" db:"nationality"`
	DocumentType     string     `json:"document_type" db:"document_type"` // bi, passport, residence, birth_certificate
	DocumentNumber   string     `json:"document_number" db:"document_number"`
	TaxID            string     `json:"tax_id" db:"tax_id"`
	Email            string     `json:"email" db:"email"`
	Phone            string     `json:"phone" db:"phone"`
	AltPhone         string     `json:"alt_phone" db:"alt_phone"`
	Province         string     `json:"province" db:"province"`
	Municipality     string     `json:"municipality" db:"municipality"`
	Neighbourhood    string     `json:"neighbourhood" db:"neighbourhood"`
	Street           string     `json:"street" db:"street"`
	BloodType        string     `json:"blood_type" db:"blood_type"`
	Allergies        string     `json:"allergies" db:"allergies"`
	MedicalNotes     string     `json:"medical_notes" db:"medical_notes"`
	EmergencyContact string     `json:"emergency_contact" db:"emergency_contact"`
	EmergencyPhone   string     `json:"emergency_phone" db:"emergency_phone"`
	PhotoPath        string     `json:"photo_path" db:"photo_path"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Age returns the age in whole years on `today`, -1 when the birth date is unknown.
func (p Person) Age(today time.Time) int {
	if p.BirthDate == nil {
		return -1
	}
	birth := p.BirthDate.UTC()
	today = today.UTC()
	age := today.Year() - birth.Year()
	if today.Month() < birth.Month() || (today.Month() == birth.Month() && today.Day() < birth.Day()) {
		age--
	}
	return age
}

type Student struct {
	PersonID       string    `json:"person_id" db:"person_id"`
	Code           string    `json:"code" db:"code"`
	Status         string    `json:"status" db:"status"`
	AdmittedOn     time.Time `json:"admitted_on" db:"admitted_on"`
	PreviousSchool string    `json:"previous_school" db:"previous_school"`
	SpecialNeeds   string    `json:"special_needs" db:"special_needs"`
}

type Teacher struct {
	PersonID       string    `json:"person_id" db:"person_id"`
	EmployeeCode   string    `json:"employee_code" db:"employee_code"`
	ContractType   string    `json:"contract_type" db:"contract_type"`
	HiredOn        time.Time `json:"hired_on" db:"hired_on"`
	Qualification  string    `json:"qualification" db:"qualification"`
	Specialization string    `json:"specialization" db:"specialization"`
	Status         string    `json:"status" db:"status"`
}

type Staff struct {
	PersonID     string          `json:"person_id" db:"person_id"`
	EmployeeCode string          `json:"employee_code" db:"employee_code"`
	Position     string          `json:"position" db:"position"`
	Department   string          `json:"department" db:"department"`
	ContractType string          `json:"contract_type" db:"contract_type"`
	HiredOn      time.Time       `json:"hired_on" db:"hired_on"`
	Status       string          `json:"status" db:"status"`
	Salary       decimal.Decimal `json:"salary" db:"salary"`
}

type Guardian struct {
	PersonID   string `json:"person_id" db:"person_id"`
	Occupation string `json:"occupation" db:"occupation"`
	Workplace  string `json:"workplace" db:"workplace"`
}

// StudentGuardian links a student to one of their guardians.
type StudentGuardian struct {
	ID                     string `json:"id" db:"id"`
	StudentID              string `json:"student_id" db:"student_id"`
	GuardianID             string `json:"guardian_id" db:"guardian_id"`
	Relationship           string `json:"relationship" db:"relationship"`
	IsPrimary              bool   `json:"is_primary" db:"is_primary"`
	FinanciallyResponsible bool   `json:"financially_responsible" db:"financially_responsible"`
}

// Roles reports which role records exist for a person.
type Roles struct {
	Student  bool `json:"student"`
	Teacher  bool `json:"teacher"`
	Staff    bool `json:"staff"`
	Guardian bool `json:"guardian"`
}

type StudentDetail struct {
	Person
	Student Student `json:"student"`
}

type GuardianDetail struct {
	Person
	Link StudentGuardian `json:"link"`
}

// NewPerson contains information needed to create a new Person.
type NewPerson struct {
	FullName         string     `json:"full_name" validate:"required,max=200"`
	BirthDate        *time.Time `json:"birth_date"`
	Gender           string     `json:"gender" validate:"omitempty,oneof=M F"`
	MaritalStatus    string     `json:"marital_status" validate:"omitempty,oneof=single married divorced widowed"`
	Nationality      string     `json:"nationality" validate:"max=50"`
	DocumentType     string     `json:"document_type" validate:"omitempty,oneof=bi passport residence birth_certificate"`
	DocumentNumber   string     `json:"document_number" validate:"max=30"`
	TaxID            string     `json:"tax_id" validate:"max=20"`
	Email            string     `json:"email" validate:"omitempty,email"`
	Phone            string     `json:"phone" validate:"max=20"`
	AltPhone         string     `json:"alt_phone" validate:"max=20"`
	Province         string     `json:"province"`
	Municipality     string     `json:"municipality"`
	Neighbourhood    string     `json:"neighbourhood"`
	Street           string     `json:"street"`
	BloodType        string     `json:"blood_type" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies        string     `json:"allergies"`
	MedicalNotes     string     `json:"medical_notes"`
	EmergencyContact string     `json:"emergency_contact"`
	EmergencyPhone   string     `json:"emergency_phone" validate:"max=20"`
}

func (np *NewPerson) Validate(validate *validator.Validate) error {
	np.FullName = core.CleanString(np.FullName)
	np.Gender = core.CleanString(np.Gender)
	np.DocumentType = core.CleanString(np.DocumentType, true /* lower */)
	np.DocumentNumber = core.CleanString(np.DocumentNumber)
	np.TaxID = core.CleanString(np.TaxID)
	np.Email = core.CleanString(np.Email, true /* lower */)
	if np.Nationality == "" {
		np.Nationality = "Angolana"
	}
	if err := validate.Struct(np); err != nil {
		return err
	}
	if np.DocumentNumber != "" && np.DocumentType == "" {
		return core.NewFieldError("document_type", "this field is required")
	}
	if np.BirthDate != nil && np.BirthDate.After(core.NowFunc()) {
		return core.NewFieldError("birth_date", "birth_date cannot be in the future")
	}
	return nil
}

type NewStudent struct {
	Code           string    `json:"code" validate:"required,code,max=30"`
	AdmittedOn     time.Time `json:"admitted_on"`
	PreviousSchool string    `json:"previous_school"`
	SpecialNeeds   string    `json:"special_needs"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Code = core.CleanString(ns.Code)
	if ns.AdmittedOn.IsZero() {
		ns.AdmittedOn = core.Today()
	}
	return validate.Struct(ns)
}

type NewTeacher struct {
	EmployeeCode   string    `json:"employee_code" validate:"required,code,max=30"`
	ContractType   string    `json:"contract_type" validate:"required,oneof=permanent contracted temporary intern"`
	HiredOn        time.Time `json:"hired_on" validate:"required"`
	Qualification  string    `json:"qualification"`
	Specialization string    `json:"specialization"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.EmployeeCode = core.CleanString(nt.EmployeeCode)
	nt.ContractType = core.CleanString(nt.ContractType, true /* lower */)
	return validate.Struct(nt)
}

type NewStaff struct {
	EmployeeCode string          `json:"employee_code" validate:"required,code,max=30"`
	Position     string          `json:"position" validate:"required"`
	Department   string          `json:"department"`
	ContractType string          `json:"contract_type" validate:"required,oneof=permanent contracted temporary intern"`
	HiredOn      time.Time       `json:"hired_on" validate:"required"`
	Salary       decimal.Decimal `json:"salary" validate:"gte=0"`
}

func (ns *NewStaff) Validate(validate *validator.Validate) error {
	ns.EmployeeCode = core.CleanString(ns.EmployeeCode)
	ns.Position = core.CleanString(ns.Position)
	ns.ContractType = core.CleanString(ns.ContractType, true /* lower */)
	return validate.Struct(ns)
}

type NewGuardian struct {
	Occupation string `json:"occupation"`
	Workplace  string `json:"workplace"`
}

type NewStudentGuardian struct {
	GuardianID             string `json:"guardian_id" validate:"required,uuid"`
	Relationship           string `json:"relationship" validate:"required,oneof=father mother uncle aunt brother sister grandparent other"`
	IsPrimary              bool   `json:"is_primary"`
	FinanciallyResponsible bool   `json:"financially_responsible"`
}

type QueryFilter struct {
	Search   string `query:"search"` // name, document number, email or student code
	Role     string `query:"role" validate:"omitempty,oneof=student teacher staff guardian"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}

// StudentDocument is an official document issued to a student. Numbers are unique per kind.
type StudentDocument struct {
	ID                 string     `json:"id" db:"id"`
	StudentID          string     `json:"student_id" db:"student_id"`
	Kind               string     `json:"kind" db:"kind"`
	Number             string     `json:"number" db:"number"`
	Description        string     `json:"description" db:"description"`
	IssuedOn           time.Time  `json:"issued_on" db:"issued_on"`
	ValidUntil         *time.Time `json:"valid_until" db:"valid_until"`
	FilePath           string     `json:"file_path" db:"file_path"`
	FileHash           string     `json:"file_hash" db:"file_hash"` // hex SHA-256 of the file
	IssuedBy           *string    `json:"issued_by" db:"issued_by"`
	AuthorizedBy       *string    `json:"authorized_by" db:"authorized_by"`
	IsValid            bool       `json:"is_valid" db:"is_valid"`
	InvalidationReason string     `json:"invalidation_reason" db:"invalidation_reason"`
	Notes              string     `json:"notes" db:"notes"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// ValidOn reports whether the document was not invalidated and has not expired on day.
func (d StudentDocument) ValidOn(day time.Time) bool {
	if !d.IsValid {
		return false
	}
	return d.ValidUntil == nil || !core.DateOf(day).After(core.DateOf(*d.ValidUntil))
}

type NewStudentDocument struct {
	Kind         string     `json:"kind" validate:"required,oneof=certificate transcript declaration attestation"`
	Number       string     `json:"number" validate:"required,max=50"`
	Description  string     `json:"description" validate:"max=200"`
	IssuedOn     time.Time  `json:"issued_on"`
	ValidUntil   *time.Time `json:"valid_until"`
	AuthorizedBy *string    `json:"authorized_by" validate:"omitempty,uuid"`
	Notes        string     `json:"notes"`
}

func (nd *NewStudentDocument) Validate(validate *validator.Validate) error {
	nd.Kind = core.CleanString(nd.Kind, true /* lower */)
	nd.Number = core.CleanString(nd.Number)
	nd.Description = core.CleanString(nd.Description)
	nd.Notes = core.CleanString(nd.Notes)
	if nd.IssuedOn.IsZero() {
		nd.IssuedOn = core.Today()
	}
	nd.IssuedOn = core.DateOf(nd.IssuedOn)
	if err := validate.Struct(nd); err != nil {
		return err
	}
	if nd.ValidUntil != nil {
		until := core.DateOf(*nd.ValidUntil)
		if until.Before(nd.IssuedOn) {
			return core.NewFieldError("valid_until", "valid_until must be on or after issued_on")
		}
		nd.ValidUntil = &until
	}
	return nil
}
