package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/somabem/erp/core"
)

// Roles (access levels)
const (
	// Admin
	RoleAdmin             = "admin:"
	RoleAdminSuper        = "admin:super"
	RoleAdminGeneral      = "admin:general"
	RoleAdminPedagogical  = "admin:pedagogical"
	RoleStaff             = "staff:"
	RoleStaffCoordination = "staff:coordination"
	RoleStaffSecretariat  = "staff:secretariat"

	RoleTeacher  = "teacher:"
	RoleStudent  = "student:"
	RoleGuardian = "guardian:"
)

// Operations a permission may grant on a module
const (
	OpCreate  = "create"
	OpRead    = "read"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpExport  = "export"
	OpApprove = "approve"
	OpReports = "reports"
)

// Themes
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

var (
	AdminRoles = []string{RoleAdmin, RoleAdminSuper, RoleAdminGeneral, RoleAdminPedagogical}
	StaffRoles = []string{RoleStaff, RoleStaffCoordination, RoleStaffSecretariat}
	AllRoles   = getAllRoles()
	AllOps     = []string{OpCreate, OpRead, OpUpdate, OpDelete, OpExport, OpApprove, OpReports}

	rolePriorities = map[string]int{
		// Admins: 40 - 31
		RoleAdminSuper:       40,
		RoleAdminGeneral:     39,
		RoleAdminPedagogical: 38,
		RoleAdmin:            31,

		// Staff: 30 - 21
		RoleStaffCoordination: 30,
		RoleStaffSecretariat:  29,
		RoleStaff:             21,

		// Teachers: 20 - 11
		RoleTeacher: 11,

		// Students & guardians: 10 - 1
		RoleGuardian: 2,
		RoleStudent:  1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Guardian", Value: RoleGuardian},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Staff", Value: RoleStaff},
		{Name: "Secretariat", Value: RoleStaffSecretariat},
		{Name: "Coordination", Value: RoleStaffCoordination},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Pedagogical Direction", Value: RoleAdminPedagogical},
		{Name: "General Direction", Value: RoleAdminGeneral},
		{Name: "Super Admin", Value: RoleAdminSuper},
	}

	crud = []string{OpCreate, OpRead, OpUpdate}
	read = []string{OpRead}

	// roleDefaults are the permissions every holder of a role gets. Super admins are not listed: they can do everything.
	roleDefaults = map[string]Permissions{
		RoleAdminGeneral: allModules(AllOps...),
		RoleAdminPedagogical: {
			core.ModuleAcademic:    AllOps,
			core.ModulePeople:      AllOps,
			core.ModuleEnrollment:  AllOps,
			core.ModuleGrading:     AllOps,
			core.ModuleInstitution: read,
			core.ModuleReports:     {OpRead, OpReports, OpExport},
		},
		RoleStaffCoordination: {
			core.ModuleAcademic:   crud,
			core.ModuleGrading:    crud,
			core.ModulePeople:     crud,
			core.ModuleEnrollment: read,
			core.ModuleReports:    {OpRead, OpReports},
		},
		RoleStaffSecretariat: {
			core.ModulePeople:     crud,
			core.ModuleEnrollment: crud,
			core.ModuleTuition:    crud,
			core.ModuleCashier:    crud,
			core.ModuleSales:      crud,
			core.ModuleAcademic:   read,
			core.ModuleInventory:  read,
			core.ModuleReports:    read,
		},
		RoleStaff: {
			core.ModuleInventory: crud,
			core.ModuleSales:     crud,
			core.ModuleVendor:    crud,
			core.ModuleCashier:   read,
		},
		RoleTeacher: {
			core.ModuleGrading:  crud,
			core.ModuleAcademic: read,
			core.ModulePeople:   read,
		},
		RoleStudent: {
			core.ModuleGrading:  read,
			core.ModuleAcademic: read,
		},
		RoleGuardian: {
			core.ModuleGrading: read,
			core.ModuleTuition: read,
		},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, len(rolePriorities))
	all = append(all, AdminRoles...)
	all = append(all, StaffRoles...)
	all = append(all, RoleTeacher, RoleStudent, RoleGuardian)
	return all
}

func allModules(ops ...string) Permissions {
	perms := make(Permissions, len(core.AllModules))
	for _, m := range core.AllModules {
		perms[m] = ops
	}
	return perms
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

// CanGrant reports whether granter may give roles to someone: nobody can grant a role above their own.
func CanGrant(granter User, roles []string) bool {
	return MaxRolePriority(roles) <= MaxRolePriority(granter.Roles)
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Permissions maps modules to the operations allowed on them.
type Permissions map[core.Module]core.Strings

func (p Permissions) Allows(module core.Module, op string) bool {
	return p[module].Contains(op)
}

func (p Permissions) merge(module core.Module, ops []string) {
	for _, op := range ops {
		if !p[module].Contains(op) {
			p[module] = append(p[module], op)
		}
	}
}

// Permission is a grant of operations on a module to a single user, on top of their roles.
type Permission struct {
	ID        string       `json:"id" db:"id"`
	UserID    string       `json:"user_id" db:"user_id"`
	Module    core.Module  `json:"module" db:"module"`
	Ops       core.Strings `json:"ops" db:"ops"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// EffectivePermissions is the union of the role defaults of u and its own grants.
func EffectivePermissions(u User, grants []Permission) Permissions {
	if u.IsSuperAdmin() {
		return allModules(AllOps...)
	}
	perms := make(Permissions)
	for _, role := range u.Roles {
		for module, ops := range roleDefaults[role] {
			perms.merge(module, ops)
		}
	}
	for _, g := range grants {
		perms.merge(g.Module, g.Ops)
	}
	return perms
}

type User struct {
	ID                 string       `json:"id" db:"id"`
	PersonID           *string      `json:"person_id" db:"person_id"`
	Name               string       `json:"name" db:"name"`
	Username           string       `json:"username" db:"username"`
	Email              string       `json:"email" db:"email"`
	IsActive           bool         `json:"is_active" db:"is_active"`
	Roles              core.Strings `json:"roles" db:"roles"`
	PasswordHash       []byte       `json:"-" db:"password_hash"`
	MustChangePassword bool         `json:"must_change_password" db:"must_change_password"`
	FailedLogins       int          `json:"failed_logins" db:"failed_logins"`
	LockedAt           null.Time    `json:"locked_at" db:"locked_at"`
	LastLogin          null.Time    `json:"last_login" db:"last_login"` // UTC
	Theme              string       `json:"theme" db:"theme"`
	Language           string       `json:"language" db:"language"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"` // UTC
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool      { return u.RoleStartsWith(RoleAdmin) }
func (u *User) IsSuperAdmin() bool { return u.Roles.Contains(RoleAdminSuper) }
func (u *User) IsStaff() bool      { return u.RoleStartsWith(RoleStaff) }
func (u *User) IsTeacher() bool    { return u.RoleStartsWith(RoleTeacher) }
func (u *User) IsStudent() bool    { return u.RoleStartsWith(RoleStudent) }
func (u *User) IsGuardian() bool   { return u.RoleStartsWith(RoleGuardian) }
func (u *User) IsLocked() bool     { return u.LockedAt.Valid }

// NewUser contains information needed to create a new User.
type NewUser struct {
	PersonID           *string  `json:"person_id" validate:"omitempty,uuid"`
	Name               string   `json:"name" validate:"required"`
	Username           string   `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email              string   `json:"email" validate:"omitempty,email"`
	Password           string   `json:"password" validate:"required"`
	PasswordConfirm    string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles              []string `json:"roles" validate:"omitempty,allroles"`
	MustChangePassword bool     `json:"must_change_password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Theme           string   `json:"theme" validate:"omitempty,oneof=light dark"`
	Language        string   `json:"language" validate:"omitempty,max=5"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	uu.Theme = core.CleanString(uu.Theme, true /* lower */)
	return validate.Struct(uu)
}

// Credentials identify a user by username or email.
type Credentials struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Login = core.CleanString(c.Login, true /* lower */)
	return validate.Struct(c)
}

// ChangePassword replaces the password of the user identified by Login.
type ChangePassword struct {
	Login           string `json:"login" validate:"required"`
	CurrentPassword string `json:"current_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (cp *ChangePassword) Validate(validate *validator.Validate) error {
	cp.Login = core.CleanString(cp.Login, true /* lower */)
	return validate.Struct(cp)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// PermissionGrant sets the operations a user may do on a module.
type PermissionGrant struct {
	Module core.Module `json:"module" validate:"required,module"`
	Ops    []string    `json:"ops" validate:"dive,oneof=create read update delete export approve reports"`
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Matches applies an AND of the filter fields. Search does a case-insensitive match on one of
// Name, Username or Email.
func (qf *QueryFilter) Matches(u User) bool {
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(u.Name), s) ||
			strings.Contains(u.Username, s) ||
			strings.Contains(u.Email, s)) {
			return false
		}
	}
	if len(qf.Roles) > 0 {
		found := false
		for _, r := range qf.Roles {
			if u.Roles.Contains(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.IsActive != nil && u.IsActive != *qf.IsActive {
		return false
	}
	if !qf.CreatedFrom.IsZero() && u.CreatedAt.Before(qf.CreatedFrom) {
		return false
	}
	if !qf.CreatedTo.IsZero() && u.CreatedAt.After(qf.CreatedTo) {
		return false
	}
	return true
}
