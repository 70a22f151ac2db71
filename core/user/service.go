package user

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")

	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = core.NewAuthError("account deactivated")
	ErrAccountLocked        = core.NewAuthError("account locked after too many failed sign-in attempts")
	ErrPasswordChangeNeeded = core.NewAuthError("the password must be changed before signing in")
	ErrRolesAboveOwn        = errors.New("not enough rights to set these roles")
	ErrInvalidResetLink     = errors.New("the password reset link is invalid or has expired")
	ErrEmptyCredentials     = errors.New("login and password are required")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when another user than
		// excludeID already has username or email.
		CheckUniqueness(ctx context.Context, username, email, excludeID string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, u User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		// GetUserByLogin finds a user by username or email.
		GetUserByLogin(ctx context.Context, login string, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, u User, exec ...core.DBExecutor) (User, error)
		DeleteUsers(ctx context.Context, ids []string, exec ...core.DBExecutor) error

		QueryPermissions(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Permission, error)
		ReplacePermissions(ctx context.Context, userID string, perms []Permission, exec ...core.DBExecutor) ([]Permission, error)
	}

	Service struct {
		repo      Repository
		tx        core.TxRunner
		validate  *validator.Validate
		audit     audit.Recorder
		mailSvc   core.EmailService
		pool      *core.WorkerPool
		tokens    *TokenGenerator
		maxFailed int
	}
)

// NewService returns the user service. validate must carry the tags of RegisterValidators.
func NewService(
	repo Repository,
	tx core.TxRunner,
	validate *validator.Validate,
	rec audit.Recorder,
	mailSvc core.EmailService,
	pool *core.WorkerPool,
	conf *core.Config,
) *Service {
	maxFailed := conf.Auth.MaxFailedLogins
	if maxFailed < 1 {
		maxFailed = 5
	}
	return &Service{
		repo:      repo,
		tx:        tx,
		validate:  validate,
		audit:     rec,
		mailSvc:   mailSvc,
		pool:      pool,
		tokens:    NewTokenGenerator(conf.SecretKey, conf.Auth.PasswordResetTimeoutDelta),
		maxFailed: maxFailed,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email, excludeID string, exec ...core.DBExecutor) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludeID, exec...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create adds a user. granter is the user creating it, nil for the system: nobody can grant roles above their own.
func (svc *Service) Create(ctx context.Context, nu NewUser, granter *User) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if granter != nil && !CanGrant(*granter, nu.Roles) {
		return User{}, core.NewValidationError(ErrRolesAboveOwn, core.FieldError{Field: "roles", Error: ErrRolesAboveOwn.Error()})
	}

	now := core.NowFunc().UTC()
	usr := User{
		PersonID:           nu.PersonID,
		Name:               nu.Name,
		Username:           nu.Username,
		Email:              nu.Email,
		IsActive:           true,
		Roles:              nu.Roles,
		MustChangePassword: nu.MustChangePassword,
		Theme:              ThemeLight,
		Language:           "pt",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkUniqueness(ctx, usr.Username, usr.Email, "", exec); err != nil {
			return err
		}
		var err error
		if usr, err = svc.repo.CreateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "creating user")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModuleUsers, usr.ID, nil, usr, exec)
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, login string) (User, error) {
	return svc.repo.GetUserByLogin(ctx, core.CleanString(login, true /* lower */))
}

// Update modifies the user id. granter is the user making the change.
func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser, granter *User) (User, error) {
	var usr User
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetUser(ctx, id, exec)
		if err != nil {
			return err
		}
		if err = uu.Validate(orig, svc.validate); err != nil {
			return err
		}
		if granter != nil && uu.Roles != nil && !CanGrant(*granter, uu.Roles) {
			return core.NewValidationError(ErrRolesAboveOwn, core.FieldError{Field: "roles", Error: ErrRolesAboveOwn.Error()})
		}
		if err = svc.checkUniqueness(ctx, uu.Username, uu.Email, id, exec); err != nil {
			return err
		}

		usr = orig
		usr.Name = uu.Name
		usr.Username = uu.Username
		usr.Email = uu.Email
		if uu.Roles != nil {
			usr.Roles = uu.Roles
		}
		if uu.IsActive != nil {
			usr.IsActive = *uu.IsActive
		}
		if uu.Theme != "" {
			usr.Theme = uu.Theme
		}
		if uu.Language != "" {
			usr.Language = uu.Language
		}
		if uu.Password != "" {
			if err = usr.SetPassword(uu.Password); err != nil {
				return errors.Wrap(err, "hashing password")
			}
		}
		usr.UpdatedAt = core.NowFunc().UTC()
		if usr, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "updating user")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModuleUsers, id, orig, usr, exec)
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.DeleteUsers(ctx, ids, exec); err != nil {
			return errors.Wrap(err, "deleting users")
		}
		for _, id := range ids {
			if err := svc.audit.Record(ctx, audit.ActionDelete, core.ModuleUsers, id, nil, nil, exec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Authentication

// Authenticate checks the credentials of a user signing in. Wrong passwords are counted: the
// account is locked at the configured number of consecutive failures, until Unlock.
// A user who must change their password gets ErrPasswordChangeNeeded instead of a session.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	if creds.Validate(svc.validate) != nil {
		return User{}, core.NewValidationError(ErrEmptyCredentials)
	}
	usr, err := svc.verify(ctx, creds.Login, creds.Password)
	if err != nil {
		return User{}, err
	}
	if usr.MustChangePassword {
		return User{}, ErrPasswordChangeNeeded
	}
	return usr, nil
}

// verify checks login and password, records the outcome and returns the signed-in user.
func (svc *Service) verify(ctx context.Context, login, pwd string) (User, error) {
	var (
		usr      User
		authErr  error
		lockedUp bool
	)
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetUserByLogin(ctx, login, exec)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				authErr = ErrAuthenticationFailed
				return nil
			}
			return errors.Wrap(err, "finding user by username or email")
		}
		actx := core.WithActor(ctx, core.Actor{UserID: orig.ID, Username: orig.Username, IP: core.ActorFrom(ctx).IP})

		if !orig.IsActive {
			authErr = ErrAccountDeactivated
			if orig.IsLocked() {
				authErr = ErrAccountLocked
			}
			return svc.audit.Record(actx, audit.ActionLoginFailed, core.ModuleUsers, orig.ID, nil, nil, exec)
		}

		usr = orig
		now := core.NowFunc().UTC()
		if usr.CheckPassword(pwd) != nil {
			authErr = ErrAuthenticationFailed
			usr.FailedLogins++
			action := audit.ActionLoginFailed
			if usr.FailedLogins >= svc.maxFailed {
				usr.IsActive = false
				usr.LockedAt = null.TimeFrom(now)
				action, lockedUp = audit.ActionLock, true
			}
			usr.UpdatedAt = now
			if usr, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
				return errors.Wrap(err, "counting failed login")
			}
			return svc.audit.Record(actx, action, core.ModuleUsers, usr.ID, nil, nil, exec)
		}

		usr.FailedLogins = 0
		usr.LockedAt = null.Time{}
		usr.LastLogin = null.TimeFrom(now)
		usr.UpdatedAt = now
		if usr, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "setting lastLogin")
		}
		return svc.audit.Record(actx, audit.ActionLogin, core.ModuleUsers, usr.ID, nil, nil, exec)
	})
	if err != nil {
		return User{}, err
	}
	if lockedUp {
		svc.sendAccountLockedMail(usr)
	}
	if authErr != nil {
		return User{}, authErr
	}
	return usr, nil
}

// ChangePassword replaces the password of a user who knows the current one, clearing the
// must-change flag. It returns the signed-in user.
func (svc *Service) ChangePassword(ctx context.Context, cp ChangePassword) (User, error) {
	if err := cp.Validate(svc.validate); err != nil {
		return User{}, err
	}
	usr, err := svc.verify(ctx, cp.Login, cp.CurrentPassword)
	if err != nil {
		return User{}, err
	}
	if err = ValidatePassword(cp.Password, usr); err != nil {
		return User{}, err
	}

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := usr.SetPassword(cp.Password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		usr.MustChangePassword = false
		usr.UpdatedAt = core.NowFunc().UTC()
		var err error
		if usr, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "changing password")
		}
		actx := core.WithActor(ctx, core.Actor{UserID: usr.ID, Username: usr.Username, IP: core.ActorFrom(ctx).IP})
		return svc.audit.Record(actx, audit.ActionPassword, core.ModuleUsers, usr.ID, nil, nil, exec)
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

// Unlock reactivates an account and clears its failed sign-in count.
func (svc *Service) Unlock(ctx context.Context, id string) (User, error) {
	var usr User
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetUser(ctx, id, exec)
		if err != nil {
			return err
		}
		usr = orig
		usr.IsActive = true
		usr.FailedLogins = 0
		usr.LockedAt = null.Time{}
		usr.UpdatedAt = core.NowFunc().UTC()
		if usr, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "unlocking user")
		}
		return svc.audit.Record(ctx, audit.ActionUnlock, core.ModuleUsers, id, orig, usr, exec)
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

// Password reset

// RequestPasswordReset emails a reset link to the active user owning email. The email is sent on the worker pool.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrAccountDeactivated
	}
	token, err := svc.tokens.MakeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}
	svc.send(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": usr.Name, "UID": EncodeUID(usr), "Token": token},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	if err := rp.Validate(svc.validate); err != nil {
		return err
	}
	id, err := DecodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(ErrInvalidResetLink)
	}

	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		usr, err := svc.repo.GetUser(ctx, id, exec)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return core.NewValidationError(ErrInvalidResetLink)
			}
			return err
		}
		if svc.tokens.VerifyToken(usr, rp.Token) != nil {
			return core.NewValidationError(ErrInvalidResetLink)
		}
		if err = ValidatePassword(rp.Password, usr); err != nil {
			return err
		}
		if err = usr.SetPassword(rp.Password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		usr.MustChangePassword = false
		usr.UpdatedAt = core.NowFunc().UTC()
		if _, err = svc.repo.UpdateUser(ctx, usr, exec); err != nil {
			return errors.Wrap(err, "resetting password")
		}
		actx := core.WithActor(ctx, core.Actor{UserID: usr.ID, Username: usr.Username, IP: core.ActorFrom(ctx).IP})
		return svc.audit.Record(actx, audit.ActionPassword, core.ModuleUsers, usr.ID, nil, nil, exec)
	})
}

func (svc *Service) sendAccountLockedMail(usr User) {
	if usr.Email == "" {
		return
	}
	svc.send(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Account locked",
		TemplateName: "account_locked",
		TemplateData: map[string]interface{}{"Name": usr.Name, "Attempts": svc.maxFailed},
	})
}

func (svc *Service) send(msg *core.EmailMessage) {
	svc.pool.Go(context.Background(), func(context.Context) error {
		svc.mailSvc.SendMessages(msg)
		return nil
	})
}

// Permissions

// Permissions returns the effective permissions of a user: its role defaults and its own grants.
func (svc *Service) Permissions(ctx context.Context, id string) (Permissions, error) {
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	grants, err := svc.repo.QueryPermissions(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "querying permissions")
	}
	return EffectivePermissions(usr, grants), nil
}

// Allowed reports whether the active user id may do op on module.
func (svc *Service) Allowed(ctx context.Context, id string, module core.Module, op string) (bool, error) {
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	if !usr.IsActive {
		return false, nil
	}
	if usr.IsSuperAdmin() {
		return true, nil
	}
	grants, err := svc.repo.QueryPermissions(ctx, id)
	if err != nil {
		return false, errors.Wrap(err, "querying permissions")
	}
	return EffectivePermissions(usr, grants).Allows(module, op), nil
}

func (svc *Service) Grants(ctx context.Context, id string) ([]Permission, error) {
	return svc.repo.QueryPermissions(ctx, id)
}

// SetGrants replaces the per-module grants of a user.
func (svc *Service) SetGrants(ctx context.Context, id string, grants []PermissionGrant) ([]Permission, error) {
	seen := make(map[core.Module]bool, len(grants))
	perms := make([]Permission, 0, len(grants))
	now := core.NowFunc().UTC()
	for _, g := range grants {
		if err := svc.validate.Struct(g); err != nil {
			return nil, err
		}
		if seen[g.Module] {
			return nil, core.NewFieldError("module", "a module can only be granted once")
		}
		seen[g.Module] = true
		perms = append(perms, Permission{UserID: id, Module: g.Module, Ops: g.Ops, CreatedAt: now})
	}

	var saved []Permission
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetUser(ctx, id, exec); err != nil {
			return err
		}
		before, err := svc.repo.QueryPermissions(ctx, id, exec)
		if err != nil {
			return errors.Wrap(err, "querying permissions")
		}
		if saved, err = svc.repo.ReplacePermissions(ctx, id, perms, exec); err != nil {
			return errors.Wrap(err, "saving permissions")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModuleUsers, id, before, saved, exec)
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}
