package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
	"github.com/somabem/erp/core/user"
	"github.com/somabem/erp/tests"
)

const pwd = "Kw4nz4-Sul!"

func TestService_Authenticate_lockout(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, env.UserRepo, "Ana Lopes", "ana", "ana@school.ao", pwd, []string{user.RoleTeacher}, true)

	for i := 1; i < 5; i++ {
		_, err := env.UserSvc.Authenticate(ctx, user.Credentials{Login: "ana", Password: "wrong"})
		require.Equal(t, user.ErrAuthenticationFailed, err, "attempt %d", i)
	}
	got, err := env.UserSvc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.FailedLogins)
	assert.True(t, got.IsActive)

	_, err = env.UserSvc.Authenticate(ctx, user.Credentials{Login: "ANA@school.ao", Password: "wrong"})
	require.Equal(t, user.ErrAuthenticationFailed, err)

	got, err = env.UserSvc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.True(t, got.IsLocked())

	// the right password no longer helps
	_, err = env.UserSvc.Authenticate(ctx, user.Credentials{Login: "ana", Password: pwd})
	assert.Equal(t, user.ErrAccountLocked, err)

	require.Eventually(t, func() bool {
		for _, m := range env.Mail.SentMessages() {
			if m.Subject == "Account locked" && m.To[0].Address == "ana@school.ao" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "lock notification")

	locks, err := env.AuditSvc.Query(ctx, &audit.QueryFilter{EntityID: usr.ID, Action: string(audit.ActionLock)}, nil)
	require.NoError(t, err)
	assert.Len(t, locks, 1)

	_, err = env.UserSvc.Unlock(ctx, usr.ID)
	require.NoError(t, err)
	got, err = env.UserSvc.Authenticate(ctx, user.Credentials{Login: "ana", Password: pwd})
	require.NoError(t, err)
	assert.Zero(t, got.FailedLogins)
	assert.True(t, got.LastLogin.Valid)
}

func TestService_Authenticate(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	testutil.CreateUser(t, env.UserRepo, "Active", "active", "active@school.ao", pwd, nil, true)
	testutil.CreateUser(t, env.UserRepo, "Gone", "gone", "gone@school.ao", pwd, nil, false)
	fresh, err := env.UserSvc.Create(ctx, user.NewUser{
		Name: "Fresh", Username: "fresh", Password: pwd, PasswordConfirm: pwd, MustChangePassword: true,
	}, nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		creds   user.Credentials
		wantErr error
	}{
		{name: "unknown user", creds: user.Credentials{Login: "nobody", Password: pwd}, wantErr: user.ErrAuthenticationFailed},
		{name: "wrong password", creds: user.Credentials{Login: "active", Password: "x"}, wantErr: user.ErrAuthenticationFailed},
		{name: "deactivated", creds: user.Credentials{Login: "gone", Password: pwd}, wantErr: user.ErrAccountDeactivated},
		{name: "must change password", creds: user.Credentials{Login: fresh.Username, Password: pwd}, wantErr: user.ErrPasswordChangeNeeded},
		{name: "by username", creds: user.Credentials{Login: " Active ", Password: pwd}},
		{name: "by email", creds: user.Credentials{Login: "active@school.ao", Password: pwd}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := env.UserSvc.Authenticate(ctx, tt.creds)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "active", usr.Username)
		})
	}

	_, err = env.UserSvc.Authenticate(ctx, user.Credentials{})
	assert.True(t, core.IsValidationError(err), "empty credentials")
}

func TestService_ChangePassword(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr, err := env.UserSvc.Create(ctx, user.NewUser{
		Name: "Joana Silva", Username: "joana", Email: "joana@school.ao",
		Password: pwd, PasswordConfirm: pwd, MustChangePassword: true,
	}, nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		newPwd  string
		wantErr bool
	}{
		{name: "too short", newPwd: "abc", wantErr: true},
		{name: "all numeric", newPwd: "123456789012", wantErr: true},
		{name: "like username", newPwd: "joana1234", wantErr: true},
		{name: "common", newPwd: "password123", wantErr: true},
		{name: "strong", newPwd: "Ndombe-Grande-77"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.UserSvc.ChangePassword(ctx, user.ChangePassword{
				Login: usr.Username, CurrentPassword: pwd, Password: tt.newPwd, PasswordConfirm: tt.newPwd,
			})
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err), "err = %v", err)
				return
			}
			require.NoError(t, err)
		})
	}

	got, err := env.UserSvc.Authenticate(ctx, user.Credentials{Login: "joana", Password: "Ndombe-Grande-77"})
	require.NoError(t, err)
	assert.False(t, got.MustChangePassword)
}

func TestService_ResetPassword(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, env.UserRepo, "Rui", "rui", "rui@school.ao", pwd, nil, true)

	require.NoError(t, env.UserSvc.RequestPasswordReset(ctx, "rui@school.ao"))
	assert.True(t, core.IsNotFound(env.UserSvc.RequestPasswordReset(ctx, "nobody@school.ao")))

	token, err := user.NewTokenGenerator(env.Conf.SecretKey, env.Conf.Auth.PasswordResetTimeoutDelta).MakeToken(usr)
	require.NoError(t, err)
	newPwd := "Mussulo-Beach-2024"

	err = env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{
		Token: "bogus", UID: user.EncodeUID(usr), Password: newPwd, PasswordConfirm: newPwd,
	})
	assert.Equal(t, user.ErrInvalidResetLink, testutil.Cause(err))

	err = env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{
		Token: token, UID: user.EncodeUID(usr), Password: newPwd, PasswordConfirm: newPwd,
	})
	require.NoError(t, err)

	_, err = env.UserSvc.Authenticate(ctx, user.Credentials{Login: "rui", Password: newPwd})
	require.NoError(t, err)

	// the token dies with the old password
	err = env.UserSvc.ResetPassword(ctx, user.ResetUserPassword{
		Token: token, UID: user.EncodeUID(usr), Password: "Another-Pass-99", PasswordConfirm: "Another-Pass-99",
	})
	assert.Equal(t, user.ErrInvalidResetLink, testutil.Cause(err))
}

func TestService_Create_roles(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	secretary := testutil.CreateUser(t, env.UserRepo, "Sec", "sec", "sec@school.ao", pwd, []string{user.RoleStaffSecretariat}, true)

	_, err := env.UserSvc.Create(ctx, user.NewUser{
		Name: "Boss", Username: "boss", Password: pwd, PasswordConfirm: pwd, Roles: []string{user.RoleAdminGeneral},
	}, &secretary)
	assert.Equal(t, user.ErrRolesAboveOwn, testutil.Cause(err))

	_, err = env.UserSvc.Create(ctx, user.NewUser{
		Name: "Clerk", Username: "clerk", Password: pwd, PasswordConfirm: pwd, Roles: []string{user.RoleStaff},
	}, &secretary)
	require.NoError(t, err)

	_, err = env.UserSvc.Create(ctx, user.NewUser{
		Name: "Clerk 2", Username: "CLERK", Password: pwd, PasswordConfirm: pwd,
	}, nil)
	assert.Equal(t, user.ErrUsernameExists, testutil.Cause(err))
}

func TestService_Allowed(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Prof", "prof", "prof@school.ao", pwd, []string{user.RoleTeacher}, true)
	super := testutil.CreateUser(t, env.UserRepo, "Root", "root", "root@school.ao", pwd, []string{user.RoleAdminSuper}, true)
	off := testutil.CreateUser(t, env.UserRepo, "Off", "off", "off@school.ao", pwd, []string{user.RoleAdminSuper}, false)

	tests := []struct {
		name   string
		usr    user.User
		module core.Module
		op     string
		want   bool
	}{
		{name: "teacher grades", usr: teacher, module: core.ModuleGrading, op: user.OpCreate, want: true},
		{name: "teacher cannot approve grades", usr: teacher, module: core.ModuleGrading, op: user.OpApprove},
		{name: "teacher cannot see tuition", usr: teacher, module: core.ModuleTuition, op: user.OpRead},
		{name: "super admin", usr: super, module: core.ModuleCashier, op: user.OpDelete, want: true},
		{name: "inactive super admin", usr: off, module: core.ModuleCashier, op: user.OpRead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := env.UserSvc.Allowed(ctx, tt.usr.ID, tt.module, tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	_, err := env.UserSvc.SetGrants(ctx, teacher.ID, []user.PermissionGrant{
		{Module: core.ModuleTuition, Ops: []string{user.OpRead}},
	})
	require.NoError(t, err)
	ok, err := env.UserSvc.Allowed(ctx, teacher.ID, core.ModuleTuition, user.OpRead)
	require.NoError(t, err)
	assert.True(t, ok, "granted")

	_, err = env.UserSvc.SetGrants(ctx, teacher.ID, []user.PermissionGrant{
		{Module: core.ModuleTuition, Ops: []string{user.OpRead}},
		{Module: core.ModuleTuition, Ops: []string{user.OpUpdate}},
	})
	assert.True(t, core.IsValidationError(err), "module twice")

	_, err = env.UserSvc.Allowed(ctx, "00000000-0000-0000-0000-000000000000", core.ModuleTuition, user.OpRead)
	assert.True(t, core.IsNotFound(err))
}
