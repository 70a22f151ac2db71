package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core/tuition"
	"github.com/somabem/erp/core/user"
	"github.com/somabem/erp/tests"
)

const pwd = "Kw4nz4-Sul!"

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	return &commandLine{
		db:         new(sql.DB),
		usrRepo:    env.UserRepo,
		usrSvc:     env.UserSvc,
		tuitionSvc: env.TuitionSvc,
		out:        new(bytes.Buffer),
	}, env
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, testutil.Cause(err))
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Equal(t, tt.wantErrStr, err.Error())
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	orig := migrateFunc
	t.Cleanup(func() { migrateFunc = orig })
	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	t.Run("in-memory engine", func(t *testing.T) {
		cli.db = nil
		assert.Equal(t, errNoDatabase, cli.run([]string{"admin", "migrate", "up"}))
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	mockPassword(t, pwd)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "diretor"}, wantErr: errHelp},
		{name: "create admin", args: []string{"adduser", "-username", "Diretor", "-email", "diretor@school.ao", "-admin"}},
		{name: "update existing", args: []string{"adduser", "-username", "diretor", "-email", "diretor@school.ao", "-name", "Diretor Geral"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	usr, err := env.UserSvc.GetByUsernameOrEmail(context.Background(), "diretor")
	require.NoError(t, err)
	assert.Equal(t, "diretor@school.ao", usr.Email)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsSuperAdmin(), "roles are kept when -admin is not repeated")
	assert.NoError(t, usr.CheckPassword(pwd))

	t.Run("weak password", func(t *testing.T) {
		mockPassword(t, "123")
		assert.Error(t, cli.run([]string{"admin", "adduser", "-username", "fraco", "-email", "fraco@school.ao"}))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "Secretaria", "sec", "sec@school.ao", pwd, nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "N0v4-Senha!"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "N0v4-Senha!"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", "SEC@school.ao"}, extra: extra{pwd: "Outr4-Senha?"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		p := ""
		if e, ok := tt.extra.(extra); ok {
			p = e.pwd
		}

		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, p)
			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				refreshed, err := env.UserRepo.GetUser(context.Background(), usr.ID)
				require.NoError(t, err)
				assert.NoError(t, refreshed.CheckPassword(p), "failed to update new password")
			}
		})
	}
}

func Test_commandLine_unlock(t *testing.T) {
	cli, env := setup(t)
	usr := testutil.CreateUser(t, env.UserRepo, "Caixa", "caixa", "caixa@school.ao", pwd, nil, true)
	for i := 0; i < env.Conf.Auth.MaxFailedLogins; i++ {
		_, err := env.UserSvc.Authenticate(context.Background(), user.Credentials{Login: "caixa", Password: "errada"})
		require.Error(t, err)
	}
	_, err := env.UserSvc.Authenticate(context.Background(), user.Credentials{Login: "caixa", Password: pwd})
	require.Equal(t, user.ErrAccountLocked, err)

	tests := []cliTest{
		{name: "no args", args: []string{"unlock"}, wantErr: errHelp},
		{name: "user not found", args: []string{"unlock", "-username", "lol"}, wantErr: user.ErrNotFound},
		{name: "unlock", args: []string{"unlock", "-username", "caixa"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	signedIn, err := env.UserSvc.Authenticate(context.Background(), user.Credentials{Login: "caixa", Password: pwd})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, signedIn.ID)
}

func Test_commandLine_lateFees(t *testing.T) {
	testutil.FreezeClock(t, time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC))
	cli, env := setup(t)
	s := testutil.SeedSchool(t, env, 30)
	ctx := testutil.Ctx(s.Admin)

	p, err := env.TuitionSvc.CreatePlan(ctx, tuition.NewPaymentPlan{
		AcademicYearID: s.Year.ID, GradeID: s.Grade.ID, Name: "Propina", TotalAmount: testutil.Dec("30000"), Installments: 3,
	})
	require.NoError(t, err)
	_, err = env.TuitionSvc.GenerateTemplates(ctx, p.ID, tuition.GenerateTemplates{FirstMonth: 2})
	require.NoError(t, err)
	e := testutil.Enroll(t, env, s, "Ana", &p.ID)
	_, err = env.TuitionSvc.InstantiateInstallments(ctx, e.ID)
	require.NoError(t, err)

	tests := []cliTest{
		{name: "bad date", args: []string{"latefees", "-date", "15/03/2025"}, wantErrStr: `invalid date "15/03/2025", want YYYY-MM-DD`},
		{name: "before any due date", args: []string{"latefees", "-date", "2025-01-01"}},
		{name: "today", args: []string{"latefees"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	out := cli.out.(*bytes.Buffer).String()
	assert.Contains(t, out, "0 installments updated")
	assert.Contains(t, out, "1 installments updated", "the February installment is past its grace days")
}
