package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := cli.context()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name == "" {
		name = uname
	}
	var roles []string
	if isAdmin {
		roles = []string{user.RoleAdminSuper}
	}

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if err = user.ValidatePassword(pwd, user.User{Name: name, Username: uname, Email: email}); err != nil {
			return err
		}
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:            name,
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           roles,
		}, nil /* granter */)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "created user %s\n", usr.Username)
		return nil
	}

	if err = user.ValidatePassword(pwd, usr); err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	if isAdmin {
		usr.Roles = roles
	}
	usr.IsActive = true
	usr.FailedLogins = 0
	usr.LockedAt = null.Time{}
	usr.UpdatedAt = core.NowFunc().UTC()
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "updated user %s\n", usr.Username)
	return nil
}

func (cli *commandLine) resetPassword(login, pwd string) error {
	ctx := cli.context()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, login)
	if err != nil {
		return err
	}
	if err = user.ValidatePassword(pwd, usr); err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.MustChangePassword = false
	usr.UpdatedAt = core.NowFunc().UTC()
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}

func (cli *commandLine) unlock(login string) error {
	ctx := cli.context()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, login)
	if err != nil {
		return err
	}
	if _, err = cli.usrSvc.Unlock(ctx, usr.ID); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "unlocked %s\n", usr.Username)
	return nil
}
