package main

import (
	"database/sql"
	"fmt"
	"os"

	"go.uber.org/dig"

	dig_container "github.com/somabem/erp/apps/api/di/dig"
	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/tuition"
	"github.com/somabem/erp/core/user"
)

type deps struct {
	dig.In

	Logger     core.Logger
	DB         *sql.DB
	Pool       *core.WorkerPool
	UsrRepo    user.Repository
	UsrSvc     *user.Service
	TuitionSvc *tuition.Service
}

func main() {
	code := 0
	err := dig_container.New().Invoke(func(d deps) {
		defer d.Pool.Close()
		if d.DB != nil {
			defer func() { _ = d.DB.Close() }()
		}

		cli := commandLine{
			db:         d.DB,
			usrRepo:    d.UsrRepo,
			usrSvc:     d.UsrSvc,
			tuitionSvc: d.TuitionSvc,
			out:        os.Stdout,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				d.Logger.Error(fmt.Sprintf("admin: %v", err), err)
			}
			code = 1
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		code = 1
	}
	os.Exit(code)
}
