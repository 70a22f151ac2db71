package main

import (
	"fmt"
	"time"
)

func (cli *commandLine) lateFees(day time.Time) error {
	updated, err := cli.tuitionSvc.ApplyLateFees(cli.context(), day)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d installments updated\n", len(updated))
	return nil
}
