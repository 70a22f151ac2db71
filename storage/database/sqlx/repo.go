package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
)

const uniqueViolation = "23505"

// repository is embedded by every sqlx repository.
type repository struct {
	db *sqlx.DB
}

// getExec returns the caller's executor (a *sqlx.Tx when running under database.TxRunner) or the pool.
func (repo repository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	switch exec := core.Exec(nil, svcExec).(type) {
	case nil:
		return repo.db
	case sqlx.ExtContext:
		return exec
	case *sql.Tx:
		return &sqlx.Tx{Tx: exec, Mapper: repo.db.Mapper}
	default:
		return repo.db
	}
}

// columns is the column list of a table, in insert order; the first one is the primary key.
type columns []string

func (cols columns) list() string {
	return strings.Join(cols, ", ")
}

func (cols columns) insert(table string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)", table, cols.list(), strings.Join(cols, ", :"))
}

func (cols columns) update(table string) string {
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, c+" = :"+c)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s", table, strings.Join(sets, ", "), cols[0], cols[0])
}

func (cols columns) selectFrom(table string) string {
	return fmt.Sprintf("SELECT %s FROM %s", cols.list(), table)
}

// namedExec binds `arg` to the :named parameters of query and runs it. It returns sql.ErrNoRows
// when nothing was affected.
func namedExec(ctx context.Context, exec sqlx.ExtContext, query string, arg interface{}) error {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return err
	}
	res, err := exec.ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, q), args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func exists(ctx context.Context, exec sqlx.ExtContext, query string, args ...interface{}) (bool, error) {
	var ok bool
	err := sqlx.GetContext(ctx, exec, &ok, "SELECT EXISTS ("+query+")", args...)
	return ok, err
}

func count(ctx context.Context, exec sqlx.ExtContext, query string, args ...interface{}) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, exec, &n, query, args...)
	return n, err
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return trapUniqueErr(err, msg)
}

// trapUniqueErr maps a unique constraint violation to a validation error on the constrained column.
func trapUniqueErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return core.NewUniqueViolation(uniqueField(pqErr.Table, pqErr.Constraint))
	}
	return errors.Wrap(err, msg)
}

// uniqueField guesses the column from postgres' default constraint names (<table>_<column>_key).
func uniqueField(table, constraint string) string {
	if constraint == table+"_pkey" {
		return "id"
	}
	field := strings.TrimPrefix(constraint, table+"_")
	for _, suffix := range []string{"_key", "_idx"} {
		field = strings.TrimSuffix(field, suffix)
	}
	if field == "" {
		return "id"
	}
	return field
}

// validID reports whether id can be compared to a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []interface{}
}

// add appends cond, replacing each "?" with the next positional parameter.
func (w *where) add(cond string, args ...interface{}) {
	for range args {
		w.args = append(w.args, nil)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	copy(w.args[len(w.args)-len(args):], args)
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// idConditions adds the AND-ed id conditions of a query; it reports false when an id cannot match.
func idConditions(w *where, ids map[string]string) bool {
	for col, id := range ids {
		if id == "" {
			continue
		}
		if !validID(id) {
			return false
		}
		w.add(col+" = ?", id)
	}
	return true
}
