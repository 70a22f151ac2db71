package echoapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// query reads typed query parameters, keeping the first parse error.
type query struct {
	ctx echo.Context
	err error
}

func newQuery(ctx echo.Context) *query { return &query{ctx: ctx} }

func (q *query) fail(name, msg string) {
	if q.err == nil {
		q.err = core.NewFieldError(name, msg)
	}
}

func (q *query) String(name string) string {
	return strings.TrimSpace(q.ctx.QueryParam(name))
}

func (q *query) Strings(name string) []string {
	return q.ctx.QueryParams()[name]
}

func (q *query) Bool(name string) bool {
	b := q.BoolPtr(name)
	return b != nil && *b
}

func (q *query) BoolPtr(name string) *bool {
	v := q.String(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		q.fail(name, "must be true or false")
		return nil
	}
	return &b
}

func (q *query) Int(name string) int {
	v := q.String(name)
	if v == "" {
		return 0
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		q.fail(name, "must be an integer")
	}
	return i
}

// Time accepts RFC 3339 timestamps and YYYY-MM-DD dates (UTC midnight).
func (q *query) Time(name string) time.Time {
	v := q.String(name)
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		q.fail(name, "must be a date (YYYY-MM-DD) or an RFC 3339 time")
	}
	return t
}

func (q *query) Err() error { return q.err }

// bind decodes the JSON body into v.
func bind(ctx echo.Context, v interface{}) error {
	if err := ctx.Bind(v); err != nil {
		if herr, ok := err.(*echo.HTTPError); ok && herr.Code == http.StatusBadRequest {
			return core.NewValidationError(errors.New("invalid request body"))
		}
		return errors.Wrapf(err, "binding to %T", v)
	}
	return nil
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	ReasonRequest struct {
		Reason string `json:"reason"`
	}

	IDRequest struct {
		ID string `json:"id"`
	}
)

func list[T any](ctx echo.Context, items []T, err error) error {
	if err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func ok(ctx echo.Context, v interface{}, err error) error {
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, v)
}

func created(ctx echo.Context, v interface{}, err error) error {
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, v)
}

func noContent(ctx echo.Context, err error) error {
	if err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// today is the `date` query parameter, or the current day.
func today(q *query) time.Time {
	if d := q.Time("date"); !d.IsZero() {
		return core.DateOf(d)
	}
	return core.Today()
}
