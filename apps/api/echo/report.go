package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
	"github.com/somabem/erp/core/report"
	"github.com/somabem/erp/core/user"
)

func registerAuditAPI(g *echo.Group, s *Server) {
	svc := s.deps.AuditSvc
	g.GET("", func(ctx echo.Context) error {
		q := newQuery(ctx)
		filter := &audit.QueryFilter{
			UserID:   q.String("user_id"),
			Module:   q.String("module"),
			Action:   q.String("action"),
			EntityID: q.String("entity_id"),
			From:     q.Time("from"),
			To:       q.Time("to"),
		}
		if err := q.Err(); err != nil {
			return err
		}
		ordering := new(Ordering)
		ordering.Bind(ctx)
		entries, err := svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
		return list(ctx, entries, err)
	}, s.perm(core.ModuleAudit, user.OpRead))
}

type reportApi struct {
	svc *report.Service
}

func registerReportAPI(g *echo.Group, s *Server) {
	api := reportApi{svc: s.deps.ReportSvc}
	reports := s.perm(core.ModuleReports, user.OpReports)

	g.GET("/dashboard", api.dashboard, s.perm(core.ModuleReports, user.OpRead))
	g.GET("/finance", api.monthlyFinance, reports)
	g.GET("/active-students", api.activeStudents, reports)
}

func (api *reportApi) dashboard(ctx echo.Context) error {
	q := newQuery(ctx)
	day := today(q)
	if err := q.Err(); err != nil {
		return err
	}
	d, err := api.svc.Dashboard(ctx.Request().Context(), day)
	return ok(ctx, d, err)
}

// monthlyFinance defaults to the current month.
func (api *reportApi) monthlyFinance(ctx echo.Context) error {
	q := newQuery(ctx)
	now := core.Today()
	year, month := q.Int("year"), q.Int("month")
	if err := q.Err(); err != nil {
		return err
	}
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	mf, err := api.svc.MonthlyFinance(ctx.Request().Context(), year, time.Month(month))
	return ok(ctx, mf, err)
}

func (api *reportApi) activeStudents(ctx echo.Context) error {
	rows, err := api.svc.ActiveStudents(ctx.Request().Context(), ctx.QueryParam("academic_year_id"))
	return list(ctx, rows, err)
}
