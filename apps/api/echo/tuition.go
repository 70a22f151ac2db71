package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/tuition"
	"github.com/somabem/erp/core/user"
)

type tuitionApi struct {
	svc *tuition.Service
}

func registerTuitionAPI(g *echo.Group, s *Server) {
	api := tuitionApi{svc: s.deps.TuitionSvc}
	read := s.perm(core.ModuleTuition, user.OpRead)
	create := s.perm(core.ModuleTuition, user.OpCreate)

	g.POST("/plans", api.createPlan, create)
	g.GET("/plans", api.queryPlans, read)
	g.GET("/plans/:id", api.retrievePlan, read)
	g.POST("/plans/:id/templates", api.generateTemplates, create)
	g.GET("/plans/:id/templates", api.queryTemplates, read)

	g.POST("/enrollments/:id/installments", api.instantiate, create)
	g.GET("/installments", api.queryInstallments, read)
	g.GET("/installments/overdue", api.overdue, read)
	g.POST("/late-fees", api.applyLateFees, s.perm(core.ModuleTuition, user.OpUpdate))

	g.POST("/payments", api.registerPayment, create)
	g.GET("/payments", api.queryPayments, read)
	g.GET("/payments/:id", api.retrievePayment, read)
	g.PUT("/payments/:id/reverse", api.reversePayment, s.perm(core.ModuleTuition, user.OpApprove))
}

func (api *tuitionApi) createPlan(ctx echo.Context) error {
	var data tuition.NewPaymentPlan
	if err := bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.CreatePlan(ctx.Request().Context(), data)
	return created(ctx, p, err)
}

func (api *tuitionApi) queryPlans(ctx echo.Context) error {
	ps, err := api.svc.QueryPlans(ctx.Request().Context(), ctx.QueryParam("academic_year_id"))
	return list(ctx, ps, err)
}

func (api *tuitionApi) retrievePlan(ctx echo.Context) error {
	p, err := api.svc.GetPlan(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, p, err)
}

func (api *tuitionApi) generateTemplates(ctx echo.Context) error {
	var data tuition.GenerateTemplates
	if err := bind(ctx, &data); err != nil {
		return err
	}
	ts, err := api.svc.GenerateTemplates(ctx.Request().Context(), ctx.Param("id"), data)
	return created(ctx, ts, err)
}

func (api *tuitionApi) queryTemplates(ctx echo.Context) error {
	ts, err := api.svc.QueryTemplates(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, ts, err)
}

func (api *tuitionApi) instantiate(ctx echo.Context) error {
	is, err := api.svc.InstantiateInstallments(ctx.Request().Context(), ctx.Param("id"))
	return created(ctx, is, err)
}

func (api *tuitionApi) queryInstallments(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := tuition.InstallmentFilter{
		EnrollmentID: q.String("enrollment_id"),
		Status:       q.String("status"),
		DueBefore:    q.Time("due_before"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	is, err := api.svc.QueryInstallments(ctx.Request().Context(), filter)
	return list(ctx, is, err)
}

func (api *tuitionApi) overdue(ctx echo.Context) error {
	q := newQuery(ctx)
	day := today(q)
	if err := q.Err(); err != nil {
		return err
	}
	is, err := api.svc.Overdue(ctx.Request().Context(), day)
	return list(ctx, is, err)
}

func (api *tuitionApi) applyLateFees(ctx echo.Context) error {
	q := newQuery(ctx)
	day := today(q)
	if err := q.Err(); err != nil {
		return err
	}
	is, err := api.svc.ApplyLateFees(ctx.Request().Context(), day)
	return list(ctx, is, err)
}

func (api *tuitionApi) registerPayment(ctx echo.Context) error {
	var data tuition.NewPayment
	if err := bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.RegisterPayment(ctx.Request().Context(), data)
	return created(ctx, p, err)
}

func (api *tuitionApi) queryPayments(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := tuition.PaymentFilter{
		StudentID:       q.String("student_id"),
		InstallmentID:   q.String("installment_id"),
		From:            q.Time("from"),
		To:              q.Time("to"),
		IncludeReversed: q.Bool("include_reversed"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	ps, err := api.svc.QueryPayments(ctx.Request().Context(), filter)
	return list(ctx, ps, err)
}

func (api *tuitionApi) retrievePayment(ctx echo.Context) error {
	p, err := api.svc.GetPayment(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, p, err)
}

func (api *tuitionApi) reversePayment(ctx echo.Context) error {
	var data ReasonRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.ReversePayment(ctx.Request().Context(), ctx.Param("id"), data.Reason)
	return ok(ctx, p, err)
}
