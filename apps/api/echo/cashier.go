package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/cashier"
	"github.com/somabem/erp/core/user"
)

type cashierApi struct {
	svc *cashier.Service
}

func registerCashierAPI(g *echo.Group, s *Server) {
	api := cashierApi{svc: s.deps.CashierSvc}
	read := s.perm(core.ModuleCashier, user.OpRead)
	update := s.perm(core.ModuleCashier, user.OpUpdate)

	g.POST("/registers", api.open, s.perm(core.ModuleCashier, user.OpCreate))
	g.GET("/registers", api.query, read)
	g.GET("/registers/:id", api.retrieve, read)
	g.GET("/registers/:id/movements", api.movements, read)
	g.POST("/registers/:id/movements", api.addMovement, update)
	g.PUT("/registers/:id/close", api.close, update)
	g.PUT("/registers/:id/check", api.check, s.perm(core.ModuleCashier, user.OpApprove))
}

func (api *cashierApi) open(ctx echo.Context) error {
	var data cashier.NewRegister
	if err := bind(ctx, &data); err != nil {
		return err
	}
	r, err := api.svc.Open(ctx.Request().Context(), data)
	return created(ctx, r, err)
}

func (api *cashierApi) query(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := cashier.QueryFilter{OpenOnly: q.Bool("open"), From: q.Time("from"), To: q.Time("to")}
	if err := q.Err(); err != nil {
		return err
	}
	rs, err := api.svc.Query(ctx.Request().Context(), filter)
	return list(ctx, rs, err)
}

func (api *cashierApi) retrieve(ctx echo.Context) error {
	r, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, r, err)
}

func (api *cashierApi) movements(ctx echo.Context) error {
	ms, err := api.svc.Movements(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, ms, err)
}

func (api *cashierApi) addMovement(ctx echo.Context) error {
	var data cashier.NewMovement
	if err := bind(ctx, &data); err != nil {
		return err
	}
	data.RegisterID = ctx.Param("id")
	m, err := api.svc.AddMovement(ctx.Request().Context(), data)
	return created(ctx, m, err)
}

func (api *cashierApi) close(ctx echo.Context) error {
	r, err := api.svc.Close(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, r, err)
}

func (api *cashierApi) check(ctx echo.Context) error {
	r, err := api.svc.MarkChecked(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, r, err)
}
