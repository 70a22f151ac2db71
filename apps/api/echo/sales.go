package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/sales"
	"github.com/somabem/erp/core/user"
)

type salesApi struct {
	svc *sales.Service
}

func registerSalesAPI(g *echo.Group, s *Server) {
	api := salesApi{svc: s.deps.SalesSvc}
	read := s.perm(core.ModuleSales, user.OpRead)

	g.POST("/checkout", api.checkout, s.perm(core.ModuleSales, user.OpCreate))
	g.GET("", api.query, read)
	g.GET("/:id", api.retrieve, read)
	g.GET("/:id/receipt", api.receipt, read)
	g.PUT("/:id/cancel", api.cancel, s.perm(core.ModuleSales, user.OpApprove))
	g.PUT("/installments/:installment_id/pay", api.payInstallment, s.perm(core.ModuleSales, user.OpUpdate))
}

func (api *salesApi) checkout(ctx echo.Context) error {
	var cart sales.Cart
	if err := bind(ctx, &cart); err != nil {
		return err
	}
	r, err := api.svc.Checkout(ctx.Request().Context(), cart)
	return created(ctx, r, err)
}

func (api *salesApi) query(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := sales.QueryFilter{
		StudentID: q.String("student_id"),
		Status:    q.String("status"),
		From:      q.Time("from"),
		To:        q.Time("to"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	ss, err := api.svc.Query(ctx.Request().Context(), filter)
	return list(ctx, ss, err)
}

func (api *salesApi) retrieve(ctx echo.Context) error {
	s, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, s, err)
}

func (api *salesApi) receipt(ctx echo.Context) error {
	r, err := api.svc.Receipt(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, r, err)
}

func (api *salesApi) cancel(ctx echo.Context) error {
	var data ReasonRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	s, err := api.svc.CancelSale(ctx.Request().Context(), ctx.Param("id"), data.Reason)
	return ok(ctx, s, err)
}

func (api *salesApi) payInstallment(ctx echo.Context) error {
	var data sales.PayInstallment
	if err := bind(ctx, &data); err != nil {
		return err
	}
	inst, err := api.svc.PaySaleInstallment(ctx.Request().Context(), ctx.Param("installment_id"), data)
	return ok(ctx, inst, err)
}
