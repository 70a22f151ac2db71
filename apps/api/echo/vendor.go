package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/user"
	"github.com/somabem/erp/core/vendor"
)

type vendorApi struct {
	svc *vendor.Service
}

func registerVendorAPI(g *echo.Group, s *Server) {
	api := vendorApi{svc: s.deps.VendorSvc}
	read := s.perm(core.ModuleVendor, user.OpRead)
	create := s.perm(core.ModuleVendor, user.OpCreate)
	update := s.perm(core.ModuleVendor, user.OpUpdate)

	g.POST("", api.create, create)
	g.GET("", api.query, read)
	g.GET("/:id", api.retrieve, read)
	g.GET("/:id/contracts", api.queryContracts, read)
	g.GET("/:id/payments", api.queryPayments, read)

	g.POST("/contracts", api.createContract, create)
	g.PUT("/contracts/:contract_id/terminate", api.terminate, update)
	g.POST("/payments", api.createPayment, create)
	g.PUT("/payments/:payment_id/pay", api.pay, s.perm(core.ModuleVendor, user.OpApprove))
}

func (api *vendorApi) create(ctx echo.Context) error {
	var data vendor.NewVendor
	if err := bind(ctx, &data); err != nil {
		return err
	}
	v, err := api.svc.Create(ctx.Request().Context(), data)
	return created(ctx, v, err)
}

func (api *vendorApi) query(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := vendor.QueryFilter{
		Search:   q.String("search"),
		Category: q.String("category"),
		IsActive: q.BoolPtr("is_active"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	vs, err := api.svc.Query(ctx.Request().Context(), filter)
	return list(ctx, vs, err)
}

func (api *vendorApi) retrieve(ctx echo.Context) error {
	v, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, v, err)
}

func (api *vendorApi) queryContracts(ctx echo.Context) error {
	cs, err := api.svc.QueryContracts(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, cs, err)
}

func (api *vendorApi) queryPayments(ctx echo.Context) error {
	ps, err := api.svc.QueryPayments(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, ps, err)
}

func (api *vendorApi) createContract(ctx echo.Context) error {
	var data vendor.NewContract
	if err := bind(ctx, &data); err != nil {
		return err
	}
	c, err := api.svc.CreateContract(ctx.Request().Context(), data)
	return created(ctx, c, err)
}

func (api *vendorApi) terminate(ctx echo.Context) error {
	var data ReasonRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	c, err := api.svc.TerminateContract(ctx.Request().Context(), ctx.Param("contract_id"), data.Reason)
	return ok(ctx, c, err)
}

func (api *vendorApi) createPayment(ctx echo.Context) error {
	var data vendor.NewPayment
	if err := bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.CreatePayment(ctx.Request().Context(), data)
	return created(ctx, p, err)
}

func (api *vendorApi) pay(ctx echo.Context) error {
	var data vendor.PayVendor
	if err := bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.Pay(ctx.Request().Context(), ctx.Param("payment_id"), data)
	return ok(ctx, p, err)
}
