package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/institution"
	"github.com/somabem/erp/core/user"
)

type institutionApi struct {
	svc *institution.Service
}

func registerInstitutionAPI(g *echo.Group, s *Server) {
	api := institutionApi{svc: s.deps.InstitutionSvc}
	read := s.perm(core.ModuleInstitution, user.OpRead)
	create := s.perm(core.ModuleInstitution, user.OpCreate)
	update := s.perm(core.ModuleInstitution, user.OpUpdate)

	g.POST("", api.create, create)
	g.GET("", api.query, read)
	g.GET("/:id", api.retrieve, read)
	g.PUT("/:id", api.update, update)
	g.DELETE("/:id", api.destroy, s.perm(core.ModuleInstitution, user.OpDelete))
	g.GET("/:id/settings", api.settings, read)
	g.PUT("/:id/settings", api.updateSettings, update)
	g.GET("/:id/license", api.license, read)
	g.POST("/licenses", api.registerLicense, create)

	g.POST("/campuses", api.createCampus, create)
	g.GET("/:id/campuses", api.queryCampuses, read)
	g.POST("/blocks", api.createBlock, create)
	g.GET("/campuses/:campus_id/blocks", api.queryBlocks, read)
	g.POST("/rooms", api.createRoom, create)
	g.GET("/campuses/:campus_id/rooms", api.queryRooms, read)
	g.GET("/rooms/:room_id", api.retrieveRoom, read)
	g.PUT("/rooms/:room_id", api.updateRoom, update)
}

func (api *institutionApi) create(ctx echo.Context) error {
	var data institution.NewInstitution
	if err := bind(ctx, &data); err != nil {
		return err
	}
	inst, err := api.svc.Create(ctx.Request().Context(), data)
	return created(ctx, inst, err)
}

func (api *institutionApi) query(ctx echo.Context) error {
	insts, err := api.svc.Query(ctx.Request().Context())
	return list(ctx, insts, err)
}

func (api *institutionApi) retrieve(ctx echo.Context) error {
	inst, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, inst, err)
}

func (api *institutionApi) update(ctx echo.Context) error {
	var data institution.UpdateInstitution
	if err := bind(ctx, &data); err != nil {
		return err
	}
	inst, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	return ok(ctx, inst, err)
}

func (api *institutionApi) destroy(ctx echo.Context) error {
	return noContent(ctx, api.svc.Delete(ctx.Request().Context(), ctx.Param("id")))
}

func (api *institutionApi) settings(ctx echo.Context) error {
	s, err := api.svc.Settings(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, s, err)
}

func (api *institutionApi) updateSettings(ctx echo.Context) error {
	var data institution.Settings
	if err := bind(ctx, &data); err != nil {
		return err
	}
	s, err := api.svc.UpdateSettings(ctx.Request().Context(), ctx.Param("id"), data)
	return ok(ctx, s, err)
}

func (api *institutionApi) license(ctx echo.Context) error {
	q := newQuery(ctx)
	day := today(q)
	if err := q.Err(); err != nil {
		return err
	}
	l, err := api.svc.License(ctx.Request().Context(), ctx.Param("id"), day)
	return ok(ctx, l, err)
}

func (api *institutionApi) registerLicense(ctx echo.Context) error {
	var data institution.NewLicense
	if err := bind(ctx, &data); err != nil {
		return err
	}
	l, err := api.svc.RegisterLicense(ctx.Request().Context(), data)
	return created(ctx, l, err)
}

func (api *institutionApi) createCampus(ctx echo.Context) error {
	var data institution.NewCampus
	if err := bind(ctx, &data); err != nil {
		return err
	}
	c, err := api.svc.CreateCampus(ctx.Request().Context(), data)
	return created(ctx, c, err)
}

func (api *institutionApi) queryCampuses(ctx echo.Context) error {
	cs, err := api.svc.QueryCampuses(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, cs, err)
}

func (api *institutionApi) createBlock(ctx echo.Context) error {
	var data institution.NewBlock
	if err := bind(ctx, &data); err != nil {
		return err
	}
	b, err := api.svc.CreateBlock(ctx.Request().Context(), data)
	return created(ctx, b, err)
}

func (api *institutionApi) queryBlocks(ctx echo.Context) error {
	bs, err := api.svc.QueryBlocks(ctx.Request().Context(), ctx.Param("campus_id"))
	return list(ctx, bs, err)
}

func (api *institutionApi) createRoom(ctx echo.Context) error {
	var data institution.NewRoom
	if err := bind(ctx, &data); err != nil {
		return err
	}
	r, err := api.svc.CreateRoom(ctx.Request().Context(), data)
	return created(ctx, r, err)
}

func (api *institutionApi) queryRooms(ctx echo.Context) error {
	rs, err := api.svc.QueryRooms(ctx.Request().Context(), ctx.Param("campus_id"))
	return list(ctx, rs, err)
}

func (api *institutionApi) retrieveRoom(ctx echo.Context) error {
	r, err := api.svc.GetRoom(ctx.Request().Context(), ctx.Param("room_id"))
	return ok(ctx, r, err)
}

func (api *institutionApi) updateRoom(ctx echo.Context) error {
	var data institution.UpdateRoom
	if err := bind(ctx, &data); err != nil {
		return err
	}
	r, err := api.svc.UpdateRoom(ctx.Request().Context(), ctx.Param("room_id"), data)
	return ok(ctx, r, err)
}
