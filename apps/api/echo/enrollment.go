package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/user"
)

type enrollmentApi struct {
	svc *enrollment.Service
}

func registerEnrollmentAPI(g *echo.Group, s *Server) {
	api := enrollmentApi{svc: s.deps.EnrollmentSvc}
	read := s.perm(core.ModuleEnrollment, user.OpRead)
	update := s.perm(core.ModuleEnrollment, user.OpUpdate)

	g.POST("", api.enroll, s.perm(core.ModuleEnrollment, user.OpCreate))
	g.GET("", api.query, read)
	g.GET("/:id", api.retrieve, read)
	g.PUT("/:id/transfer", api.transfer, update)
	g.PUT("/:id/cancel", api.cancel, update)
}

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := bind(ctx, &data); err != nil {
		return err
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), data)
	return created(ctx, e, err)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := enrollment.QueryFilter{
		StudentID:      q.String("student_id"),
		AcademicYearID: q.String("academic_year_id"),
		SectionID:      q.String("section_id"),
		Status:         q.String("status"),
	}
	es, err := api.svc.Query(ctx.Request().Context(), filter)
	return list(ctx, es, err)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	e, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, e, err)
}

func (api *enrollmentApi) transfer(ctx echo.Context) error {
	var data TransferRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	e, err := api.svc.Transfer(ctx.Request().Context(), ctx.Param("id"), data.SectionID)
	return ok(ctx, e, err)
}

func (api *enrollmentApi) cancel(ctx echo.Context) error {
	var data ReasonRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	e, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("id"), data.Reason)
	return ok(ctx, e, err)
}

type TransferRequest struct {
	SectionID string `json:"section_id"`
}
