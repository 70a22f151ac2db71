package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/grading"
	"github.com/somabem/erp/core/user"
)

type gradingApi struct {
	svc *grading.Service
}

func registerGradingAPI(g *echo.Group, s *Server) {
	api := gradingApi{svc: s.deps.GradingSvc}
	read := s.perm(core.ModuleGrading, user.OpRead)
	create := s.perm(core.ModuleGrading, user.OpCreate)

	g.POST("/marks", api.addMark, create)
	g.GET("/marks", api.queryMarks, read)
	g.GET("/marks/average", api.average, read)
	g.POST("/attendance", api.recordAttendance, create)
	g.GET("/attendance", api.queryAttendance, read)
	g.GET("/attendance/rate", api.attendanceRate, read)
	g.POST("/sections/:id/close", api.closeRecords, s.perm(core.ModuleGrading, user.OpApprove))
	g.GET("/records", api.queryRecords, read)
}

func (api *gradingApi) addMark(ctx echo.Context) error {
	var data grading.NewMark
	if err := bind(ctx, &data); err != nil {
		return err
	}
	m, err := api.svc.AddMark(ctx.Request().Context(), data)
	return created(ctx, m, err)
}

func (api *gradingApi) queryMarks(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := grading.MarkFilter{
		StudentID: q.String("student_id"),
		SectionID: q.String("section_id"),
		SubjectID: q.String("subject_id"),
		Term:      q.Int("term"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	ms, err := api.svc.QueryMarks(ctx.Request().Context(), filter)
	return list(ctx, ms, err)
}

func (api *gradingApi) average(ctx echo.Context) error {
	q := newQuery(ctx)
	term := q.Int("term")
	if err := q.Err(); err != nil {
		return err
	}
	avg, err := api.svc.SubjectAverage(ctx.Request().Context(),
		q.String("student_id"), q.String("section_id"), q.String("subject_id"), term)
	return ok(ctx, ValueResponse{Value: avg}, err)
}

func (api *gradingApi) recordAttendance(ctx echo.Context) error {
	var data grading.NewAttendance
	if err := bind(ctx, &data); err != nil {
		return err
	}
	a, err := api.svc.RecordAttendance(ctx.Request().Context(), data)
	return created(ctx, a, err)
}

func (api *gradingApi) queryAttendance(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := grading.AttendanceFilter{
		StudentID: q.String("student_id"),
		SectionID: q.String("section_id"),
		SubjectID: q.String("subject_id"),
		From:      q.Time("from"),
		To:        q.Time("to"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	as, err := api.svc.QueryAttendance(ctx.Request().Context(), filter)
	return list(ctx, as, err)
}

func (api *gradingApi) attendanceRate(ctx echo.Context) error {
	q := newQuery(ctx)
	rate, err := api.svc.AttendanceRate(ctx.Request().Context(),
		q.String("student_id"), q.String("section_id"), q.String("subject_id"))
	return ok(ctx, ValueResponse{Value: rate}, err)
}

func (api *gradingApi) closeRecords(ctx echo.Context) error {
	rs, err := api.svc.CloseRecords(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, rs, err)
}

func (api *gradingApi) queryRecords(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := grading.RecordFilter{
		StudentID:      q.String("student_id"),
		SectionID:      q.String("section_id"),
		AcademicYearID: q.String("academic_year_id"),
	}
	rs, err := api.svc.QueryRecords(ctx.Request().Context(), filter)
	return list(ctx, rs, err)
}

type ValueResponse struct {
	Value decimal.Decimal `json:"value"`
}
