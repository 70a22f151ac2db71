package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/user"
)

type academicApi struct {
	svc *academic.Service
}

// registerAcademicAPI mounts the academic structure. List endpoints of institution-wide records
// take an `institution_id` query parameter.
func registerAcademicAPI(g *echo.Group, s *Server) {
	api := academicApi{svc: s.deps.AcademicSvc}
	read := s.perm(core.ModuleAcademic, user.OpRead)
	create := s.perm(core.ModuleAcademic, user.OpCreate)
	update := s.perm(core.ModuleAcademic, user.OpUpdate)

	g.POST("/years", api.createYear, create)
	g.GET("/years", api.queryYears, read)
	g.GET("/years/:id", api.retrieveYear, read)
	g.PUT("/years/:id/close", api.closeYear, s.perm(core.ModuleAcademic, user.OpApprove))

	g.POST("/grades", api.createGrade, create)
	g.GET("/grades", api.queryGrades, read)
	g.POST("/grades/:id/subjects", api.addGradeSubject, create)
	g.GET("/grades/:id/subjects", api.queryGradeSubjects, read)

	g.POST("/subjects", api.createSubject, create)
	g.GET("/subjects", api.querySubjects, read)

	g.POST("/sections", api.createSection, create)
	g.GET("/sections", api.querySections, read)
	g.GET("/sections/:id", api.retrieveSection, read)
	g.PUT("/sections/:id", api.updateSection, update)
	g.GET("/sections/:id/occupancy", api.occupancy, read)
	g.GET("/sections/:id/timetable", api.sectionTimetable, read)

	g.POST("/qualifications", api.qualifyTeacher, create)
	g.GET("/qualifications", api.queryTeacherSubjects, read)
	g.PUT("/qualifications/:id", api.updateTeacherSubject, update)

	g.POST("/timetable", api.addSlot, create)
	g.DELETE("/timetable/:id", api.removeSlot, s.perm(core.ModuleAcademic, user.OpDelete))
	g.GET("/teachers/:id/timetable", api.teacherTimetable, read)

	g.POST("/events", api.createEvent, create)
	g.GET("/events", api.queryEvents, read)
}

func (api *academicApi) createYear(ctx echo.Context) error {
	var data academic.NewAcademicYear
	if err := bind(ctx, &data); err != nil {
		return err
	}
	ay, err := api.svc.CreateYear(ctx.Request().Context(), data)
	return created(ctx, ay, err)
}

func (api *academicApi) queryYears(ctx echo.Context) error {
	ays, err := api.svc.QueryYears(ctx.Request().Context(), ctx.QueryParam("institution_id"))
	return list(ctx, ays, err)
}

func (api *academicApi) retrieveYear(ctx echo.Context) error {
	ay, err := api.svc.GetYear(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, ay, err)
}

func (api *academicApi) closeYear(ctx echo.Context) error {
	ay, err := api.svc.CloseYear(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, ay, err)
}

func (api *academicApi) createGrade(ctx echo.Context) error {
	var data academic.NewGrade
	if err := bind(ctx, &data); err != nil {
		return err
	}
	gr, err := api.svc.CreateGrade(ctx.Request().Context(), data)
	return created(ctx, gr, err)
}

func (api *academicApi) queryGrades(ctx echo.Context) error {
	grs, err := api.svc.QueryGrades(ctx.Request().Context(), ctx.QueryParam("institution_id"))
	return list(ctx, grs, err)
}

func (api *academicApi) addGradeSubject(ctx echo.Context) error {
	var data academic.NewGradeSubject
	if err := bind(ctx, &data); err != nil {
		return err
	}
	data.GradeID = ctx.Param("id")
	gs, err := api.svc.AddGradeSubject(ctx.Request().Context(), data)
	return created(ctx, gs, err)
}

func (api *academicApi) queryGradeSubjects(ctx echo.Context) error {
	gss, err := api.svc.QueryGradeSubjects(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, gss, err)
}

func (api *academicApi) createSubject(ctx echo.Context) error {
	var data academic.NewSubject
	if err := bind(ctx, &data); err != nil {
		return err
	}
	sub, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	return created(ctx, sub, err)
}

func (api *academicApi) querySubjects(ctx echo.Context) error {
	subs, err := api.svc.QuerySubjects(ctx.Request().Context(), ctx.QueryParam("institution_id"))
	return list(ctx, subs, err)
}

func (api *academicApi) createSection(ctx echo.Context) error {
	var data academic.NewClassSection
	if err := bind(ctx, &data); err != nil {
		return err
	}
	cs, err := api.svc.CreateSection(ctx.Request().Context(), data)
	return created(ctx, cs, err)
}

func (api *academicApi) querySections(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := academic.SectionFilter{
		AcademicYearID: q.String("academic_year_id"),
		GradeID:        q.String("grade_id"),
		TeacherID:      q.String("teacher_id"),
		ActiveOnly:     q.Bool("active"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	css, err := api.svc.QuerySections(ctx.Request().Context(), filter)
	return list(ctx, css, err)
}

func (api *academicApi) retrieveSection(ctx echo.Context) error {
	cs, err := api.svc.GetSection(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, cs, err)
}

func (api *academicApi) updateSection(ctx echo.Context) error {
	var data academic.UpdateClassSection
	if err := bind(ctx, &data); err != nil {
		return err
	}
	cs, err := api.svc.UpdateSection(ctx.Request().Context(), ctx.Param("id"), data)
	return ok(ctx, cs, err)
}

func (api *academicApi) occupancy(ctx echo.Context) error {
	occ, err := api.svc.SectionOccupancy(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, occ, err)
}

func (api *academicApi) sectionTimetable(ctx echo.Context) error {
	slots, err := api.svc.SectionTimetable(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, slots, err)
}

func (api *academicApi) qualifyTeacher(ctx echo.Context) error {
	var data academic.NewTeacherSubject
	if err := bind(ctx, &data); err != nil {
		return err
	}
	ts, err := api.svc.QualifyTeacher(ctx.Request().Context(), data)
	return created(ctx, ts, err)
}

func (api *academicApi) queryTeacherSubjects(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := academic.TeacherSubjectFilter{
		TeacherID:  q.String("teacher_id"),
		SubjectID:  q.String("subject_id"),
		ActiveOnly: q.Bool("active"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	tss, err := api.svc.QueryTeacherSubjects(ctx.Request().Context(), filter)
	return list(ctx, tss, err)
}

func (api *academicApi) updateTeacherSubject(ctx echo.Context) error {
	var data academic.UpdateTeacherSubject
	if err := bind(ctx, &data); err != nil {
		return err
	}
	ts, err := api.svc.UpdateTeacherSubject(ctx.Request().Context(), ctx.Param("id"), data)
	return ok(ctx, ts, err)
}

func (api *academicApi) addSlot(ctx echo.Context) error {
	var data academic.NewTimetableSlot
	if err := bind(ctx, &data); err != nil {
		return err
	}
	slot, err := api.svc.AddSlot(ctx.Request().Context(), data)
	return created(ctx, slot, err)
}

func (api *academicApi) removeSlot(ctx echo.Context) error {
	return noContent(ctx, api.svc.RemoveSlot(ctx.Request().Context(), ctx.Param("id")))
}

func (api *academicApi) teacherTimetable(ctx echo.Context) error {
	slots, err := api.svc.TeacherTimetable(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, slots, err)
}

func (api *academicApi) createEvent(ctx echo.Context) error {
	var data academic.NewCalendarEvent
	if err := bind(ctx, &data); err != nil {
		return err
	}
	ev, err := api.svc.CreateEvent(ctx.Request().Context(), data)
	return created(ctx, ev, err)
}

func (api *academicApi) queryEvents(ctx echo.Context) error {
	q := newQuery(ctx)
	from, to := q.Time("from"), q.Time("to")
	if err := q.Err(); err != nil {
		return err
	}
	evs, err := api.svc.QueryEvents(ctx.Request().Context(), q.String("institution_id"), from, to)
	return list(ctx, evs, err)
}
