package echoapi

import (
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/inventory"
	"github.com/somabem/erp/core/people"
	"github.com/somabem/erp/core/user"
)

type peopleApi struct {
	svc    *people.Service
	images inventory.ImageStore
	files  people.FileStore
}

func registerPeopleAPI(g *echo.Group, s *Server) {
	api := peopleApi{svc: s.deps.PeopleSvc, images: s.deps.Images, files: s.deps.Files}
	read := s.perm(core.ModulePeople, user.OpRead)
	create := s.perm(core.ModulePeople, user.OpCreate)
	update := s.perm(core.ModulePeople, user.OpUpdate)

	g.POST("", api.create, create)
	g.GET("", api.search, read)
	g.GET("/:id", api.retrieve, read)
	g.GET("/:id/roles", api.roles, read)
	g.PUT("/:id/photo", api.uploadPhoto, update)

	g.POST("/students", api.registerStudent, create)
	g.POST("/:id/student", api.addStudent, create)
	g.GET("/:id/student", api.retrieveStudent, read)
	g.PUT("/:id/student/status", api.setStudentStatus, update)
	g.GET("/:id/guardians", api.guardians, read)
	g.POST("/:id/documents", api.issueDocument, create)
	g.GET("/:id/documents", api.documents, read)
	g.PUT("/documents/:doc_id/file", api.uploadDocumentFile, update)
	g.PUT("/documents/:doc_id/invalidate", api.invalidateDocument, update)
	g.POST("/:id/guardians", api.linkGuardian, update)
	g.DELETE("/:id/guardians/:guardian_id", api.unlinkGuardian, update)

	g.POST("/:id/teacher", api.addTeacher, create)
	g.GET("/:id/teacher", api.retrieveTeacher, read)
	g.POST("/:id/staff", api.addStaff, create)
	g.GET("/:id/staff", api.retrieveStaff, read)
	g.POST("/:id/guardian", api.addGuardian, create)
}

func (api *peopleApi) create(ctx echo.Context) error {
	var data people.NewPerson
	if err := bind(ctx, &data); err != nil {
		return err
	}
	p, err := api.svc.Create(ctx.Request().Context(), data)
	return created(ctx, p, err)
}

func (api *peopleApi) search(ctx echo.Context) error {
	q := newQuery(ctx)
	filter := people.QueryFilter{
		Search:   q.String("search"),
		Role:     q.String("role"),
		IsActive: q.BoolPtr("is_active"),
	}
	if err := q.Err(); err != nil {
		return err
	}
	ps, err := api.svc.Search(ctx.Request().Context(), filter)
	return list(ctx, ps, err)
}

func (api *peopleApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, p, err)
}

func (api *peopleApi) roles(ctx echo.Context) error {
	r, err := api.svc.Roles(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, r, err)
}

// uploadPhoto stores the `photo` multipart file and sets it on the person.
func (api *peopleApi) uploadPhoto(ctx echo.Context) error {
	id := ctx.Param("id")
	if _, err := api.svc.Get(ctx.Request().Context(), id); err != nil {
		return err
	}
	fh, err := ctx.FormFile("photo")
	if err != nil {
		return core.NewFieldError("photo", "a photo file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded photo")
	}
	defer f.Close()

	path, err := api.images.Save(ctx.Request().Context(), "people/"+id, f)
	if err != nil {
		return err
	}
	p, err := api.svc.SetPhoto(ctx.Request().Context(), id, path)
	return ok(ctx, p, err)
}

func (api *peopleApi) registerStudent(ctx echo.Context) error {
	var data RegisterStudentRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	sd, err := api.svc.RegisterStudent(ctx.Request().Context(), data.Person, data.Student)
	return created(ctx, sd, err)
}

func (api *peopleApi) addStudent(ctx echo.Context) error {
	var data people.NewStudent
	if err := bind(ctx, &data); err != nil {
		return err
	}
	st, err := api.svc.AddStudent(ctx.Request().Context(), ctx.Param("id"), data)
	return created(ctx, st, err)
}

func (api *peopleApi) retrieveStudent(ctx echo.Context) error {
	sd, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, sd, err)
}

func (api *peopleApi) setStudentStatus(ctx echo.Context) error {
	var data StatusRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	st, err := api.svc.SetStudentStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	return ok(ctx, st, err)
}

func (api *peopleApi) guardians(ctx echo.Context) error {
	gs, err := api.svc.Guardians(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, gs, err)
}

func (api *peopleApi) linkGuardian(ctx echo.Context) error {
	var data people.NewStudentGuardian
	if err := bind(ctx, &data); err != nil {
		return err
	}
	link, err := api.svc.LinkGuardian(ctx.Request().Context(), ctx.Param("id"), data)
	return created(ctx, link, err)
}

func (api *peopleApi) unlinkGuardian(ctx echo.Context) error {
	return noContent(ctx, api.svc.UnlinkGuardian(ctx.Request().Context(), ctx.Param("id"), ctx.Param("guardian_id")))
}

func (api *peopleApi) addTeacher(ctx echo.Context) error {
	var data people.NewTeacher
	if err := bind(ctx, &data); err != nil {
		return err
	}
	t, err := api.svc.AddTeacher(ctx.Request().Context(), ctx.Param("id"), data)
	return created(ctx, t, err)
}

func (api *peopleApi) retrieveTeacher(ctx echo.Context) error {
	t, err := api.svc.GetTeacher(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, t, err)
}

func (api *peopleApi) addStaff(ctx echo.Context) error {
	var data people.NewStaff
	if err := bind(ctx, &data); err != nil {
		return err
	}
	st, err := api.svc.AddStaff(ctx.Request().Context(), ctx.Param("id"), data)
	return created(ctx, st, err)
}

func (api *peopleApi) retrieveStaff(ctx echo.Context) error {
	st, err := api.svc.GetStaff(ctx.Request().Context(), ctx.Param("id"))
	return ok(ctx, st, err)
}

func (api *peopleApi) addGuardian(ctx echo.Context) error {
	var data people.NewGuardian
	if err := bind(ctx, &data); err != nil {
		return err
	}
	gd, err := api.svc.AddGuardian(ctx.Request().Context(), ctx.Param("id"), data)
	return created(ctx, gd, err)
}

func (api *peopleApi) issueDocument(ctx echo.Context) error {
	var data people.NewStudentDocument
	if err := bind(ctx, &data); err != nil {
		return err
	}
	d, err := api.svc.IssueDocument(ctx.Request().Context(), ctx.Param("id"), data)
	return created(ctx, d, err)
}

func (api *peopleApi) documents(ctx echo.Context) error {
	docs, err := api.svc.Documents(ctx.Request().Context(), ctx.Param("id"))
	return list(ctx, docs, err)
}

// uploadDocumentFile stores the `file` multipart file of a document with its digest.
func (api *peopleApi) uploadDocumentFile(ctx echo.Context) error {
	id := ctx.Param("doc_id")
	if _, err := api.svc.GetDocument(ctx.Request().Context(), id); err != nil {
		return err
	}
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewFieldError("file", "a file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	path, digest, err := api.files.SaveFile(ctx.Request().Context(), "documents/"+id+ext, f)
	if err != nil {
		return err
	}
	d, err := api.svc.AttachDocumentFile(ctx.Request().Context(), id, path, digest)
	return ok(ctx, d, err)
}

func (api *peopleApi) invalidateDocument(ctx echo.Context) error {
	var data InvalidateDocumentRequest
	if err := bind(ctx, &data); err != nil {
		return err
	}
	d, err := api.svc.InvalidateDocument(ctx.Request().Context(), ctx.Param("doc_id"), data.Reason)
	return ok(ctx, d, err)
}

type (
	RegisterStudentRequest struct {
		Person  people.NewPerson  `json:"person"`
		Student people.NewStudent `json:"student"`
	}

	StatusRequest struct {
		Status string `json:"status"`
	}

	InvalidateDocumentRequest struct {
		Reason string `json:"reason"`
	}
)
