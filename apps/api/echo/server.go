package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/audit"
	"github.com/somabem/erp/core/cashier"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/grading"
	"github.com/somabem/erp/core/institution"
	"github.com/somabem/erp/core/inventory"
	"github.com/somabem/erp/core/people"
	"github.com/somabem/erp/core/report"
	"github.com/somabem/erp/core/sales"
	"github.com/somabem/erp/core/tuition"
	"github.com/somabem/erp/core/user"
	"github.com/somabem/erp/core/vendor"
)

// Deps are the services behind the API.
type Deps struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Pool       *core.WorkerPool
	Images     inventory.ImageStore
	Files      people.FileStore

	UserSvc        *user.Service
	InstitutionSvc *institution.Service
	AcademicSvc    *academic.Service
	PeopleSvc      *people.Service
	EnrollmentSvc  *enrollment.Service
	TuitionSvc     *tuition.Service
	CashierSvc     *cashier.Service
	VendorSvc      *vendor.Service
	InventorySvc   *inventory.Service
	SalesSvc       *sales.Service
	GradingSvc     *grading.Service
	AuditSvc       *audit.Service
	ReportSvc      *report.Service
}

type Server struct {
	*http.Server

	app      *echo.Echo
	deps     *Deps
	auth     *TokenIssuer
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps *Deps) *Server {
	s := &Server{
		app:      echo.New(),
		deps:     deps,
		auth:     NewTokenIssuer(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.Server = &http.Server{Addr: deps.Conf.Server.Address(), Handler: s.app}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Logger.SetLevel(log.INFO)
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug && !conf.TestMode

	s.app.GET("/", home)

	g := s.app.Group("/api")
	jwt := s.auth.Middleware()
	authed := []echo.MiddlewareFunc{jwt, actorMiddleware}

	registerUserAPI(g, s)
	registerInstitutionAPI(g.Group("/institutions", authed...), s)
	registerAcademicAPI(g.Group("/academic", authed...), s)
	registerPeopleAPI(g.Group("/people", authed...), s)
	registerEnrollmentAPI(g.Group("/enrollments", authed...), s)
	registerTuitionAPI(g.Group("/tuition", authed...), s)
	registerCashierAPI(g.Group("/cashier", authed...), s)
	registerVendorAPI(g.Group("/vendors", authed...), s)
	registerInventoryAPI(g.Group("/inventory", authed...), s)
	registerSalesAPI(g.Group("/sales", authed...), s)
	registerGradingAPI(g.Group("/grading", authed...), s)
	registerAuditAPI(g.Group("/audit", authed...), s)
	registerReportAPI(g.Group("/reports", authed...), s)
}

// perm guards a route with the permission of the current user on module.
func (s *Server) perm(module core.Module, op string) echo.MiddlewareFunc {
	return permissionMiddleware(s.deps.UserSvc, module, op)
}

// Start listens until the server is shut down. Listen errors are sent to Errors().
func (s *Server) Start() {
	s.deps.Logger.Info("API listening on " + s.Addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// Issuer exposes the token issuer (the admin CLI and tests mint tokens with it).
func (s *Server) Issuer() *TokenIssuer { return s.auth }

func (s *Server) Stop(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.Shutdown(ctx)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to SomaBem API!")
}
