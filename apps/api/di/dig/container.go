package dig_container

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/somabem/erp/apps/api/echo"
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
	emailsvc "github.com/somabem/erp/services/email"
	logsvc "github.com/somabem/erp/services/logger"
	mediasvc "github.com/somabem/erp/services/media"
	"github.com/somabem/erp/storage/database"
	gormrepos "github.com/somabem/erp/storage/database/gorm"
	inmemdb "github.com/somabem/erp/storage/database/inmem"
	sqlxrepos "github.com/somabem/erp/storage/database/sqlx"
)

// EngineInMemory keeps every table in process memory; the data is lost on exit.
const EngineInMemory = "inmem"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is the persistence layer selected by conf.Database.Engine.
// DB is nil for the in-memory engine.
type Storage struct {
	dig.Out

	DB *sql.DB
	Tx core.TxRunner

	Users        user.Repository
	Institutions institution.Repository
	Academic     academic.Repository
	People       people.Repository
	Enrollments  enrollment.Repository
	Tuition      tuition.Repository
	Cashier      cashier.Repository
	Vendors      vendor.Repository
	Inventory    inventory.Repository
	Sales        sales.Repository
	Grading      grading.Repository
	Audit        audit.Repository
	Reports      report.Repository
}

func newLogger(name string, conf *core.Config) core.Logger {
	local, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("%s : %v", name, err)
	}
	logger := logsvc.NewRollbarLogger(logsvc.NewZapLoggerFrom(local.Zap().Named(name)), conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newAPILogger(conf *core.Config) core.Logger { return newLogger("API", conf) }

func newDBLogger(conf *core.Config) core.Logger { return newLogger("DB", conf) }

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Engine == EngineInMemory {
		loggerParam.Logger.Warn("using the in-memory database: data is lost on exit")
		return inMemoryStorage()
	}

	st, err := postgresStorage(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return st
}

func inMemoryStorage() Storage {
	db := inmemdb.Open()
	return Storage{
		Tx:           inmemdb.NewTxRunner(db),
		Users:        inmemdb.NewUserRepository(db),
		Institutions: inmemdb.NewInstitutionRepository(db),
		Academic:     inmemdb.NewAcademicRepository(db),
		People:       inmemdb.NewPeopleRepository(db),
		Enrollments:  inmemdb.NewEnrollmentRepository(db),
		Tuition:      inmemdb.NewTuitionRepository(db),
		Cashier:      inmemdb.NewCashierRepository(db),
		Vendors:      inmemdb.NewVendorRepository(db),
		Inventory:    inmemdb.NewInventoryRepository(db),
		Sales:        inmemdb.NewSalesRepository(db),
		Grading:      inmemdb.NewGradingRepository(db),
		Audit:        inmemdb.NewAuditRepository(db),
		Reports:      inmemdb.NewReportRepository(db),
	}
}

func postgresStorage(conf *core.Config) (Storage, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return Storage{}, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return Storage{}, err
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return Storage{}, err
	}
	gdb, err := gormrepos.Open(db.DB)
	if err != nil {
		_ = db.Close()
		return Storage{}, err
	}

	return Storage{
		DB:           db.DB,
		Tx:           database.NewTxRunner(db),
		Users:        sqlxrepos.NewUserRepository(db),
		Institutions: sqlxrepos.NewInstitutionRepository(db),
		Academic:     sqlxrepos.NewAcademicRepository(db),
		People:       sqlxrepos.NewPeopleRepository(db),
		Enrollments:  sqlxrepos.NewEnrollmentRepository(db),
		Tuition:      sqlxrepos.NewTuitionRepository(db),
		Cashier:      sqlxrepos.NewCashierRepository(db),
		Vendors:      sqlxrepos.NewVendorRepository(db),
		Inventory:    sqlxrepos.NewInventoryRepository(db),
		Sales:        sqlxrepos.NewSalesRepository(db),
		Grading:      sqlxrepos.NewGradingRepository(db),
		Audit:        gormrepos.NewAuditRepository(gdb),
		Reports:      gormrepos.NewReportRepository(gdb),
	}, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)
	return validate, translator
}

func newWorkerPool(conf *core.Config) *core.WorkerPool {
	return core.NewWorkerPool(conf.Workers.PoolSize)
}

func newImageStore(conf *core.Config) inventory.ImageStore {
	return mediasvc.NewImageStore(conf)
}

func newFileStore(conf *core.Config) people.FileStore {
	return mediasvc.NewImageStore(conf)
}

// the services other modules post through
func auditRecorder(svc *audit.Service) audit.Recorder       { return svc }
func cashierLedger(svc *cashier.Service) cashier.Ledger     { return svc }
func inventoryMover(svc *inventory.Service) inventory.Mover { return svc }

type DepsParam struct {
	dig.In

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

func newDeps(p DepsParam) *echoapi.Deps {
	return &echoapi.Deps{
		Conf:           p.Conf,
		Logger:         p.Logger,
		Validate:       p.Validate,
		Translator:     p.Translator,
		Pool:           p.Pool,
		Images:         p.Images,
		Files:          p.Files,
		UserSvc:        p.UserSvc,
		InstitutionSvc: p.InstitutionSvc,
		AcademicSvc:    p.AcademicSvc,
		PeopleSvc:      p.PeopleSvc,
		EnrollmentSvc:  p.EnrollmentSvc,
		TuitionSvc:     p.TuitionSvc,
		CashierSvc:     p.CashierSvc,
		VendorSvc:      p.VendorSvc,
		InventorySvc:   p.InventorySvc,
		SalesSvc:       p.SalesSvc,
		GradingSvc:     p.GradingSvc,
		AuditSvc:       p.AuditSvc,
		ReportSvc:      p.ReportSvc,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newAPILogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(newValidator))
	must(c.Provide(newWorkerPool))
	must(c.Provide(newImageStore))
	must(c.Provide(newFileStore))

	must(c.Provide(audit.NewService))
	must(c.Provide(auditRecorder))
	must(c.Provide(user.NewService))
	must(c.Provide(institution.NewService))
	must(c.Provide(academic.NewService))
	must(c.Provide(people.NewService))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(cashier.NewService))
	must(c.Provide(cashierLedger))
	must(c.Provide(tuition.NewService))
	must(c.Provide(vendor.NewService))
	must(c.Provide(inventory.NewService))
	must(c.Provide(inventoryMover))
	must(c.Provide(sales.NewService))
	must(c.Provide(grading.NewService))
	must(c.Provide(report.NewService))

	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

// Visualize writes the dependency graph in DOT format.
func Visualize(c *dig.Container) error {
	return dig.Visualize(c, os.Stdout)
}
