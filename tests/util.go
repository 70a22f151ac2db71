// Package testutil builds service stacks (in-memory or PostgreSQL) and seed data for the tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

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
	mediasvc "github.com/somabem/erp/services/media"
	"github.com/somabem/erp/storage/database"
	gormrepos "github.com/somabem/erp/storage/database/gorm"
	inmemdb "github.com/somabem/erp/storage/database/inmem"
	sqlxrepos "github.com/somabem/erp/storage/database/sqlx"
)

// Env is a complete service stack.
type Env struct {
	Conf       *core.Config
	DB         *inmemdb.DB // in-memory backend only
	SQL        *sqlx.DB    // PostgreSQL backend only
	Validate   *validator.Validate
	Translator ut.Translator
	Pool       *core.WorkerPool
	Mail       *emailsvc.ConsoleServiceMock
	Images     *mediasvc.ImageStore

	UserRepo user.Repository

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

// Repositories is one persistence backend for an Env.
type Repositories struct {
	Tx           core.TxRunner
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

// NewEnv wires every service on a fresh in-memory database. The worker pool is closed on cleanup.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	db := inmemdb.Open()
	env := newEnv(t, Repositories{
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
	})
	env.DB = db
	return env
}

// NewPostgresEnv wires every service on the PostgreSQL database of TEST_DATABASE_URL, migrated
// and emptied. The test is skipped when the variable is not set.
func NewPostgresEnv(t *testing.T) *Env {
	t.Helper()
	db := PostgresDB(t)
	gdb, err := gormrepos.Open(db.DB)
	require.NoError(t, err, "opening gorm")
	env := newEnv(t, Repositories{
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
	})
	env.SQL = db
	return env
}

// PostgresDB opens TEST_DATABASE_URL, runs the migrations and truncates every table.
func PostgresDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err, "opening database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB, "up"), "migrating database")
	ResetDB(t, db)
	return db
}

// ResetDB empties every application table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	var tables []string
	err := db.Select(&tables, `SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename <> 'goose_db_version'`)
	require.NoError(t, err, "listing tables")
	if len(tables) == 0 {
		return
	}
	_, err = db.Exec("TRUNCATE " + strings.Join(tables, ", ") + " CASCADE")
	require.NoError(t, err, "truncating tables")
}

func newEnv(t *testing.T, repos Repositories) *Env {
	conf := core.NewTestConfig()
	conf.MediaDir = t.TempDir()
	core.ParseEmailTemplates(conf, core.NopLogger{})

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	pool := core.NewWorkerPool(conf.Workers.PoolSize)
	t.Cleanup(pool.Close)

	env := &Env{
		Conf:       conf,
		Validate:   validate,
		Translator: translator,
		Pool:       pool,
		Mail:       emailsvc.NewConsoleServiceMock(conf),
		Images:     mediasvc.NewImageStore(conf),
		UserRepo:   repos.Users,
	}

	tx := repos.Tx
	env.AuditSvc = audit.NewService(repos.Audit)
	rec := env.AuditSvc

	env.UserSvc = user.NewService(repos.Users, tx, validate, rec, env.Mail, pool, conf)
	env.InstitutionSvc = institution.NewService(repos.Institutions, tx, validate, rec)
	env.AcademicSvc = academic.NewService(repos.Academic, tx, validate, rec)
	env.PeopleSvc = people.NewService(repos.People, tx, validate, rec)
	env.EnrollmentSvc = enrollment.NewService(repos.Enrollments, tx, validate, rec)
	env.CashierSvc = cashier.NewService(repos.Cashier, tx, validate, rec)
	env.TuitionSvc = tuition.NewService(repos.Tuition, tx, validate, rec, env.CashierSvc)
	env.VendorSvc = vendor.NewService(repos.Vendors, tx, validate, rec, env.CashierSvc)
	env.InventorySvc = inventory.NewService(repos.Inventory, tx, validate, rec, env.Images)
	env.SalesSvc = sales.NewService(repos.Sales, tx, validate, rec, env.InventorySvc, env.CashierSvc)
	env.GradingSvc = grading.NewService(repos.Grading, tx, validate, rec)
	env.ReportSvc = report.NewService(repos.Reports, pool)
	return env
}

// Ctx returns a context acting as usr.
func Ctx(usr user.User) context.Context {
	return core.WithActor(context.Background(), core.Actor{UserID: usr.ID, Username: usr.Username, IP: "127.0.0.1"})
}

// CreateUser stores a user straight through the repository, skipping the service rules.
func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		Theme:     user.ThemeLight,
		Language:  "pt",
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		require.NoError(t, usr.SetPassword(pwd), "SetPassword()")
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	require.NoError(t, err, "CreateUser()")
	return usr
}

var seq int64

// Code returns a unique code starting with prefix.
func Code(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&seq, 1))
}

// School is a minimal institution: one campus, one room, an open academic year covering today,
// a grade with one subject and a class section taught by Teacher.
type School struct {
	Admin       user.User
	Institution institution.Institution
	Campus      institution.Campus
	Room        institution.Room
	Year        academic.AcademicYear
	Grade       academic.Grade
	Subject     academic.Subject
	Section     academic.ClassSection
	Teacher     people.Person
}

// SeedSchool creates a School; the section holds sectionCap students.
func SeedSchool(t *testing.T, env *Env, sectionCap int) School {
	t.Helper()
	var (
		s   School
		err error
	)
	s.Admin = CreateUser(t, env.UserRepo, "Director", Code("dir"), Code("dir")+"@school.ao", "",
		[]string{user.RoleAdminSuper}, true)
	ctx := Ctx(s.Admin)

	today := core.Today()
	s.Institution, err = env.InstitutionSvc.Create(ctx, institution.NewInstitution{
		MEDCode:       Code("MED"),
		Name:          "Colégio Kiame",
		Kind:          "private",
		NIF:           fmt.Sprintf("5417%06d", atomic.AddInt64(&seq, 1)),
		AuthorizedOn:  today.AddDate(-10, 0, 0),
		Email:         "geral@kiame.ao",
		Province:      "Luanda",
		Municipality:  "Belas",
		Neighbourhood: "Talatona",
	})
	require.NoError(t, err, "creating institution")

	s.Campus, err = env.InstitutionSvc.CreateCampus(ctx, institution.NewCampus{
		InstitutionID: s.Institution.ID,
		Code:          Code("C"),
		Name:          "Sede",
	})
	require.NoError(t, err, "creating campus")

	s.Room, err = env.InstitutionSvc.CreateRoom(ctx, institution.NewRoom{
		CampusID: s.Campus.ID,
		Code:     Code("R"),
		Kind:     "classroom",
		Capacity: 40,
	})
	require.NoError(t, err, "creating room")

	s.Year, err = env.AcademicSvc.CreateYear(ctx, academic.NewAcademicYear{
		InstitutionID: s.Institution.ID,
		Year:          today.Year(),
		Code:          Code("AY"),
		Name:          fmt.Sprintf("Ano lectivo %d", today.Year()),
		StartsOn:      core.Date(today.Year(), time.January, 1),
		EndsOn:        core.Date(today.Year(), time.December, 31),
	})
	require.NoError(t, err, "creating academic year")

	s.Grade, err = env.AcademicSvc.CreateGrade(ctx, academic.NewGrade{
		InstitutionID: s.Institution.ID,
		Name:          "7ª Classe",
		Order:         7,
		Level:         "first_cycle",
	})
	require.NoError(t, err, "creating grade")

	s.Subject, err = env.AcademicSvc.CreateSubject(ctx, academic.NewSubject{
		InstitutionID: s.Institution.ID,
		Code:          Code("MAT"),
		Name:          "Matemática",
	})
	require.NoError(t, err, "creating subject")

	_, err = env.AcademicSvc.AddGradeSubject(ctx, academic.NewGradeSubject{
		GradeID:     s.Grade.ID,
		SubjectID:   s.Subject.ID,
		WeeklyHours: 4,
		Weight:      decimal.NewFromInt(1),
	})
	require.NoError(t, err, "adding grade subject")

	s.Teacher = CreateTeacher(t, env, ctx, "Prof. Manuel")
	QualifyTeacher(t, env, ctx, s.Teacher.ID, s.Subject.ID)

	s.Section, err = env.AcademicSvc.CreateSection(ctx, academic.NewClassSection{
		AcademicYearID: s.Year.ID,
		GradeID:        s.Grade.ID,
		RoomID:         core.StringPtr(s.Room.ID),
		TeacherID:      core.StringPtr(s.Teacher.ID),
		Code:           Code("7A"),
		Shift:          "morning",
		Capacity:       sectionCap,
	})
	require.NoError(t, err, "creating section")
	return s
}

func CreateTeacher(t *testing.T, env *Env, ctx context.Context, name string) people.Person {
	t.Helper()
	p, err := env.PeopleSvc.Create(ctx, people.NewPerson{FullName: name})
	require.NoError(t, err, "creating teacher person")
	_, err = env.PeopleSvc.AddTeacher(ctx, p.ID, people.NewTeacher{
		EmployeeCode: Code("T"),
		ContractType: "permanent",
		HiredOn:      core.Today().AddDate(-2, 0, 0),
	})
	require.NoError(t, err, "adding teacher")
	return p
}

// QualifyTeacher lets the teacher give lessons of the subject.
func QualifyTeacher(t *testing.T, env *Env, ctx context.Context, teacherID, subjectID string) academic.TeacherSubject {
	t.Helper()
	ts, err := env.AcademicSvc.QualifyTeacher(ctx, academic.NewTeacherSubject{
		TeacherID:       teacherID,
		SubjectID:       subjectID,
		Level:           academic.LevelBachelor,
		YearsExperience: 3,
	})
	require.NoError(t, err, "qualifying teacher")
	return ts
}

func CreateStudent(t *testing.T, env *Env, ctx context.Context, name string) people.StudentDetail {
	t.Helper()
	sd, err := env.PeopleSvc.RegisterStudent(ctx,
		people.NewPerson{FullName: name, Gender: "F"},
		people.NewStudent{Code: Code("S")},
	)
	require.NoError(t, err, "registering student")
	return sd
}

// Enroll puts a new student in the section of s.
func Enroll(t *testing.T, env *Env, s School, name string, planID *string) enrollment.Enrollment {
	t.Helper()
	ctx := Ctx(s.Admin)
	sd := CreateStudent(t, env, ctx, name)
	e, err := env.EnrollmentSvc.Enroll(ctx, enrollment.NewEnrollment{
		StudentID:     sd.ID,
		SectionID:     s.Section.ID,
		PaymentPlanID: planID,
	})
	require.NoError(t, err, "enrolling student")
	return e
}

// OpenRegister opens a cash register with a zero opening balance.
func OpenRegister(t *testing.T, env *Env, ctx context.Context) cashier.Register {
	t.Helper()
	r, err := env.CashierSvc.Open(ctx, cashier.NewRegister{Code: Code("CX"), Period: "daily"})
	require.NoError(t, err, "opening register")
	return r
}

// CreateProduct adds a stock-tracked product.
func CreateProduct(t *testing.T, env *Env, ctx context.Context, price string, stock, minStock int) inventory.Product {
	t.Helper()
	p, err := env.InventorySvc.Create(ctx, inventory.NewProduct{
		Code:      Code("P"),
		Name:      "Caderno A4",
		Category:  "stationery",
		CostPrice: decimal.RequireFromString(price).Div(decimal.NewFromInt(2)),
		SalePrice: decimal.RequireFromString(price),
		Stock:     stock,
		MinStock:  &minStock,
	})
	require.NoError(t, err, "creating product")
	return p
}

func Dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Cause returns the error wrapped by a validation error, err's cause otherwise.
func Cause(err error) error {
	err = errors.Cause(err)
	if verr, ok := err.(*core.ValidationError); ok && verr.Err != nil {
		return verr.Err
	}
	return err
}

// FreezeClock makes core.NowFunc start at `at` and advance one millisecond per call, so that
// receipt numbers stay unique. The real clock is restored on cleanup.
func FreezeClock(t *testing.T, at time.Time) {
	var ticks int64
	core.NowFunc = func() time.Time {
		return at.Add(time.Duration(atomic.AddInt64(&ticks, 1)) * time.Millisecond)
	}
	t.Cleanup(func() { core.NowFunc = time.Now })
}
