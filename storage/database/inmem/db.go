package inmemdb

import (
	"context"
	"sync"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/audit"
	"github.com/somabem/erp/core/cashier"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/grading"
	"github.com/somabem/erp/core/institution"
	"github.com/somabem/erp/core/inventory"
	"github.com/somabem/erp/core/people"
	"github.com/somabem/erp/core/sales"
	"github.com/somabem/erp/core/tuition"
	"github.com/somabem/erp/core/user"
	"github.com/somabem/erp/core/vendor"
)

// DB is an in-memory store used by the tests and by the `inmem` database driver.
type DB struct {
	txMu sync.Mutex

	institutions *table[institution.Institution]
	campuses     *table[institution.Campus]
	blocks       *table[institution.Block]
	rooms        *table[institution.Room]
	settings     *table[institution.Settings]
	licenses     *table[institution.License]

	years          *table[academic.AcademicYear]
	grades         *table[academic.Grade]
	subjects       *table[academic.Subject]
	gradeSubjects  *table[academic.GradeSubject]
	sections       *table[academic.ClassSection]
	qualifications *table[academic.TeacherSubject]
	slots          *table[academic.TimetableSlot]
	events         *table[academic.CalendarEvent]

	persons   *table[people.Person]
	students  *table[people.Student]
	teachers  *table[people.Teacher]
	staff     *table[people.Staff]
	guardians *table[people.Guardian]
	links     *table[people.StudentGuardian]
	documents *table[people.StudentDocument]

	enrollments  *table[enrollment.Enrollment]
	plans        *table[tuition.PaymentPlan]
	templates    *table[tuition.InstallmentTemplate]
	installments *table[tuition.Installment]
	payments     *table[tuition.Payment]

	registers      *table[cashier.Register]
	cashMovements  *table[cashier.Movement]
	vendors        *table[vendor.Vendor]
	contracts      *table[vendor.Contract]
	vendorPayments *table[vendor.Payment]

	products         *table[inventory.Product]
	stockMovements   *table[inventory.StockMovement]
	sales            *table[sales.Sale]
	saleItems        *table[sales.Item]
	saleInstallments *table[sales.Installment]

	marks      *table[grading.Mark]
	attendance *table[grading.Attendance]
	records    *table[grading.Record]

	users       *table[user.User]
	permissions *table[user.Permission]
	audit       *table[audit.Entry]
}

func Open() *DB {
	return &DB{
		institutions:     newTable[institution.Institution](),
		campuses:         newTable[institution.Campus](),
		blocks:           newTable[institution.Block](),
		rooms:            newTable[institution.Room](),
		settings:         newTable[institution.Settings](),
		licenses:         newTable[institution.License](),
		years:            newTable[academic.AcademicYear](),
		grades:           newTable[academic.Grade](),
		subjects:         newTable[academic.Subject](),
		gradeSubjects:    newTable[academic.GradeSubject](),
		sections:         newTable[academic.ClassSection](),
		qualifications:   newTable[academic.TeacherSubject](),
		slots:            newTable[academic.TimetableSlot](),
		events:           newTable[academic.CalendarEvent](),
		persons:          newTable[people.Person](),
		students:         newTable[people.Student](),
		teachers:         newTable[people.Teacher](),
		staff:            newTable[people.Staff](),
		guardians:        newTable[people.Guardian](),
		links:            newTable[people.StudentGuardian](),
		documents:        newTable[people.StudentDocument](),
		enrollments:      newTable[enrollment.Enrollment](),
		plans:            newTable[tuition.PaymentPlan](),
		templates:        newTable[tuition.InstallmentTemplate](),
		installments:     newTable[tuition.Installment](),
		payments:         newTable[tuition.Payment](),
		registers:        newTable[cashier.Register](),
		cashMovements:    newTable[cashier.Movement](),
		vendors:          newTable[vendor.Vendor](),
		contracts:        newTable[vendor.Contract](),
		vendorPayments:   newTable[vendor.Payment](),
		products:         newTable[inventory.Product](),
		stockMovements:   newTable[inventory.StockMovement](),
		sales:            newTable[sales.Sale](),
		saleItems:        newTable[sales.Item](),
		saleInstallments: newTable[sales.Installment](),
		marks:            newTable[grading.Mark](),
		attendance:       newTable[grading.Attendance](),
		records:          newTable[grading.Record](),
		users:            newTable[user.User](),
		permissions:      newTable[user.Permission](),
		audit:            newTable[audit.Entry](),
	}
}

func (db *DB) tables() []snapshotter {
	return []snapshotter{
		db.institutions, db.campuses, db.blocks, db.rooms, db.settings, db.licenses,
		db.years, db.grades, db.subjects, db.gradeSubjects, db.sections, db.qualifications, db.slots, db.events,
		db.persons, db.students, db.teachers, db.staff, db.guardians, db.links, db.documents,
		db.enrollments, db.plans, db.templates, db.installments, db.payments,
		db.registers, db.cashMovements, db.vendors, db.contracts, db.vendorPayments,
		db.products, db.stockMovements, db.sales, db.saleItems, db.saleInstallments,
		db.marks, db.attendance, db.records,
		db.users, db.permissions, db.audit,
	}
}

type txRunner struct {
	db *DB
}

var _ core.TxRunner = (*txRunner)(nil) // interface compliance check

func NewTxRunner(db *DB) *txRunner {
	return &txRunner{db: db}
}

// InTx runs the transactions one at a time; a failed fn restores every table as it was before.
// fn receives a nil executor: the in-memory repositories write straight to the tables.
func (tr *txRunner) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	tr.db.txMu.Lock()
	defer tr.db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tables := tr.db.tables()
	restore := make([]func(), len(tables))
	for i, t := range tables {
		restore[i] = t.snapshot()
	}
	rollback := func() {
		for _, r := range restore {
			r()
		}
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(nil); err != nil {
		rollback()
	}
	return err
}
