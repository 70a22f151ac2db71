package report

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
)

type (
	// Repository runs the read-only aggregate queries behind the reports.
	Repository interface {
		CountActiveStudents(ctx context.Context) (int, error)
		CountActiveTeachers(ctx context.Context) (int, error)
		// SectionLoads returns the active sections with their active enrollment counts.
		SectionLoads(ctx context.Context) ([]SectionLoad, error)
		// Revenue sums the non-reversed tuition payments and the paid sales in [from, to).
		Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
		// CountOverdue counts the pending installments due before day.
		CountOverdue(ctx context.Context, day time.Time) (int, error)
		CountRestock(ctx context.Context) (int, error)
		// Expected sums what is owed on the installments due in [from, to).
		Expected(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
		// Received sums the non-reversed payments posted in [from, to).
		Received(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
		ActiveStudents(ctx context.Context, academicYearID string) ([]ActiveStudent, error)
	}

	Service struct {
		repo Repository
		pool *core.WorkerPool
	}
)

func NewService(repo Repository, pool *core.WorkerPool) *Service {
	return &Service{repo: repo, pool: pool}
}

func monthBounds(year int, month time.Month) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// Dashboard computes the home screen counters, running the queries concurrently on the worker pool.
func (svc *Service) Dashboard(ctx context.Context, today time.Time) (Dashboard, error) {
	today = core.DateOf(today)
	from, to := monthBounds(today.Year(), today.Month())

	var (
		d     = Dashboard{GeneratedAt: core.NowFunc().UTC()}
		loads []SectionLoad
	)
	err := svc.pool.Group(ctx,
		func(ctx context.Context) (err error) {
			d.ActiveStudents, err = svc.repo.CountActiveStudents(ctx)
			return errors.Wrap(err, "counting active students")
		},
		func(ctx context.Context) (err error) {
			d.ActiveTeachers, err = svc.repo.CountActiveTeachers(ctx)
			return errors.Wrap(err, "counting active teachers")
		},
		func(ctx context.Context) (err error) {
			loads, err = svc.repo.SectionLoads(ctx)
			return errors.Wrap(err, "loading sections")
		},
		func(ctx context.Context) (err error) {
			d.MonthRevenue, err = svc.repo.Revenue(ctx, from, to)
			return errors.Wrap(err, "summing revenue")
		},
		func(ctx context.Context) (err error) {
			d.OverdueInstallments, err = svc.repo.CountOverdue(ctx, today)
			return errors.Wrap(err, "counting overdue installments")
		},
		func(ctx context.Context) (err error) {
			d.RestockProducts, err = svc.repo.CountRestock(ctx)
			return errors.Wrap(err, "counting restock products")
		},
	)
	if err != nil {
		return Dashboard{}, err
	}
	d.OpenSections = len(loads)
	d.AverageOccupancy = AverageOccupancy(loads)
	return d, nil
}

// MonthlyFinance compares the tuition expected in a month with what was received.
func (svc *Service) MonthlyFinance(ctx context.Context, year int, month time.Month) (MonthlyFinance, error) {
	if month < time.January || month > time.December {
		return MonthlyFinance{}, core.NewFieldError("month", "month must be between 1 and 12")
	}
	from, to := monthBounds(year, month)

	var expected, received decimal.Decimal
	err := svc.pool.Group(ctx,
		func(ctx context.Context) (err error) {
			expected, err = svc.repo.Expected(ctx, from, to)
			return errors.Wrap(err, "summing expected")
		},
		func(ctx context.Context) (err error) {
			received, err = svc.repo.Received(ctx, from, to)
			return errors.Wrap(err, "summing received")
		},
	)
	if err != nil {
		return MonthlyFinance{}, err
	}
	return NewMonthlyFinance(year, month, expected, received), nil
}

// ActiveStudents lists the active enrollments of a year (all years when empty) with their payment status.
func (svc *Service) ActiveStudents(ctx context.Context, academicYearID string) ([]ActiveStudentRow, error) {
	students, err := svc.repo.ActiveStudents(ctx, academicYearID)
	if err != nil {
		return nil, errors.Wrap(err, "querying active students")
	}
	rows := make([]ActiveStudentRow, len(students))
	for i, s := range students {
		rows[i] = ActiveStudentRow{ActiveStudent: s, PaymentStatus: s.PaymentStatus()}
	}
	return rows, nil
}
