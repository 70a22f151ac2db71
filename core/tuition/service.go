package tuition

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/academic"
	"github.com/somabem/erp/core/audit"
	"github.com/somabem/erp/core/cashier"
	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/core/institution"
)

var (
	// errors
	ErrPlanNotFound        = core.NewNotFoundError("payment plan")
	ErrInstallmentNotFound = core.NewNotFoundError("installment")
	ErrPaymentNotFound     = core.NewNotFoundError("payment")

	ErrPlanExists         = errors.New("a payment plan with this name already exists for the grade")
	ErrTemplatesExist     = errors.New("the payment plan already has installment templates")
	ErrNoTemplates        = errors.New("the payment plan has no installment templates")
	ErrNoPlan             = errors.New("the enrollment has no payment plan")
	ErrInstallmentsExist  = errors.New("the enrollment already has installments")
	ErrNotPayable         = errors.New("the installment is paid, cancelled or exempt")
	ErrOverpayment        = errors.New("the amount exceeds the remaining balance")
	ErrAlreadyReversed    = errors.New("the payment was already reversed")
	ErrReversalReason     = errors.New("a reason is required to reverse a payment")
	ErrEnrollmentInactive = errors.New("the enrollment is not active")
)

type (
	// LateInstallment is a payable installment past its due date, with its institution.
	LateInstallment struct {
		Installment
		InstitutionID string `db:"institution_id"`
	}

	Repository interface {
		PlanNameExists(ctx context.Context, yearID, gradeID, name string, exec ...core.DBExecutor) (bool, error)
		CreatePlan(ctx context.Context, p PaymentPlan, exec ...core.DBExecutor) (PaymentPlan, error)
		GetPlan(ctx context.Context, id string, exec ...core.DBExecutor) (PaymentPlan, error)
		QueryPlans(ctx context.Context, yearID string, exec ...core.DBExecutor) ([]PaymentPlan, error)

		CreateTemplate(ctx context.Context, t InstallmentTemplate, exec ...core.DBExecutor) (InstallmentTemplate, error)
		QueryTemplates(ctx context.Context, planID string, exec ...core.DBExecutor) ([]InstallmentTemplate, error)

		CreateInstallment(ctx context.Context, i Installment, exec ...core.DBExecutor) (Installment, error)
		GetInstallment(ctx context.Context, id string, exec ...core.DBExecutor) (Installment, error)
		// LockInstallment returns the installment, locking it until the end of the transaction.
		LockInstallment(ctx context.Context, id string, exec ...core.DBExecutor) (Installment, error)
		QueryInstallments(ctx context.Context, filter InstallmentFilter, exec ...core.DBExecutor) ([]Installment, error)
		UpdateInstallment(ctx context.Context, i Installment, exec ...core.DBExecutor) (Installment, error)
		// QueryLateInstallments returns the pending or partial installments due before `day`.
		QueryLateInstallments(ctx context.Context, day time.Time, exec ...core.DBExecutor) ([]LateInstallment, error)

		CreatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)
		GetPayment(ctx context.Context, id string, exec ...core.DBExecutor) (Payment, error)
		QueryPayments(ctx context.Context, filter PaymentFilter, exec ...core.DBExecutor) ([]Payment, error)
		UpdatePayment(ctx context.Context, p Payment, exec ...core.DBExecutor) (Payment, error)

		GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (enrollment.Enrollment, error)
		UpdateEnrollment(ctx context.Context, e enrollment.Enrollment, exec ...core.DBExecutor) (enrollment.Enrollment, error)
		GetYear(ctx context.Context, id string, exec ...core.DBExecutor) (academic.AcademicYear, error)
		GetSettings(ctx context.Context, institutionID string, exec ...core.DBExecutor) (institution.Settings, error)
	}

	Service struct {
		repo     Repository
		tx       core.TxRunner
		validate *validator.Validate
		audit    audit.Recorder
		ledger   cashier.Ledger
	}
)

func NewService(
	repo Repository,
	tx core.TxRunner,
	validate *validator.Validate,
	rec audit.Recorder,
	ledger cashier.Ledger,
) *Service {
	return &Service{repo: repo, tx: tx, validate: validate, audit: rec, ledger: ledger}
}

func fieldErr(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

func (svc *Service) settings(ctx context.Context, institutionID string, exec core.DBExecutor) (institution.Settings, error) {
	s, err := svc.repo.GetSettings(ctx, institutionID, exec)
	if err != nil {
		if errors.Cause(err) == institution.ErrSettingsNotFound {
			return institution.DefaultSettings(institutionID), nil
		}
		return institution.Settings{}, errors.Wrap(err, "getting settings")
	}
	return s, nil
}

// Plans

func (svc *Service) CreatePlan(ctx context.Context, np NewPaymentPlan) (PaymentPlan, error) {
	if err := np.Validate(svc.validate); err != nil {
		return PaymentPlan{}, err
	}
	if _, err := svc.repo.GetYear(ctx, np.AcademicYearID); err != nil {
		return PaymentPlan{}, err
	}
	exists, err := svc.repo.PlanNameExists(ctx, np.AcademicYearID, np.GradeID, np.Name)
	if err != nil {
		return PaymentPlan{}, errors.Wrap(err, "checking plan name")
	}
	if exists {
		return PaymentPlan{}, fieldErr("name", ErrPlanExists)
	}

	p := PaymentPlan{
		AcademicYearID:     np.AcademicYearID,
		GradeID:            np.GradeID,
		Name:               np.Name,
		Kind:               np.Kind,
		BillingCycle:       np.BillingCycle,
		TotalAmount:        np.TotalAmount.Round(2),
		EnrollmentFee:      np.EnrollmentFee.Round(2),
		Installments:       np.Installments,
		UpfrontDiscountPct: np.UpfrontDiscountPct,
		SiblingDiscountPct: np.SiblingDiscountPct,
		StaffDiscountPct:   np.StaffDiscountPct,
		IsActive:           true,
		CreatedAt:          core.NowFunc().UTC(),
	}
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.CreatePlan(ctx, p, exec); err != nil {
			return errors.Wrap(err, "creating payment plan")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModuleTuition, p.ID, nil, p, exec)
	})
	if err != nil {
		return PaymentPlan{}, err
	}
	return p, nil
}

func (svc *Service) GetPlan(ctx context.Context, id string) (PaymentPlan, error) {
	return svc.repo.GetPlan(ctx, id)
}

func (svc *Service) QueryPlans(ctx context.Context, yearID string) ([]PaymentPlan, error) {
	return svc.repo.QueryPlans(ctx, yearID)
}

// GenerateTemplates splits the plan total into one template per installment, on consecutive
// months starting at gt.FirstMonth, due on the institution's tuition due day.
func (svc *Service) GenerateTemplates(ctx context.Context, planID string, gt GenerateTemplates) ([]InstallmentTemplate, error) {
	if err := svc.validate.Struct(gt); err != nil {
		return nil, err
	}

	var tmpls []InstallmentTemplate
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		plan, err := svc.repo.GetPlan(ctx, planID, exec)
		if err != nil {
			return err
		}
		existing, err := svc.repo.QueryTemplates(ctx, planID, exec)
		if err != nil {
			return errors.Wrap(err, "querying templates")
		}
		if len(existing) > 0 {
			return fieldErr("plan_id", ErrTemplatesExist)
		}
		ay, err := svc.repo.GetYear(ctx, plan.AcademicYearID, exec)
		if err != nil {
			return err
		}
		settings, err := svc.settings(ctx, ay.InstitutionID, exec)
		if err != nil {
			return err
		}

		for i, amount := range core.Split(plan.TotalAmount, plan.Installments) {
			month := (gt.FirstMonth-1+i)%12 + 1
			t := InstallmentTemplate{
				PlanID:             plan.ID,
				Number:             i + 1,
				Name:               fmt.Sprintf("%s %d/%d", plan.Name, i+1, plan.Installments),
				Amount:             amount,
				Percentage:         core.Ratio(amount, plan.TotalAmount),
				DueDay:             settings.TuitionDueDay,
				Month:              month,
				IncludesTuition:    true,
				IncludesMeals:      gt.IncludesMeals,
				IncludesTransport:  gt.IncludesTransport,
				IncludesMaterial:   gt.IncludesMaterial,
				IncludesUniform:    gt.IncludesUniform,
				IncludesActivities: gt.IncludesActivities,
			}
			if t, err = svc.repo.CreateTemplate(ctx, t, exec); err != nil {
				return errors.Wrap(err, "creating template")
			}
			tmpls = append(tmpls, t)
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModuleTuition, plan.ID, nil, tmpls, exec)
	})
	if err != nil {
		return nil, err
	}
	return tmpls, nil
}

func (svc *Service) QueryTemplates(ctx context.Context, planID string) ([]InstallmentTemplate, error) {
	return svc.repo.QueryTemplates(ctx, planID)
}

// dueDate returns the due date of a template month within the academic year: months before the
// start month belong to the following calendar year.
func dueDate(ay academic.AcademicYear, month, day int) time.Time {
	year := ay.StartsOn.Year()
	if month < int(ay.StartsOn.Month()) {
		year++
	}
	return core.Date(year, time.Month(month), day)
}

// InstantiateInstallments creates the installments of an enrollment from its plan templates,
// applying the plan discount of the enrollment. The enrollment fee becomes their total.
func (svc *Service) InstantiateInstallments(ctx context.Context, enrollmentID string) ([]Installment, error) {
	var insts []Installment
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		enr, err := svc.repo.GetEnrollment(ctx, enrollmentID, exec)
		if err != nil {
			return err
		}
		if !enr.IsActive() {
			return fieldErr("enrollment_id", ErrEnrollmentInactive)
		}
		if enr.PaymentPlanID == nil {
			return fieldErr("payment_plan_id", ErrNoPlan)
		}
		existing, err := svc.repo.QueryInstallments(ctx, InstallmentFilter{EnrollmentID: enrollmentID}, exec)
		if err != nil {
			return errors.Wrap(err, "querying installments")
		}
		if len(existing) > 0 {
			return fieldErr("enrollment_id", ErrInstallmentsExist)
		}
		plan, err := svc.repo.GetPlan(ctx, *enr.PaymentPlanID, exec)
		if err != nil {
			return err
		}
		tmpls, err := svc.repo.QueryTemplates(ctx, plan.ID, exec)
		if err != nil {
			return errors.Wrap(err, "querying templates")
		}
		if len(tmpls) == 0 {
			return fieldErr("payment_plan_id", ErrNoTemplates)
		}
		ay, err := svc.repo.GetYear(ctx, enr.AcademicYearID, exec)
		if err != nil {
			return err
		}

		pct := plan.DiscountPct(enr.DiscountKind)
		fee := decimal.Zero
		for _, t := range tmpls {
			discount := core.Percent(t.Amount, pct)
			due := dueDate(ay, t.Month, t.DueDay)
			inst := Installment{
				EnrollmentID:       enr.ID,
				TemplateID:         core.StringPtr(t.ID),
				Number:             t.Number,
				Name:               t.Name,
				Month:              t.Month,
				Year:               due.Year(),
				OriginalValue:      t.Amount,
				DiscountPct:        pct,
				DiscountValue:      discount,
				ValueAfterDiscount: t.Amount.Sub(discount),
				AmountPaid:         decimal.Zero,
				DueDate:            due,
				Interest:           decimal.Zero,
				Penalty:            decimal.Zero,
				Status:             StatusPending,
			}
			if inst.ValueAfterDiscount.IsZero() {
				inst.Status = StatusExempt
			}
			if inst, err = svc.repo.CreateInstallment(ctx, inst, exec); err != nil {
				return errors.Wrap(err, "creating installment")
			}
			fee = fee.Add(inst.ValueAfterDiscount)
			insts = append(insts, inst)
		}

		orig := enr
		enr.TuitionFee = fee
		enr.UpdatedAt = core.NowFunc().UTC()
		if _, err = svc.repo.UpdateEnrollment(ctx, enr, exec); err != nil {
			return errors.Wrap(err, "updating enrollment fee")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModuleTuition, enr.ID, orig, enr, exec)
	})
	if err != nil {
		return nil, err
	}
	return insts, nil
}

func (svc *Service) QueryInstallments(ctx context.Context, filter InstallmentFilter) ([]Installment, error) {
	return svc.repo.QueryInstallments(ctx, filter)
}

// Overdue lists the pending installments past due on `today`.
func (svc *Service) Overdue(ctx context.Context, today time.Time) ([]Installment, error) {
	insts, err := svc.repo.QueryInstallments(ctx, InstallmentFilter{Status: StatusPending, DueBefore: core.DateOf(today)})
	if err != nil {
		return nil, err
	}
	overdue := insts[:0]
	for _, inst := range insts {
		if inst.IsOverdue(today) {
			overdue = append(overdue, inst)
		}
	}
	return overdue, nil
}

// Payments

// RegisterPayment pays (part of) an installment. An amount above the remaining balance is rejected.
func (svc *Service) RegisterPayment(ctx context.Context, np NewPayment) (Payment, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Payment{}, err
	}

	var p Payment
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		inst, err := svc.repo.LockInstallment(ctx, np.InstallmentID, exec)
		if err != nil {
			return err
		}
		if !inst.IsPayable() {
			return fieldErr("installment_id", ErrNotPayable)
		}
		if np.Amount.GreaterThan(inst.Remaining()) {
			return fieldErr("amount", ErrOverpayment)
		}
		enr, err := svc.repo.GetEnrollment(ctx, inst.EnrollmentID, exec)
		if err != nil {
			return err
		}

		now := core.NowFunc()
		today := core.DateOf(now)
		change := decimal.Zero
		if np.Method == MethodCash && np.Tendered.GreaterThan(np.Amount) {
			change = np.Tendered.Sub(np.Amount).Round(2)
		}
		receipt := ReceiptNumber(now)
		ref := np.Reference
		if ref == "" {
			ref = receipt
		}
		p = Payment{
			StudentID:      enr.StudentID,
			InstallmentID:  inst.ID,
			GuardianID:     np.GuardianID,
			ReceiptNumber:  receipt,
			Reference:      ref,
			Amount:         np.Amount,
			Change:         change,
			Method:         np.Method,
			Details:        np.Details,
			PostedOn:       today,
			ReceivedBy:     core.ActorFrom(ctx).UserID,
			CashRegisterID: np.CashRegisterID,
			CreatedAt:      now.UTC(),
		}
		if p, err = svc.repo.CreatePayment(ctx, p, exec); err != nil {
			return errors.Wrap(err, "creating payment")
		}

		inst.AmountPaid = inst.AmountPaid.Add(p.Amount)
		inst.settle(today)
		if _, err = svc.repo.UpdateInstallment(ctx, inst, exec); err != nil {
			return errors.Wrap(err, "updating installment")
		}
		enr.AmountPaid = enr.AmountPaid.Add(p.Amount)
		enr.UpdatedAt = now.UTC()
		if _, err = svc.repo.UpdateEnrollment(ctx, enr, exec); err != nil {
			return errors.Wrap(err, "updating enrollment")
		}

		if p.CashRegisterID != nil {
			_, err = svc.ledger.Post(ctx, exec, cashier.NewMovement{
				RegisterID:    *p.CashRegisterID,
				Kind:          cashier.KindIn,
				Category:      cashier.CategoryTuition,
				Amount:        p.Amount,
				Description:   inst.Name,
				PaymentID:     core.StringPtr(p.ID),
				ReceiptNumber: p.ReceiptNumber,
			})
			if err != nil {
				return err
			}
		}
		return svc.audit.Record(ctx, audit.ActionPayment, core.ModuleTuition, p.ID, nil, p, exec)
	})
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

// ReversePayment marks a payment reversed and restores the balances it settled. The cash register
// gets the matching outflow while it is still open.
func (svc *Service) ReversePayment(ctx context.Context, id, reason string) (Payment, error) {
	if reason = core.CleanString(reason); reason == "" {
		return Payment{}, fieldErr("reason", ErrReversalReason)
	}

	var p Payment
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetPayment(ctx, id, exec)
		if err != nil {
			return err
		}
		if orig.Reversed {
			return fieldErr("id", ErrAlreadyReversed)
		}
		inst, err := svc.repo.LockInstallment(ctx, orig.InstallmentID, exec)
		if err != nil {
			return err
		}
		enr, err := svc.repo.GetEnrollment(ctx, inst.EnrollmentID, exec)
		if err != nil {
			return err
		}

		now := core.NowFunc()
		today := core.DateOf(now)
		p = orig
		p.Reversed = true
		p.ReversedOn = &today
		p.ReversalReason = reason
		if p, err = svc.repo.UpdatePayment(ctx, p, exec); err != nil {
			return errors.Wrap(err, "reversing payment")
		}

		inst.AmountPaid = decimal.Max(inst.AmountPaid.Sub(p.Amount), decimal.Zero)
		inst.settle(today)
		if _, err = svc.repo.UpdateInstallment(ctx, inst, exec); err != nil {
			return errors.Wrap(err, "updating installment")
		}
		enr.AmountPaid = decimal.Max(enr.AmountPaid.Sub(p.Amount), decimal.Zero)
		enr.UpdatedAt = now.UTC()
		if _, err = svc.repo.UpdateEnrollment(ctx, enr, exec); err != nil {
			return errors.Wrap(err, "updating enrollment")
		}

		if p.CashRegisterID != nil {
			_, err = svc.ledger.Post(ctx, exec, cashier.NewMovement{
				RegisterID:    *p.CashRegisterID,
				Kind:          cashier.KindOut,
				Category:      cashier.CategoryReversal,
				Amount:        p.Amount,
				Description:   reason,
				PaymentID:     core.StringPtr(p.ID),
				ReceiptNumber: p.ReceiptNumber,
			})
			if err != nil && errors.Cause(err) != cashier.ErrRegisterClosed {
				return err
			}
		}
		return svc.audit.Record(ctx, audit.ActionReversal, core.ModuleTuition, p.ID, orig, p, exec)
	})
	if err != nil {
		return Payment{}, err
	}
	return p, nil
}

func (svc *Service) GetPayment(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, id)
}

func (svc *Service) QueryPayments(ctx context.Context, filter PaymentFilter) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter)
}

// ApplyLateFees charges the penalty and the daily interest of the institution settings on every
// payable installment whose grace period ended before `today`. It returns the updated installments.
func (svc *Service) ApplyLateFees(ctx context.Context, today time.Time) ([]Installment, error) {
	today = core.DateOf(today)

	var updated []Installment
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		late, err := svc.repo.QueryLateInstallments(ctx, today, exec)
		if err != nil {
			return errors.Wrap(err, "querying late installments")
		}

		settings := make(map[string]institution.Settings)
		for _, li := range late {
			s, ok := settings[li.InstitutionID]
			if !ok {
				if s, err = svc.settings(ctx, li.InstitutionID, exec); err != nil {
					return err
				}
				settings[li.InstitutionID] = s
			}

			inst := li.Installment
			daysLate := int(today.Sub(core.DateOf(inst.DueDate)).Hours() / 24)
			if daysLate <= s.GraceDays {
				continue
			}
			inst.DaysLate = daysLate
			inst.Penalty = core.Percent(inst.ValueAfterDiscount, s.LatePenaltyPct)
			inst.Interest = core.Percent(inst.ValueAfterDiscount, s.DailyInterestPct.Mul(decimal.NewFromInt(int64(daysLate))))
			if inst, err = svc.repo.UpdateInstallment(ctx, inst, exec); err != nil {
				return errors.Wrap(err, "updating installment")
			}
			updated = append(updated, inst)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
