package tuition_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/tuition"
	"github.com/somabem/erp/tests"
)

func TestInstallment_balances(t *testing.T) {
	tests := []struct {
		name                           string
		after, interest, penalty, paid string
		wantOwed, wantRemaining        string
	}{
		{name: "nothing paid", after: "10000", interest: "0", penalty: "0", paid: "0", wantOwed: "10000", wantRemaining: "10000"},
		{name: "late", after: "10000", interest: "330", penalty: "200", paid: "0", wantOwed: "10530", wantRemaining: "10530"},
		{name: "late, partly paid", after: "10000", interest: "330", penalty: "200", paid: "5000", wantOwed: "10530", wantRemaining: "5530"},
		{name: "settled", after: "9000", interest: "0", penalty: "0", paid: "9000", wantOwed: "9000", wantRemaining: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := tuition.Installment{
				ValueAfterDiscount: testutil.Dec(tt.after),
				Interest:           testutil.Dec(tt.interest),
				Penalty:            testutil.Dec(tt.penalty),
				AmountPaid:         testutil.Dec(tt.paid),
			}
			assert.Equal(t, tt.wantOwed, i.Owed().String())
			assert.Equal(t, tt.wantRemaining, i.Remaining().String())
		})
	}
}

func TestInstallment_IsOverdue(t *testing.T) {
	due := core.Date(2025, time.March, 10)
	tests := []struct {
		name   string
		status string
		today  time.Time
		want   bool
	}{
		{name: "before due date", status: tuition.StatusPending, today: core.Date(2025, time.March, 9), want: false},
		{name: "on due date", status: tuition.StatusPending, today: due.Add(23 * time.Hour), want: false},
		{name: "day after", status: tuition.StatusPending, today: core.Date(2025, time.March, 11), want: true},
		{name: "partial", status: tuition.StatusPartial, today: core.Date(2025, time.April, 1), want: false},
		{name: "paid", status: tuition.StatusPaid, today: core.Date(2025, time.April, 1), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := tuition.Installment{Status: tt.status, DueDate: due}
			assert.Equal(t, tt.want, i.IsOverdue(tt.today))
			if tt.want {
				assert.Equal(t, tuition.StatusOverdue, i.EffectiveStatus(tt.today))
			} else {
				assert.Equal(t, tt.status, i.EffectiveStatus(tt.today))
			}
		})
	}

	i := tuition.Installment{DueDate: due}
	assert.Equal(t, 5, i.DaysUntilDue(core.Date(2025, time.March, 5)))
	assert.Equal(t, -5, i.DaysUntilDue(core.Date(2025, time.March, 15)))
}
