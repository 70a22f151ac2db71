package enrollment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/somabem/erp/core/enrollment"
	"github.com/somabem/erp/tests"
)

func TestPaymentStatusOf(t *testing.T) {
	tests := []struct {
		name      string
		fee, paid string
		want      enrollment.PaymentStatus
	}{
		{name: "nothing paid", fee: "50000", paid: "0", want: enrollment.PaymentPending},
		{name: "fully paid", fee: "50000", paid: "50000", want: enrollment.PaymentPaid},
		{name: "half paid", fee: "50000", paid: "25000", want: enrollment.PaymentPartial},
		{name: "paid above fee", fee: "50000", paid: "50000.01", want: enrollment.PaymentPaid},
		{name: "one kwanza short", fee: "50000", paid: "49999", want: enrollment.PaymentPartial},
		{name: "no fee", fee: "0", paid: "0", want: enrollment.PaymentExempt},
		{name: "no fee but paid", fee: "0", paid: "1000", want: enrollment.PaymentExempt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, enrollment.PaymentStatusOf(testutil.Dec(tt.fee), testutil.Dec(tt.paid)))
		})
	}
}
