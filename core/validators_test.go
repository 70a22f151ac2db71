package core

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Code   string          `json:"code" validate:"required,code"`
	Name   string          `json:"name" validate:"omitempty,alphanum_"`
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
	Start  time.Time       `json:"start" validate:"required"`
	End    time.Time       `json:"end" validate:"required,gtfield=Start"`
}

func TestInitValidators(t *testing.T) {
	validate, translator := NewValidator()
	start := Date(2024, time.February, 1)

	tests := []struct {
		name     string
		in       sample
		wantErrs map[string]string
	}{
		{
			name: "valid",
			in:   sample{Code: "T-10A", Name: "Turma A", Amount: decimal.NewFromInt(100), Start: start, End: start.AddDate(0, 9, 0)},
		},
		{
			name: "invalid",
			in:   sample{Code: "-x", Name: "Turma#", Amount: decimal.NewFromInt(-1), Start: start, End: start.AddDate(0, -1, 0)},
			wantErrs: map[string]string{
				"code":   codeText,
				"name":   alphaNumUnderText,
				"amount": "amount must be 0 or greater",
				"end":    "end must be after Start",
			},
		},
		{
			name:     "required",
			in:       sample{Start: start, End: start.AddDate(0, 1, 0)},
			wantErrs: map[string]string{"code": requiredText},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.in)
			if tt.wantErrs == nil {
				assert.NoError(t, err)
				return
			}
			vErrs, ok := err.(validator.ValidationErrors)
			if !assert.True(t, ok, "want validator.ValidationErrors, got %v", err) {
				return
			}
			got := make(map[string]string, len(vErrs))
			for _, fe := range vErrs {
				got[fe.Field()] = fe.Translate(translator)
			}
			assert.Equal(t, tt.wantErrs, got)
		})
	}
}

func TestOrderBy(t *testing.T) {
	cols := map[string]string{"name": "full_name", "created_at": "created_at"}
	tests := []struct {
		name string
		ords []DBOrdering
		want string
	}{
		{name: "fallback", want: "id ASC"},
		{name: "unknown dropped", ords: []DBOrdering{{Field: "lol"}}, want: "id ASC"},
		{name: "mapped", ords: []DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}}, want: "full_name ASC, created_at DESC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderBy(tt.ords, cols, "id ASC"))
		})
	}
}

func TestRatio(t *testing.T) {
	assert.True(t, Ratio(decimal.NewFromInt(1), decimal.Zero).IsZero())
	assert.Equal(t, "33.33", Ratio(decimal.NewFromInt(1), decimal.NewFromInt(3)).StringFixed(2))
	assert.Equal(t, "2.00", Percent(decimal.NewFromInt(100), decimal.NewFromInt(2)).StringFixed(2))
}
