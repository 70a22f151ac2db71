package core

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsValidationError(t *testing.T) {
	validate, _ := NewValidator()
	start := Date(2024, time.February, 1)
	structErr := validate.Struct(sample{Code: "AY-2024", Start: start, End: Date(2024, time.January, 1)})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "field error", err: NewFieldError("code", "this field is required"), want: true},
		{name: "wrapped field error", err: errors.Wrap(NewUniqueViolation("code"), "creating year"), want: true},
		{name: "struct validation", err: structErr, want: true},
		{name: "wrapped struct validation", err: errors.Wrap(structErr, "validating"), want: true},
		{name: "auth error", err: NewAuthError("account locked"), want: false},
		{name: "not found", err: NewNotFoundError("user"), want: false},
		{name: "plain error", err: errors.New("connection refused"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidationError(tt.err))
		})
	}
}
