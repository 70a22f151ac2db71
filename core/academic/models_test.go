package academic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/somabem/erp/core/academic"
)

func TestOccupancy(t *testing.T) {
	tests := []struct {
		active, capacity int
		want             string
	}{
		{0, 0, "0"},
		{3, 0, "0"},
		{0, 35, "0"},
		{1, 4, "25"},
		{35, 35, "100"},
		{1, 3, "33.33"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, academic.Occupancy(tt.active, tt.capacity).String(), "%d/%d", tt.active, tt.capacity)
	}
}

func TestClassSection_IsFull(t *testing.T) {
	cs := academic.ClassSection{Capacity: 2}
	assert.False(t, cs.IsFull(1))
	assert.True(t, cs.IsFull(2))
	assert.True(t, academic.ClassSection{}.IsFull(0), "a section without seats is always full")
}
