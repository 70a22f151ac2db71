package people_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/people"
)

func TestPerson_Age(t *testing.T) {
	birth := core.Date(2010, time.March, 15)
	tests := []struct {
		name  string
		birth *time.Time
		today time.Time
		want  int
	}{
		{name: "unknown birth date", birth: nil, today: core.Date(2025, time.January, 1), want: -1},
		{name: "day before the birthday", birth: &birth, today: core.Date(2025, time.March, 14), want: 14},
		{name: "on the birthday", birth: &birth, today: core.Date(2025, time.March, 15), want: 15},
		{name: "earlier month", birth: &birth, today: core.Date(2025, time.February, 28), want: 14},
		{name: "later month", birth: &birth, today: core.Date(2025, time.December, 1), want: 15},
		{name: "newborn", birth: &birth, today: birth, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, people.Person{BirthDate: tt.birth}.Age(tt.today))
		})
	}
}

func TestStudentDocument_ValidOn(t *testing.T) {
	until := core.Date(2025, time.June, 30)
	tests := []struct {
		name string
		doc  people.StudentDocument
		day  time.Time
		want bool
	}{
		{name: "no expiry", doc: people.StudentDocument{IsValid: true}, day: core.Date(2040, time.January, 1), want: true},
		{name: "before expiry", doc: people.StudentDocument{IsValid: true, ValidUntil: &until}, day: core.Date(2025, time.June, 1), want: true},
		{name: "last valid day", doc: people.StudentDocument{IsValid: true, ValidUntil: &until}, day: until.Add(23 * time.Hour), want: true},
		{name: "expired", doc: people.StudentDocument{IsValid: true, ValidUntil: &until}, day: core.Date(2025, time.July, 1), want: false},
		{name: "invalidated", doc: people.StudentDocument{IsValid: false}, day: core.Date(2025, time.June, 1), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.doc.ValidOn(tt.day))
		})
	}
}
