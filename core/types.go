package core

import (
	"database/sql/driver"

	"github.com/lib/pq"
)

// Strings is a list of strings stored as a postgres TEXT[] column.
type Strings []string

func (s *Strings) Scan(src interface{}) error {
	return (*pq.StringArray)(s).Scan(src)
}

func (s Strings) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	return pq.StringArray(s).Value()
}

func (s Strings) Contains(v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
