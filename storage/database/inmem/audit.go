package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) CreateEntry(_ context.Context, e audit.Entry, _ ...core.DBExecutor) (audit.Entry, error) {
	e.ID = uuid.NewString()
	repo.db.audit.insert(e.ID, e)
	return e, nil
}

func (repo *auditRepository) QueryEntries(_ context.Context, filter *audit.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]audit.Entry, error) {
	entries := repo.db.audit.filter(filter.Matches)
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	return sortBy(entries, func(a, b audit.Entry) bool {
		for _, ord := range ordering {
			var c int
			switch ord.Field {
			case "created_at":
				c = a.CreatedAt.Compare(b.CreatedAt)
			case "action":
				c = strings.Compare(string(a.Action), string(b.Action))
			case "module":
				c = strings.Compare(string(a.Module), string(b.Module))
			case "username":
				c = strings.Compare(a.Username, b.Username)
			}
			if c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return false
	}), nil
}
