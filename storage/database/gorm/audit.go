package gormrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
)

type auditEntry struct {
	ID        string         `gorm:"column:id;primaryKey"`
	UserID    string         `gorm:"column:user_id"`
	Username  string         `gorm:"column:username"`
	Action    string         `gorm:"column:action"`
	Module    string         `gorm:"column:module"`
	EntityID  string         `gorm:"column:entity_id"`
	Before    datatypes.JSON `gorm:"column:before"`
	After     datatypes.JSON `gorm:"column:after"`
	IP        string         `gorm:"column:ip"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (auditEntry) TableName() string { return "audit_entries" }

func toEntry(ae auditEntry) audit.Entry {
	return audit.Entry{
		ID:        ae.ID,
		UserID:    ae.UserID,
		Username:  ae.Username,
		Action:    audit.Action(ae.Action),
		Module:    core.Module(ae.Module),
		EntityID:  ae.EntityID,
		Before:    json.RawMessage(ae.Before),
		After:     json.RawMessage(ae.After),
		IP:        ae.IP,
		CreatedAt: ae.CreatedAt,
	}
}

// API field -> column
var auditOrderings = map[string]string{
	"created_at": "created_at",
	"action":     "action",
	"module":     "module",
	"username":   "username",
}

type auditRepository struct {
	db *gorm.DB
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(db *gorm.DB) *auditRepository {
	return &auditRepository{db: db}
}

func (repo auditRepository) CreateEntry(ctx context.Context, e audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	e.ID = uuid.NewString()
	ae := auditEntry{
		ID:        e.ID,
		UserID:    e.UserID,
		Username:  e.Username,
		Action:    string(e.Action),
		Module:    string(e.Module),
		EntityID:  e.EntityID,
		Before:    datatypes.JSON(e.Before),
		After:     datatypes.JSON(e.After),
		IP:        e.IP,
		CreatedAt: e.CreatedAt,
	}
	if err := session(ctx, repo.db, exec).Create(&ae).Error; err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return e, nil
}

func (repo auditRepository) QueryEntries(ctx context.Context, filter *audit.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]audit.Entry, error) {
	q := session(ctx, repo.db, exec).Model(&auditEntry{})
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.Module != "" {
			q = q.Where("module = ?", filter.Module)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.EntityID != "" {
			q = q.Where("entity_id = ?", filter.EntityID)
		}
		if !filter.From.IsZero() {
			q = q.Where("created_at >= ?", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			q = q.Where("created_at <= ?", filter.To.UTC())
		}
	}

	var rows []auditEntry
	if err := q.Order(core.OrderBy(ordering, auditOrderings, "created_at DESC")).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying audit entries")
	}
	entries := make([]audit.Entry, len(rows))
	for i, r := range rows {
		entries[i] = toEntry(r)
	}
	return entries, nil
}
