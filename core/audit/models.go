package audit

import (
	"encoding/json"
	"time"

	"github.com/somabem/erp/core"
)

type Action string

const (
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionLogin       Action = "login"
	ActionLoginFailed Action = "login_failed"
	ActionLock        Action = "lock"
	ActionUnlock      Action = "unlock"
	ActionPassword    Action = "password_change"
	ActionPayment     Action = "payment"
	ActionReversal    Action = "reversal"
	ActionCheckout    Action = "checkout"
	ActionCancel      Action = "cancel"
	ActionOpen        Action = "open"
	ActionClose       Action = "close"
	ActionMovement    Action = "movement"
	ActionStock       Action = "stock"
)

// Entry is one system action log, with before/after JSON snapshots of the affected record.
type Entry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id,omitempty"`
	Username  string          `json:"username,omitempty"`
	Action    Action          `json:"action"`
	Module    core.Module     `json:"module"`
	EntityID  string          `json:"entity_id,omitempty"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	IP        string          `json:"ip,omitempty"`
	CreatedAt time.Time       `json:"created_at"` // UTC
}

type QueryFilter struct {
	UserID   string    `query:"user_id"`
	Module   string    `query:"module"`
	Action   string    `query:"action"`
	EntityID string    `query:"entity_id"`
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`
}

func (qf *QueryFilter) Clean() {
	qf.UserID = core.CleanString(qf.UserID)
	qf.Module = core.CleanString(qf.Module, true /* lower */)
	qf.Action = core.CleanString(qf.Action, true /* lower */)
	qf.EntityID = core.CleanString(qf.EntityID)
}

// Matches applies the filter in memory.
func (qf *QueryFilter) Matches(e Entry) bool {
	if qf == nil {
		return true
	}
	return (qf.UserID == "" || e.UserID == qf.UserID) &&
		(qf.Module == "" || string(e.Module) == qf.Module) &&
		(qf.Action == "" || string(e.Action) == qf.Action) &&
		(qf.EntityID == "" || e.EntityID == qf.EntityID) &&
		(qf.From.IsZero() || !e.CreatedAt.Before(qf.From)) &&
		(qf.To.IsZero() || !e.CreatedAt.After(qf.To))
}
