package audit

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
)

type (
	Repository interface {
		CreateEntry(ctx context.Context, e Entry, exec ...core.DBExecutor) (Entry, error)
		QueryEntries(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Entry, error)
	}

	// Recorder writes audit entries. Pass the executor of the running transaction so that the
	// entry is rolled back with the change it describes.
	Recorder interface {
		Record(ctx context.Context, action Action, module core.Module, entityID string, before, after interface{}, exec ...core.DBExecutor) error
	}

	Service struct {
		repo Repository
	}
)

var _ Recorder = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func snapshot(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (svc *Service) Record(
	ctx context.Context,
	action Action,
	module core.Module,
	entityID string,
	before, after interface{},
	exec ...core.DBExecutor,
) error {
	b, err := snapshot(before)
	if err != nil {
		return errors.Wrap(err, "marshalling before snapshot")
	}
	a, err := snapshot(after)
	if err != nil {
		return errors.Wrap(err, "marshalling after snapshot")
	}
	actor := core.ActorFrom(ctx)
	e := Entry{
		UserID:    actor.UserID,
		Username:  actor.Username,
		IP:        actor.IP,
		Action:    action,
		Module:    module,
		EntityID:  entityID,
		Before:    b,
		After:     a,
		CreatedAt: core.NowFunc().UTC(),
	}
	if _, err := svc.repo.CreateEntry(ctx, e, exec...); err != nil {
		return errors.Wrap(err, "creating audit entry")
	}
	return nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Entry, error) {
	return svc.repo.QueryEntries(ctx, filter, ordering)
}
