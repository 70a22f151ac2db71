package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
	inmemdb "github.com/somabem/erp/storage/database/inmem"
)

type product struct {
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

func TestService_Record(t *testing.T) {
	now := time.Date(2025, time.May, 5, 9, 0, 0, 0, time.UTC)
	orig := core.NowFunc
	t.Cleanup(func() { core.NowFunc = orig })
	core.NowFunc = func() time.Time { return now }

	svc := audit.NewService(inmemdb.NewAuditRepository(inmemdb.Open()))
	ctx := core.WithActor(context.Background(), core.Actor{UserID: "u-1", Username: "caixa", IP: "10.0.0.7"})

	require.NoError(t, svc.Record(ctx, audit.ActionStock, core.ModuleInventory, "p-1", product{"Caderno", 10}, product{"Caderno", 7}))
	now = now.Add(time.Minute)
	require.NoError(t, svc.Record(ctx, audit.ActionCheckout, core.ModuleSales, "s-1", nil, map[string]string{"number": "V-1"}))
	now = now.Add(time.Minute)
	require.NoError(t, svc.Record(context.Background(), audit.ActionLoginFailed, core.ModuleUsers, "", nil, nil))

	t.Run("snapshots and actor", func(t *testing.T) {
		entries, err := svc.Query(context.Background(), &audit.QueryFilter{EntityID: "p-1"}, nil)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		e := entries[0]
		assert.Equal(t, "u-1", e.UserID)
		assert.Equal(t, "caixa", e.Username)
		assert.Equal(t, "10.0.0.7", e.IP)
		assert.JSONEq(t, `{"name":"Caderno","stock":10}`, string(e.Before))
		assert.JSONEq(t, `{"name":"Caderno","stock":7}`, string(e.After))
	})

	t.Run("system actions have no user", func(t *testing.T) {
		entries, err := svc.Query(context.Background(), &audit.QueryFilter{Action: "login_failed"}, nil)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Empty(t, entries[0].UserID)
		assert.Nil(t, entries[0].Before)
		assert.Nil(t, entries[0].After)
	})

	tests := []struct {
		name    string
		filter  *audit.QueryFilter
		wantIDs []string // entity ids, newest first
	}{
		{name: "no filter", filter: nil, wantIDs: []string{"", "s-1", "p-1"}},
		{name: "by user", filter: &audit.QueryFilter{UserID: "u-1"}, wantIDs: []string{"s-1", "p-1"}},
		{name: "by module", filter: &audit.QueryFilter{Module: "sales"}, wantIDs: []string{"s-1"}},
		{name: "from", filter: &audit.QueryFilter{From: now.Add(-time.Minute)}, wantIDs: []string{"", "s-1"}},
		{name: "to", filter: &audit.QueryFilter{To: now.Add(-2 * time.Minute)}, wantIDs: []string{"p-1"}},
		{name: "no match", filter: &audit.QueryFilter{Module: "grading"}, wantIDs: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := svc.Query(context.Background(), tt.filter, nil)
			require.NoError(t, err)
			var ids []string
			for _, e := range entries {
				ids = append(ids, e.EntityID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	t.Run("ascending", func(t *testing.T) {
		entries, err := svc.Query(context.Background(), nil, []core.DBOrdering{{Field: "created_at", Ascending: true}})
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "p-1", entries[0].EntityID)
	})
}

func TestQueryFilter_Clean(t *testing.T) {
	qf := audit.QueryFilter{UserID: " u-1 ", Module: " Sales", Action: "CHECKOUT "}
	qf.Clean()
	assert.Equal(t, audit.QueryFilter{UserID: "u-1", Module: "sales", Action: "checkout"}, qf)
}
