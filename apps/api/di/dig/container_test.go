package dig_container

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	echoapi "github.com/somabem/erp/apps/api/echo"
	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/cashier"
)

type testParam struct {
	dig.In
	DB        *sql.DB
	Registers cashier.Repository
}

func TestNew_inMemory(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("TEST_DBENGINE", EngineInMemory)
	t.Setenv("TEST_MEDIADIR", t.TempDir())

	c := New()
	err := c.Invoke(func(conf *core.Config, p testParam, pool *core.WorkerPool, cashierSvc *cashier.Service, srv *echoapi.Server) {
		defer pool.Close()

		assert.True(t, conf.TestMode)
		assert.Nil(t, p.DB)
		require.NotNil(t, srv)

		// services and repositories share one database
		_, err := cashierSvc.Open(context.Background(), cashier.NewRegister{Code: "CX-1", Period: "daily"})
		require.NoError(t, err)
		rs, err := p.Registers.QueryRegisters(context.Background(), cashier.QueryFilter{})
		require.NoError(t, err)
		assert.Len(t, rs, 1)
	})
	require.NoError(t, err)
}
