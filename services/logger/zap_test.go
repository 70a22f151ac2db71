package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/somabem/erp/core/user"
)

func TestZapLoggerFields(t *testing.T) {
	obs, logs := observer.New(zap.DebugLevel)
	logger := NewZapLoggerFrom(zap.New(obs))

	usr := user.User{ID: "u1", Username: "admin"}
	logger.Error("boom", errors.New("db down"), usr, map[string]interface{}{"receipt": "R-1"}, nil, 42)
	logger.Debug("quiet")

	entries := logs.All()
	require.Len(t, entries, 2)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "boom", entries[0].Message)
	assert.Equal(t, "db down", ctx["error"])
	assert.Equal(t, "u1", ctx["user_id"])
	assert.Equal(t, "admin", ctx["username"])
	assert.Equal(t, "R-1", ctx["receipt"])
	assert.EqualValues(t, 42, ctx["arg4"])

	assert.Equal(t, "quiet", entries[1].Message)
	assert.Empty(t, entries[1].ContextMap())
}
