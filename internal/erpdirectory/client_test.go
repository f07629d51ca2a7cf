package erpdirectory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/config"
	"github.com/stroyteh/kanban-service/internal/erpdirectory"
	"github.com/stroyteh/kanban-service/internal/testutil"
	"go.uber.org/zap"
)

func newDirectory(t *testing.T) *erpdirectory.Client {
	t.Helper()
	sqlDB, err := testutil.SetupTestDB(t).DB()
	require.NoError(t, err)
	_, err = sqlDB.Exec(`CREATE TABLE erp_objects (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = sqlDB.Exec(`INSERT INTO erp_objects (id, name) VALUES (1, '  Tower A  ')`)
	require.NoError(t, err)

	return erpdirectory.NewClientFromDB(sqlDB,
		map[erpdirectory.Kind]string{erpdirectory.KindObject: "erp_objects"}, 0, zap.NewNop())
}

func TestClient_Lookup(t *testing.T) {
	c := newDirectory(t)
	ctx := context.Background()
	require.True(t, c.Enabled())

	name, found, err := c.Lookup(ctx, erpdirectory.KindObject, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Tower A", name)

	_, found, err = c.Lookup(ctx, erpdirectory.KindObject, 2)
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = c.Lookup(ctx, erpdirectory.KindProduct, 1)
	assert.Error(t, err, "kind without a table")

	assert.Equal(t, "healthy", c.HealthCheck(ctx).Status)
}

func TestClient_Disabled(t *testing.T) {
	var c *erpdirectory.Client
	assert.False(t, c.Enabled())
	_, _, err := c.Lookup(context.Background(), erpdirectory.KindObject, 1)
	assert.Error(t, err)
	assert.Equal(t, "disabled", c.HealthCheck(context.Background()).Status)
	assert.NoError(t, c.Close())
}

func TestNewClient_SkipsWithoutConfiguration(t *testing.T) {
	c, err := erpdirectory.NewClient(context.Background(), &config.ERPDirectoryConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = erpdirectory.NewClient(context.Background(), &config.ERPDirectoryConfig{Enabled: true, URL: "erp:1433/erp"}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c, "missing credentials")
}
