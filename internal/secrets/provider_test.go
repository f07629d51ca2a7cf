package secrets_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stroyteh/kanban-service/internal/secrets"
	"go.uber.org/zap"
)

type fakeGetter map[string]string

func (f fakeGetter) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := f[name]; ok {
		return v, nil
	}
	return "", errors.New("secret not found")
}

func TestResolveSource(t *testing.T) {
	assert.Equal(t, secrets.SourceEnvironment, secrets.ResolveSource(secrets.SourceAuto, "development"))
	assert.Equal(t, secrets.SourceEnvironment, secrets.ResolveSource(secrets.SourceAuto, "test"))
	assert.Equal(t, secrets.SourceVault, secrets.ResolveSource(secrets.SourceAuto, "production"))
	assert.Equal(t, secrets.SourceEnvironment, secrets.ResolveSource(secrets.SourceEnvironment, "production"))
}

func TestProvider_Environment(t *testing.T) {
	p, err := secrets.NewProvider(&secrets.ProviderConfig{Source: secrets.SourceAuto, Environment: "development"}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.IsVaultEnabled())

	t.Setenv("KANBAN_TEST_SECRET", "from-env")
	v, err := p.GetSecret(context.Background(), "KANBAN_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = p.GetSecret(context.Background(), "KANBAN_TEST_MISSING")
	assert.Error(t, err)
}

func TestProvider_VaultWithEnvOverride(t *testing.T) {
	p := secrets.NewProviderWithGetter(fakeGetter{"kanban-secret-key": "vault"}, zap.NewNop())
	assert.True(t, p.IsVaultEnabled())
	ctx := context.Background()

	v, err := p.GetSecretOrEnv(ctx, "kanban-secret-key", "KANBAN_TEST_SECRET_KEY")
	require.NoError(t, err)
	assert.Equal(t, "vault", v)

	t.Setenv("KANBAN_TEST_SECRET_KEY", "override")
	v, err = p.GetSecretOrEnv(ctx, "kanban-secret-key", "KANBAN_TEST_SECRET_KEY")
	require.NoError(t, err)
	assert.Equal(t, "override", v)

	_, err = p.GetSecret(ctx, "unknown")
	assert.Error(t, err)
}

func TestNewProvider_VaultNeedsName(t *testing.T) {
	_, err := secrets.NewProvider(&secrets.ProviderConfig{Source: secrets.SourceVault}, zap.NewNop())
	assert.Error(t, err)
}
