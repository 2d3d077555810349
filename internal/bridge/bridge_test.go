package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orbiterhq/orbiter/internal/cache"
	"github.com/orbiterhq/orbiter/pkg/models"
)

func newTestBridge(t *testing.T) (*Bridge, *cache.Store) {
	t.Helper()
	store := cache.NewStore(t.TempDir(), zap.NewNop().Sugar())
	return NewBridge(store, zap.NewNop().Sugar()), store
}

func TestPageCommandsBeforeConnectFail(t *testing.T) {
	b, _ := newTestBridge(t)
	ctx := context.Background()

	err := b.Navigate(ctx, "https://example.com", nil)
	assert.ErrorIs(t, err, ErrNoActivePage)

	_, err = b.Evaluate(ctx, "document.title")
	assert.ErrorIs(t, err, ErrNoActivePage)

	_, err = b.Screenshot(ctx, nil)
	assert.ErrorIs(t, err, ErrNoActivePage)
}

func TestCloseWithoutConnectCleansCache(t *testing.T) {
	b, store := newTestBridge(t)

	require.NoError(t, store.Persist(models.DefaultConnectionConfig(), models.DebugInfo{
		DebuggerAddress: "ws://127.0.0.1:9222",
	}))

	require.NoError(t, b.Close())
	assert.NoFileExists(t, store.ConnectionPath())
	assert.NoFileExists(t, store.DebugInfoPath())

	// Closing again must stay a no-op.
	require.NoError(t, b.Close())
	assert.False(t, b.Connected())
}

func TestConnect_UnreachableEndpointSurfacesError(t *testing.T) {
	b, _ := newTestBridge(t)

	err := b.Connect(context.Background(), models.DebugInfo{
		DebuggerAddress: "ws://127.0.0.1:1/devtools/browser/dead",
		ChromePort:      "1",
	}, nil)
	require.Error(t, err)
	assert.False(t, b.Connected())
}

func TestIsNotFoundClass(t *testing.T) {
	assert.True(t, isNotFoundClass(errors.New("websocket: bad handshake")))
	assert.True(t, isNotFoundClass(errors.New("dial tcp 127.0.0.1:1: connect: connection refused")))
	assert.True(t, isNotFoundClass(errors.New("target Not Found")))
	assert.False(t, isNotFoundClass(errors.New("context deadline exceeded")))
}
