package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfuse/quantfuse/internal/predict"
	"github.com/quantfuse/quantfuse/internal/regime"
)

func trainedSnapshots(t *testing.T) (*regime.Model, *predict.Snapshot) {
	t.Helper()

	det, err := regime.NewDetector(regime.DefaultConfig())
	require.NoError(t, err)
	model := det.Snapshot()
	model.Trained = true

	cfg := predict.DefaultConfig()
	net, err := predict.NewNetwork(cfg)
	require.NoError(t, err)
	snap := net.Snapshot()
	snap.Trained = true

	return model, snap
}

func testStoreRoundTrip(t *testing.T, store SnapshotStore) {
	t.Helper()
	ctx := context.Background()
	model, snap := trainedSnapshots(t)

	t.Run("regime", func(t *testing.T) {
		require.NoError(t, store.SaveRegime(ctx, "sim", model))
		got, err := store.LoadRegime(ctx, "sim")
		require.NoError(t, err)
		assert.Equal(t, model.States, got.States)
		assert.Equal(t, model.Means, got.Means)
		assert.True(t, got.Trained)
	})

	t.Run("predictor", func(t *testing.T) {
		require.NoError(t, store.SavePredictor(ctx, "sim", snap))
		got, err := store.LoadPredictor(ctx, "sim")
		require.NoError(t, err)
		assert.Equal(t, snap.Layers, got.Layers)
		assert.Equal(t, snap.Weights, got.Weights)
		assert.True(t, got.Trained)
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := store.LoadRegime(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.LoadPredictor(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	testStoreRoundTrip(t, store)
}

func TestFileStoreOverwrite(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	model, _ := trainedSnapshots(t)

	require.NoError(t, store.SaveRegime(ctx, "sim", model))
	model.Means[0][0] = 42
	require.NoError(t, store.SaveRegime(ctx, "sim", model))

	got, err := store.LoadRegime(ctx, "sim")
	require.NoError(t, err)
	assert.Equal(t, 42.0, got.Means[0][0], "save replaces the previous snapshot")
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, 0)
	require.NoError(t, store.Ping(context.Background()))
	testStoreRoundTrip(t, store)
}

func TestRedisStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()
	model, _ := trainedSnapshots(t)

	require.NoError(t, store.SaveRegime(ctx, "sim", model))
	mr.FastForward(2 * time.Minute)

	_, err := store.LoadRegime(ctx, "sim")
	assert.ErrorIs(t, err, ErrNotFound, "expired snapshot reads as missing")
}
