package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStorage struct {
	counts map[string]int64
	err    error
}

func (m *memoryStorage) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memoryStorage) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 30 * time.Second, nil
}

func TestCheckAllowsUpToLimit(t *testing.T) {
	storage := &memoryStorage{counts: map[string]int64{}}
	l := NewLimiter(storage, map[string]ActionConfig{
		ActionClassify: {Limit: 3, Window: time.Minute},
	})
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		res, err := l.Check(context.Background(), "10.0.0.1", ActionClassify)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3-i, res.Remaining)
		assert.Equal(t, now.Add(30*time.Second).Unix(), res.ResetAt)
	}

	res, err := l.Check(context.Background(), "10.0.0.1", ActionClassify)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)

	other, err := l.Check(context.Background(), "10.0.0.2", ActionClassify)
	require.NoError(t, err)
	assert.True(t, other.Allowed, "limits are per client")
}

func TestCheckUnknownActionUsesDefault(t *testing.T) {
	l := NewLimiter(&memoryStorage{counts: map[string]int64{}}, nil)
	res, err := l.Check(context.Background(), "c", "unknown")
	require.NoError(t, err)
	assert.EqualValues(t, 100, res.Limit)
}

func TestCheckStorageError(t *testing.T) {
	l := NewLimiter(&memoryStorage{err: errors.New("redis down")}, nil)
	_, err := l.Check(context.Background(), "c", ActionChat)
	assert.Error(t, err)
}

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits(20)
	assert.EqualValues(t, 20, limits[ActionClassify].Limit)
	assert.EqualValues(t, 5, limits[ActionAnalyzeImage].Limit)
	assert.EqualValues(t, 10, limits[ActionSubmitReport].Limit)

	small := DefaultLimits(2)
	assert.EqualValues(t, 1, small[ActionAnalyzeImage].Limit)
}
