package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/keybridge/internal/config"
)

type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) handle(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) snapshot() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

func writeFile(t *testing.T, path, content string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestOperationString(t *testing.T) {
	assert.Equal(t, "write", OpWrite.String())
	assert.Equal(t, "create", OpCreate.String())
	assert.Equal(t, "remove", OpRemove.String())
	assert.Equal(t, "unknown", Operation(9).String())
}

func TestCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.toml")
	writeFile(t, path, "channel_capacity = 64\nmax_events_per_frame = 32\nmin_events_per_frame = 8\n", time.Now())

	var c collector
	w, err := New(path, c.handle)
	require.NoError(t, err)

	r := w.Check()
	require.NoError(t, r.Err)
	assert.Equal(t, 64, r.Config.ChannelCapacity)
	assert.Len(t, c.snapshot(), 1)
}

func TestPollDebouncesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.toml")
	base := time.Now().Add(-time.Hour)
	writeFile(t, path, "channel_capacity = 64\n", base)

	var c collector
	w, err := New(path, c.handle, WithDebounce(100*time.Millisecond))
	require.NoError(t, err)

	now := time.Now()
	w.poll(now)
	assert.Empty(t, c.snapshot(), "unchanged file reported")

	writeFile(t, path, "channel_capacity = 0\n", base.Add(time.Second))
	w.poll(now.Add(10 * time.Millisecond))
	writeFile(t, path, "channel_capacity = 512\n", base.Add(2*time.Second))
	w.poll(now.Add(50 * time.Millisecond))
	assert.Empty(t, c.snapshot(), "reported before settling")

	w.poll(now.Add(200 * time.Millisecond))
	results := c.snapshot()
	require.Len(t, results, 1)
	assert.Equal(t, OpWrite, results[0].Op)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 512, results[0].Config.ChannelCapacity)
}

func TestPollReportsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.toml")
	base := time.Now().Add(-time.Hour)
	writeFile(t, path, "", base)

	var c collector
	w, err := New(path, c.handle, WithDebounce(0))
	require.NoError(t, err)

	writeFile(t, path, "channel_capacity = 0\n", base.Add(time.Second))
	w.poll(time.Now())

	results := c.snapshot()
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, config.ErrInvalidConfig)
}

func TestPollCreateAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.toml")

	var c collector
	w, err := New(path, c.handle, WithDebounce(0))
	require.NoError(t, err)

	writeFile(t, path, "channel_capacity = 32\nmax_events_per_frame = 16\nmin_events_per_frame = 4\n", time.Now())
	w.poll(time.Now())
	require.NoError(t, os.Remove(path))
	w.poll(time.Now())

	results := c.snapshot()
	require.Len(t, results, 2)
	assert.Equal(t, OpCreate, results[0].Op)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, OpRemove, results[1].Op)
	assert.NoError(t, results[1].Err)
}

func TestHandlerPanicIsContained(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.toml")
	w, err := New(path, func(Result) { panic("boom") })
	require.NoError(t, err)

	assert.NotPanics(t, func() { w.Check() })
}

func TestRunStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.toml")
	base := time.Now().Add(-time.Hour)
	writeFile(t, path, "", base)

	var c collector
	w, err := New(path, c.handle, WithInterval(5*time.Millisecond), WithDebounce(0))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeFile(t, path, "stale_after = \"1s\"\n", base.Add(time.Second))
	require.Eventually(t, func() bool { return len(c.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, time.Second, c.snapshot()[0].Config.StaleAfter)
}
