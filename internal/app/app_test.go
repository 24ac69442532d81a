package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/dshills/keybridge/internal/config"
	"github.com/dshills/keybridge/internal/event"
	"github.com/dshills/keybridge/internal/hook"
	"github.com/dshills/keybridge/internal/pipeline"
	"github.com/dshills/keybridge/internal/recovery"
	"github.com/dshills/keybridge/internal/ui"
)

func newApp(t *testing.T, reg hook.Registry, sink ui.Sink, opts Options, cfgOpts ...config.Option) *Application {
	t.Helper()
	cfg, err := config.New(cfgOpts...)
	require.NoError(t, err)
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}
	app, err := New(cfg, reg, sink, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

// closingFilter accepts everything and records Close.
type closingFilter struct {
	closed int
	err    error
}

func (f *closingFilter) Name() string                         { return "closing" }
func (f *closingFilter) Accept(event.Envelope, time.Time) bool { return true }
func (f *closingFilter) Close() error {
	f.closed++
	return f.err
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ChannelCapacity = 0

	_, err := New(cfg, hook.NewManager(), nil, Options{})
	require.Error(t, err)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "config", initErr.Component)

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.True(t, cfgErr.HasField("channel_capacity"))
}

func TestNewFailsWhenRegistrationFails(t *testing.T) {
	reg := hook.NewManager()
	reg.Close()

	_, err := New(config.Default(), reg, nil, Options{})
	require.Error(t, err)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "bridge", initErr.Component)
	assert.ErrorIs(t, err, hook.ErrClosed)
}

func TestStepDeliversToSink(t *testing.T) {
	reg := hook.NewManager()
	rec := &ui.Recorder{}
	app := newApp(t, reg, rec, Options{})

	for _, k := range event.Kinds() {
		assert.Equal(t, 1, reg.Count(k), "kind %s not registered", k)
	}

	reg.Fire(&hook.Notification{Kind: event.KindModeChanged, OldMode: event.ModeNormal, NewMode: event.ModeSelect})
	res, err := app.Step()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Received)

	require.Len(t, rec.Updates(), 1)
	assert.Equal(t, pipeline.ModeChanged{Old: event.ModeNormal, New: event.ModeSelect}, rec.Updates()[0])
	assert.Equal(t, 1, rec.Redraws())
	assert.Equal(t, 1, app.Log().Len())
	assert.Equal(t, uint64(1), app.Metrics().Sent())
	assert.Equal(t, uint64(1), app.Metrics().Received())
}

func TestEventLogDisabled(t *testing.T) {
	app := newApp(t, hook.NewManager(), nil, Options{}, config.WithEventLogCapacity(0))
	assert.Nil(t, app.Log())

	_, err := app.Step()
	assert.NoError(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	reg := hook.NewManager()
	rec := &ui.Recorder{}
	app := newApp(t, reg, rec, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	require.Eventually(t, app.IsRunning, time.Second, time.Millisecond)
	assert.ErrorIs(t, app.Run(ctx), ErrAlreadyRunning)

	reg.Fire(&hook.Notification{Kind: event.KindViewFocused, View: 9})
	require.Eventually(t, func() bool { return len(rec.Updates()) == 1 }, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunStopsOnClose(t *testing.T) {
	app := newApp(t, hook.NewManager(), nil, Options{StatsInterval: time.Millisecond})

	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(context.Background()) }()
	require.Eventually(t, app.IsRunning, time.Second, time.Millisecond)

	require.NoError(t, app.Close())
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	assert.ErrorIs(t, app.Run(context.Background()), ErrClosed)
}

func TestRunSurfacesRecoveryExhausted(t *testing.T) {
	reg := hook.NewManager()
	app := newApp(t, reg, nil, Options{}, config.WithRecovery(time.Millisecond, 0, 2))

	// The core goes away: the bridge is released and no new hooks are accepted.
	app.Bridge().Close()
	reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := app.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, recovery.ErrRecoveryExhausted)
	assert.ErrorIs(t, err, hook.ErrClosed)

	var compErr *ComponentError
	require.ErrorAs(t, err, &compErr)
	assert.Equal(t, "scheduler", compErr.Component)
	assert.Equal(t, recovery.StateFailed, app.Recovery().State())
}

func TestRecoversAfterDisconnect(t *testing.T) {
	reg := hook.NewManager()
	rec := &ui.Recorder{}
	app := newApp(t, reg, rec, Options{}, config.WithRecovery(time.Millisecond, 0, 5))

	first := app.Bridge()
	first.Close()

	res, err := app.Step()
	require.NoError(t, err)
	assert.True(t, res.Disconnected)

	require.Eventually(t, func() bool {
		res, err := app.Step()
		return err == nil && res.Reconnected
	}, 2*time.Second, time.Millisecond)

	require.NotNil(t, app.Bridge())
	assert.NotEqual(t, first.ID(), app.Bridge().ID())

	reg.Fire(&hook.Notification{Kind: event.KindDocumentOpened, Doc: 3})
	_, err = app.Step()
	require.NoError(t, err)
	require.Len(t, rec.Updates(), 1)
	assert.Equal(t, pipeline.DocumentsOpened{Documents: []event.DocumentID{3}}, rec.Updates()[0])
}

func TestCloseReleasesEverything(t *testing.T) {
	reg := hook.NewManager()
	filter := &closingFilter{err: errors.New("close failed")}
	app := newApp(t, reg, nil, Options{Filters: []pipeline.Filter{filter}})

	err := app.Close()
	assert.EqualError(t, err, "close failed")
	assert.Equal(t, 1, filter.closed)
	for _, k := range event.Kinds() {
		assert.Zero(t, reg.Count(k), "hook left for %s", k)
	}

	assert.NoError(t, app.Close(), "second Close reported an error")
	assert.Equal(t, 1, filter.closed)

	_, err = app.Step()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMeterExport(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	reg := hook.NewManager()
	app := newApp(t, reg, nil, Options{Meter: provider.Meter("keybridge-test")})

	reg.Fire(&hook.Notification{Kind: event.KindDocumentOpened, Doc: 1})
	_, err := app.Step()
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["keybridge.events.sent"])
	assert.True(t, names["keybridge.events.received"])

	assert.NoError(t, app.Close())
}
