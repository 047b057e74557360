package builtin

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/harness/pkg/config"
	"github.com/platinummonkey/harness/pkg/observability"
	"github.com/platinummonkey/harness/pkg/plugins"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func newSyncBuffer() *syncBuffer {
	return &syncBuffer{}
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newRuntime(t *testing.T, cfg string, out *syncBuffer) *plugins.Runtime {
	t.Helper()
	store := config.NewStore()
	require.NoError(t, store.ReadFrom(strings.NewReader(cfg), "keepalive.cfg"))
	section, err := store.Get("keepalive", "")
	require.NoError(t, err)

	sink := observability.NewSink(out, logrus.InfoLevel, "run-1")
	return &plugins.Runtime{
		Name:    "keepalive",
		Section: section,
		Log:     sink.Entry("keepalive", ""),
	}
}

func TestKeepalive_Runs(t *testing.T) {
	out := newSyncBuffer()
	rt := newRuntime(t, "[keepalive]\ninterval = 1\nruns = 2\n", out)

	start := time.Now()
	require.NoError(t, (&Keepalive{}).Start(context.Background(), rt))

	assert.GreaterOrEqual(t, time.Since(start), 2*time.Second)
	assert.Contains(t, out.String(), "keepalive started with interval 1")
	assert.Contains(t, out.String(), "will run 2 time(s)")
}

func TestKeepalive_StopsOnContext(t *testing.T) {
	out := newSyncBuffer()
	rt := newRuntime(t, "[keepalive]\n", out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- (&Keepalive{}).Start(ctx, rt) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("keepalive did not stop")
	}
	assert.Contains(t, out.String(), "keepalive started with interval 60")
}

func TestKeepalive_LogsToContextLogger(t *testing.T) {
	out := newSyncBuffer()
	rt := newRuntime(t, "[keepalive]\ninterval = 1\nruns = 1\n", out)
	log := rt.Log.WithField("source", "ctx")
	rt.Log = nil

	ctx := observability.WithLogger(context.Background(), log)
	require.NoError(t, (&Keepalive{}).Start(ctx, rt))

	assert.Contains(t, out.String(), "keepalive started with interval 1")
	assert.Contains(t, out.String(), "source=ctx")
}

func TestKeepalive_BadOptions(t *testing.T) {
	tests := map[string]string{
		"zero interval": "[keepalive]\ninterval = 0\n",
		"bad interval":  "[keepalive]\ninterval = often\n",
		"negative runs": "[keepalive]\nruns = -1\n",
		"non-int runs":  "[keepalive]\nruns = many\n",
	}

	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			rt := newRuntime(t, cfg, newSyncBuffer())
			err := (&Keepalive{}).Start(context.Background(), rt)
			assert.ErrorIs(t, err, config.ErrInvalidValue)
		})
	}
}

func TestKeepalive_Manifest(t *testing.T) {
	m := (&Keepalive{}).Manifest()
	assert.Equal(t, []string{"logger"}, m.Requires)
	assert.NoError(t, plugins.ValidateManifest("keepalive", m))
}
