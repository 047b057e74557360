package harness

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/harness/pkg/observability"
	"github.com/platinummonkey/harness/pkg/plugins"
	"github.com/platinummonkey/harness/pkg/plugins/fixtures"
)

type testLoader struct {
	*Loader
	trace *fixtures.Trace
}

// newTestLoader builds a loader over the fixture modules plus extra, with a
// private catalog and a discarded log sink
func newTestLoader(t *testing.T, cfg string, extra map[string]plugins.Plugin, opts ...Option) *testLoader {
	t.Helper()

	catalog := plugins.NewCatalog()
	require.NoError(t, fixtures.Register(catalog))
	for library, p := range extra {
		p := p
		require.NoError(t, catalog.Register(library, func() plugins.Plugin { return p }))
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	registry := plugins.NewRegistry(nil, log, plugins.WithCatalog(catalog))

	sink := observability.NewSink(io.Discard, logrus.DebugLevel, "test-run")
	l := New("harness", registry, append([]Option{WithSink(sink)}, opts...)...)
	require.NoError(t, l.Store().ReadFrom(strings.NewReader(cfg), "test.cfg"))

	return &testLoader{Loader: l}
}

// recorder returns a module recording init and deinit in trace
func recorder(trace *fixtures.Trace, requires []string, conflicts ...string) *fixtures.Recorder {
	return &fixtures.Recorder{Meta: fixtures.Manifest("1.0.0", requires, conflicts...), Trace: trace}
}

// startRecorder returns a recorder with a start hook
func startRecorder(trace *fixtures.Trace, requires []string) *fixtures.StartRecorder {
	return &fixtures.StartRecorder{Recorder: recorder(trace, requires)}
}

func instanceNames(instances []*Instance) []string {
	names := make([]string, 0, len(instances))
	for _, inst := range instances {
		names = append(names, inst.String())
	}
	return names
}
