package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/dyparser/errors"
	"github.com/wippyai/dyparser/host"
	"github.com/wippyai/dyparser/resource"
)

func TestParseDone(t *testing.T) {
	m := New(nil)

	m.ParseDone("ini", 10*time.Millisecond, nil)
	m.ParseDone("ini", 30*time.Millisecond, errors.SelfAttach(1))
	m.ParseDone("ini", 20*time.Millisecond, fmt.Errorf("plain"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Parses.WithLabelValues("ini", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Parses.WithLabelValues("ini", "self_attach")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Parses.WithLabelValues("ini", "error")))

	s := m.Snapshot()
	assert.Equal(t, int64(3), s.Parses)
	assert.Equal(t, int64(2), s.Failures)
	assert.Equal(t, 20*time.Millisecond, s.AverageDuration())
	assert.Equal(t, int64(1), s.Outcomes["self_attach"])
}

func TestTracerAndObserverThroughState(t *testing.T) {
	m := New(nil)
	st := host.NewState(host.NewStringStream("ab"), host.WithTracer(m), host.WithObserver(m))

	p, err := st.NewSection()
	require.NoError(t, err)
	c, err := st.NewSection()
	require.NoError(t, err)
	require.NoError(t, st.AddSection(p, "k", c))
	st.NextChar()
	_ = st.Release(c)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HostCalls.WithLabelValues("new-section")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HostErrors.WithLabelValues("release", "handle_invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SectionsLive))

	m.SectionsDiscarded(st.Close())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SectionsLive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SectionsLeaked))

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.SectionsCreated)
	assert.Equal(t, int64(0), s.SectionsLive)
	assert.Equal(t, int64(1), s.SectionsLeaked)
	assert.Equal(t, int64(1), s.HostCalls["next-char"])
}

func TestSnapshotIsACopy(t *testing.T) {
	m := New(nil)
	m.HostCall(host.OpAddField, nil)

	s := m.Snapshot()
	s.HostCalls["add-field"] = 100

	assert.Equal(t, int64(1), m.Snapshot().HostCalls["add-field"])
}

func TestRegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.OnResourceEvent(resource.Event{Type: resource.EventCreated})
	m.ParseDone("x", time.Millisecond, nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["dyparser_sections_live"])
	assert.True(t, names["dyparser_parses_total"])
	assert.True(t, names["dyparser_parse_duration_seconds"])
}
