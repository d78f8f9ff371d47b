package uploadmanager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingPlugin implements the created, pause and resume hooks and records
// which ones fired, in order, so tests can assert fan-out wiring without depending on
// a real plugin package.
type recordingPlugin struct {
	calls []string
}

func (p *recordingPlugin) Name() string                  { return "recording" }
func (p *recordingPlugin) OnTaskCreated(*TaskHandle)      { p.calls = append(p.calls, "created") }
func (p *recordingPlugin) OnTaskPause(string)             { p.calls = append(p.calls, "pause") }
func (p *recordingPlugin) OnTaskResume(string)            { p.calls = append(p.calls, "resume") }

func TestUseDispatchesTaskCreatedOnRegistration(t *testing.T) {
	m := testManager(t)
	rec := &recordingPlugin{}
	require.NoError(t, m.Use(rec))

	_, err := m.CreateTask(&fakeSource{name: "a", data: []byte("x")}, CreateOptions{})
	require.NoError(t, err)

	require.Contains(t, rec.calls, "created")
}

func TestUseAppliesPluginsInRegistrationOrder(t *testing.T) {
	m := testManager(t)
	var order []string
	p1 := &namedHook{name: "first", onCreated: func() { order = append(order, "first") }}
	p2 := &namedHook{name: "second", onCreated: func() { order = append(order, "second") }}
	require.NoError(t, m.Use(p1))
	require.NoError(t, m.Use(p2))

	_, err := m.CreateTask(&fakeSource{name: "a", data: []byte("x")}, CreateOptions{})
	require.NoError(t, err)

	require.Equal(t, []string{"first", "second"}, order)
}

func TestPanickingPluginDoesNotBlockPeers(t *testing.T) {
	m := testManager(t)
	bad := &panickingHook{}
	good := &recordingPlugin{}
	require.NoError(t, m.Use(bad))
	require.NoError(t, m.Use(good))

	require.NotPanics(t, func() {
		_, err := m.CreateTask(&fakeSource{name: "a", data: []byte("x")}, CreateOptions{})
		require.NoError(t, err)
	})
	require.Contains(t, good.calls, "created")
}

// namedHook is a single-purpose TaskCreatedHook used to assert ordering.
type namedHook struct {
	name      string
	onCreated func()
}

func (h *namedHook) Name() string             { return h.name }
func (h *namedHook) OnTaskCreated(*TaskHandle) { h.onCreated() }

// panickingHook panics from its TaskCreatedHook to exercise invokeHook's
// recover.
type panickingHook struct{}

func (h *panickingHook) Name() string             { return "panicker" }
func (h *panickingHook) OnTaskCreated(*TaskHandle) { panic("boom") }
