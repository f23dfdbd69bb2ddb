package controller_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathsteer/pathsteerd/internal/config"
	"github.com/pathsteer/pathsteerd/internal/controller"
	"github.com/pathsteer/pathsteerd/internal/duplication"
	"github.com/pathsteer/pathsteerd/internal/model"
	"github.com/pathsteer/pathsteerd/internal/protection"
	"github.com/pathsteer/pathsteerd/internal/switcher"
	"github.com/pathsteer/pathsteerd/internal/telemetry"
	"github.com/pathsteer/pathsteerd/internal/world"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *telemetry.Logger {
	return telemetry.NewLogger(telemetry.LoggerConfig{Output: discard{}}, "test-run")
}

type fakeExecer struct {
	err error
}

func (f *fakeExecer) Run(ctx context.Context, name string, args ...string) error { return f.err }

type fakeRoute struct{}

func (fakeRoute) Replace(ctx context.Context, namespace, gateway, device string) error { return nil }
func (fakeRoute) Verify(ctx context.Context, namespace, gateway, device string) (bool, error) {
	return true, nil
}

type fakeScript struct{}

func (fakeScript) RunDetached(scriptPath string, args ...string) {}

func newDispatcher() (*controller.CommandDispatcher, *world.World) {
	uplinks := []*model.Uplink{
		{ID: 0, Name: "cell_a", Enabled: true, Available: true, IsActive: true},
		{ID: 1, Name: "sat_a", Enabled: true, Available: true},
	}
	status := &model.Status{Mode: model.ModeTripwire, State: model.StateNormal, ActiveUplink: "cell_a"}
	w := world.New(uplinks, status)

	routes := map[string]protection.UplinkRoute{
		"cell_a": {VIPDevice: "veth_cell_a", VIPGateway: "10.0.0.1"},
		"sat_a":  {VIPDevice: "veth_sat_a", VIPGateway: "10.0.0.2"},
	}

	dup := duplication.NewController(&fakeExecer{}, "ns_vip")
	logger := testLogger()

	machine := &protection.Machine{
		World:     w,
		Cfg:       *config.Default(),
		Dup:       dup,
		Switch:    switcher.NewSwitcher(fakeRoute{}, fakeScript{}, ""),
		Logger:    logger,
		Namespace: "ns_vip",
		Routes:    routes,
	}

	d := &controller.CommandDispatcher{
		World:        w,
		Dup:          dup,
		Machine:      machine,
		Routes:       routes,
		Logger:       logger,
		Exec:         &fakeExecer{},
		SwitchScript: "/opt/pathsteer/scripts/c8000-switch.sh",
	}
	return d, w
}

func TestDispatchModeSwitchesMode(t *testing.T) {
	d, w := newDispatcher()
	result, _ := d.Dispatch(context.Background(), "mode:mirror", "cmd-1")

	assert.Equal(t, "exec", result)
	w.Lock()
	assert.Equal(t, model.ModeMirror, w.Status.Mode)
	assert.True(t, w.Status.DupEnabled, "entering mirror mode installs a standing duplication rule")
	assert.Equal(t, "cmd-1", w.Status.LastCmd.ID)
	w.Unlock()
}

func TestDispatchModeRejectsUnknownMode(t *testing.T) {
	d, _ := newDispatcher()
	result, detail := d.Dispatch(context.Background(), "mode:bogus", "cmd-2")
	assert.Equal(t, "fail", result)
	assert.NotEmpty(t, detail)
}

func TestDispatchModeTrainingDisablesDuplication(t *testing.T) {
	d, w := newDispatcher()
	_, _ = d.Dispatch(context.Background(), "mode:mirror", "cmd-1")
	w.Lock()
	require.True(t, w.Status.DupEnabled)
	w.Unlock()

	result, _ := d.Dispatch(context.Background(), "mode:training", "cmd-1b")

	require.Equal(t, "exec", result)
	w.Lock()
	defer w.Unlock()
	assert.Equal(t, model.ModeTraining, w.Status.Mode)
	assert.False(t, w.Status.DupEnabled, "entering training mode must tear down duplication")
}

func TestDispatchForcePinsUplink(t *testing.T) {
	d, w := newDispatcher()
	result, _ := d.Dispatch(context.Background(), "force:sat_a", "cmd-3")

	require.Equal(t, "exec", result)
	w.Lock()
	defer w.Unlock()
	assert.True(t, w.Status.ForceLocked)
	assert.Equal(t, "sat_a", w.Status.ActiveUplink)
	assert.True(t, w.ByName("sat_a").IsActive)
	assert.False(t, w.ByName("cell_a").IsActive)
}

func TestDispatchForceAutoClearsLock(t *testing.T) {
	d, w := newDispatcher()
	w.Lock()
	w.Status.ForceLocked = true
	w.Status.SwitchesThisWindow = 2
	w.Status.State = model.StateHolding
	w.Unlock()

	result, _ := d.Dispatch(context.Background(), "force:auto", "cmd-4")
	require.Equal(t, "exec", result)

	w.Lock()
	defer w.Unlock()
	assert.False(t, w.Status.ForceLocked)
	assert.Zero(t, w.Status.SwitchesThisWindow)
	assert.Equal(t, model.StateNormal, w.Status.State)
}

func TestDispatchForceAutoReArbitratesToBetterUplink(t *testing.T) {
	d, w := newDispatcher()
	w.Lock()
	w.Status.ForceLocked = true
	w.ByName("sat_a").RTTMs = 5
	w.ByName("cell_a").RTTMs = 200
	w.Unlock()

	result, _ := d.Dispatch(context.Background(), "force:auto", "cmd-4b")
	require.Equal(t, "exec", result)

	w.Lock()
	defer w.Unlock()
	assert.Equal(t, "sat_a", w.Status.ActiveUplink, "force:auto should switch to the now-better uplink immediately")
	assert.True(t, w.ByName("sat_a").IsActive)
	assert.False(t, w.ByName("cell_a").IsActive)
}

func TestDispatchForceRestoresAvailabilityOnUnavailableUplink(t *testing.T) {
	d, w := newDispatcher()
	w.Lock()
	w.ByName("sat_a").Available = false
	w.ByName("sat_a").ForceFailed = true
	w.Unlock()

	result, _ := d.Dispatch(context.Background(), "force:sat_a", "cmd-5")
	require.Equal(t, "exec", result)

	w.Lock()
	defer w.Unlock()
	assert.True(t, w.ByName("sat_a").Available, "force clears unavailability per the force-command contract")
	assert.False(t, w.ByName("sat_a").ForceFailed)
	assert.Equal(t, "sat_a", w.Status.ActiveUplink)
	assert.True(t, w.Status.ForceLocked)
}

func TestDispatchForceRejectsDisabledUplink(t *testing.T) {
	d, w := newDispatcher()
	w.Lock()
	w.ByName("sat_a").Enabled = false
	w.Unlock()

	result, _ := d.Dispatch(context.Background(), "force:sat_a", "cmd-5")
	assert.Equal(t, "fail", result)
}

func TestDispatchTriggerEntersProtect(t *testing.T) {
	d, w := newDispatcher()
	result, _ := d.Dispatch(context.Background(), "trigger", "cmd-6")

	require.Equal(t, "exec", result)
	w.Lock()
	defer w.Unlock()
	assert.Equal(t, model.StateProtect, w.Status.State)
	assert.Equal(t, model.TriggerManual, w.Status.LastTrigger)
}

func TestDispatchC8000SwitchesController(t *testing.T) {
	d, w := newDispatcher()
	result, _ := d.Dispatch(context.Background(), "c8000:1", "cmd-7")

	require.Equal(t, "exec", result)
	w.Lock()
	defer w.Unlock()
	assert.Equal(t, 1, w.Status.ActiveController)
}

func TestDispatchC8000FailurePropagates(t *testing.T) {
	d, _ := newDispatcher()
	d.Exec = &fakeExecer{err: errors.New("script missing")}

	result, detail := d.Dispatch(context.Background(), "c8000:1", "cmd-8")
	assert.Equal(t, "fail", result)
	assert.NotEmpty(t, detail)
}

func TestDispatchEnableDisableUplink(t *testing.T) {
	d, w := newDispatcher()

	result, _ := d.Dispatch(context.Background(), "disable:sat_a", "cmd-9")
	require.Equal(t, "exec", result)
	w.Lock()
	assert.False(t, w.ByName("sat_a").Enabled)
	w.Unlock()

	result, _ = d.Dispatch(context.Background(), "enable:sat_a", "cmd-10")
	require.Equal(t, "exec", result)
	w.Lock()
	assert.True(t, w.ByName("sat_a").Enabled)
	w.Unlock()
}

func TestDispatchFailUnfailUplink(t *testing.T) {
	d, w := newDispatcher()

	result, _ := d.Dispatch(context.Background(), "fail:sat_a", "cmd-11")
	require.Equal(t, "exec", result)
	w.Lock()
	assert.True(t, w.ByName("sat_a").ForceFailed)
	assert.False(t, w.ByName("sat_a").Available)
	assert.Equal(t, 10, w.ByName("sat_a").ConsecFail)
	w.Unlock()

	result, _ = d.Dispatch(context.Background(), "unfail:sat_a", "cmd-12")
	require.Equal(t, "exec", result)
	w.Lock()
	assert.False(t, w.ByName("sat_a").ForceFailed)
	assert.True(t, w.ByName("sat_a").Available, "unfail must restore availability")
	assert.Zero(t, w.ByName("sat_a").ConsecFail)
	w.Unlock()
}

func TestDispatchUnknownCommandFails(t *testing.T) {
	d, _ := newDispatcher()
	result, detail := d.Dispatch(context.Background(), "bogus:1", "cmd-13")
	assert.Equal(t, "fail", result)
	assert.NotEmpty(t, detail)
}
