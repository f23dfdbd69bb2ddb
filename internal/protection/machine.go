// Package protection implements the protection state machine:
// NORMAL/PREPARE -> PROTECT -> SWITCHING -> HOLDING -> NORMAL, with flap
// suppression and clean-exit hysteresis, driven once per scheduler tick.
package protection

import (
	"context"
	"fmt"

	"github.com/pathsteer/pathsteerd/internal/clock"
	"github.com/pathsteer/pathsteerd/internal/config"
	"github.com/pathsteer/pathsteerd/internal/duplication"
	"github.com/pathsteer/pathsteerd/internal/model"
	"github.com/pathsteer/pathsteerd/internal/risk"
	"github.com/pathsteer/pathsteerd/internal/switcher"
	"github.com/pathsteer/pathsteerd/internal/telemetry"
	"github.com/pathsteer/pathsteerd/internal/tripwire"
	"github.com/pathsteer/pathsteerd/internal/world"
)

// MaxSwitchesPerWindow is the flap-suppression cap.
const MaxSwitchesPerWindow = 3

// CleanRTTMarginMs is the margin above baseline an uplink may run and still
// count as clean.
const CleanRTTMarginMs = 30

// CleanLossPctMax is the loss ceiling for an uplink to count as clean.
const CleanLossPctMax = 2.0

// UplinkRoute is the static routing identity a switch/duplication target needs.
type UplinkRoute struct {
	VIPDevice  string
	VIPGateway string
}

// Machine drives the protection state machine. Callers must hold no lock
// when calling Tick; Tick takes the world lock itself for the portions that
// touch shared state and releases it before any blocking I/O.
type Machine struct {
	World     *world.World
	Cfg       config.Config
	Dup       *duplication.Controller
	Switch    *switcher.Switcher
	Logger    *telemetry.Logger
	Metrics   *telemetry.Metrics
	Namespace string
	Routes    map[string]UplinkRoute // by uplink name
}

// Tick runs one iteration of the protection state machine. It is a no-op in
// TRAINING mode, matching the daemon's pure-observation contract.
func (m *Machine) Tick(ctx context.Context) {
	m.World.Lock()
	mode := m.World.Status.Mode
	state := m.World.Status.State
	m.World.Unlock()

	if mode == model.ModeTraining {
		return
	}

	switch state {
	case model.StateNormal, model.StatePrepare:
		m.checkTripwire(ctx)
	case model.StateProtect:
		m.slowpathArbitrate(ctx)
		m.protectionTick(ctx)
	case model.StateSwitching, model.StateHolding:
		m.protectionTick(ctx)
	}
}

func (m *Machine) checkTripwire(ctx context.Context) {
	m.World.Lock()
	active := m.World.Active()
	trig, detail := tripwire.Check(active, m.Cfg.Tripwire)
	m.World.Unlock()

	if trig != model.TriggerNone {
		m.fire(ctx, trig, detail)
	}
}

// fire is the fast path: enable duplication to a peer uplink and enter
// PROTECT. It must complete in milliseconds, so duplication install happens
// outside the world lock and state is only updated once it returns.
func (m *Machine) fire(ctx context.Context, trig model.Trigger, detail string) {
	m.World.Lock()
	active := m.World.Active()
	var secondary *model.Uplink
	if active != nil {
		secondary = m.World.NextEnabledAvailable(active.ID)
	}
	m.World.Unlock()

	if active != nil && secondary != nil {
		srcRoute := m.Routes[active.Name]
		dstRoute := m.Routes[secondary.Name]
		if err := m.Dup.Enable(ctx, srcRoute.VIPDevice, dstRoute.VIPDevice, dstRoute.VIPGateway, m.Logger, m.Metrics); err == nil {
			m.World.Lock()
			m.World.Status.DupEnabled = true
			m.World.Status.DupEnabledAtUs = m.Dup.EnabledAtUs
			m.World.Status.DupEngagedAtUs = 0
			m.World.Unlock()
		}
	}

	m.World.Lock()
	m.World.Status.State = model.StateProtect
	m.World.Status.LastTrigger = trig
	m.World.Status.TriggerDetail = detail
	m.World.Status.ProtectStartUs = clock.NowUs()
	m.World.Status.SwitchesThisWindow = 0
	m.World.Status.LastCleanUs = 0
	m.World.Status.FlapSuppressed = false
	m.World.Unlock()

	m.Logger.Event("tripwire_fire", map[string]interface{}{"trigger": trig.String(), "detail": detail})
	if m.Metrics != nil {
		m.Metrics.TripwireFiredTotal.WithLabelValues(trig.String()).Inc()
	}
}

// slowpathArbitrate is the slow path: enforce the duplication settle window
// and the preroll window, then switch at most once per protection window.
func (m *Machine) slowpathArbitrate(ctx context.Context) {
	now := clock.NowUs()
	var dupAgeMs int64
	var justEngaged, stillSettling, stillPreroll, flapped bool

	m.World.Lock()
	status := m.World.Status
	if status.DupEnabled && status.DupEngagedAtUs == 0 {
		dupAgeMs = clock.ElapsedMs(status.DupEnabledAtUs)
		if dupAgeMs >= int64(duplication.SettleMs) {
			status.DupEngagedAtUs = now
			justEngaged = true
		} else {
			status.State = model.StateSwitching
			stillSettling = true
		}
	}

	if !stillSettling {
		elapsedMs := clock.ElapsedMs(status.ProtectStartUs)
		if elapsedMs < int64(m.Cfg.Switching.PrerollMs) {
			status.State = model.StateSwitching
			stillPreroll = true
		} else if status.SwitchesThisWindow >= MaxSwitchesPerWindow {
			status.FlapSuppressed = true
			flapped = true
		}
	}
	m.World.Unlock()

	if justEngaged {
		m.Logger.Event("dup_engaged", map[string]interface{}{"settle_ms": dupAgeMs})
	}
	if stillSettling || stillPreroll || flapped {
		return
	}

	best := m.selectBest()

	m.World.Lock()
	active := m.World.Active()
	needSwitch := best != nil && active != nil && best.Name != active.Name
	m.World.Unlock()

	if needSwitch {
		m.executeSwitch(ctx, active, best)
	}

	m.World.Lock()
	m.World.Status.State = model.StateHolding
	m.World.Unlock()
}

// selectBest scores every enabled, available uplink per the arbitration
// formula and returns the winner, or the current active uplink if
// force-locked or nothing scores strictly higher.
func (m *Machine) selectBest() *model.Uplink {
	m.World.Lock()
	defer m.World.Unlock()

	active := m.World.Active()
	if m.World.Status.ForceLocked || active == nil {
		return active
	}

	best := active
	bestScore := -9999.0
	for _, u := range m.World.Uplinks {
		if !u.Enabled || !u.Available {
			continue
		}
		s := 100 - u.RTTMs - 50*u.RiskNow - 10*u.LossPct
		if u.Kind == model.KindSAT && u.Satellite.Online && !u.Satellite.Obstructed {
			s += 20
		}
		if u.Kind == model.KindLTE && u.Cellular.RSRP > -90 {
			s += 15
		}
		if s > bestScore || (s == bestScore && u == active) {
			bestScore = s
			best = u
		}
	}
	return best
}

// executeSwitch runs the two-phase switch actuator and applies its result to
// the world. On failure, active_uplink is left unchanged and no window
// credit is given, but the caller still transitions to HOLDING.
func (m *Machine) executeSwitch(ctx context.Context, from, to *model.Uplink) {
	route := m.Routes[to.Name]
	result := m.Switch.Execute(ctx, m.Namespace, from.Name, to.Name, route.VIPGateway, route.VIPDevice, m.Logger, m.Metrics)
	if !result.Committed {
		return
	}

	m.World.Lock()
	from.IsActive = false
	to.IsActive = true
	m.World.Status.ActiveUplink = to.Name
	m.World.Status.SwitchesThisWindow++
	m.World.Status.SwitchStartUs = clock.NowUs()
	m.World.Unlock()
}

// protectionTick maintains the hold/clean-exit timers while in PROTECT,
// SWITCHING, or HOLDING.
func (m *Machine) protectionTick(ctx context.Context) {
	now := clock.NowUs()

	m.World.Lock()
	status := m.World.Status
	elapsedSec := clock.ElapsedSec(status.ProtectStartUs)

	holdRemaining := int64(m.Cfg.Switching.MinHoldSec) - elapsedSec
	if holdRemaining < 0 {
		holdRemaining = 0
	}
	status.HoldRemainingSec = int(holdRemaining)

	active := m.World.Active()
	isClean := active != nil &&
		active.ConsecFail == 0 &&
		active.RTTMs < active.RTTBaseline+CleanRTTMarginMs &&
		active.LossPct < CleanLossPctMax

	var exitNow bool
	var cleanSec int64
	if isClean {
		if status.LastCleanUs == 0 {
			status.LastCleanUs = now
		}
		cleanSec = clock.ElapsedSec(status.LastCleanUs)
		cleanRemaining := int64(m.Cfg.Switching.CleanExitSec) - cleanSec
		if cleanRemaining < 0 {
			cleanRemaining = 0
		}
		status.CleanRemainingSec = int(cleanRemaining)

		if elapsedSec >= int64(m.Cfg.Switching.MinHoldSec) && cleanSec >= int64(m.Cfg.Switching.CleanExitSec) {
			exitNow = true
		}
	} else {
		status.LastCleanUs = 0
		status.CleanRemainingSec = m.Cfg.Switching.CleanExitSec
	}

	mode := status.Mode
	m.World.Unlock()

	if !exitNow {
		return
	}

	if mode != model.ModeMirror {
		_ = m.Dup.Disable(ctx, m.Logger)
	}

	m.World.Lock()
	if mode != model.ModeMirror {
		m.World.Status.DupEnabled = false
		m.World.Status.DupEnabledAtUs = 0
		m.World.Status.DupEngagedAtUs = 0
	}
	m.World.Status.State = model.StateNormal
	m.World.Status.LastTrigger = model.TriggerNone
	m.World.Unlock()

	m.Logger.Event("protection_exit", map[string]interface{}{"duration_sec": elapsedSec, "clean_sec": cleanSec})
}

// Trigger fires a manual protection event through the same entry path a
// tripwire uses, so the operator's "trigger" command gets duplication
// installed before anything is allowed to switch.
func (m *Machine) Trigger(ctx context.Context, detail string) {
	m.fire(ctx, model.TriggerManual, detail)
}

// ForceTo pins the named uplink active: it clears force_failed, marks the
// uplink available, and commits an immediate two-phase switch before
// force-locking arbitration, mirroring the daemon's force-command handler.
// active_uplink only changes once the route actuation verifies.
func (m *Machine) ForceTo(ctx context.Context, name string) (bool, string) {
	m.World.Lock()
	target := m.World.ByName(name)
	if target == nil {
		m.World.Unlock()
		return false, fmt.Sprintf("unknown uplink %q", name)
	}
	if !target.Enabled {
		m.World.Unlock()
		return false, fmt.Sprintf("%s not enabled", name)
	}
	target.ForceFailed = false
	target.Available = true
	active := m.World.Active()
	m.World.Unlock()

	switch {
	case active == nil:
		m.World.Lock()
		target.IsActive = true
		m.World.Status.ActiveUplink = target.Name
		m.World.Unlock()
	case active.Name != target.Name:
		m.executeSwitch(ctx, active, target)
	}

	m.World.Lock()
	m.World.Status.ForceLocked = true
	m.World.Unlock()

	return true, fmt.Sprintf("force=%s", name)
}

// ForceAuto releases a force lock: it resets the flap window and returns to
// NORMAL, then immediately re-arbitrates so a better uplink is switched to
// without waiting for the next tripwire event.
func (m *Machine) ForceAuto(ctx context.Context) {
	m.World.Lock()
	m.World.Status.ForceLocked = false
	m.World.Status.SwitchesThisWindow = 0
	m.World.Status.State = model.StateNormal
	m.World.Unlock()

	best := m.selectBest()

	m.World.Lock()
	active := m.World.Active()
	needSwitch := best != nil && active != nil && best.Name != active.Name
	m.World.Unlock()

	if needSwitch {
		m.executeSwitch(ctx, active, best)
	}
}

// DisableDuplication tears down an installed duplication rule and clears its
// status fields, matching the daemon's dup_disable() called on entry to
// TRAINING/TRIPWIRE mode. A no-op when nothing is installed.
func (m *Machine) DisableDuplication(ctx context.Context) {
	m.World.Lock()
	enabled := m.World.Status.DupEnabled
	m.World.Unlock()
	if !enabled {
		return
	}

	_ = m.Dup.Disable(ctx, m.Logger)

	m.World.Lock()
	m.World.Status.DupEnabled = false
	m.World.Status.DupEnabledAtUs = 0
	m.World.Status.DupEngagedAtUs = 0
	m.World.Unlock()
}

// RunRisk evaluates the prediction engine and, in TRAINING mode, only logs
// its advisory verdict without acting on it.
func (m *Machine) RunRisk() {
	m.World.Lock()
	globalRisk, recommendation := risk.Evaluate(m.World.Uplinks)
	m.World.Status.GlobalRisk = globalRisk
	m.World.Status.Recommendation = string(recommendation)
	mode := m.World.Status.Mode
	m.World.Unlock()

	if m.Metrics != nil {
		m.Metrics.GlobalRisk.Set(globalRisk)
	}
	if mode == model.ModeTraining {
		m.Logger.Event("training_verdict", map[string]interface{}{
			"global_risk": globalRisk, "recommendation": recommendation,
		})
	}
}
