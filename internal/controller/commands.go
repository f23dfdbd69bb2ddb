package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/pathsteer/pathsteerd/internal/duplication"
	"github.com/pathsteer/pathsteerd/internal/model"
	"github.com/pathsteer/pathsteerd/internal/protection"
	"github.com/pathsteer/pathsteerd/internal/telemetry"
	"github.com/pathsteer/pathsteerd/internal/world"
)

// CommandDispatcher executes one operator command line against the world,
// implementing commandqueue.Dispatcher.
type CommandDispatcher struct {
	World        *world.World
	Dup          *duplication.Controller
	Machine      *protection.Machine
	Routes       map[string]protection.UplinkRoute
	Logger       *telemetry.Logger
	Exec         duplication.Execer
	SwitchScript string // controller-PoP switch helper; empty disables c8000:
}

// Dispatch parses and executes a single command line, recording the outcome
// into Status.LastCmd and returning it for the queue's cmd_result log.
func (d *CommandDispatcher) Dispatch(ctx context.Context, cmd, cmdID string) (string, string) {
	result, detail := d.execute(ctx, cmd)

	d.World.Lock()
	d.World.Status.LastCmd = model.LastCommand{ID: cmdID, Result: result, Detail: detail}
	d.World.Unlock()

	return result.String(), detail
}

func (d *CommandDispatcher) execute(ctx context.Context, cmd string) (model.CommandResult, string) {
	verb, arg, _ := strings.Cut(strings.TrimSpace(cmd), ":")

	switch verb {
	case "mode":
		return d.cmdMode(ctx, arg)
	case "force":
		return d.cmdForce(ctx, arg)
	case "trigger":
		return d.cmdTrigger(ctx)
	case "c8000":
		return d.cmdC8000(ctx, arg)
	case "enable":
		return d.cmdSetEnabled(arg, true)
	case "disable":
		return d.cmdSetEnabled(arg, false)
	case "fail":
		return d.cmdSetFailed(arg, true)
	case "unfail":
		return d.cmdSetFailed(arg, false)
	default:
		return model.CommandFail, fmt.Sprintf("unknown command %q", cmd)
	}
}

func (d *CommandDispatcher) cmdMode(ctx context.Context, arg string) (model.CommandResult, string) {
	mode, ok := model.ParseMode(arg)
	if !ok {
		return model.CommandFail, fmt.Sprintf("unknown mode %q", arg)
	}

	d.World.Lock()
	d.World.Status.Mode = mode
	d.World.Unlock()

	switch mode {
	case model.ModeMirror:
		d.engageMirror(ctx)
	case model.ModeTraining, model.ModeTripwire:
		d.Machine.DisableDuplication(ctx)
	}

	return model.CommandExec, fmt.Sprintf("mode=%s", mode)
}

// engageMirror installs a standing duplication rule from the active uplink to
// the second uplink in id order, the daemon's fixed MIRROR-mode peer (an
// operator decision, not a tripwire verdict — see DESIGN.md).
func (d *CommandDispatcher) engageMirror(ctx context.Context) {
	d.World.Lock()
	active := d.World.Active()
	peer := d.World.ByID(1)
	d.World.Unlock()

	if active == nil || peer == nil || active.Name == peer.Name {
		return
	}

	srcRoute := d.Routes[active.Name]
	dstRoute := d.Routes[peer.Name]
	if err := d.Dup.Enable(ctx, srcRoute.VIPDevice, dstRoute.VIPDevice, dstRoute.VIPGateway, d.Logger, nil); err == nil {
		d.World.Lock()
		d.World.Status.DupEnabled = true
		d.World.Status.DupEnabledAtUs = d.Dup.EnabledAtUs
		d.World.Status.DupEngagedAtUs = 0
		d.World.Unlock()
	}
}

// cmdForce pins an uplink active or, for "auto", releases the lock and lets
// arbitration resume. Both paths route through the Machine so active_uplink
// only changes once the two-phase switch actuator verifies it landed.
func (d *CommandDispatcher) cmdForce(ctx context.Context, arg string) (model.CommandResult, string) {
	if arg == "auto" {
		d.Machine.ForceAuto(ctx)
		return model.CommandExec, "force=auto"
	}

	ok, detail := d.Machine.ForceTo(ctx, arg)
	if !ok {
		return model.CommandFail, detail
	}
	return model.CommandExec, detail
}

// cmdTrigger enters protection through the same fast-path entry a tripwire
// uses, so duplication is installed before the slow path is ever allowed to
// arbitrate a switch.
func (d *CommandDispatcher) cmdTrigger(ctx context.Context) (model.CommandResult, string) {
	d.Machine.Trigger(ctx, "operator trigger command")
	return model.CommandExec, "trigger=manual"
}

// cmdC8000 invokes the controller-PoP switch helper and, on success, records
// the new active_controller index. A missing helper script fails the
// command rather than silently flipping state the actuation never performed.
func (d *CommandDispatcher) cmdC8000(ctx context.Context, arg string) (model.CommandResult, string) {
	if d.SwitchScript == "" {
		return model.CommandFail, "c8000 switch script not configured"
	}

	var target int
	switch arg {
	case "0":
		target = 0
	case "1":
		target = 1
	default:
		return model.CommandFail, fmt.Sprintf("c8000 expects 0 or 1, got %q", arg)
	}

	if err := d.Exec.Run(ctx, d.SwitchScript, arg); err != nil {
		d.Logger.Event("c8000_switch_fail", map[string]interface{}{"target": target, "error": err.Error()})
		return model.CommandFail, fmt.Sprintf("controller switch failed: %v", err)
	}

	d.World.Lock()
	d.World.Status.ActiveController = target
	d.World.Unlock()

	d.Logger.Event("c8000_switch", map[string]interface{}{"active_controller": target})
	return model.CommandExec, fmt.Sprintf("active_controller=%d", target)
}

func (d *CommandDispatcher) cmdSetEnabled(name string, enabled bool) (model.CommandResult, string) {
	d.World.Lock()
	defer d.World.Unlock()

	u := d.World.ByName(name)
	if u == nil {
		return model.CommandFail, fmt.Sprintf("unknown uplink %q", name)
	}
	u.Enabled = enabled
	return model.CommandExec, fmt.Sprintf("enabled(%s)=%v", name, enabled)
}

// forcedFailConsecFail is the sentinel consec_fail value an operator-forced
// failure sets, well past ConsecFailLimit, so the uplink reads as failed
// everywhere that inspects consec_fail.
const forcedFailConsecFail = 10

func (d *CommandDispatcher) cmdSetFailed(name string, failed bool) (model.CommandResult, string) {
	d.World.Lock()
	defer d.World.Unlock()

	u := d.World.ByName(name)
	if u == nil {
		return model.CommandFail, fmt.Sprintf("unknown uplink %q", name)
	}
	u.ForceFailed = failed
	if failed {
		u.Available = false
		u.ConsecFail = forcedFailConsecFail
	} else {
		u.Available = true
		u.ConsecFail = 0
	}
	return model.CommandExec, fmt.Sprintf("force_failed(%s)=%v", name, failed)
}
