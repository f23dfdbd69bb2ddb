// Package switcher actuates uplink switches: a two-phase commit over OS
// routing (replace, then verify) with an async, fire-and-forget controller
// route-switch invocation on success.
package switcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/pathsteer/pathsteerd/internal/telemetry"
)

// RouteActuator replaces and verifies the default route in the service
// namespace. Abstracted so tests can inject deterministic success/failure.
type RouteActuator interface {
	Replace(ctx context.Context, namespace, gateway, device string) error
	Verify(ctx context.Context, namespace, gateway, device string) (bool, error)
}

// ScriptRunner invokes a detached helper script, without waiting on it.
type ScriptRunner interface {
	RunDetached(scriptPath string, args ...string)
}

// Result describes the outcome of one switch attempt.
type Result struct {
	Committed bool
	FromName  string
	ToName    string
}

// Switcher actuates a verified route change and reports whether it committed.
type Switcher struct {
	Route             RouteActuator
	Script            ScriptRunner
	RouteSwitchScript string
}

// NewSwitcher builds a switcher over the given route actuator.
func NewSwitcher(route RouteActuator, script ScriptRunner, routeSwitchScript string) *Switcher {
	return &Switcher{Route: route, Script: script, RouteSwitchScript: routeSwitchScript}
}

// Execute replaces the default route to target's gateway/device, verifies
// it landed, and on success fires the controller-side return-route script
// asynchronously. It never mutates caller state; the caller applies Result.
func (s *Switcher) Execute(ctx context.Context, namespace, fromName, toName, gateway, device string, logger *telemetry.Logger, metrics *telemetry.Metrics) Result {
	logger.Event("switch", map[string]interface{}{
		"from": fromName, "to": toName, "vip_dev": device, "vip_gw": gateway,
	})

	if err := s.Route.Replace(ctx, namespace, gateway, device); err != nil {
		logger.Event("switch_fail", map[string]interface{}{
			"target": toName, "vip_dev": device, "reason": "route_replace_failed", "error": err.Error(),
		})
		if metrics != nil {
			metrics.SwitchTotal.WithLabelValues("fail").Inc()
		}
		return Result{Committed: false, FromName: fromName, ToName: toName}
	}

	ok, err := s.Route.Verify(ctx, namespace, gateway, device)
	if err != nil || !ok {
		logger.Event("switch_fail", map[string]interface{}{
			"target": toName, "vip_dev": device, "reason": "ns_vip_route_verify_failed",
		})
		if metrics != nil {
			metrics.SwitchTotal.WithLabelValues("fail").Inc()
		}
		return Result{Committed: false, FromName: fromName, ToName: toName}
	}

	if s.Script != nil && s.RouteSwitchScript != "" {
		s.Script.RunDetached(s.RouteSwitchScript, toName)
	}

	logger.Event("switch_ok", map[string]interface{}{"from": fromName, "to": toName, "vip_dev": device})
	if metrics != nil {
		metrics.SwitchTotal.WithLabelValues("ok").Inc()
	}
	return Result{Committed: true, FromName: fromName, ToName: toName}
}

// ShellRoute actuates via "ip route replace"/"ip route show" inside a netns.
type ShellRoute struct{}

func (ShellRoute) Replace(ctx context.Context, namespace, gateway, device string) error {
	return runCommand(ctx, "ip", "netns", "exec", namespace, "ip", "route", "replace", "default", "via", gateway, "dev", device)
}

func (ShellRoute) Verify(ctx context.Context, namespace, gateway, device string) (bool, error) {
	out, err := runCommandOutput(ctx, "ip", "netns", "exec", namespace, "ip", "route", "show", "default")
	if err != nil {
		return false, err
	}
	want := fmt.Sprintf("via %s dev %s", gateway, device)
	return strings.Contains(string(out), want), nil
}

// DetachedScriptRunner launches a script and does not wait for it, matching
// the daemon's "controller-route-switch.sh &" fire-and-forget contract. The
// script's own failure mode (e.g. asymmetric routing) is left undefined, per
// the daemon's design notes.
type DetachedScriptRunner struct{}

func (DetachedScriptRunner) RunDetached(scriptPath string, args ...string) {
	runDetached(scriptPath, args...)
}
