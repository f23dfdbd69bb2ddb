// Package duplication installs and removes the packet-duplication rule that
// clones traffic egressing the active uplink onto a backup uplink's device,
// so the remote deduplicator sees no loss during a switch.
package duplication

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/pathsteer/pathsteerd/internal/clock"
	"github.com/pathsteer/pathsteerd/internal/telemetry"
)

// SettleMs is the minimum delay between enabling duplication and trusting it
// is carrying traffic, after which a switch may commit.
const SettleMs = 50

// Execer runs a shell command to completion, returning its combined error.
// Abstracted so tests can inject a fake instead of shelling out to nft(8).
type Execer interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ShellExecer runs commands via os/exec.
type ShellExecer struct{}

// Run executes name with args, discarding output and returning its error
// (callers treat errors as advisory except on Enable's install step).
func (ShellExecer) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// Controller enables and disables duplication in the service namespace.
// It is idempotent: Enable always tears down prior state before installing
// the new rule, and Disable always issues the teardown and clears the state,
// so repeated calls leave the same state (the teardown's error, e.g. when no
// table exists, is still returned).
type Controller struct {
	Exec      Execer
	Namespace string // isolation namespace carrying the dup rule, e.g. "ns_vip"

	Enabled     bool
	EnabledAtUs int64
	EngagedAtUs int64
}

// NewController builds a duplication controller for the given service namespace.
func NewController(exec Execer, namespace string) *Controller {
	return &Controller{Exec: exec, Namespace: namespace}
}

// Enable installs a duplication rule cloning traffic from srcDevice to
// dstGateway via dstDevice, overwriting any previously installed rule.
// It always resets EngagedAtUs to 0: the settle window must elapse again.
func (c *Controller) Enable(ctx context.Context, srcDevice, dstDevice, dstGateway string, logger *telemetry.Logger, metrics *telemetry.Metrics) error {
	start := clock.NowUs()

	_ = c.teardown(ctx) // best-effort: clear any stale table before installing

	if err := c.install(ctx, srcDevice, dstDevice, dstGateway); err != nil {
		if logger != nil {
			logger.Event("dup_enable_fail", map[string]interface{}{
				"src": srcDevice, "dst": dstDevice, "gw": dstGateway, "error": err.Error(),
			})
		}
		return err
	}

	c.Enabled = true
	c.EnabledAtUs = clock.NowUs()
	c.EngagedAtUs = 0

	elapsedUs := clock.NowUs() - start
	if logger != nil {
		logger.Event("dup_enable", map[string]interface{}{
			"src": srcDevice, "dst": dstDevice, "gw": dstGateway, "latency_us": elapsedUs,
		})
	}
	if metrics != nil {
		metrics.DupEnableLatencySecs.Observe(float64(elapsedUs) / 1e6)
	}
	return nil
}

// Disable removes the duplication rule and clears all duplication state.
func (c *Controller) Disable(ctx context.Context, logger *telemetry.Logger) error {
	err := c.teardown(ctx)
	c.Enabled = false
	c.EnabledAtUs = 0
	c.EngagedAtUs = 0
	if logger != nil {
		logger.Event("dup_disable", map[string]interface{}{"status": "disabled"})
	}
	return err
}

func (c *Controller) install(ctx context.Context, srcDevice, dstDevice, dstGateway string) error {
	script := fmt.Sprintf(
		"add table ip dup_table; "+
			"add chain ip dup_table dup { type filter hook prerouting priority 0; } ; "+
			"add rule ip dup_table dup iifname %q dup to %s device %q",
		srcDevice, dstGateway, dstDevice,
	)
	return c.Exec.Run(ctx, "ip", "netns", "exec", c.Namespace, "nft", script)
}

func (c *Controller) teardown(ctx context.Context) error {
	return c.Exec.Run(ctx, "ip", "netns", "exec", c.Namespace, "nft", "delete table ip dup_table")
}
