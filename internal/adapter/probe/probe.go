// Package probe defines the RTT-probing interface the probe workers consume,
// and the two backends that implement it: a plain ping(8) shell-out and a
// Docker-sidecar exec for uplinks whose isolation namespace is a container.
package probe

import (
	"context"
	"time"
)

// Result is a single RTT/loss measurement, independent of how it was taken.
type Result struct {
	RTTMs   float64
	Success bool
}

// RTTProber issues a single-shot probe and reports the outcome. Real
// implementations invoke subprocesses with explicit timeouts; tests inject
// deterministic fakes, per the daemon's shell-out-adapters-as-interfaces rule.
type RTTProber interface {
	Probe(ctx context.Context, target string) (Result, error)
}

// Timeout bounds every probe invocation so a stalled helper never stalls the tick.
const Timeout = 2 * time.Second
