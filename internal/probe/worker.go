// Package probe runs one goroutine per uplink, issuing RTT probes at the
// configured sample rate and folding each result into the uplink's history,
// baseline, and availability, per the daemon's probe/health model. A worker
// skips its probe while its uplink is disabled.
package probe

import (
	"context"
	"math/rand"
	"time"

	"github.com/pathsteer/pathsteerd/internal/adapter/cellular"
	probeadapter "github.com/pathsteer/pathsteerd/internal/adapter/probe"
	"github.com/pathsteer/pathsteerd/internal/adapter/satellite"
	"github.com/pathsteer/pathsteerd/internal/clock"
	"github.com/pathsteer/pathsteerd/internal/model"
	"github.com/pathsteer/pathsteerd/internal/telemetry"
	"github.com/pathsteer/pathsteerd/internal/world"
)

// ProbeTarget is the fixed external address fiber/satellite uplinks probe
// from inside their own namespace.
const ProbeTarget = "8.8.8.8"

// ControllerAddress is the fixed address cellular uplinks probe through
// their raw physical interface.
const ControllerAddress = "104.204.136.13"

// CellularPoller parses cellular-monitor helper output into LTE metrics.
type CellularPoller interface {
	Poll(ctx context.Context, deviceIndex int, logicalName string, cellular *model.Cellular) error
}

// SatellitePoller parses dish-stats helper output into satellite metrics.
type SatellitePoller interface {
	Poll(ctx context.Context, namespace, dishIP string, sat *model.Satellite) error
}

// Worker drives one uplink's probe loop.
type Worker struct {
	World     *world.World
	Uplink    *model.Uplink
	Prober    probeadapter.RTTProber
	Cellular  CellularPoller
	Satellite SatellitePoller
	DishIP    string
	Interval  time.Duration
	Logger    *telemetry.Logger
	Metrics   *telemetry.Metrics
}

// NewWorker builds a probe worker for a single uplink using the plain shell
// prober, wiring in a cellular or satellite poller when the kind calls for one.
func NewWorker(w *world.World, u *model.Uplink, sampleRateHz int, logger *telemetry.Logger, metrics *telemetry.Metrics) *Worker {
	interval := time.Second / time.Duration(sampleRateHz)

	var prober probeadapter.RTTProber
	if u.Kind == model.KindLTE {
		prober = probeadapter.ShellProber{Interface: u.Interface}
	} else {
		prober = probeadapter.ShellProber{Namespace: u.Namespace}
	}

	worker := &Worker{
		World:    w,
		Uplink:   u,
		Prober:   prober,
		Interval: interval,
		Logger:   logger,
		Metrics:  metrics,
	}
	if u.Kind == model.KindLTE {
		worker.Cellular = cellular.NewPoller("/opt/pathsteer/scripts/cellular-monitor.sh")
	}
	if u.Kind == model.KindSAT {
		worker.Satellite = satellite.NewPoller("/opt/pathsteer/scripts/starlink-stats.sh")
		worker.DishIP = "192.168.100.1"
	}
	return worker
}

// Run drives the probe loop until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	w.World.Lock()
	enabled := w.Uplink.Enabled
	w.World.Unlock()
	if !enabled {
		return
	}

	target := ProbeTarget
	if w.Uplink.Kind == model.KindLTE {
		target = ControllerAddress
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeadapter.Timeout)
	result, _ := w.Prober.Probe(probeCtx, target)
	cancel()

	w.World.Lock()
	w.applyResult(result)
	w.World.Unlock()

	if w.Metrics != nil {
		outcome := "fail"
		if result.Success {
			outcome = "ok"
		}
		w.Metrics.ProbeTotal.WithLabelValues(w.Uplink.Name, outcome).Inc()
	}

	w.pollKindSpecific(ctx)
}

// applyResult implements the post-processing steps from the probe/health
// model: history append, baseline EMA, consec_fail/available bookkeeping,
// and loss recomputation. Caller must hold the world lock.
func (w *Worker) applyResult(result probeadapter.Result) {
	u := w.Uplink
	now := clock.NowUs()

	if result.Success {
		rtt := result.RTTMs + u.ChaosRTT + (rand.Float64()*2-1)*u.ChaosJitter
		u.RTTMs = rtt
		u.ConsecFail = 0
		if !u.ForceFailed {
			u.Available = true
		}
		u.ApplyBaseline(rtt)
	} else {
		u.ConsecFail++
		if u.ConsecFail > model.ConsecFailLimit {
			u.Available = false
		}
	}

	u.AppendSample(model.Sample{RTTMs: u.RTTMs, Success: result.Success, TimestampUs: now})
	u.RecomputeLoss()
}

func (w *Worker) pollKindSpecific(ctx context.Context) {
	switch w.Uplink.Kind {
	case model.KindLTE:
		if w.Cellular == nil {
			return
		}
		var c model.Cellular
		w.World.Lock()
		c = w.Uplink.Cellular
		w.World.Unlock()
		if err := w.Cellular.Poll(ctx, w.Uplink.ID, w.Uplink.Name, &c); err == nil {
			w.World.Lock()
			w.Uplink.Cellular = c
			w.World.Unlock()
		}
	case model.KindSAT:
		if w.Satellite == nil {
			return
		}
		var s model.Satellite
		w.World.Lock()
		s = w.Uplink.Satellite
		w.World.Unlock()
		if err := w.Satellite.Poll(ctx, w.Uplink.Namespace, w.DishIP, &s); err == nil {
			w.World.Lock()
			w.Uplink.Satellite = s
			w.World.Unlock()
		}
	}
}
