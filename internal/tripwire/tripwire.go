// Package tripwire implements the fast-path detector: a stateless,
// first-match-wins predicate evaluated each tick against the active uplink.
package tripwire

import (
	"fmt"

	"github.com/pathsteer/pathsteerd/internal/config"
	"github.com/pathsteer/pathsteerd/internal/model"
)

// Check evaluates the tripwire against the active uplink, returning the
// first matching trigger (or TriggerNone) and a human-readable detail.
func Check(active *model.Uplink, cfg config.TripwireConfig) (model.Trigger, string) {
	if active == nil || !active.Enabled || !active.Available {
		return model.TriggerLinkDown, "active uplink unavailable or disabled"
	}

	if active.HistoryWrites() >= 5 {
		if trig, detail, ok := checkRTTStep(active, cfg); ok {
			return trig, detail
		}
	}

	if active.ConsecFail >= cfg.ProbeMissCount {
		return model.TriggerProbeMiss, fmt.Sprintf("consec_fail=%d", active.ConsecFail)
	}

	if active.Kind == model.KindLTE && active.Cellular.RSRP < cfg.RSRPDropDBm {
		return model.TriggerRSRPDrop, fmt.Sprintf("rsrp=%.1f", active.Cellular.RSRP)
	}

	if active.Kind == model.KindSAT {
		if active.Satellite.Obstructed {
			return model.TriggerStarlinkObstr, "obstructed"
		}
		if active.Satellite.ObstructionETA > 0 && active.Satellite.ObstructionETA < 5 {
			return model.TriggerStarlinkObstr, fmt.Sprintf("obstruction_eta=%.1fs", active.Satellite.ObstructionETA)
		}
	}

	return model.TriggerNone, ""
}

// checkRTTStep averages the last three successful samples and compares the
// step above baseline to the configured threshold.
func checkRTTStep(active *model.Uplink, cfg config.TripwireConfig) (model.Trigger, string, bool) {
	var sum float64
	count := 0
	for i := 0; i < active.HistoryLen() && count < 3; i++ {
		s := active.RecentSample(i)
		if s.Success {
			sum += s.RTTMs
			count++
		}
	}
	if count == 0 {
		return model.TriggerNone, "", false
	}

	avg := sum / float64(count)
	step := avg - active.RTTBaseline
	if step >= cfg.RTTStepMs {
		return model.TriggerRTTStep, fmt.Sprintf("step=%.1fms baseline=%.1fms", step, active.RTTBaseline), true
	}
	return model.TriggerNone, "", false
}
