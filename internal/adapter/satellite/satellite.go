// Package satellite parses the dish-stats helper's JSON payload into
// satellite metrics. Polled on every tick, unlike the cellular adapter.
package satellite

import (
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/pathsteer/pathsteerd/internal/model"
)

// ObstructionThreshold is the fraction above which a dish is considered obstructed.
const ObstructionThreshold = 0.10

type payload struct {
	LatencyMs      float64 `json:"latency_ms"`
	Obstruction    float64 `json:"obstruction"`
	SNROk          bool    `json:"snr_ok"`
	DownlinkBps    float64 `json:"downlink_bps"`
	UplinkBps      float64 `json:"uplink_bps"`
	State          string  `json:"state"`
	ObstructionETA float64 `json:"obstruction_eta_sec"`
}

// Poller invokes the dish-stats helper and parses its JSON output.
type Poller struct {
	HelperPath string
}

// NewPoller builds a satellite poller bound to the given helper script.
func NewPoller(helperPath string) *Poller {
	return &Poller{HelperPath: helperPath}
}

// Poll runs the helper and merges the parsed fields into satellite.
func (p *Poller) Poll(ctx context.Context, namespace, dishIP string, satellite *model.Satellite) error {
	cmd := exec.CommandContext(ctx, p.HelperPath, namespace, dishIP)
	out, err := cmd.Output()
	if err != nil {
		satellite.Connected = false
		return nil //nolint:nilerr // helper failure means missing data, not fatal
	}

	var pl payload
	if err := json.Unmarshal(out, &pl); err != nil {
		satellite.Connected = false
		return nil //nolint:nilerr // malformed payload is treated the same as missing data
	}

	satellite.Connected = true
	satellite.TimestampUs = time.Now().UnixMicro()
	satellite.LatencyMs = pl.LatencyMs
	satellite.DownlinkMbps = pl.DownlinkBps / 1e6
	satellite.UplinkMbps = pl.UplinkBps / 1e6
	satellite.State = pl.State
	satellite.Online = pl.SNROk
	satellite.ObstructionPct = pl.Obstruction * 100
	satellite.Obstructed = pl.Obstruction > ObstructionThreshold
	satellite.ObstructionETA = pl.ObstructionETA
	return nil
}
