// Package status publishes the controller's current snapshot to a JSON file
// via temp-write + fsync + atomic rename, so readers always observe a
// complete document.
package status

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pathsteer/pathsteerd/internal/model"
	"github.com/pathsteer/pathsteerd/internal/world"
)

// Document is the JSON shape written to the status file.
type Document struct {
	Mode               string            `json:"mode"`
	State              string            `json:"state"`
	Trigger            string            `json:"trigger"`
	TriggerDetail      string            `json:"trigger_detail"`
	ActiveUplink       string            `json:"active_uplink"`
	ActiveController   int               `json:"active_controller"`
	ForceLocked        bool              `json:"force_locked"`
	DupEnabled         bool              `json:"dup_enabled"`
	HoldRemaining      int               `json:"hold_remaining"`
	CleanRemaining     int               `json:"clean_remaining"`
	SwitchesThisWindow int               `json:"switches_this_window"`
	FlapSuppressed     bool              `json:"flap_suppressed"`
	GlobalRisk         float64           `json:"global_risk"`
	Recommendation     string            `json:"recommendation"`
	RunID              string            `json:"run_id"`
	LastCmd            lastCmdDoc        `json:"last_cmd"`
	GPS                gpsDoc            `json:"gps"`
	Uplinks            []uplinkDoc       `json:"uplinks"`
}

type lastCmdDoc struct {
	ID     string `json:"id"`
	Result string `json:"result"`
	Detail string `json:"detail"`
}

type gpsDoc struct {
	Valid    bool    `json:"valid"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	SpeedMph float64 `json:"speed_mph"`
	Heading  float64 `json:"heading"`
}

type uplinkDoc struct {
	Name       string         `json:"name"`
	Enabled    bool           `json:"enabled"`
	Available  bool           `json:"available"`
	Active     bool           `json:"active"`
	RTTMs      float64        `json:"rtt_ms"`
	RTTBase    float64        `json:"rtt_baseline"`
	LossPct    float64        `json:"loss_pct"`
	RiskNow    float64        `json:"risk_now"`
	ConsecFail int            `json:"consec_fail"`
	Cellular   *cellularDoc   `json:"cellular,omitempty"`
	Satellite  *satelliteDoc  `json:"starlink,omitempty"`
}

type cellularDoc struct {
	RSRP    float64 `json:"rsrp"`
	SINR    float64 `json:"sinr"`
	Carrier string  `json:"carrier"`
}

type satelliteDoc struct {
	State          string  `json:"state"`
	Latency        float64 `json:"latency"`
	Obstructed     bool    `json:"obstructed"`
	ObstructionPct float64 `json:"obstruction_pct"`
	ETA            float64 `json:"eta"`
}

// Publisher writes the status snapshot to a fixed path via temp+rename.
type Publisher struct {
	Path string
}

// NewPublisher builds a publisher for the given canonical status path.
func NewPublisher(path string) *Publisher {
	return &Publisher{Path: path}
}

// Publish serialises the current world state and atomically replaces the
// canonical status file. It takes the world lock itself while building the
// snapshot, so callers must not hold it; the file write itself happens
// outside any lock.
func (p *Publisher) Publish(w *world.World) error {
	doc := snapshot(w)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := p.Path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return err
	}
	return os.Rename(tmp, p.Path)
}

func snapshot(w *world.World) Document {
	w.Lock()
	defer w.Unlock()

	s := w.Status
	doc := Document{
		Mode:               s.Mode.String(),
		State:              s.State.String(),
		Trigger:            s.LastTrigger.String(),
		TriggerDetail:      s.TriggerDetail,
		ActiveUplink:       s.ActiveUplink,
		ActiveController:   s.ActiveController,
		ForceLocked:        s.ForceLocked,
		DupEnabled:         s.DupEnabled,
		HoldRemaining:      s.HoldRemainingSec,
		CleanRemaining:     s.CleanRemainingSec,
		SwitchesThisWindow: s.SwitchesThisWindow,
		FlapSuppressed:     s.FlapSuppressed,
		GlobalRisk:         s.GlobalRisk,
		Recommendation:     s.Recommendation,
		RunID:              s.RunID,
		LastCmd: lastCmdDoc{
			ID:     s.LastCmd.ID,
			Result: s.LastCmd.Result.String(),
			Detail: s.LastCmd.Detail,
		},
		GPS: gpsDoc{
			Valid:    s.GPS.Valid,
			Lat:      s.GPS.Latitude,
			Lon:      s.GPS.Longitude,
			SpeedMph: s.GPS.SpeedMph,
			Heading:  s.GPS.Heading,
		},
	}

	for _, u := range w.Uplinks {
		ud := uplinkDoc{
			Name:       u.Name,
			Enabled:    u.Enabled,
			Available:  u.Available,
			Active:     u.IsActive,
			RTTMs:      u.RTTMs,
			RTTBase:    u.RTTBaseline,
			LossPct:    u.LossPct,
			RiskNow:    u.RiskNow,
			ConsecFail: u.ConsecFail,
		}
		if u.Kind == model.KindLTE {
			ud.Cellular = &cellularDoc{RSRP: u.Cellular.RSRP, SINR: u.Cellular.SINR, Carrier: u.Cellular.Carrier}
		}
		if u.Kind == model.KindSAT {
			ud.Satellite = &satelliteDoc{
				State: u.Satellite.State, Latency: u.Satellite.LatencyMs,
				Obstructed: u.Satellite.Obstructed, ObstructionPct: u.Satellite.ObstructionPct,
				ETA: u.Satellite.ObstructionETA,
			}
		}
		doc.Uplinks = append(doc.Uplinks, ud)
	}

	return doc
}
