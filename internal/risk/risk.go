// Package risk implements the 4 Hz prediction engine: a per-uplink risk_now
// accumulator and a global recommendation derived from the worst active uplink.
package risk

import "github.com/pathsteer/pathsteerd/internal/model"

// Recommendation mirrors the protection state machine's entry states, used
// as the prediction engine's advisory output (and, in TRAINING mode, its
// sole output).
type Recommendation string

const (
	RecommendNormal  Recommendation = "NORMAL"
	RecommendPrepare Recommendation = "PREPARE"
	RecommendProtect Recommendation = "PROTECT"
)

// Evaluate recomputes risk_now for every enabled uplink and returns the
// global risk (max over active uplinks) plus the advisory recommendation.
// Callers must hold the world lock.
func Evaluate(uplinks []*model.Uplink) (globalRisk float64, recommendation Recommendation) {
	for _, u := range uplinks {
		if !u.Enabled {
			continue
		}
		u.RiskNow = score(u)
		if u.IsActive && u.RiskNow > globalRisk {
			globalRisk = u.RiskNow
		}
	}

	switch {
	case globalRisk >= 0.7:
		recommendation = RecommendProtect
	case globalRisk >= 0.4:
		recommendation = RecommendPrepare
	default:
		recommendation = RecommendNormal
	}
	return globalRisk, recommendation
}

func score(u *model.Uplink) float64 {
	risk := 0.0

	if u.RTTBaseline > 0 && u.RTTMs > 1.5*u.RTTBaseline {
		risk += 0.3
	}

	switch {
	case u.LossPct > 50:
		risk += 0.5
	case u.LossPct > 20:
		risk += 0.4
	case u.LossPct > 5:
		risk += 0.3
	}

	consec := u.ConsecFail
	if consec > 5 {
		consec = 5
	}
	risk += 0.2 * float64(consec)

	if u.Kind == model.KindSAT {
		risk += 0.01 * u.Satellite.ObstructionPct
	}
	if u.Kind == model.KindLTE && u.Cellular.RSRP < -110 {
		risk += 0.4
	}

	if risk > 1.0 {
		risk = 1.0
	}
	return risk
}
