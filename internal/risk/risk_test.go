package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pathsteer/pathsteerd/internal/model"
	"github.com/pathsteer/pathsteerd/internal/risk"
)

func TestEvaluateHealthyFleetIsNormal(t *testing.T) {
	uplinks := []*model.Uplink{
		{Name: "a", Enabled: true, IsActive: true, RTTBaseline: 40, RTTMs: 42},
		{Name: "b", Enabled: true, RTTBaseline: 40, RTTMs: 41},
	}

	globalRisk, rec := risk.Evaluate(uplinks)
	assert.Equal(t, 0.0, globalRisk)
	assert.Equal(t, risk.RecommendNormal, rec)
}

func TestEvaluateOnlyConsidersActiveForGlobalRisk(t *testing.T) {
	uplinks := []*model.Uplink{
		{Name: "active", Enabled: true, IsActive: true, RTTBaseline: 40, RTTMs: 40},
		{Name: "backup", Enabled: true, LossPct: 60}, // high risk but not active
	}

	globalRisk, rec := risk.Evaluate(uplinks)
	assert.Equal(t, 0.0, globalRisk)
	assert.Equal(t, risk.RecommendNormal, rec)

	// risk_now is still populated on every enabled uplink, active or not.
	assert.Greater(t, uplinks[1].RiskNow, 0.0)
}

func TestEvaluateHighLossDrivesProtectRecommendation(t *testing.T) {
	uplinks := []*model.Uplink{
		{Name: "active", Enabled: true, IsActive: true, LossPct: 80, ConsecFail: 6},
	}

	globalRisk, rec := risk.Evaluate(uplinks)
	assert.Equal(t, 1.0, globalRisk)
	assert.Equal(t, risk.RecommendProtect, rec)
}

func TestEvaluateSkipsDisabledUplinks(t *testing.T) {
	uplinks := []*model.Uplink{
		{Name: "active", Enabled: true, IsActive: true},
		{Name: "disabled", Enabled: false, LossPct: 90},
	}

	risk.Evaluate(uplinks)
	assert.Equal(t, 0.0, uplinks[1].RiskNow, "disabled uplinks must not have risk_now recomputed")
}

func TestEvaluateCellularRSRPContributesRisk(t *testing.T) {
	u := &model.Uplink{Name: "cell", Enabled: true, IsActive: true, Kind: model.KindLTE}
	u.Cellular.RSRP = -115

	globalRisk, _ := risk.Evaluate([]*model.Uplink{u})
	assert.InDelta(t, 0.4, globalRisk, 0.0001)
}
