package tripwire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pathsteer/pathsteerd/internal/config"
	"github.com/pathsteer/pathsteerd/internal/model"
	"github.com/pathsteer/pathsteerd/internal/tripwire"
)

func baseCfg() config.TripwireConfig {
	return config.Default().Tripwire
}

func warmedUplink(kind model.Kind) *model.Uplink {
	u := &model.Uplink{Kind: kind, Enabled: true, Available: true}
	for i := 0; i < 10; i++ {
		u.AppendSample(model.Sample{RTTMs: 40, Success: true})
	}
	u.RTTBaseline = 40
	return u
}

func TestCheckLinkDownWhenNilOrUnavailable(t *testing.T) {
	trig, _ := tripwire.Check(nil, baseCfg())
	assert.Equal(t, model.TriggerLinkDown, trig)

	u := &model.Uplink{Enabled: true, Available: false}
	trig, _ = tripwire.Check(u, baseCfg())
	assert.Equal(t, model.TriggerLinkDown, trig)
}

func TestCheckRTTStepFires(t *testing.T) {
	u := warmedUplink(model.KindFiber)
	cfg := baseCfg()
	u.AppendSample(model.Sample{RTTMs: 40 + cfg.RTTStepMs, Success: true})
	u.AppendSample(model.Sample{RTTMs: 40 + cfg.RTTStepMs, Success: true})
	u.AppendSample(model.Sample{RTTMs: 40 + cfg.RTTStepMs, Success: true})

	trig, detail := tripwire.Check(u, cfg)
	assert.Equal(t, model.TriggerRTTStep, trig)
	assert.NotEmpty(t, detail)
}

func TestCheckRTTStepDoesNotFireBelowHistoryFloor(t *testing.T) {
	u := &model.Uplink{Kind: model.KindFiber, Enabled: true, Available: true, RTTBaseline: 40}
	cfg := baseCfg()
	u.AppendSample(model.Sample{RTTMs: 40 + cfg.RTTStepMs, Success: true})

	trig, _ := tripwire.Check(u, cfg)
	assert.Equal(t, model.TriggerNone, trig)
}

func TestCheckProbeMissFires(t *testing.T) {
	u := warmedUplink(model.KindFiber)
	u.ConsecFail = baseCfg().ProbeMissCount

	trig, _ := tripwire.Check(u, baseCfg())
	assert.Equal(t, model.TriggerProbeMiss, trig)
}

func TestCheckRSRPDropFiresOnlyForLTE(t *testing.T) {
	cfg := baseCfg()

	u := warmedUplink(model.KindLTE)
	u.Cellular.RSRP = cfg.RSRPDropDBm - 1

	trig, _ := tripwire.Check(u, cfg)
	assert.Equal(t, model.TriggerRSRPDrop, trig)

	sat := warmedUplink(model.KindSAT)
	sat.Cellular.RSRP = cfg.RSRPDropDBm - 1 // irrelevant field for this kind
	trig, _ = tripwire.Check(sat, cfg)
	assert.NotEqual(t, model.TriggerRSRPDrop, trig)
}

func TestCheckStarlinkObstructionFiresOnObstructedOrImminentETA(t *testing.T) {
	cfg := baseCfg()

	obstructed := warmedUplink(model.KindSAT)
	obstructed.Satellite.Obstructed = true
	trig, _ := tripwire.Check(obstructed, cfg)
	assert.Equal(t, model.TriggerStarlinkObstr, trig)

	imminent := warmedUplink(model.KindSAT)
	imminent.Satellite.ObstructionETA = 2
	trig, _ = tripwire.Check(imminent, cfg)
	assert.Equal(t, model.TriggerStarlinkObstr, trig)

	farOff := warmedUplink(model.KindSAT)
	farOff.Satellite.ObstructionETA = 30
	trig, _ = tripwire.Check(farOff, cfg)
	assert.Equal(t, model.TriggerNone, trig)
}

func TestCheckNoneWhenHealthy(t *testing.T) {
	u := warmedUplink(model.KindFiber)
	trig, _ := tripwire.Check(u, baseCfg())
	assert.Equal(t, model.TriggerNone, trig)
}

func TestFirstMatchWinsOverLowerPriorityTriggers(t *testing.T) {
	// An uplink with a probe-miss streak AND an RTT step should report the
	// RTT step, since rtt_step is checked first.
	u := warmedUplink(model.KindFiber)
	cfg := baseCfg()
	u.AppendSample(model.Sample{RTTMs: 40 + cfg.RTTStepMs, Success: true})
	u.AppendSample(model.Sample{RTTMs: 40 + cfg.RTTStepMs, Success: true})
	u.AppendSample(model.Sample{RTTMs: 40 + cfg.RTTStepMs, Success: true})
	u.ConsecFail = cfg.ProbeMissCount

	trig, _ := tripwire.Check(u, cfg)
	assert.Equal(t, model.TriggerRTTStep, trig)
}
