// Package controller assembles the daemon's main loop: probe workers,
// GPS/chaos ingestion, the prediction engine, the protection state machine,
// the command queue, and the status publisher. Probe workers run in their
// own goroutines; everything else is driven from one select loop over
// per-cadence tickers.
package controller

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pathsteer/pathsteerd/internal/adapter/chaos"
	"github.com/pathsteer/pathsteerd/internal/adapter/gps"
	"github.com/pathsteer/pathsteerd/internal/commandqueue"
	"github.com/pathsteer/pathsteerd/internal/config"
	"github.com/pathsteer/pathsteerd/internal/duplication"
	"github.com/pathsteer/pathsteerd/internal/model"
	"github.com/pathsteer/pathsteerd/internal/probe"
	"github.com/pathsteer/pathsteerd/internal/protection"
	"github.com/pathsteer/pathsteerd/internal/status"
	"github.com/pathsteer/pathsteerd/internal/switcher"
	"github.com/pathsteer/pathsteerd/internal/telemetry"
	"github.com/pathsteer/pathsteerd/internal/world"
)

// Tick cadences, matching the daemon's field-tuned loop rates.
const (
	gpsInterval    = time.Second
	riskInterval   = 250 * time.Millisecond
	statusInterval = 100 * time.Millisecond
	loopInterval   = 10 * time.Millisecond
)

// Controller owns every long-lived component and drives them from one loop.
type Controller struct {
	World     *world.World
	Cfg       *config.Config
	Logger    *telemetry.Logger
	Metrics   *telemetry.Metrics
	Machine   *protection.Machine
	Queue     *commandqueue.Queue
	Publisher *status.Publisher
	GPS       *gps.Reader
	Chaos     *chaos.Reader
	Workers   []*probe.Worker
}

// New builds a Controller from configuration, wiring every adapter, worker,
// and engine the daemon needs.
func New(cfg *config.Config, logger *telemetry.Logger, metrics *telemetry.Metrics) *Controller {
	uplinks := buildUplinks(cfg)
	mode, _ := model.ParseMode(cfg.Node.DefaultMode)

	st := &model.Status{
		Mode:  mode,
		State: model.StateNormal,
		RunID: logger.RunID(),
	}
	if len(uplinks) > 0 {
		uplinks[0].IsActive = true
		st.ActiveUplink = uplinks[0].Name
	}

	w := world.New(uplinks, st)

	routes := make(map[string]protection.UplinkRoute, len(uplinks))
	for _, u := range uplinks {
		routes[u.Name] = protection.UplinkRoute{VIPDevice: u.VIPDevice, VIPGateway: u.VIPGateway}
	}

	dup := duplication.NewController(duplication.ShellExecer{}, namespaceOf(cfg))
	swi := switcher.NewSwitcher(switcher.ShellRoute{}, switcher.DetachedScriptRunner{}, cfg.Controller.RouteSwitchScript)

	machine := &protection.Machine{
		World:     w,
		Cfg:       *cfg,
		Dup:       dup,
		Switch:    swi,
		Logger:    logger,
		Metrics:   metrics,
		Namespace: namespaceOf(cfg),
		Routes:    routes,
	}

	dispatcher := &CommandDispatcher{
		World:        w,
		Dup:          dup,
		Machine:      machine,
		Routes:       routes,
		Logger:       logger,
		Exec:         duplication.ShellExecer{},
		SwitchScript: cfg.Controller.SwitchScript,
	}

	queue := commandqueue.NewQueue(cfg.Paths.CommandDir, cfg.Paths.CommandFile, dispatcher, logger)

	workers := make([]*probe.Worker, 0, len(uplinks))
	for _, u := range uplinks {
		workers = append(workers, probe.NewWorker(w, u, cfg.Probe.SampleRateHz, logger, metrics))
	}

	return &Controller{
		World:     w,
		Cfg:       cfg,
		Logger:    logger,
		Metrics:   metrics,
		Machine:   machine,
		Queue:     queue,
		Publisher: status.NewPublisher(cfg.Paths.StatusFile),
		GPS:       gps.NewReader(cfg.Paths.GPSFile),
		Chaos:     chaos.NewReader(cfg.Paths.ChaosFile),
		Workers:   workers,
	}
}

func namespaceOf(cfg *config.Config) string {
	for _, u := range cfg.Uplinks {
		if u.Namespace != "" {
			return u.Namespace
		}
	}
	return "ns_vip"
}

func buildUplinks(cfg *config.Config) []*model.Uplink {
	names := make([]string, 0, len(cfg.Uplinks))
	for name := range cfg.Uplinks {
		names = append(names, name)
	}
	// Deterministic id assignment: sorted by name so config edits don't
	// silently reorder ids (and thus NextEnabledAvailable's wrap order).
	sortStrings(names)

	uplinks := make([]*model.Uplink, 0, len(names))
	for i, name := range names {
		uc := cfg.Uplinks[name]
		kind := model.KindFiber
		switch uc.Kind {
		case "lte", "cellular":
			kind = model.KindLTE
		case "sat", "starlink", "satellite":
			kind = model.KindSAT
		}
		uplinks = append(uplinks, &model.Uplink{
			ID:         i,
			Name:       name,
			Kind:       kind,
			Interface:  uc.Interface,
			Namespace:  uc.Namespace,
			VIPDevice:  uc.VIPDevice,
			VIPGateway: uc.VIPGateway,
			Enabled:    uc.Enabled,
			Available:  true,
		})
	}
	return uplinks
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// Run drives the scheduler until ctx is cancelled, then performs a graceful
// shutdown: a final status write and duplication teardown.
func (c *Controller) Run(ctx context.Context) {
	for _, w := range c.Workers {
		go w.Run(ctx)
	}

	gpsTicker := time.NewTicker(gpsInterval)
	riskTicker := time.NewTicker(riskInterval)
	statusTicker := time.NewTicker(statusInterval)
	loopTicker := time.NewTicker(loopInterval)
	defer gpsTicker.Stop()
	defer riskTicker.Stop()
	defer statusTicker.Stop()
	defer loopTicker.Stop()

	c.Logger.Event("controller_start", map[string]interface{}{"run_id": c.Logger.RunID(), "node": c.Cfg.Node.ID})

	for {
		select {
		case <-ctx.Done():
			c.shutdown(ctx)
			return
		case <-gpsTicker.C:
			fix := c.GPS.Read()
			c.World.Lock()
			c.World.Status.GPS = fix
			c.World.Unlock()
		case <-riskTicker.C:
			c.Machine.RunRisk()
		case <-statusTicker.C:
			_ = c.Publisher.Publish(c.World)
		case <-loopTicker.C:
			overrides := c.Chaos.Read()
			c.World.Lock()
			for _, u := range c.World.Uplinks {
				if o, ok := overrides[u.Name]; ok {
					u.ChaosRTT, u.ChaosJitter, u.ChaosLoss = o.RTT, o.Jitter, o.Loss
				} else {
					u.ChaosRTT, u.ChaosJitter, u.ChaosLoss = 0, 0, 0
				}
			}
			c.World.Unlock()

			c.Queue.Process(ctx)
			c.Machine.Tick(ctx)
		}
	}
}

func (c *Controller) shutdown(ctx context.Context) {
	c.World.Lock()
	dupEnabled := c.World.Status.DupEnabled
	c.World.Unlock()

	if dupEnabled {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = c.Machine.Dup.Disable(shutdownCtx, c.Logger)
		cancel()
	}

	_ = c.Publisher.Publish(c.World)
	c.Logger.Event("controller_stop", map[string]interface{}{"run_id": c.Logger.RunID()})
}

// NewRunID generates a fresh run identifier for a daemon invocation.
func NewRunID() string {
	return uuid.NewString()
}
