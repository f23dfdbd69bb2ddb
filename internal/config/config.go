// Package config loads pathsteerd's YAML configuration: node identity,
// tripwire thresholds, switching parameters, and per-uplink enablement.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration, read once at startup.
type Config struct {
	Node       NodeConfig       `yaml:"node"`
	Tripwire   TripwireConfig   `yaml:"tripwire"`
	Switching  SwitchingConfig  `yaml:"switching"`
	Probe      ProbeConfig      `yaml:"probe"`
	Paths      PathsConfig      `yaml:"paths"`
	Controller ControllerConfig `yaml:"controller"`
	Uplinks    map[string]UplinkConfig `yaml:"uplinks"`
}

// NodeConfig identifies this edge device and its starting mode.
type NodeConfig struct {
	ID          string `yaml:"id"`
	DefaultMode string `yaml:"default_mode"`
}

// TripwireConfig holds the fast-path trigger thresholds.
type TripwireConfig struct {
	RTTStepMs         float64 `yaml:"rtt_step_threshold_ms"`
	RTTWindowMs       int     `yaml:"rtt_step_window_ms"`
	ProbeMissCount    int     `yaml:"probe_miss_count"`
	ProbeMissWindowMs int     `yaml:"probe_miss_window_ms"`
	RSRPDropDBm       float64 `yaml:"rsrp_drop_threshold_db"`
	SINRDropDB        float64 `yaml:"sinr_drop_threshold_db"`
}

// SwitchingConfig holds the slow-path arbitration timers.
type SwitchingConfig struct {
	PrerollMs    int `yaml:"preroll_ms"`
	MinHoldSec   int `yaml:"min_hold_sec"`
	CleanExitSec int `yaml:"clean_exit_sec"`
}

// ProbeConfig controls probe cadence.
type ProbeConfig struct {
	SampleRateHz int `yaml:"sample_rate_hz"`
}

// PathsConfig holds filesystem locations for the daemon's external interfaces.
type PathsConfig struct {
	StatusFile  string `yaml:"status_file"`
	CommandFile string `yaml:"command_file"`
	CommandDir  string `yaml:"command_dir"`
	ChaosFile   string `yaml:"chaos_file"`
	GPSFile     string `yaml:"gps_file"`
	LogDir      string `yaml:"log_dir"`
}

// ControllerConfig holds the paths of the controller-switch and
// controller-route-switch helper scripts.
type ControllerConfig struct {
	SwitchScript      string `yaml:"switch_script"`
	RouteSwitchScript string `yaml:"route_switch_script"`
}

// UplinkConfig is the per-uplink entry in the config file: identity fields
// mirror model.Uplink's fixed-at-init portion, plus operator enablement.
type UplinkConfig struct {
	Kind      string `yaml:"kind"`
	Interface string `yaml:"interface"`
	Namespace string `yaml:"namespace"`
	VIPDevice string `yaml:"vip_device"`
	VIPGateway string `yaml:"vip_gateway"`
	Enabled   bool   `yaml:"enabled"`
}

// Default returns the built-in defaults, matching the thresholds pathsteerd
// has shipped with in the field.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ID:          "edge-01",
			DefaultMode: "tripwire",
		},
		Tripwire: TripwireConfig{
			RTTStepMs:         80,
			RTTWindowMs:       200,
			ProbeMissCount:    2,
			ProbeMissWindowMs: 300,
			RSRPDropDBm:       -120,
			SINRDropDB:        6,
		},
		Switching: SwitchingConfig{
			PrerollMs:    500,
			MinHoldSec:   3,
			CleanExitSec: 2,
		},
		Probe: ProbeConfig{
			SampleRateHz: 10,
		},
		Paths: PathsConfig{
			StatusFile:  "/run/pathsteer/status.json",
			CommandFile: "/run/pathsteer/command",
			CommandDir:  "/run/pathsteer/cmdq",
			ChaosFile:   "/run/pathsteer/chaos.json",
			GPSFile:     "/run/pathsteer/gps.json",
			LogDir:      "/var/lib/pathsteer/logs",
		},
		Controller: ControllerConfig{
			SwitchScript:      "/opt/pathsteer/scripts/c8000-switch.sh",
			RouteSwitchScript: "/opt/pathsteer/scripts/controller-route-switch.sh",
		},
	}
}

// Load reads and parses a YAML config file. A missing file is fatal: the
// caller is expected to exit non-zero, per the daemon's error-handling policy.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks invariants the loader cannot express structurally.
func (c *Config) Validate() error {
	if c.Node.ID == "" {
		return fmt.Errorf("node.id is required")
	}
	if c.Probe.SampleRateHz <= 0 {
		return fmt.Errorf("probe.sample_rate_hz must be positive")
	}
	if len(c.Uplinks) == 0 {
		return fmt.Errorf("at least one uplink must be configured")
	}
	return nil
}
