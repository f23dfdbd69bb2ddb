// Package chaos reads the operator-controlled fault-injection file used in
// demos: a JSON map from canonical uplink name to RTT/jitter/loss overrides.
package chaos

import (
	"encoding/json"
	"os"
)

// Override is the chaos scalars applied to one uplink.
type Override struct {
	RTT    float64 `json:"rtt"`
	Jitter float64 `json:"jitter"`
	Loss   float64 `json:"loss"`
}

// Reader reads the chaos file each tick.
type Reader struct {
	Path string
}

// NewReader builds a chaos file reader.
func NewReader(path string) *Reader {
	return &Reader{Path: path}
}

// Read returns the current overrides keyed by uplink name. A missing file
// yields an empty map, which callers use to clear all injections.
func (r *Reader) Read() map[string]Override {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil
	}

	var overrides map[string]Override
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil
	}
	return overrides
}
