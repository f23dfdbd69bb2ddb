// Package gps reads the 1 Hz position fix written by the vehicle's GPS
// receiver process into a JSON file.
package gps

import (
	"encoding/json"
	"os"

	"github.com/pathsteer/pathsteerd/internal/model"
)

type payload struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	SpeedMph float64 `json:"speed_mph"`
	Heading  float64 `json:"heading"`
	Fix      bool    `json:"fix"`
}

// Reader reads the GPS fix file.
type Reader struct {
	Path string
}

// NewReader builds a GPS reader bound to a file path.
func NewReader(path string) *Reader {
	return &Reader{Path: path}
}

// Read parses the GPS file into a model.GPS snapshot. A missing or malformed
// file leaves the fix invalid without being treated as an error.
func (r *Reader) Read() model.GPS {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return model.GPS{Valid: false}
	}

	var pl payload
	if err := json.Unmarshal(data, &pl); err != nil {
		return model.GPS{Valid: false}
	}

	return model.GPS{
		Valid:     pl.Fix,
		Latitude:  pl.Lat,
		Longitude: pl.Lon,
		SpeedMph:  pl.SpeedMph,
		Heading:   pl.Heading,
	}
}
