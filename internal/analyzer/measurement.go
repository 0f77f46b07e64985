// SPDX-License-Identifier: MIT
package analyzer

import (
	"encoding/json"
	"math"
	"time"
)

// Measurement is one averaged in-band power estimate.
type Measurement struct {
	Tag         int       `json:"tag"`
	Power       float64   `json:"power"`    // Linear, normalized power.
	PowerDB     float64   `json:"power_db"` // 10*log10(Power); -Inf for zero power.
	Blocks      int       `json:"blocks"`   // Blocks averaged into Power.
	Pairs       int       `json:"pairs"`    // I/Q pairs across those blocks.
	BandwidthHz float64   `json:"bandwidth_hz"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewMeasurement derives PowerDB from power.
func NewMeasurement(tag int, power float64, blocks, pairs int, bandwidthHz float64, ts time.Time) Measurement {
	return Measurement{
		Tag:         tag,
		Power:       power,
		PowerDB:     10 * math.Log10(power),
		Blocks:      blocks,
		Pairs:       pairs,
		BandwidthHz: bandwidthHz,
		Timestamp:   ts,
	}
}

// MarshalJSON encodes a non-finite PowerDB as null, which JSON has no number for.
func (m Measurement) MarshalJSON() ([]byte, error) {
	type plain Measurement
	out := struct {
		plain
		PowerDB *float64 `json:"power_db"`
	}{plain: plain(m)}
	if !math.IsInf(m.PowerDB, 0) && !math.IsNaN(m.PowerDB) {
		out.PowerDB = &m.PowerDB
	}
	return json.Marshal(out)
}
