// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package termination implements the end-of-charge detectors for NiMH
// packs: negative delta-V (voltage sag after the charging peak) and
// battery-vs-ambient temperature delta / rate of rise.
package termination

import (
	"chargerd/pkg/ringbuf"
)

// DeltaV watches a rolling window of voltage samples and trips once the
// pack voltage has sagged below its historical peak by more than the
// configured drop. This is the classical NiMH full-charge signal.
//
// Samples are taken at SampleIntervalMs regardless of how often Observe
// is called, so a fast control tick still yields the intended window
// span (default 60 samples at 1Hz = one minute).
type DeltaV struct {
	// DropV is the trip threshold in volts. Board revisions have used
	// 5mV and 10mV per cell; the value here is already scaled by the
	// cell count.
	DropV float64

	SampleIntervalMs uint32

	window       *ringbuf.Buffer
	lastSampleMs uint32
	sampled      bool
}

func NewDeltaV(windowSize int, dropPerCellV float64, cellCount int, sampleIntervalMs uint32) *DeltaV {
	return &DeltaV{
		DropV:            dropPerCellV * float64(cellCount),
		SampleIntervalMs: sampleIntervalMs,
		window:           ringbuf.New(windowSize),
	}
}

// Observe offers a voltage sample to the window. Samples arriving
// before the sample interval has elapsed are ignored.
func (d *DeltaV) Observe(voltageV float64, nowMs uint32) {
	if d.sampled && nowMs-d.lastSampleMs < d.SampleIntervalMs {
		return
	}
	d.lastSampleMs = nowMs
	d.sampled = true
	d.window.Push(voltageV)
}

// Tripped reports whether the latest sample sits more than DropV below
// the window maximum. Always false until the window has filled once.
func (d *DeltaV) Tripped() bool {
	if !d.window.Full() {
		return false
	}
	return d.window.Max()-d.window.Latest() > d.DropV
}

// Reset clears the window for a fresh charge session.
func (d *DeltaV) Reset() {
	d.window.Reset()
	d.sampled = false
	d.lastSampleMs = 0
}

// WindowLen exposes the current fill level for diagnostics.
func (d *DeltaV) WindowLen() int {
	return d.window.Len()
}

// PeakV returns the highest voltage seen in the current window.
func (d *DeltaV) PeakV() float64 {
	return d.window.Max()
}
