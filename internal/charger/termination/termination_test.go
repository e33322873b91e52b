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

package termination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeltaVSilentUntilWindowFull(t *testing.T) {
	// interval 0: every Observe is a sample
	d := NewDeltaV(5, 0.005, 4, 0)

	// steep drops, but the window has not filled once yet
	for i, v := range []float64{5.0, 4.5, 4.0, 3.5} {
		d.Observe(v, uint32(i))
		assert.False(t, d.Tripped(), "sample %d must not trip before the window is full", i)
	}

	d.Observe(3.0, 4)
	assert.True(t, d.Tripped())
}

func TestDeltaVPeakThenSag(t *testing.T) {
	// 4 cells at 5mV/cell: 20mV drop threshold
	d := NewDeltaV(5, 0.005, 4, 0)

	samples := []float64{4.80, 4.90, 5.00, 4.97, 4.94}
	for i, v := range samples[:4] {
		d.Observe(v, uint32(i))
		assert.False(t, d.Tripped())
	}

	// 5.00 - 4.94 = 0.06 > 0.02
	d.Observe(samples[4], 4)
	assert.True(t, d.Tripped())
	assert.Equal(t, 5.00, d.PeakV())
}

func TestDeltaVHoldsBelowThreshold(t *testing.T) {
	d := NewDeltaV(3, 0.005, 4, 0)

	d.Observe(5.00, 0)
	d.Observe(5.00, 1)
	d.Observe(4.99, 2) // 10mV sag, threshold is 20mV
	assert.False(t, d.Tripped())

	d.Observe(4.985, 3)
	assert.False(t, d.Tripped())

	d.Observe(4.97, 4)
	assert.True(t, d.Tripped())
}

func TestDeltaVSampleCadence(t *testing.T) {
	d := NewDeltaV(60, 0.005, 4, 1000)

	d.Observe(4.8, 0)
	assert.Equal(t, 1, d.WindowLen())

	// control ticks faster than the sample cadence are ignored
	d.Observe(4.81, 100)
	d.Observe(4.82, 500)
	d.Observe(4.83, 999)
	assert.Equal(t, 1, d.WindowLen())

	d.Observe(4.84, 1000)
	assert.Equal(t, 2, d.WindowLen())
}

func TestDeltaVReset(t *testing.T) {
	d := NewDeltaV(3, 0.005, 4, 0)
	for i, v := range []float64{5.0, 5.0, 4.9} {
		d.Observe(v, uint32(i))
	}
	assert.True(t, d.Tripped())

	d.Reset()
	assert.False(t, d.Tripped())
	assert.Equal(t, 0, d.WindowLen())
}

func TestTempTrendRateLimited(t *testing.T) {
	tr := NewTempTrend(2.0, 1.0, 60_000)
	tr.Reset(0)

	// wildly over threshold, but the evaluation interval has not
	// elapsed: both calls must agree
	assert.False(t, tr.Check(50, 20, 1_000))
	assert.False(t, tr.Check(80, 20, 59_999))

	// first evaluation one interval after reset
	assert.True(t, tr.Check(50, 20, 60_000))
}

func TestTempTrendAbsoluteDelta(t *testing.T) {
	tr := NewTempTrend(2.0, 100.0, 60_000) // rate check effectively off
	tr.Reset(0)

	assert.False(t, tr.Check(22.5, 21.0, 60_000)) // delta 1.5
	assert.True(t, tr.Check(24.0, 21.0, 120_000)) // delta 3.0 > 2.0
}

func TestTempTrendRiseRate(t *testing.T) {
	tr := NewTempTrend(100.0, 1.0, 60_000) // absolute check effectively off
	tr.Reset(0)

	assert.False(t, tr.Check(21.5, 21.0, 60_000)) // delta 0.5, rise 0.5
	assert.True(t, tr.Check(23.2, 21.0, 120_000)) // delta 2.2, rise 1.7 > 1.0
	assert.InDelta(t, 2.2, tr.LastDelta(), 1e-9)
}

func TestTempTrendFalseBetweenEvaluations(t *testing.T) {
	tr := NewTempTrend(2.0, 1.0, 60_000)
	tr.Reset(0)

	assert.True(t, tr.Check(50, 20, 60_000))

	// the trip does not latch; between evaluations it reads false and
	// the caller is expected to have acted on the evaluation already
	assert.False(t, tr.Check(50, 20, 61_000))
	assert.True(t, tr.Check(50, 20, 120_000))
}
