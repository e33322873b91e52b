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

// TempTrend trips on an excessive battery-vs-ambient temperature delta,
// or on that delta rising too fast between evaluations. Either condition
// alone is enough.
//
// The evaluation is internally rate-limited: Check runs its comparison
// at most once per CheckIntervalMs and returns false between
// evaluations, so it can be called from a fast control tick.
type TempTrend struct {
	// DeltaThresholdC trips when battery minus ambient exceeds it.
	DeltaThresholdC float64
	// MaxRiseC trips when the delta grew by more than this since the
	// previous evaluation (one interval earlier).
	MaxRiseC float64

	CheckIntervalMs uint32

	lastDelta   float64
	lastCheckMs uint32
}

func NewTempTrend(deltaThresholdC, maxRiseC float64, checkIntervalMs uint32) *TempTrend {
	return &TempTrend{
		DeltaThresholdC: deltaThresholdC,
		MaxRiseC:        maxRiseC,
		CheckIntervalMs: checkIntervalMs,
	}
}

// Check evaluates the termination condition if an interval has elapsed
// since the previous evaluation, and returns false otherwise.
func (t *TempTrend) Check(batteryC, ambientC float64, nowMs uint32) bool {
	if nowMs-t.lastCheckMs < t.CheckIntervalMs {
		return false
	}
	t.lastCheckMs = nowMs

	delta := batteryC - ambientC
	rise := delta - t.lastDelta
	t.lastDelta = delta

	return delta > t.DeltaThresholdC || rise > t.MaxRiseC
}

// Reset re-arms the tracker at nowMs; the first evaluation happens one
// full interval later.
func (t *TempTrend) Reset(nowMs uint32) {
	t.lastDelta = 0
	t.lastCheckMs = nowMs
}

// LastDelta returns the delta recorded at the previous evaluation.
func (t *TempTrend) LastDelta() float64 {
	return t.lastDelta
}
