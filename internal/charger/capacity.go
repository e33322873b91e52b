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

package charger

// capacityAccumulator coulomb-counts delivered charge in mAh. It only
// advances while the controller keeps feeding it ticks, so charge is
// frozen in inactive states.
type capacityAccumulator struct {
	deliveredMah  float64
	chargeStartMs uint32
	lastUpdateMs  uint32
	primed        bool
}

// Reset zeroes the counter at the start of a charge session.
func (c *capacityAccumulator) Reset(nowMs uint32) {
	c.deliveredMah = 0
	c.chargeStartMs = nowMs
	c.lastUpdateMs = nowMs
	c.primed = true
}

// Accumulate integrates currentMA over the time since the previous
// call. Negative current never reduces the total.
func (c *capacityAccumulator) Accumulate(currentMA float64, nowMs uint32) {
	if !c.primed {
		c.lastUpdateMs = nowMs
		c.primed = true
		return
	}
	dtHours := float64(nowMs-c.lastUpdateMs) / 3_600_000.0
	c.lastUpdateMs = nowMs
	if currentMA > 0 {
		c.deliveredMah += currentMA * dtHours
	}
}

func (c *capacityAccumulator) DeliveredMah() float64 {
	return c.deliveredMah
}

// ChargeDurationMs returns elapsed time since Reset.
func (c *capacityAccumulator) ChargeDurationMs(nowMs uint32) uint32 {
	if !c.primed {
		return 0
	}
	return nowMs - c.chargeStartMs
}
