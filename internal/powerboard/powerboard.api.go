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

// Package powerboard talks to the charge front-end board: the sensor
// channels (pack voltage, charge current, battery and ambient
// temperature, all pre-calibrated to physical units by the board) and
// the PWM actuation channel driving the charge circuit.
package powerboard

import "context"

// Snapshot is one set of sensor readings taken at a control tick.
// TimestampMs is milliseconds since the control service started (u32,
// wraps like a millis counter).
type Snapshot struct {
	VoltageV     float64
	CurrentMA    float64
	BatteryTempC float64
	AmbientTempC float64
	TimestampMs  uint32
}

// TempDeltaC returns battery minus ambient temperature.
func (s Snapshot) TempDeltaC() float64 {
	return s.BatteryTempC - s.AmbientTempC
}

// SensorSource supplies sensor readings on request. Implementations
// fill everything except TimestampMs, which the control loop stamps.
type SensorSource interface {
	Read(ctx context.Context) (Snapshot, error)
}

// Actuator accepts a PWM duty value. The range is fixed by the board
// (0..255 on the stock front-end); callers pass the regulator output
// through unchanged.
type Actuator interface {
	SetDuty(ctx context.Context, duty float64) error
}

// Board is a sensor source and actuator backed by the same device.
type Board interface {
	SensorSource
	Actuator
}
