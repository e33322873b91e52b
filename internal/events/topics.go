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

package events

import (
	"time"

	"chargerd/pkg/eventbus"
)

var (
	TopicSensors eventbus.Topic = "sensors"
	TopicCharger eventbus.Topic = "charger"
)

// SensorUpdate carries one calibrated sensor snapshot off the control
// loop for display and logging consumers.
type SensorUpdate struct {
	VoltageV     float64
	CurrentMA    float64
	BatteryTempC float64
	AmbientTempC float64
	Time         time.Time
}

// ChargerUpdate is published after every control tick.
type ChargerUpdate struct {
	State        string
	DeliveredMah float64
	SetpointMA   float64
	DutyCycle    float64
	Ramping      bool
	VoltageV     float64
	CurrentMA    float64
	TempDeltaC   float64
	Time         time.Time
}
