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

package powerboard

import (
	"context"
	"fmt"
	"math"

	"chargerd/pkg/logger"
	"chargerd/pkg/modbus"
)

// Register names expected in the modbus register map.
const (
	RegBatteryVoltage = "battery_voltage"
	RegChargeCurrent  = "charge_current"
	RegBatteryTemp    = "battery_temp"
	RegAmbientTemp    = "ambient_temp"
	RegPWMDuty        = "pwm_duty"
)

// ModbusBoard reads the front-end's calibrated telemetry registers and
// writes its PWM duty register over Modbus TCP.
type ModbusBoard struct {
	client *modbus.Client
	log    *logger.Logger
}

var _ Board = (*ModbusBoard)(nil)

func NewModbusBoard(ctx context.Context, conf *modbus.Config) *ModbusBoard {
	return &ModbusBoard{
		client: modbus.NewClient(ctx, conf),
		log:    logger.New("PowerBoard"),
	}
}

func (b *ModbusBoard) Read(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error

	if snap.VoltageV, err = modbus.ReadTyped[float64](b.client, RegBatteryVoltage); err != nil {
		return snap, fmt.Errorf("read %s: %w", RegBatteryVoltage, err)
	}
	if snap.CurrentMA, err = modbus.ReadTyped[float64](b.client, RegChargeCurrent); err != nil {
		return snap, fmt.Errorf("read %s: %w", RegChargeCurrent, err)
	}
	if snap.BatteryTempC, err = modbus.ReadTyped[float64](b.client, RegBatteryTemp); err != nil {
		return snap, fmt.Errorf("read %s: %w", RegBatteryTemp, err)
	}
	if snap.AmbientTempC, err = modbus.ReadTyped[float64](b.client, RegAmbientTemp); err != nil {
		return snap, fmt.Errorf("read %s: %w", RegAmbientTemp, err)
	}
	return snap, nil
}

func (b *ModbusBoard) SetDuty(ctx context.Context, duty float64) error {
	// the duty register is a plain uint16; round and let the register
	// definition reject out-of-range values
	if err := b.client.WriteValue(RegPWMDuty, int(math.Round(duty))); err != nil {
		return fmt.Errorf("write %s: %w", RegPWMDuty, err)
	}
	return nil
}

func (b *ModbusBoard) Close() {
	b.client.Close()
}
