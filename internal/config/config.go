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

package config

import (
	"encoding/json"
	"log"
	"os"

	"chargerd/pkg/eventbus"
)

// ChargerConfig holds every tunable of the charge controller. All of
// these were compile-time constants on the original firmware; they are
// configuration here so packs and board revisions can be swapped
// without a rebuild.
type ChargerConfig struct {
	CellCount        int     `json:"cell_count"`
	ChargeCurrentMA  float64 `json:"charge_current_ma"`
	TrickleCurrentMA float64 `json:"trickle_current_ma"`
	CapacityLimitMah float64 `json:"capacity_limit_mah"`
	CellVoltageMaxV  float64 `json:"cell_voltage_max_v"`
	CellVoltageMinV  float64 `json:"cell_voltage_min_v"`

	// -dV termination. Board revisions shipped with drops between
	// 0.005 and 0.010 V/cell; there is no single "right" value, so it
	// stays configurable.
	DeltaVDropPerCellV      float64 `json:"deltav_drop_per_cell_v"`
	VoltageWindowSize       int     `json:"voltage_window_size"`
	VoltageSampleIntervalMs uint32  `json:"voltage_sample_interval_ms"`

	// dT termination
	TempDeltaThresholdC float64 `json:"temp_delta_threshold_c"`
	TempMaxRiseC        float64 `json:"temp_max_rise_c"`
	TempCheckIntervalMs uint32  `json:"temp_check_interval_ms"`
	MaxBatteryTempC     float64 `json:"max_battery_temp_c"`

	// current regulator
	Kp             float64 `json:"kp"`
	Ki             float64 `json:"ki"`
	Kd             float64 `json:"kd"`
	OutputMin      float64 `json:"output_min"`
	OutputMax      float64 `json:"output_max"`
	IntegralMin    float64 `json:"integral_min"`
	IntegralMax    float64 `json:"integral_max"`
	RampDurationMs uint32  `json:"ramp_duration_ms"`
	RampFloorMA    float64 `json:"ramp_floor_ma"`

	TickIntervalMs     int `json:"tick_interval_ms"`
	SensorFailureLimit int `json:"sensor_failure_limit"`
}

type PowerboardConfig struct {
	// Backend selects the front-end: "modbus" (real board) or "sim"
	// (software pack model, for development).
	Backend          string `json:"backend"`
	ModbusConfigPath string `json:"modbus_config"`
}

type HistoryConfig struct {
	IntervalSeconds int `json:"interval_seconds"`
	MaxPoints       int `json:"max_points"`
}

type DataLoggerConfig struct {
	EmonCMSAddr     string `json:"emoncms_addr"`
	EmonCMSApiKey   string `json:"emoncms_apikey"`
	IntervalSeconds int    `json:"interval_seconds"`
}

type WebConfig struct {
	ListenAddr string `json:"listen_addr"`
}

type Config struct {
	Charger    ChargerConfig    `json:"charger"`
	Powerboard PowerboardConfig `json:"powerboard"`
	History    HistoryConfig    `json:"history"`
	DataLogger DataLoggerConfig `json:"datalogger"`
	Web        WebConfig        `json:"web"`

	// not loaded from file, but added here to
	// pass to all services alongside config
	EventBus *eventbus.Bus `json:"-"`
	RootDir  string        `json:"-"`
}

// Default returns the stock dt_charger tuning: a 4-cell 2000mAh pack
// charged at 1C with a 30s soft-start.
func Default() *Config {
	return &Config{
		Charger: ChargerConfig{
			CellCount:        4,
			ChargeCurrentMA:  1000,
			TrickleCurrentMA: 50,
			CapacityLimitMah: 2000,
			CellVoltageMaxV:  1.45,
			CellVoltageMinV:  1.0,

			DeltaVDropPerCellV:      0.005,
			VoltageWindowSize:       60,
			VoltageSampleIntervalMs: 1000,

			TempDeltaThresholdC: 2.0,
			TempMaxRiseC:        1.0,
			TempCheckIntervalMs: 60_000,
			MaxBatteryTempC:     45.0,

			Kp:             0.5,
			Ki:             0.8,
			Kd:             0.01,
			OutputMin:      0,
			OutputMax:      255,
			IntegralMin:    -50,
			IntegralMax:    50,
			RampDurationMs: 30_000,
			RampFloorMA:    100,

			TickIntervalMs:     100,
			SensorFailureLimit: 5,
		},
		Powerboard: PowerboardConfig{
			Backend: "sim",
		},
		History: HistoryConfig{
			IntervalSeconds: 5,
			MaxPoints:       720,
		},
		DataLogger: DataLoggerConfig{
			IntervalSeconds: 60,
		},
		Web: WebConfig{
			ListenAddr: ":80",
		},
	}
}

// LoadFile reads the app config, overlaying the file's fields onto the
// stock defaults.
func LoadFile(path string) *Config {
	c := Default()

	f, err := os.Open(path)
	if err != nil {
		log.Printf("config: %v (using defaults)", err)
		return c
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(c); err != nil {
		log.Fatalf("decode config: %v", err)
	}
	return c
}
