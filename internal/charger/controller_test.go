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

import (
	"testing"

	"chargerd/internal/config"
	"chargerd/internal/powerboard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.ChargerConfig {
	cfg := config.Default().Charger
	cfg.TickIntervalMs = 1000
	return cfg
}

func snap(voltageV, currentMA, batteryC, ambientC float64, nowMs uint32) powerboard.Snapshot {
	return powerboard.Snapshot{
		VoltageV:     voltageV,
		CurrentMA:    currentMA,
		BatteryTempC: batteryC,
		AmbientTempC: ambientC,
		TimestampMs:  nowMs,
	}
}

func TestSoftStartRampDelivery(t *testing.T) {
	ctrl := NewController(testConfig())
	ctrl.Start(1000, 0)
	require.Equal(t, StateCharging, ctrl.State())

	// 30 one-second ticks spanning the full ramp; flat voltage and no
	// temperature rise so no terminator can fire
	var last Update
	for now := uint32(1000); now <= 30_000; now += 1000 {
		last = ctrl.Tick(snap(4.8, last.SetpointMA, 21, 21, now))
		assert.Equal(t, StateCharging, last.State)
	}

	assert.False(t, last.Ramping)
	assert.Equal(t, 1000.0, last.SetpointMA)

	// charge follows the commanded setpoint: sum of the ramped
	// setpoints 130,160,...,1000 over 1s each = 16950 mA*s
	assert.InDelta(t, 16950.0/3600.0, last.DeliveredMah, 1e-6)
}

func TestStartTogglesToStop(t *testing.T) {
	ctrl := NewController(testConfig())

	ctrl.Start(0, 0)
	assert.Equal(t, StateCharging, ctrl.State())

	// second press is a stop, mirroring the single front-panel button
	ctrl.Start(0, 1000)
	assert.Equal(t, StateIdle, ctrl.State())

	upd := ctrl.Tick(snap(4.8, 0, 21, 21, 2000))
	assert.Equal(t, 0.0, upd.Duty)
}

func TestStopForcesZeroDuty(t *testing.T) {
	ctrl := NewController(testConfig())
	ctrl.Start(0, 0)

	upd := ctrl.Tick(snap(4.8, 0, 21, 21, 1000))
	require.Greater(t, upd.Duty, 0.0)

	ctrl.Stop()
	upd = ctrl.Tick(snap(4.8, 0, 21, 21, 2000))
	assert.Equal(t, StateIdle, upd.State)
	assert.Equal(t, 0.0, upd.Duty)
	assert.Equal(t, 0.0, upd.SetpointMA)
}

func TestDeltaVHandsOffToTrickle(t *testing.T) {
	cfg := testConfig()
	cfg.VoltageWindowSize = 3
	cfg.VoltageSampleIntervalMs = 0 // sample every tick
	ctrl := NewController(cfg)
	ctrl.Start(1000, 0)

	// rising to the peak fills the window without tripping
	for i, v := range []float64{5.90, 5.95, 6.00} {
		upd := ctrl.Tick(snap(v, 500, 21, 21, uint32(i+1)*1000))
		require.Equal(t, StateCharging, upd.State, "sample %d", i)
	}

	// 60mV sag against a 20mV threshold (4 cells x 5mV)
	upd := ctrl.Tick(snap(5.94, 500, 21, 21, 4000))
	assert.Equal(t, StateTrickle, upd.State)
	assert.Equal(t, 50.0, ctrl.reg.Target())

	// capacity keeps counting through the trickle phase
	before := ctrl.DeliveredMah()
	upd = ctrl.Tick(snap(5.94, 50, 21, 21, 5000))
	assert.Equal(t, StateTrickle, upd.State)
	assert.Greater(t, upd.DeliveredMah, before)
}

func TestOvertempFaultsFromCharging(t *testing.T) {
	ctrl := NewController(testConfig())
	ctrl.Start(0, 0)

	upd := ctrl.Tick(snap(4.8, 500, 46.0, 21, 1000))
	assert.Equal(t, StateError, upd.State)
	assert.Equal(t, 0.0, upd.Duty)
}

func TestOvertempFaultsFromTrickle(t *testing.T) {
	cfg := testConfig()
	cfg.VoltageWindowSize = 2
	cfg.VoltageSampleIntervalMs = 0
	ctrl := NewController(cfg)
	ctrl.Start(0, 0)

	ctrl.Tick(snap(6.00, 500, 21, 21, 1000))
	upd := ctrl.Tick(snap(5.90, 500, 21, 21, 2000))
	require.Equal(t, StateTrickle, upd.State)

	upd = ctrl.Tick(snap(5.90, 50, 46.0, 21, 3000))
	assert.Equal(t, StateError, upd.State)
	assert.Equal(t, 0.0, upd.Duty)
}

func TestTempDeltaFaultsAtFirstEvaluation(t *testing.T) {
	ctrl := NewController(testConfig())
	ctrl.Start(0, 0)

	// 3C above ambient from the first sample, but the dT check only
	// evaluates once per minute: charging holds until then
	for now := uint32(10_000); now < 60_000; now += 10_000 {
		upd := ctrl.Tick(snap(4.8, 500, 24.0, 21.0, now))
		require.Equal(t, StateCharging, upd.State, "t=%dms", now)
	}

	upd := ctrl.Tick(snap(4.8, 500, 24.0, 21.0, 60_000))
	assert.Equal(t, StateError, upd.State)
	assert.Equal(t, 0.0, upd.Duty)
}

func TestTrickleCompletesAtCapacityLimit(t *testing.T) {
	cfg := testConfig()
	cfg.VoltageWindowSize = 2
	cfg.VoltageSampleIntervalMs = 0
	cfg.RampDurationMs = 0
	cfg.CapacityLimitMah = 0.3
	ctrl := NewController(cfg)
	ctrl.Start(1000, 0)

	ctrl.Tick(snap(6.00, 1000, 21, 21, 1000)) // ~0.28mAh at 1000mA
	upd := ctrl.Tick(snap(5.90, 1000, 21, 21, 2000))
	require.Equal(t, StateTrickle, upd.State)

	for now := uint32(3000); now <= 60_000; now += 1000 {
		upd = ctrl.Tick(snap(5.90, 50, 21, 21, now))
		if upd.State == StateComplete {
			break
		}
	}

	require.Equal(t, StateComplete, upd.State)
	assert.Equal(t, 0.0, upd.Duty)
	assert.GreaterOrEqual(t, upd.DeliveredMah, cfg.CapacityLimitMah)
}

func TestCapacityFrozenWhileInactive(t *testing.T) {
	ctrl := NewController(testConfig())
	ctrl.Start(0, 0)
	ctrl.Tick(snap(4.8, 500, 21, 21, 1000))
	ctrl.Stop()

	frozen := ctrl.DeliveredMah()
	require.Greater(t, frozen, 0.0)

	for now := uint32(2000); now <= 10_000; now += 1000 {
		ctrl.Tick(snap(4.8, 0, 21, 21, now))
	}
	assert.Equal(t, frozen, ctrl.DeliveredMah())
}

func TestRestartResetsSession(t *testing.T) {
	ctrl := NewController(testConfig())
	ctrl.Start(0, 0)
	for now := uint32(1000); now <= 5000; now += 1000 {
		ctrl.Tick(snap(4.8, 500, 21, 21, now))
	}
	require.Greater(t, ctrl.DeliveredMah(), 0.0)

	ctrl.Stop()
	ctrl.Start(0, 60_000)

	assert.Equal(t, StateCharging, ctrl.State())
	assert.Equal(t, 0.0, ctrl.DeliveredMah())

	// the ramp restarts from the floor
	upd := ctrl.Tick(snap(4.8, 0, 21, 21, 61_000))
	assert.True(t, upd.Ramping)
	assert.Less(t, upd.SetpointMA, 200.0)
}

func TestStartLeavesErrorState(t *testing.T) {
	ctrl := NewController(testConfig())
	ctrl.Start(0, 0)
	ctrl.Tick(snap(4.8, 500, 50.0, 21, 1000))
	require.Equal(t, StateError, ctrl.State())

	// ticks in ERROR keep actuation off
	upd := ctrl.Tick(snap(4.8, 0, 21, 21, 2000))
	assert.Equal(t, StateError, upd.State)
	assert.Equal(t, 0.0, upd.Duty)

	ctrl.Start(0, 3000)
	assert.Equal(t, StateCharging, ctrl.State())
	assert.Equal(t, 0.0, ctrl.DeliveredMah())
}

func TestFaultFromSensorPath(t *testing.T) {
	ctrl := NewController(testConfig())
	ctrl.Start(0, 0)

	ctrl.Fault("sensor channel lost")
	assert.Equal(t, StateError, ctrl.State())

	upd := ctrl.Tick(snap(0, 0, 0, 0, 1000))
	assert.Equal(t, StateError, upd.State)
	assert.Equal(t, 0.0, upd.Duty)
}

func TestStatusSnapshot(t *testing.T) {
	ctrl := NewController(testConfig())
	ctrl.Start(0, 0)
	ctrl.Tick(snap(4.8, 500, 23.5, 21.0, 1000))

	st := ctrl.Status()
	assert.Equal(t, "CHARGING", st.State)
	assert.Equal(t, 4.8, st.VoltageV)
	assert.Equal(t, 500.0, st.CurrentMA)
	assert.Equal(t, 2.5, st.TempDeltaC)
	assert.Equal(t, 1000.0, st.TargetMA)
	assert.True(t, st.Ramping)

	// 1.2V/cell on a 1.0-1.45V scale
	assert.InDelta(t, 44.44, st.BatteryPercent, 0.01)
}
