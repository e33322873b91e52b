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

package regulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegulator() *Regulator {
	return New(0.5, 0.8, 0.01).
		WithOutputLimits(0, 255).
		WithIntegralLimits(-50, 50).
		WithRamp(30_000, 100)
}

func TestIntegralStaysClamped(t *testing.T) {
	r := New(0.5, 0.8, 0).
		WithOutputLimits(0, 255).
		WithIntegralLimits(-50, 50).
		WithRamp(0, 0)

	r.Start(1000, 0)

	// a large persistent error would wind the accumulator up without
	// the clamp: 1000mA err * 1s * 0.8 = 800 per tick
	for now := uint32(1000); now <= 20_000; now += 1000 {
		_, ok := r.Update(0, now)
		require.True(t, ok)
		assert.LessOrEqual(t, r.Integral(), 50.0)
		assert.GreaterOrEqual(t, r.Integral(), -50.0)
	}

	// and in the other direction: measured far above setpoint
	r.Start(0, 100_000)
	for now := uint32(101_000); now <= 120_000; now += 1000 {
		_, ok := r.Update(2000, now)
		require.True(t, ok)
		assert.GreaterOrEqual(t, r.Integral(), -50.0)
	}
}

func TestRampTerminatesExactlyAtDuration(t *testing.T) {
	r := newTestRegulator()
	r.Start(1000, 0)

	assert.True(t, r.Ramping())
	assert.Equal(t, 100.0, r.Setpoint())

	for now := uint32(500); now < 30_000; now += 500 {
		_, ok := r.Update(0, now)
		require.True(t, ok)
		assert.True(t, r.Ramping(), "ramping must hold until the full duration at t=%d", now)
		assert.Less(t, r.Setpoint(), 1000.0)
	}

	_, ok := r.Update(0, 30_000)
	require.True(t, ok)
	assert.False(t, r.Ramping())
	assert.Equal(t, 1000.0, r.Setpoint())

	// and it stays settled afterwards
	_, ok = r.Update(0, 31_000)
	require.True(t, ok)
	assert.False(t, r.Ramping())
	assert.Equal(t, 1000.0, r.Setpoint())
}

func TestRampInterpolatesLinearly(t *testing.T) {
	r := newTestRegulator()
	r.Start(1000, 0)

	r.Update(0, 15_000)
	assert.InDelta(t, 550.0, r.Setpoint(), 1e-9) // halfway between floor and target

	r.Update(0, 22_500)
	assert.InDelta(t, 775.0, r.Setpoint(), 1e-9)
}

func TestRampDownToLowerTarget(t *testing.T) {
	// the trickle handoff ramps down from the floor when the target
	// sits below it
	r := New(0.5, 0.8, 0.01).
		WithOutputLimits(0, 255).
		WithIntegralLimits(-50, 50).
		WithRamp(10_000, 100)

	r.Start(50, 0)
	r.Update(50, 5_000)
	assert.InDelta(t, 75.0, r.Setpoint(), 1e-9)
	r.Update(50, 10_000)
	assert.Equal(t, 50.0, r.Setpoint())
}

func TestUpdateGuardsAgainstOversampling(t *testing.T) {
	r := newTestRegulator()
	r.Start(1000, 0)

	_, ok := r.Update(0, 0)
	assert.False(t, ok, "zero delta must not update")

	duty, ok := r.Update(0, 1)
	assert.True(t, ok, "1ms delta is the minimum accepted")
	assert.GreaterOrEqual(t, duty, 0.0)

	_, ok = r.Update(0, 1)
	assert.False(t, ok, "repeated timestamp must not update")
}

func TestOutputClampedToPWMRange(t *testing.T) {
	r := New(10, 0, 0).
		WithOutputLimits(0, 255).
		WithIntegralLimits(-50, 50).
		WithRamp(0, 0)

	r.Start(1000, 0)

	duty, ok := r.Update(0, 1000)
	require.True(t, ok)
	assert.Equal(t, 255.0, duty, "huge positive error saturates high")

	duty, ok = r.Update(5000, 2000)
	require.True(t, ok)
	assert.Equal(t, 0.0, duty, "huge negative error saturates low")
}

func TestStopZeroesEverything(t *testing.T) {
	r := newTestRegulator()
	r.Start(1000, 0)
	for now := uint32(1000); now <= 5000; now += 1000 {
		r.Update(200, now)
	}
	require.NotZero(t, r.Setpoint())

	r.Stop()
	assert.Equal(t, 0.0, r.Target())
	assert.Equal(t, 0.0, r.Setpoint())
	assert.Equal(t, 0.0, r.Integral())
	assert.False(t, r.Ramping())

	_, ok := r.Update(0, 6000)
	assert.False(t, ok, "a stopped regulator produces no output")
}

func TestRestartLeaksNoState(t *testing.T) {
	r := newTestRegulator()
	r.Start(1000, 0)
	for now := uint32(1000); now <= 10_000; now += 1000 {
		r.Update(0, now)
	}
	require.NotZero(t, r.Integral())

	r.Stop()
	r.Start(1000, 20_000)

	assert.Equal(t, 0.0, r.Integral())
	assert.Equal(t, 100.0, r.Setpoint())
	assert.True(t, r.Ramping())
	assert.Equal(t, 1000.0, r.Target())
}

func TestNoRampSnapsToTarget(t *testing.T) {
	r := New(0.5, 0.8, 0.01).
		WithOutputLimits(0, 255).
		WithIntegralLimits(-50, 50).
		WithRamp(0, 100)

	r.Start(1000, 0)
	assert.False(t, r.Ramping())
	assert.Equal(t, 1000.0, r.Setpoint())
}
