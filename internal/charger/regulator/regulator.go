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
	"chargerd/pkg/logger"
)

// Regulator converts a target charge current into a PWM duty value
// using a PID loop. The setpoint soft-starts from a configured floor
// and ramps linearly to the target over RampDurationMs, limiting
// inrush current into a cold pack.
//
// All timestamps are milliseconds on the caller's clock (u32, wraps
// like a microcontroller millis counter; unsigned subtraction keeps
// deltas correct across the wrap).
type Regulator struct {
	Kp, Kd float64
	Ki     float64

	OutputMin, OutputMax     float64
	IntegralMin, IntegralMax float64

	RampDurationMs uint32
	RampFloorMA    float64

	target    float64
	setpoint  float64
	lastError float64
	integral  float64

	ramping     bool
	rampStartMs uint32

	started      bool
	lastUpdateMs uint32

	log *logger.Logger
}

func New(kp, ki, kd float64) *Regulator {
	return &Regulator{
		Kp:  kp,
		Ki:  ki,
		Kd:  kd,
		log: logger.New("Regulator"),
	}
}

// --- Fluent "With" setters ---

func (r *Regulator) WithOutputLimits(min, max float64) *Regulator {
	r.OutputMin = min
	r.OutputMax = max
	return r
}

func (r *Regulator) WithIntegralLimits(min, max float64) *Regulator {
	r.IntegralMin = min
	r.IntegralMax = max
	return r
}

func (r *Regulator) WithRamp(durationMs uint32, floorMA float64) *Regulator {
	r.RampDurationMs = durationMs
	r.RampFloorMA = floorMA
	return r
}

// Start arms the regulator toward targetMA. The setpoint begins at the
// ramp floor and the error/integral state is zeroed so nothing leaks in
// from a previous session.
func (r *Regulator) Start(targetMA float64, nowMs uint32) {
	r.target = targetMA
	r.setpoint = r.RampFloorMA
	r.lastError = 0
	r.integral = 0
	r.ramping = r.RampDurationMs > 0
	r.rampStartMs = nowMs
	r.lastUpdateMs = nowMs
	r.started = true
	if !r.ramping {
		r.setpoint = targetMA
	}
	r.log.Debug("start: target=%.0fmA floor=%.0fmA ramp=%dms", targetMA, r.setpoint, r.RampDurationMs)
}

// Stop zeroes target, setpoint and accumulated PID state and cancels
// any ramp in progress.
func (r *Regulator) Stop() {
	r.target = 0
	r.setpoint = 0
	r.lastError = 0
	r.integral = 0
	r.ramping = false
	r.started = false
}

// Update advances the loop and returns the next duty value. ok is false
// when the tick arrived less than 1ms after the previous one; the caller
// should hold its last actuation value in that case.
func (r *Regulator) Update(measuredMA float64, nowMs uint32) (duty float64, ok bool) {
	if !r.started {
		return 0, false
	}

	dt := float64(nowMs-r.lastUpdateMs) / 1000.0
	if dt < 0.001 {
		return 0, false
	}

	if r.ramping {
		progress := float64(nowMs-r.rampStartMs) / float64(r.RampDurationMs)
		if progress >= 1.0 {
			r.setpoint = r.target
			r.ramping = false
		} else {
			r.setpoint = r.RampFloorMA + (r.target-r.RampFloorMA)*progress
		}
	}

	err := r.setpoint - measuredMA

	proportional := err * r.Kp

	// anti-windup: the accumulator itself is clamped, not the output
	r.integral += err * dt * r.Ki
	r.integral = clamp(r.integral, r.IntegralMin, r.IntegralMax)

	derivative := ((err - r.lastError) / dt) * r.Kd

	output := clamp(proportional+r.integral+derivative, r.OutputMin, r.OutputMax)

	r.lastError = err
	r.lastUpdateMs = nowMs

	r.log.Debug("dt=%.3fs err=%.1fmA int=%.2f out=%.1f", dt, err, r.integral, output)
	return output, true
}

// Setpoint returns the current (possibly still ramping) setpoint in mA.
func (r *Regulator) Setpoint() float64 {
	return r.setpoint
}

// Target returns the current target in mA.
func (r *Regulator) Target() float64 {
	return r.target
}

// Ramping reports whether the soft-start ramp is still in progress.
func (r *Regulator) Ramping() bool {
	return r.ramping
}

// Integral exposes the accumulator for diagnostics.
func (r *Regulator) Integral() float64 {
	return r.integral
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
