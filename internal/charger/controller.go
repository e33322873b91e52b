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

// Package charger implements the closed-loop NiMH charge controller:
// a PID current regulator with soft-start, -dV and dT end-of-charge
// detection, coulomb counting and the charging state machine tying
// them together.
package charger

import (
	"chargerd/internal/charger/regulator"
	"chargerd/internal/charger/termination"
	"chargerd/internal/config"
	"chargerd/internal/powerboard"
	"chargerd/pkg/logger"
)

type State int

const (
	StateIdle State = iota
	StateCharging
	StateTrickle
	StateComplete
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCharging:
		return "CHARGING"
	case StateTrickle:
		return "TRICKLE"
	case StateComplete:
		return "COMPLETE"
	case StateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Active reports whether the charge circuit is being driven.
func (s State) Active() bool {
	return s == StateCharging || s == StateTrickle
}

// Update is what one control tick produced: the duty to write to the
// PWM channel and the resulting state.
type Update struct {
	State        State
	Duty         float64
	SetpointMA   float64
	DeliveredMah float64
	Ramping      bool
}

// Controller owns every piece of mutable charging state. It is not
// goroutine safe on its own; the control service serializes access
// (one control goroutine, snapshot copies for readers).
type Controller struct {
	cfg config.ChargerConfig

	reg       *regulator.Regulator
	deltaV    *termination.DeltaV
	tempTrend *termination.TempTrend
	capacity  capacityAccumulator

	state State
	duty  float64

	lastSnap powerboard.Snapshot

	log *logger.Logger
}

func NewController(cfg config.ChargerConfig) *Controller {
	reg := regulator.New(cfg.Kp, cfg.Ki, cfg.Kd).
		WithOutputLimits(cfg.OutputMin, cfg.OutputMax).
		WithIntegralLimits(cfg.IntegralMin, cfg.IntegralMax).
		WithRamp(cfg.RampDurationMs, cfg.RampFloorMA)

	return &Controller{
		cfg:       cfg,
		reg:       reg,
		deltaV:    termination.NewDeltaV(cfg.VoltageWindowSize, cfg.DeltaVDropPerCellV, cfg.CellCount, cfg.VoltageSampleIntervalMs),
		tempTrend: termination.NewTempTrend(cfg.TempDeltaThresholdC, cfg.TempMaxRiseC, cfg.TempCheckIntervalMs),
		state:     StateIdle,
		log:       logger.New("Charger"),
	}
}

// Start begins a charge session toward targetMA (the configured charge
// current when targetMA <= 0). Pressing start while already charging
// acts as a stop, mirroring the front panel's single button. COMPLETE
// and ERROR are left only through this call.
func (c *Controller) Start(targetMA float64, nowMs uint32) {
	if c.state.Active() {
		c.log.Info("start pressed while %v: stopping", c.state)
		c.Stop()
		return
	}
	if targetMA <= 0 {
		targetMA = c.cfg.ChargeCurrentMA
	}

	c.capacity.Reset(nowMs)
	c.deltaV.Reset()
	c.tempTrend.Reset(nowMs)
	c.reg.Start(targetMA, nowMs)
	c.state = StateCharging
	c.log.Info("charging started: target=%.0fmA limit=%.0fmAh", targetMA, c.cfg.CapacityLimitMah)
}

// Stop returns to IDLE and zeroes all regulator state and actuation.
func (c *Controller) Stop() {
	c.reg.Stop()
	c.duty = 0
	if c.state != StateIdle {
		c.log.Info("stopped from %v", c.state)
	}
	c.state = StateIdle
}

// Fault forces the ERROR state from outside the detector path (the
// control service uses it when the sensor channel goes dead).
func (c *Controller) Fault(reason string) {
	if c.state == StateError {
		return
	}
	c.fail(reason)
}

func (c *Controller) fail(reason string) {
	c.reg.Stop()
	c.duty = 0
	c.state = StateError
	c.log.Error("charge fault: %s", reason)
}

func (c *Controller) complete() {
	c.reg.Stop()
	c.duty = 0
	c.state = StateComplete
	c.log.Info("charge complete: %.1fmAh delivered", c.capacity.DeliveredMah())
}

// Tick runs one control cycle: detector updates, then the state
// decision, then the regulator, then capacity. Inactive states only
// ensure actuation stays at zero.
func (c *Controller) Tick(snap powerboard.Snapshot) Update {
	now := snap.TimestampMs
	c.lastSnap = snap

	if !c.state.Active() {
		c.duty = 0
		return c.update()
	}

	c.deltaV.Observe(snap.VoltageV, now)
	dtTrip := c.tempTrend.Check(snap.BatteryTempC, snap.AmbientTempC, now)
	overtemp := snap.BatteryTempC > c.cfg.MaxBatteryTempC

	switch c.state {
	case StateCharging:
		switch {
		case overtemp:
			c.fail("battery over-temperature")
		case dtTrip:
			c.fail("temperature delta termination")
		case c.deltaV.Tripped():
			c.state = StateTrickle
			c.reg.Start(c.cfg.TrickleCurrentMA, now)
			c.log.Info("-dV detected (peak %.3fV, now %.3fV): trickle at %.0fmA",
				c.deltaV.PeakV(), snap.VoltageV, c.cfg.TrickleCurrentMA)
		}

	case StateTrickle:
		// over-temperature stays dominant in every active state
		switch {
		case overtemp:
			c.fail("battery over-temperature")
		case c.capacity.DeliveredMah() >= c.cfg.CapacityLimitMah:
			c.complete()
		}
	}

	if c.state.Active() {
		if duty, ok := c.reg.Update(snap.CurrentMA, now); ok {
			c.duty = duty
		}
		// the counter tracks commanded charge, not the raw current
		// sample (matches the firmware's capacity readout)
		c.capacity.Accumulate(c.reg.Setpoint(), now)
	} else {
		c.duty = 0
	}

	return c.update()
}

func (c *Controller) update() Update {
	return Update{
		State:        c.state,
		Duty:         c.duty,
		SetpointMA:   c.reg.Setpoint(),
		DeliveredMah: c.capacity.DeliveredMah(),
		Ramping:      c.reg.Ramping(),
	}
}

// Status is the read-only snapshot handed to display consumers.
type Status struct {
	State          string  `json:"state"`
	DeliveredMah   float64 `json:"delivered_mah"`
	TargetMA       float64 `json:"target_ma"`
	SetpointMA     float64 `json:"setpoint_ma"`
	Ramping        bool    `json:"ramping"`
	DutyCycle      float64 `json:"duty_cycle"`
	VoltageV       float64 `json:"voltage_v"`
	CurrentMA      float64 `json:"current_ma"`
	BatteryTempC   float64 `json:"battery_temp_c"`
	AmbientTempC   float64 `json:"ambient_temp_c"`
	TempDeltaC     float64 `json:"temp_delta_c"`
	BatteryPercent float64 `json:"battery_percent"`
}

func (c *Controller) Status() Status {
	return Status{
		State:          c.state.String(),
		DeliveredMah:   c.capacity.DeliveredMah(),
		TargetMA:       c.reg.Target(),
		SetpointMA:     c.reg.Setpoint(),
		Ramping:        c.reg.Ramping(),
		DutyCycle:      c.duty,
		VoltageV:       c.lastSnap.VoltageV,
		CurrentMA:      c.lastSnap.CurrentMA,
		BatteryTempC:   c.lastSnap.BatteryTempC,
		AmbientTempC:   c.lastSnap.AmbientTempC,
		TempDeltaC:     c.lastSnap.TempDeltaC(),
		BatteryPercent: c.batteryPercent(),
	}
}

// batteryPercent estimates state of charge from per-cell voltage, the
// same rough readout the original battery widget displayed.
func (c *Controller) batteryPercent() float64 {
	if c.cfg.CellCount == 0 || c.cfg.CellVoltageMaxV <= c.cfg.CellVoltageMinV {
		return 0
	}
	perCell := c.lastSnap.VoltageV / float64(c.cfg.CellCount)
	pct := (perCell - c.cfg.CellVoltageMinV) / (c.cfg.CellVoltageMaxV - c.cfg.CellVoltageMinV) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// DeliveredMah exposes the coulomb counter for the data logger.
func (c *Controller) DeliveredMah() float64 {
	return c.capacity.DeliveredMah()
}

// State returns the current charger state.
func (c *Controller) State() State {
	return c.state
}
