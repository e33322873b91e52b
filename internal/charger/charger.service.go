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
	"context"
	"net/http"
	"sync"
	"time"

	"chargerd/internal/config"
	"chargerd/internal/events"
	"chargerd/internal/powerboard"
	"chargerd/pkg/eventbus"
	"chargerd/pkg/logger"
)

// Service drives the control loop: one goroutine reads the sensor
// channels, runs the controller tick and writes the PWM actuator on a
// fixed cadence. Everything the controller owns is mutated only on
// that goroutine; readers get mutex-guarded snapshot copies.
type Service struct {
	conf  *config.Config
	evBus *eventbus.Bus
	log   *logger.Logger

	board powerboard.Board

	mu    sync.Mutex
	ctrl  *Controller
	epoch time.Time

	sensorFailures int

	httpHandler http.Handler
}

func New(conf *config.Config, board powerboard.Board) *Service {
	s := &Service{
		conf:  conf,
		evBus: conf.EventBus,
		log:   logger.New("ChargerLoop"),
		board: board,
		ctrl:  NewController(conf.Charger),
		epoch: time.Now(),
	}
	s.httpHandler = s.buildHTTPHandler()
	return s
}

// nowMs is the controller's millisecond clock: u32 since service start,
// wrapping like a firmware millis counter.
func (s *Service) nowMs() uint32 {
	return uint32(time.Since(s.epoch).Milliseconds())
}

func (s *Service) Run(ctx context.Context) {
	s.log.Info("Running...")
	defer s.log.Info("Stopped")

	interval := time.Duration(s.conf.Charger.TickIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// leave the charge circuit off on the way out
			s.Stop()
			s.writeDuty(context.Background(), 0)
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	snap, err := s.board.Read(ctx)
	if err != nil {
		s.sensorFailure(err)
		return
	}
	s.sensorFailures = 0
	snap.TimestampMs = s.nowMs()

	s.mu.Lock()
	upd := s.ctrl.Tick(snap)
	status := s.ctrl.Status()
	s.mu.Unlock()

	s.writeDuty(ctx, upd.Duty)
	s.publish(snap, upd, status)
}

// sensorFailure holds the previous actuation for isolated read errors
// and faults the charger once the channel looks dead. The original
// firmware assumed the ADC always answered; a networked front-end
// cannot, so consecutive failures force the safe state.
func (s *Service) sensorFailure(err error) {
	s.sensorFailures++
	s.log.Error("sensor read failed (%d consecutive): %v", s.sensorFailures, err)

	if s.sensorFailures < s.conf.Charger.SensorFailureLimit {
		return
	}

	s.mu.Lock()
	s.ctrl.Fault("sensor channel unavailable")
	s.mu.Unlock()
	s.writeDuty(context.Background(), 0)
}

func (s *Service) writeDuty(ctx context.Context, duty float64) {
	if err := s.board.SetDuty(ctx, duty); err != nil {
		s.log.Error("actuator write failed: %v", err)
	}
}

func (s *Service) publish(snap powerboard.Snapshot, upd Update, status Status) {
	if s.evBus == nil {
		return
	}
	now := time.Now()
	s.evBus.Publish(events.TopicSensors, events.SensorUpdate{
		VoltageV:     snap.VoltageV,
		CurrentMA:    snap.CurrentMA,
		BatteryTempC: snap.BatteryTempC,
		AmbientTempC: snap.AmbientTempC,
		Time:         now,
	})
	s.evBus.Publish(events.TopicCharger, events.ChargerUpdate{
		State:        upd.State.String(),
		DeliveredMah: upd.DeliveredMah,
		SetpointMA:   upd.SetpointMA,
		DutyCycle:    upd.Duty,
		Ramping:      upd.Ramping,
		VoltageV:     snap.VoltageV,
		CurrentMA:    snap.CurrentMA,
		TempDeltaC:   snap.TempDeltaC(),
		Time:         now,
	})

	go webAppBroadcast(status)
}

// Start arms a charge toward targetMA (<=0 selects the configured
// charge current). Toggles to stop when already charging.
func (s *Service) Start(targetMA float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.Start(targetMA, s.nowMs())
}

// Stop returns the charger to IDLE; actuation goes to zero on the next
// tick (and immediately on shutdown).
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctrl.Stop()
}

// Status returns a copy of the charger's externally visible state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Status()
}

// GetData flattens the status for the metrics push.
func (s *Service) GetData() map[string]float64 {
	st := s.Status()
	ramping := 0.0
	if st.Ramping {
		ramping = 1
	}
	return map[string]float64{
		"voltage":         st.VoltageV,
		"current":         st.CurrentMA,
		"battery_temp":    st.BatteryTempC,
		"ambient_temp":    st.AmbientTempC,
		"temp_delta":      st.TempDeltaC,
		"setpoint":        st.SetpointMA,
		"duty_cycle":      st.DutyCycle,
		"delivered_mah":   st.DeliveredMah,
		"battery_percent": st.BatteryPercent,
		"ramping":         ramping,
		"state":           float64(stateCode(st.State)),
	}
}

func stateCode(state string) int {
	switch state {
	case "IDLE":
		return 0
	case "CHARGING":
		return 1
	case "TRICKLE":
		return 2
	case "COMPLETE":
		return 3
	case "ERROR":
		return 4
	}
	return -1
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpHandler.ServeHTTP(w, r)
}
