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

// Package history keeps a bounded trail of charge telemetry for the
// graph view: voltage, current, temperature delta and setpoint sampled
// at a slower cadence than the control tick.
package history

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"chargerd/internal/config"
	"chargerd/internal/events"
	"chargerd/pkg/eventbus"
	"chargerd/pkg/logger"
)

// Point is one chart sample.
type Point struct {
	VoltageV     float64   `json:"voltage_v"`
	CurrentMA    float64   `json:"current_ma"`
	TempDeltaC   float64   `json:"temp_delta_c"`
	SetpointMA   float64   `json:"setpoint_ma"`
	State        string    `json:"state"`
	DeliveredMah float64   `json:"delivered_mah"`
	Time         time.Time `json:"time"`
}

type Service struct {
	evBus    *eventbus.Bus
	log      *logger.Logger
	interval time.Duration
	maxPts   int

	mu     sync.RWMutex
	points []Point
	last   time.Time
}

func New(conf *config.Config) *Service {
	return &Service{
		evBus:    conf.EventBus,
		log:      logger.New("History"),
		interval: time.Duration(conf.History.IntervalSeconds) * time.Second,
		maxPts:   conf.History.MaxPoints,
	}
}

func (s *Service) Run(ctx context.Context) {
	s.log.Info("Running...")
	defer s.log.Info("Stopped")

	updates, _ := s.evBus.Subscribe(ctx, events.TopicCharger, true)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-updates:
			if !ok {
				return
			}
			s.record(ev.(events.ChargerUpdate))
		}
	}
}

// record keeps at most one point per interval and caps the trail, so
// the buffer covers roughly interval*maxPoints of charge time (one
// hour at the defaults, like the original on-screen graph).
func (s *Service) record(ev events.ChargerUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() && ev.Time.Sub(s.last) < s.interval {
		return
	}
	s.last = ev.Time

	s.points = append(s.points, Point{
		VoltageV:     ev.VoltageV,
		CurrentMA:    ev.CurrentMA,
		TempDeltaC:   ev.TempDeltaC,
		SetpointMA:   ev.SetpointMA,
		State:        ev.State,
		DeliveredMah: ev.DeliveredMah,
		Time:         ev.Time,
	})
	if len(s.points) > s.maxPts {
		s.points = s.points[len(s.points)-s.maxPts:]
	}
}

// List returns a copy of the stored points, oldest first.
func (s *Service) List() []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Point(nil), s.points...)
}

// Latest returns the newest point, if any.
func (s *Service) Latest() (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[len(s.points)-1], true
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/history", "/", "":
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.List()); err != nil {
			s.log.Error("failed to encode history: %v", err)
		}
	case "/api/latest":
		pt, ok := s.Latest()
		if !ok {
			http.Error(w, "no data", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(pt); err != nil {
			s.log.Error("failed to encode latest: %v", err)
		}
	default:
		http.NotFound(w, r)
	}
}
