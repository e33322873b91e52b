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

package history

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"chargerd/internal/config"
	"chargerd/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(intervalSec, maxPts int) *Service {
	conf := config.Default()
	conf.History.IntervalSeconds = intervalSec
	conf.History.MaxPoints = maxPts
	return New(conf)
}

func update(state string, v float64, at time.Time) events.ChargerUpdate {
	return events.ChargerUpdate{
		State:      state,
		VoltageV:   v,
		CurrentMA:  500,
		SetpointMA: 1000,
		Time:       at,
	}
}

func TestRecordCadence(t *testing.T) {
	s := newTestService(5, 100)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.record(update("CHARGING", 4.80, t0))

	// control ticks arrive every 100ms; only one point per interval sticks
	for i := 1; i < 50; i++ {
		s.record(update("CHARGING", 4.81, t0.Add(time.Duration(i)*100*time.Millisecond)))
	}
	assert.Len(t, s.List(), 1)

	s.record(update("CHARGING", 4.82, t0.Add(5*time.Second)))
	require.Len(t, s.List(), 2)

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, 4.82, latest.VoltageV)
}

func TestTrailIsBounded(t *testing.T) {
	s := newTestService(1, 10)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		s.record(update("CHARGING", float64(i), t0.Add(time.Duration(i)*time.Second)))
	}

	pts := s.List()
	require.Len(t, pts, 10)

	// oldest points are evicted, newest survive in order
	assert.Equal(t, 15.0, pts[0].VoltageV)
	assert.Equal(t, 24.0, pts[9].VoltageV)
}

func TestServeHistory(t *testing.T) {
	s := newTestService(1, 10)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.record(update("CHARGING", 4.8, t0))
	s.record(update("TRICKLE", 5.9, t0.Add(time.Second)))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/api/history", nil))
	require.Equal(t, 200, rec.Code)

	var pts []Point
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pts))
	require.Len(t, pts, 2)
	assert.Equal(t, "CHARGING", pts[0].State)
	assert.Equal(t, "TRICKLE", pts[1].State)
}

func TestServeLatest(t *testing.T) {
	s := newTestService(1, 10)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/api/latest", nil))
	assert.Equal(t, 404, rec.Code, "no data yet")

	s.record(update("CHARGING", 4.8, time.Now()))

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/api/latest", nil))
	require.Equal(t, 200, rec.Code)

	var pt Point
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pt))
	assert.Equal(t, 4.8, pt.VoltageV)
}
