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
	"sync"
	"time"
)

// SimBoard is a crude NiMH pack model for development without hardware.
// The pack charges in proportion to the commanded duty, its voltage
// rises with state of charge, peaks slightly past full and then sags
// (the -dV signature), and its temperature climbs once overcharging
// begins.
type SimBoard struct {
	CellCount    int
	CapacityMah  float64
	MaxCurrentMA float64 // current at full duty
	AmbientC     float64

	mu        sync.Mutex
	duty      float64
	chargeMah float64
	tempC     float64
	lastRead  time.Time
}

var _ Board = (*SimBoard)(nil)

func NewSimBoard(cellCount int, capacityMah float64) *SimBoard {
	return &SimBoard{
		CellCount:    cellCount,
		CapacityMah:  capacityMah,
		MaxCurrentMA: 2000,
		AmbientC:     21.0,
		chargeMah:    0.2 * capacityMah, // partially discharged pack
		tempC:        21.0,
	}
}

func (b *SimBoard) Read(ctx context.Context) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if !b.lastRead.IsZero() {
		b.step(now.Sub(b.lastRead).Hours())
	}
	b.lastRead = now

	return Snapshot{
		VoltageV:     b.voltage(),
		CurrentMA:    b.current(),
		BatteryTempC: b.tempC,
		AmbientTempC: b.AmbientC,
	}, nil
}

func (b *SimBoard) SetDuty(ctx context.Context, duty float64) error {
	b.mu.Lock()
	b.duty = duty
	b.mu.Unlock()
	return nil
}

func (b *SimBoard) step(dtHours float64) {
	i := b.current()
	b.chargeMah += i * dtHours

	soc := b.chargeMah / b.CapacityMah
	if soc > 1.0 {
		// charge past full dissipates as heat, ~3°C per percent overcharge
		b.tempC += (soc - 1.0) * 300 * dtHours
	} else {
		// slow relaxation toward ambient plus mild charging warmth
		b.tempC += (b.AmbientC + 2 - b.tempC) * 0.5 * dtHours
	}
}

func (b *SimBoard) current() float64 {
	return b.duty / 255.0 * b.MaxCurrentMA
}

// voltage approximates the NiMH charge curve per cell: a steep initial
// rise, a long plateau, a peak around full and a sag past it.
func (b *SimBoard) voltage() float64 {
	soc := b.chargeMah / b.CapacityMah
	var cell float64
	switch {
	case soc < 0.1:
		cell = 1.20 + soc*0.8 // 1.20 -> 1.28
	case soc < 0.9:
		cell = 1.28 + (soc-0.1)*0.15 // slow plateau climb to 1.40
	case soc < 1.05:
		cell = 1.40 + (soc-0.9)*0.67 // push to the ~1.50 peak
	default:
		cell = 1.50 - (soc-1.05)*0.4 // the -dV sag
	}
	// loaded voltage rises a little with charge current (IR drop)
	cell += b.current() / b.MaxCurrentMA * 0.05
	return cell * float64(b.CellCount)
}
