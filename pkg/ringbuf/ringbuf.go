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

package ringbuf

// Buffer is a fixed-capacity circular buffer of float64 samples.
// Once full, each Push evicts the oldest sample, so the buffer always
// holds the most recent N values.
type Buffer struct {
	data  []float64
	head  int
	count int
}

func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{data: make([]float64, capacity)}
}

// Push appends v, evicting the oldest sample when at capacity.
func (b *Buffer) Push(v float64) {
	b.data[b.head] = v
	b.head = (b.head + 1) % len(b.data)
	if b.count < len(b.data) {
		b.count++
	}
}

// Latest returns the most recently pushed value, or 0 when empty.
func (b *Buffer) Latest() float64 {
	if b.count == 0 {
		return 0
	}
	idx := (b.head - 1 + len(b.data)) % len(b.data)
	return b.data[idx]
}

// Max returns the largest stored value, or 0 when empty.
func (b *Buffer) Max() float64 {
	if b.count == 0 {
		return 0
	}
	max := b.data[0]
	for i := 1; i < b.count; i++ {
		if b.data[i] > max {
			max = b.data[i]
		}
	}
	return max
}

// Full reports whether the buffer has been filled at least once.
func (b *Buffer) Full() bool {
	return b.count == len(b.data)
}

func (b *Buffer) Len() int {
	return b.count
}

func (b *Buffer) Cap() int {
	return len(b.data)
}

// Reset discards all stored samples.
func (b *Buffer) Reset() {
	b.head = 0
	b.count = 0
}
