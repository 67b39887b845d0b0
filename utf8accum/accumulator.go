// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package utf8accum

// RuneByteLength returns the number of bytes a UTF-8 character starting
// with lead is expected to occupy, or 0 if lead cannot start a
// character.
func RuneByteLength(lead byte) int {
	switch {
	case lead&0x80 == 0:
		return 1
	case lead&0xe0 == 0xc0:
		return 2
	case lead&0xf0 == 0xe0:
		return 3
	case lead&0xf8 == 0xf0:
		return 4
	default:
		return 0
	}
}

// Accumulator collects the bytes of a single UTF-8 code point, one Add
// call at a time, and reports whether the run is still in progress,
// complete, or was an invalid leading/continuation byte.
//
// The zero value is ready to use.
type Accumulator struct {
	buf      [4]byte
	length   int
	expected int
	started  bool
	ended    bool
	complete bool
}

// Add feeds b to the accumulator. It returns true if b was consumed
// into the run, false if b was rejected: an invalid leading byte, which
// ends the run empty without consuming b; a byte that is not a
// continuation byte where one is expected, which ends the run with the
// bytes collected so far without consuming b; or a byte offered after
// the run already ended.
func (a *Accumulator) Add(b byte) bool {
	if a.ended {
		return false
	}
	if !a.started {
		a.expected = RuneByteLength(b)
		if a.expected == 0 {
			// Invalid leading byte: end empty, the byte itself is not
			// admitted into the accumulator.
			a.ended = true
			return false
		}
		a.started = true
	} else {
		if b&0xc0 != 0x80 {
			// Continuation byte expected but not found: end without
			// admitting b.
			a.ended = true
			return false
		}
	}
	a.buf[a.length] = b
	a.length++
	if a.length == a.expected {
		a.ended = true
		a.complete = true
	}
	return true
}

// IsStarted reports whether at least one byte has been admitted.
func (a *Accumulator) IsStarted() bool { return a.started }

// IsEnded reports whether the run is over (complete or invalid).
func (a *Accumulator) IsEnded() bool { return a.ended }

// IsComplete reports whether the run ended as a well-formed code point.
func (a *Accumulator) IsComplete() bool { return a.complete }

// IsEmpty reports whether the run ended without admitting any byte
// (an invalid leading byte).
func (a *Accumulator) IsEmpty() bool { return a.ended && a.length == 0 }

// Len returns the number of bytes currently admitted.
func (a *Accumulator) Len() int { return a.length }

// Buf returns the admitted bytes so far. The returned slice aliases the
// accumulator's internal storage and is only valid until the next Reset.
func (a *Accumulator) Buf() []byte { return a.buf[:a.length] }

// Reset clears the accumulator so it is ready for the next code point.
func (a *Accumulator) Reset() {
	a.length = 0
	a.expected = 0
	a.started = false
	a.ended = false
	a.complete = false
}
