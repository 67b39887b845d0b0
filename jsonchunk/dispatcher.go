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

// Package jsonchunk turns a sequence of timestamped terminal packets
// into a bounded, budget-aware workspace that serializes to the
// chunked JSON line format, and provides the matching stream encoder
// used by one direction (input or output) of a chunk.
package jsonchunk

import (
	"time"

	"github.com/tlogd/tlog/trx"
)

// Dispatcher is the callback trio a Stream uses to cooperate with its
// owning Chunk. A Stream never holds a back-pointer to its Chunk; it
// only ever talks through this interface, which the Chunk implements.
//
// Dispatcher embeds trx.Object so that a Stream's per-character
// transaction frame can list the dispatcher as a participating object:
// that is what lets a failed reservation roll back budget and timing
// state that live on the Chunk, not just the Stream's own buffers.
type Dispatcher interface {
	trx.Object

	// Advance records passage of wall time, flushing pending run
	// meta-records and possibly emitting a delay record. It returns
	// false (with no mutation performed) if doing so would overflow
	// the chunk's budget.
	Advance(state trx.State, ts time.Time) bool

	// Reserve charges n bytes against the chunk's remaining budget,
	// additionally charging the chunk's pending window record if one
	// is owed. It returns false (with no mutation) on insufficient
	// budget.
	Reserve(n int) bool

	// Write appends bytes to the chunk's timing buffer, first
	// emitting any pending window record ahead of them.
	Write(b []byte)
}
