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

package jsonchunk

import (
	"fmt"
	"time"

	"github.com/tlogd/tlog/packet"
	"github.com/tlogd/tlog/trx"
)

type windowState int

const (
	windowVoid windowState = iota
	windowKnown
	windowReserved
	windowWritten
)

// Chunk is a bounded workspace holding one input stream, one output
// stream, a timing buffer, and a window-size state machine. It
// implements Dispatcher for its two streams.
//
// Invariant: len(timing) + input.Len() + output.Len() + remaining <=
// size. The sum falls short of size by budget charged without bytes
// written yet: Reserve charges a pending window record before Write
// emits it, and a run counter reaching a power of ten charges one byte.
type Chunk struct {
	size      int
	remaining int

	input  *Stream
	output *Stream

	timing []byte

	gotTS           bool
	firstTS, lastTS time.Time

	winState              windowState
	lastWidth, lastHeight uint16
}

// NewChunk returns an empty chunk with the given byte budget.
func NewChunk(size int) *Chunk {
	c := &Chunk{size: size, remaining: size}
	c.input = NewStream(c, '<', '[')
	c.output = NewStream(c, '>', ']')
	return c
}

// Input returns the chunk's input-direction stream.
func (c *Chunk) Input() *Stream { return c.input }

// Output returns the chunk's output-direction stream.
func (c *Chunk) Output() *Stream { return c.output }

// Timing returns the accumulated timing-script bytes.
func (c *Chunk) Timing() []byte { return c.timing }

// FirstTimestamp returns the timestamp of the chunk's first admitted
// packet. Only meaningful once IsEmpty reports false.
func (c *Chunk) FirstTimestamp() time.Time { return c.firstTS }

// IsEmpty reports whether the chunk holds no data at all.
func (c *Chunk) IsEmpty() bool {
	return len(c.timing) == 0 && c.input.Len() == 0 && c.output.Len() == 0
}

type chunkSnapshot struct {
	remaining             int
	timingLen             int
	gotTS                 bool
	firstTS, lastTS       time.Time
	winState              windowState
	lastWidth, lastHeight uint16
}

// Save implements trx.Object.
func (c *Chunk) Save() any {
	return chunkSnapshot{
		remaining: c.remaining, timingLen: len(c.timing),
		gotTS: c.gotTS, firstTS: c.firstTS, lastTS: c.lastTS,
		winState: c.winState, lastWidth: c.lastWidth, lastHeight: c.lastHeight,
	}
}

// Load implements trx.Object.
func (c *Chunk) Load(snap any) {
	sn := snap.(chunkSnapshot)
	c.remaining = sn.remaining
	c.timing = c.timing[:sn.timingLen]
	c.gotTS = sn.gotTS
	c.firstTS = sn.firstTS
	c.lastTS = sn.lastTS
	c.winState = sn.winState
	c.lastWidth = sn.lastWidth
	c.lastHeight = sn.lastHeight
}

func windowRecord(w, h uint16) []byte {
	return []byte(fmt.Sprintf("=%dx%d", w, h))
}

// Reserve implements Dispatcher.
func (c *Chunk) Reserve(n int) bool {
	extra := 0
	if c.winState == windowKnown {
		extra = len(windowRecord(c.lastWidth, c.lastHeight))
	}
	if c.remaining < extra+n {
		return false
	}
	if extra > 0 {
		c.remaining -= extra
		c.winState = windowReserved
	}
	c.remaining -= n
	return true
}

// Write implements Dispatcher: it appends to the timing buffer,
// emitting any pending window record first.
func (c *Chunk) Write(b []byte) {
	if c.winState == windowReserved {
		c.timing = append(c.timing, windowRecord(c.lastWidth, c.lastHeight)...)
		c.winState = windowWritten
	}
	c.timing = append(c.timing, b...)
}

// Advance implements Dispatcher: the delay encoder described in the
// component design. The first call establishes the chunk's epoch and
// emits nothing; later calls emit a `+<ms>` (or `+<sec><ms>`) record
// for the elapsed time since the last call, if any.
func (c *Chunk) Advance(state trx.State, ts time.Time) bool {
	f := trx.Begin(state, c.input, c.output, c)
	sub := f.Next()

	if !c.input.Flush(sub) {
		f.Abort()
		return false
	}
	if !c.output.Flush(sub) {
		f.Abort()
		return false
	}

	if !c.gotTS {
		c.gotTS = true
		c.firstTS = ts
		c.lastTS = ts
		f.Commit()
		return true
	}

	delay := ts.Sub(c.lastTS)
	if delay < 0 {
		delay = 0
	}
	sec := int64(delay / time.Second)
	ms := int64((delay % time.Second) / time.Millisecond)

	var rec []byte
	switch {
	case sec > 0:
		rec = []byte(fmt.Sprintf("+%d%03d", sec, ms))
	case ms > 0:
		rec = []byte(fmt.Sprintf("+%d", ms))
	}
	if len(rec) > 0 {
		if !c.Reserve(len(rec)) {
			f.Abort()
			return false
		}
		c.Write(rec)
	}
	c.lastTS = ts
	f.Commit()
	return true
}

// WritePacket admits pkt's remaining bytes (from pos onward) into the
// chunk, dispatching by packet kind. It returns the new position and
// whether the packet's remainder was fully consumed.
func (c *Chunk) WritePacket(state trx.State, pkt packet.Packet, pos packet.Position) (packet.Position, bool) {
	switch pkt.Kind {
	case packet.KindIO:
		return c.writeIO(state, pkt, pos)
	case packet.KindWindow:
		return c.writeWindow(state, pkt, pos)
	default:
		return pos, true
	}
}

func (c *Chunk) writeIO(state trx.State, pkt packet.Packet, pos packet.Position) (packet.Position, bool) {
	s := c.input
	if pkt.Output {
		s = c.output
	}
	buf := pkt.Bytes[pos.Offset():]
	n := s.Write(state, pkt.Timestamp, buf)
	newPos := pos.MovedBy(n)
	return newPos, n == len(buf)
}

func (c *Chunk) writeWindow(state trx.State, pkt packet.Packet, pos packet.Position) (packet.Position, bool) {
	if c.winState != windowVoid && c.lastWidth == pkt.Width && c.lastHeight == pkt.Height {
		return pos.MovedPast(pkt), true
	}

	f := trx.Begin(state, c.input, c.output, c)
	sub := f.Next()

	// Advance already flushes both streams' pending runs before
	// encoding the delay record.
	if !c.Advance(sub, pkt.Timestamp) {
		f.Abort()
		return pos, false
	}

	c.winState = windowKnown
	c.lastWidth = pkt.Width
	c.lastHeight = pkt.Height
	if !c.Reserve(0) {
		f.Abort()
		return pos, false
	}
	c.Write(nil)

	f.Commit()
	return pos.MovedPast(pkt), true
}

// Flush emits both streams' pending run meta-records.
func (c *Chunk) Flush(state trx.State) bool {
	f := trx.Begin(state, c.input, c.output, c)
	sub := f.Next()
	if !c.input.Flush(sub) {
		f.Abort()
		return false
	}
	if !c.output.Flush(sub) {
		f.Abort()
		return false
	}
	f.Commit()
	return true
}

// Cut runs Cut on both streams inside one transaction; on failure
// nothing changes.
func (c *Chunk) Cut(state trx.State) bool {
	f := trx.Begin(state, c.input, c.output, c)
	sub := f.Next()
	if !c.input.Cut(sub) {
		f.Abort()
		return false
	}
	if !c.output.Cut(sub) {
		f.Abort()
		return false
	}
	f.Commit()
	return true
}

// Empty resets the chunk to be reused for the next message, demoting
// a Reserved or Written window back to Known so the next message
// re-emits it.
func (c *Chunk) Empty() {
	c.remaining = c.size
	c.timing = c.timing[:0]
	c.gotTS = false
	c.firstTS = time.Time{}
	c.lastTS = time.Time{}
	c.input.Empty()
	c.output.Empty()
	if c.winState == windowReserved || c.winState == windowWritten {
		c.winState = windowKnown
	}
}
