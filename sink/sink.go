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

// Package sink frames a jsonchunk.Chunk into the line-delimited JSON
// record format and hands finished lines to a transport.Writer.
package sink

import (
	"time"

	"github.com/tlogd/tlog/jsonchunk"
	"github.com/tlogd/tlog/packet"
	"github.com/tlogd/tlog/tlogfmt"
	"github.com/tlogd/tlog/transport"
	"github.com/tlogd/tlog/trx"
)

// Identity is the (host, user, terminal, session, recording) tuple
// that tags every record a Sink emits.
type Identity struct {
	Host    string
	Rec     string // optional
	User    string
	Term    string
	Session uint32
}

// Sink accumulates packets into a bounded chunk and emits it as a
// line-delimited JSON record whenever the chunk would overflow or is
// explicitly flushed.
type Sink struct {
	identity Identity
	writer   transport.Writer
	chunk    *jsonchunk.Chunk

	id    uint64
	start time.Time
}

// New returns a Sink with the given chunk byte budget, writing
// through w. start is the session's epoch, used to compute each
// record's pos field.
func New(identity Identity, w transport.Writer, chunkSize int, start time.Time) *Sink {
	return &Sink{
		identity: identity,
		writer:   w,
		chunk:    jsonchunk.NewChunk(chunkSize),
		id:       1,
		start:    start,
	}
}

// Write admits pkt into the current chunk, flushing and retrying as
// many times as necessary for it to fully fit.
func (s *Sink) Write(state trx.State, pkt packet.Packet) error {
	pos := packet.VoidPosition()
	for {
		newPos, fit := s.chunk.WritePacket(state, pkt, pos)
		pos = newPos
		if fit {
			return nil
		}
		if err := s.Flush(state); err != nil {
			return err
		}
	}
}

// Cut forces any in-progress UTF-8 character to be materialized as an
// invalid run, so the chunk can be flushed cleanly.
func (s *Sink) Cut(state trx.State) bool {
	return s.chunk.Cut(state)
}

// Flush serializes the chunk into one JSON line and hands it to the
// writer, if the chunk is non-empty. On success the chunk is emptied
// and the sink's id advances.
func (s *Sink) Flush(state trx.State) error {
	if s.chunk.IsEmpty() {
		return nil
	}
	if !s.chunk.Flush(state) {
		return errChunkOverflow
	}

	msg := tlogfmt.Message{
		Ver:     "2.2",
		Host:    s.identity.Host,
		Rec:     s.identity.Rec,
		User:    s.identity.User,
		Term:    s.identity.Term,
		Session: s.identity.Session,
		ID:      s.id,
		Pos:     s.chunk.FirstTimestamp().Sub(s.start).Milliseconds(),
		Timing:  string(s.chunk.Timing()),
		InTxt:   string(s.chunk.Input().Text()),
		InBin:   string(s.chunk.Input().Bin()),
		OutTxt:  string(s.chunk.Output().Text()),
		OutBin:  string(s.chunk.Output().Bin()),
	}

	line, err := tlogfmt.Line(msg)
	if err != nil {
		return err
	}
	if err := s.writer.Write(s.id, line); err != nil {
		return err
	}

	s.id++
	s.chunk.Empty()
	return nil
}
