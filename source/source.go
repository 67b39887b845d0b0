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

// Package source turns a transport.Reader of wire-level JSON records
// back into the packet sequence a sink originally encoded, enforcing
// cross-message ordering and collapsing redundant window repeats.
package source

import (
	"errors"
	"time"

	"github.com/tlogd/tlog/msg"
	"github.com/tlogd/tlog/packet"
	"github.com/tlogd/tlog/transport"
	"github.com/tlogd/tlog/utf8accum"
)

var errNoMore = errors.New("source: end of stream")

// Filter decides whether messages belonging to the given identity
// should be yielded at all. A nil filter accepts everything.
type Filter func(host, user string, session uint32) bool

const (
	dirInput  = 0
	dirOutput = 1
)

type runKind int

const (
	runNone runKind = iota
	runText
	runBinary
)

// Source reassembles packets from a transport.Reader.
type Source struct {
	reader transport.Reader
	filter Filter
	lax    bool
	ioSize int
	epoch  time.Time

	cur    *msg.Msg
	cursor *msg.Cursor
	curPos int64

	pending   *msg.Record
	haveRun   bool
	runDir    int
	kind      runKind
	remaining uint64 // text: characters left; binary: bytes left

	textOff [2]int
	binOff  [2]int

	haveLastID bool
	lastID     uint64

	haveLastTS bool
	lastTS     time.Time

	haveLastWindow          bool
	lastWindowW, lastWindowH uint16

	ioBuf []byte
}

// New returns a Source reading records from r. epoch is the wall-clock
// instant that pos=0 corresponds to; ioSize bounds each emitted IO
// packet's payload.
func New(r transport.Reader, epoch time.Time, ioSize int, lax bool, filter Filter) *Source {
	return &Source{reader: r, epoch: epoch, ioSize: ioSize, lax: lax, filter: filter, ioBuf: make([]byte, 0, ioSize)}
}

// Read returns the next packet. A Void packet with a nil error means
// clean end-of-stream. A non-nil error means one message was dropped
// (its error recorded and the source already advanced past it); the
// caller should call Read again to continue.
func (s *Source) Read() (packet.Packet, error) {
	for {
		if s.cur == nil {
			if err := s.openNext(); err != nil {
				if err == errNoMore {
					return packet.Void(), nil
				}
				return packet.Void(), err
			}
			if s.cur == nil {
				continue // filtered out, try the next line
			}
		}

		pkt, done, err := s.advance()
		if err != nil {
			s.cur = nil
			s.haveRun = false
			s.pending = nil
			return packet.Void(), err
		}
		if done {
			s.cur = nil
			s.haveRun = false
			s.pending = nil
			continue
		}
		if pkt.IsVoid() {
			continue
		}
		if pkt.Kind == packet.KindWindow {
			if s.haveLastWindow && s.lastWindowW == pkt.Width && s.lastWindowH == pkt.Height {
				continue
			}
			s.haveLastWindow = true
			s.lastWindowW = pkt.Width
			s.lastWindowH = pkt.Height
		}
		return pkt, nil
	}
}

func (s *Source) openNext() error {
	line, ok, err := s.reader.Read()
	if err != nil {
		return err
	}
	if !ok {
		return errNoMore
	}
	m, err := msg.Parse(line)
	if err != nil {
		return err
	}
	if s.filter != nil && !s.filter(m.Host, m.User, m.Session) {
		s.cur = nil
		return nil
	}
	if s.haveLastID {
		if s.lax {
			if m.ID <= s.lastID {
				return &Error{Kind: MsgIdOutOfOrder}
			}
		} else if m.ID != s.lastID+1 {
			return &Error{Kind: MsgIdOutOfOrder}
		}
	}
	s.haveLastID = true
	s.lastID = m.ID

	s.cur = m
	s.cursor = m.Cursor()
	s.curPos = m.Pos
	s.textOff = [2]int{}
	s.binOff = [2]int{}
	s.haveRun = false
	s.pending = nil
	return nil
}

func textOf(m *msg.Msg, dir int) string {
	if dir == dirOutput {
		return m.OutTxt
	}
	return m.InTxt
}

func binOf(m *msg.Msg, dir int) []byte {
	if dir == dirOutput {
		return m.OutBin
	}
	return m.InBin
}

func (s *Source) timestamp() time.Time {
	return s.epoch.Add(time.Duration(s.curPos) * time.Millisecond)
}

func (s *Source) checkTS(ts time.Time) error {
	if s.haveLastTS && ts.Before(s.lastTS) {
		return &Error{Kind: PktTsOutOfOrder}
	}
	s.haveLastTS = true
	s.lastTS = ts
	return nil
}

// advance runs the chunk-level read algorithm for one call: it scans
// as many timing records as needed to either produce one packet or
// determine the message is exhausted.
func (s *Source) advance() (packet.Packet, bool, error) {
	buf := s.ioBuf[:0]
	bufDir := -1

	for {
		if !s.haveRun {
			var rec msg.Record
			if s.pending != nil {
				rec = *s.pending
				s.pending = nil
			} else {
				r, ok, err := s.cursor.Next()
				if err != nil {
					return packet.Void(), false, err
				}
				if !ok {
					if len(buf) > 0 {
						return s.emitIO(bufDir, buf)
					}
					return packet.Void(), true, nil
				}
				rec = r
			}

			switch rec.Type {
			case msg.RecDelay:
				if len(buf) > 0 {
					s.pending = &rec
					return s.emitIO(bufDir, buf)
				}
				s.curPos += int64(rec.DelayMillis)
				continue

			case msg.RecWindow:
				if len(buf) > 0 {
					s.pending = &rec
					return s.emitIO(bufDir, buf)
				}
				ts := s.timestamp()
				if err := s.checkTS(ts); err != nil {
					return packet.Void(), false, err
				}
				return packet.NewWindow(ts, rec.Width, rec.Height), false, nil

			case msg.RecInputText, msg.RecOutputText:
				dir := dirInput
				if rec.Type == msg.RecOutputText {
					dir = dirOutput
				}
				s.haveRun = true
				s.runDir = dir
				s.kind = runText
				s.remaining = rec.Count

			case msg.RecInputBinary, msg.RecOutputBinary:
				dir := dirInput
				if rec.Type == msg.RecOutputBinary {
					dir = dirOutput
				}
				text := textOf(s.cur, dir)
				off := s.textOff[dir]
				for i := uint64(0); i < rec.CharCount; i++ {
					if off >= len(text) {
						return packet.Void(), false, errMalformedRun
					}
					n := utf8accum.RuneByteLength(text[off])
					if n == 0 || off+n > len(text) {
						return packet.Void(), false, errMalformedRun
					}
					off += n
				}
				s.textOff[dir] = off
				s.haveRun = true
				s.runDir = dir
				s.kind = runBinary
				s.remaining = rec.ByteCount
			}
		}

		if !s.haveRun {
			continue
		}
		if bufDir != -1 && bufDir != s.runDir {
			return s.emitIO(bufDir, buf)
		}
		bufDir = s.runDir

		switch s.kind {
		case runText:
			text := textOf(s.cur, s.runDir)
			for s.remaining > 0 && len(buf) < s.ioSize {
				off := s.textOff[s.runDir]
				if off >= len(text) {
					return packet.Void(), false, errMalformedRun
				}
				n := utf8accum.RuneByteLength(text[off])
				if n == 0 || off+n > len(text) || len(buf)+n > s.ioSize {
					if len(buf) == 0 {
						return packet.Void(), false, errMalformedRun
					}
					break
				}
				buf = append(buf, text[off:off+n]...)
				s.textOff[s.runDir] = off + n
				s.remaining--
			}
		case runBinary:
			bin := binOf(s.cur, s.runDir)
			for s.remaining > 0 && len(buf) < s.ioSize {
				off := s.binOff[s.runDir]
				if off >= len(bin) {
					return packet.Void(), false, errMalformedRun
				}
				buf = append(buf, bin[off])
				s.binOff[s.runDir] = off + 1
				s.remaining--
			}
		}

		if s.remaining == 0 {
			s.haveRun = false
			s.kind = runNone
		}
		if len(buf) >= s.ioSize {
			return s.emitIO(bufDir, buf)
		}
	}
}

func (s *Source) emitIO(dir int, buf []byte) (packet.Packet, bool, error) {
	ts := s.timestamp()
	if err := s.checkTS(ts); err != nil {
		return packet.Void(), false, err
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return packet.NewIO(ts, dir == dirOutput, out), false, nil
}
