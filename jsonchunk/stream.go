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
	"strconv"
	"time"

	"github.com/tlogd/tlog/trx"
	"github.com/tlogd/tlog/utf8accum"
)

var replacementChar = []byte{0xEF, 0xBF, 0xBD} // U+FFFD, never needs JSON escaping

type runKind int

const (
	runNone runKind = iota
	runValid
	runInvalid
)

// Stream encodes one direction (input or output) of a chunk: the
// bytes admitted into it are split into a JSON-escaped text buffer and
// a decimal-encoded binary-escape buffer, with run-length headers
// accumulating into the owning chunk's timing buffer through a
// Dispatcher.
type Stream struct {
	dispatcher             Dispatcher
	validMark, invalidMark byte

	text, bin            []byte
	textRun, binRun       int
	textDigit, binDigit   int
	kind                  runKind

	acc utf8accum.Accumulator
}

// NewStream returns a Stream that talks to d, tagging its valid and
// invalid runs with validMark and invalidMark respectively.
func NewStream(d Dispatcher, validMark, invalidMark byte) *Stream {
	return &Stream{dispatcher: d, validMark: validMark, invalidMark: invalidMark, textDigit: 10, binDigit: 10}
}

type streamSnapshot struct {
	textLen, binLen      int
	textRun, binRun       int
	textDigit, binDigit   int
	kind                  runKind
}

// Save implements trx.Object.
func (s *Stream) Save() any {
	return streamSnapshot{
		textLen: len(s.text), binLen: len(s.bin),
		textRun: s.textRun, binRun: s.binRun,
		textDigit: s.textDigit, binDigit: s.binDigit,
		kind: s.kind,
	}
}

// Load implements trx.Object.
func (s *Stream) Load(snap any) {
	sn := snap.(streamSnapshot)
	s.text = s.text[:sn.textLen]
	s.bin = s.bin[:sn.binLen]
	s.textRun = sn.textRun
	s.binRun = sn.binRun
	s.textDigit = sn.textDigit
	s.binDigit = sn.binDigit
	s.kind = sn.kind
}

// Text returns the accumulated JSON-escaped text buffer.
func (s *Stream) Text() []byte { return s.text }

// Bin returns the accumulated decimal-encoded binary-escape buffer.
func (s *Stream) Bin() []byte { return s.bin }

// Len reports the combined byte length of the text and binary buffers
// (what the buffers cost against the chunk's budget).
func (s *Stream) Len() int { return len(s.text) + len(s.bin) }

// Write admits bytes from buf, one UTF-8 code point (or invalid byte)
// at a time, each as its own atomic commit: advance the dispatcher's
// clock to ts, encode the character into the text/binary buffers, and
// grow the run counters. It returns the number of leading bytes of buf
// that were consumed: the bytes of every committed character plus, when
// buf ends partway through a character, the bytes held for it in the
// accumulator. A return value less than len(buf) means a character
// could not be committed (budget exhausted) and must be retried, from
// the returned offset, once the chunk has been flushed.
func (s *Stream) Write(state trx.State, ts time.Time, buf []byte) int {
	idx := 0
	consumed := 0
	start := s.acc
	for idx < len(buf) {
		b := buf[idx]
		admitted := s.acc.Add(b)

		if !s.acc.IsEnded() {
			if admitted {
				idx++
			}
			continue
		}

		var raw []byte
		isValid := s.acc.IsComplete()
		switch {
		case isValid:
			raw = append([]byte(nil), s.acc.Buf()...)
			if admitted {
				idx++
			}
		case s.acc.IsEmpty():
			raw = []byte{b}
			idx++
		default:
			// Bad continuation byte: the partial run is invalid, but b
			// itself was not admitted and must be retried as the start
			// of a fresh character.
			raw = append([]byte(nil), s.acc.Buf()...)
		}

		ok := s.admitChar(state, ts, raw, isValid)
		s.acc.Reset()
		if !ok {
			if consumed == 0 {
				// The character may have begun in an earlier Write; keep
				// those bytes so the retry from offset 0 completes it.
				s.acc = start
			}
			return consumed
		}
		consumed = idx
	}
	if s.acc.IsStarted() && !s.acc.IsEnded() {
		// buf ended mid-character: every byte offered to the accumulator
		// was admitted (Add only returns false on a byte it rejects), so
		// idx itself, not consumed, is the true count of bytes absorbed.
		// consumed only advances when a character completes, which this
		// one hasn't yet.
		return idx
	}
	return consumed
}

// admitChar performs the advance + encode of one completed character
// (valid or invalid) as a single all-or-nothing step.
func (s *Stream) admitChar(state trx.State, ts time.Time, raw []byte, isValid bool) bool {
	f := trx.Begin(state, s, s.dispatcher)
	sub := f.Next()

	if !s.dispatcher.Advance(sub, ts) {
		f.Abort()
		return false
	}
	if !s.commit(sub, raw, isValid) {
		f.Abort()
		return false
	}
	f.Commit()
	return true
}

// commit encodes one already-resolved character into the buffers. It
// does not itself call Advance, so Cut (which has no timestamp to
// advance to) can reuse it directly.
func (s *Stream) commit(state trx.State, raw []byte, isValid bool) bool {
	f := trx.Begin(state, s, s.dispatcher)
	sub := f.Next()

	wantInvalid := !isValid
	if s.kind != runNone && (s.kind == runInvalid) != wantInvalid {
		if !s.flushRun(sub) {
			f.Abort()
			return false
		}
	}
	if s.kind == runNone {
		if wantInvalid {
			s.kind = runInvalid
		} else {
			s.kind = runValid
		}
	}

	var textEnc []byte
	if isValid {
		textEnc = jsonEscapeChar(raw)
	} else {
		textEnc = replacementChar
	}
	if !s.appendText(textEnc) {
		f.Abort()
		return false
	}
	if !s.bumpRun(&s.textRun, &s.textDigit) {
		f.Abort()
		return false
	}

	if !isValid {
		for _, rb := range raw {
			enc := encodeDecimalByte(rb, len(s.bin) > 0)
			if !s.appendBin(enc) {
				f.Abort()
				return false
			}
			if !s.bumpRun(&s.binRun, &s.binDigit) {
				f.Abort()
				return false
			}
		}
	}

	f.Commit()
	return true
}

func (s *Stream) appendText(data []byte) bool {
	if !s.dispatcher.Reserve(len(data)) {
		return false
	}
	s.text = append(s.text, data...)
	return true
}

func (s *Stream) appendBin(data []byte) bool {
	if !s.dispatcher.Reserve(len(data)) {
		return false
	}
	s.bin = append(s.bin, data...)
	return true
}

func (s *Stream) bumpRun(run, digit *int) bool {
	*run++
	if *run == *digit {
		if !s.dispatcher.Reserve(1) {
			*run--
			return false
		}
		*digit *= 10
	}
	return true
}

// flushRun emits the pending run's meta-record, if any, into the
// chunk's timing buffer via the dispatcher, then resets the run state.
func (s *Stream) flushRun(state trx.State) bool {
	if s.kind == runNone || s.textRun == 0 {
		return true
	}
	mark := s.validMark
	if s.kind == runInvalid {
		mark = s.invalidMark
	}
	rec := []byte{mark}
	rec = strconv.AppendInt(rec, int64(s.textRun), 10)
	if s.kind == runInvalid {
		rec = append(rec, '/')
		rec = strconv.AppendInt(rec, int64(s.binRun), 10)
	}
	if !s.dispatcher.Reserve(len(rec)) {
		return false
	}
	s.dispatcher.Write(rec)
	s.textRun = 0
	s.binRun = 0
	s.textDigit = 10
	s.binDigit = 10
	s.kind = runNone
	return true
}

// Flush emits any pending run meta-record.
func (s *Stream) Flush(state trx.State) bool {
	return s.flushRun(state)
}

// Cut forces a started-but-unfinished UTF-8 character to be treated as
// invalid, so the stream (and its owning chunk) can be flushed
// cleanly. It is a no-op if no character is in progress.
func (s *Stream) Cut(state trx.State) bool {
	if !s.acc.IsStarted() || s.acc.IsEnded() {
		return true
	}
	raw := append([]byte(nil), s.acc.Buf()...)

	f := trx.Begin(state, s, s.dispatcher)
	sub := f.Next()
	if !s.commit(sub, raw, false) {
		f.Abort()
		return false
	}
	f.Commit()
	s.acc.Reset()
	return true
}

// Empty resets the text and binary buffers and run counters to zero.
// It does not touch the in-progress UTF-8 accumulator.
func (s *Stream) Empty() {
	s.text = s.text[:0]
	s.bin = s.bin[:0]
	s.textRun = 0
	s.binRun = 0
	s.textDigit = 10
	s.binDigit = 10
	s.kind = runNone
}

func encodeDecimalByte(b byte, needComma bool) []byte {
	out := make([]byte, 0, 4)
	if needComma {
		out = append(out, ',')
	}
	return strconv.AppendInt(out, int64(b), 10)
}

// jsonEscapeChar renders one complete, valid UTF-8 code point (1-4
// bytes) as it should appear inside a JSON string: copied verbatim,
// except for the standard short escapes and \u00XX for the C0 control
// range and DEL.
func jsonEscapeChar(raw []byte) []byte {
	if len(raw) != 1 {
		return raw
	}
	switch raw[0] {
	case '"':
		return []byte(`\"`)
	case '\\':
		return []byte(`\\`)
	case '\b':
		return []byte(`\b`)
	case '\f':
		return []byte(`\f`)
	case '\n':
		return []byte(`\n`)
	case '\r':
		return []byte(`\r`)
	case '\t':
		return []byte(`\t`)
	}
	b := raw[0]
	if b < 0x20 || b == 0x7f {
		const hex = "0123456789abcdef"
		return []byte{'\\', 'u', '0', '0', hex[b>>4], hex[b&0xf]}
	}
	return raw
}
