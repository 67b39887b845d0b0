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
	"testing"
	"time"

	"github.com/tlogd/tlog/trx"
)

var epoch = time.Unix(0, 0)

func TestStreamWriteCompleteRunConsumesWholeBuffer(t *testing.T) {
	c := NewChunk(64)
	s := c.Output()

	buf := []byte("ab")
	n := s.Write(trx.Root(), epoch, buf)
	if n != len(buf) {
		t.Fatalf("got n=%d, want %d", n, len(buf))
	}
	if string(s.Text()) != "ab" {
		t.Fatalf("unexpected text buffer: %q", s.Text())
	}
}

func TestStreamWriteCompleteMultiByteRuneConsumesWholeBuffer(t *testing.T) {
	c := NewChunk(64)
	s := c.Output()

	// U+00E9 (e with acute), a complete 2-byte UTF-8 sequence.
	buf := []byte{0xC3, 0xA9}
	n := s.Write(trx.Root(), epoch, buf)
	if n != len(buf) {
		t.Fatalf("got n=%d, want %d", n, len(buf))
	}
	if string(s.Text()) != string(buf) {
		t.Fatalf("unexpected text buffer: %q", s.Text())
	}
}

// TestStreamWriteSplitMultiByteCharacterConsumesWholeBuffer is the
// direct regression test for a write that ends with the accumulator
// mid-character: every byte offered was admitted, so Write must report
// the full buffer consumed even though no character was committed yet.
// Before the fix, this returned 0, which sink.Sink's retry loop reads
// as "nothing fit" and re-feeds the identical bytes forever.
func TestStreamWriteSplitMultiByteCharacterConsumesWholeBuffer(t *testing.T) {
	c := NewChunk(64)
	s := c.Output()

	// First half of the 4-byte encoding of U+1D11E (musical symbol G
	// clef): 0xF0 0x9D 0x84 0x9E.
	first := []byte{0xF0, 0x9D}
	n := s.Write(trx.Root(), epoch, first)
	if n != len(first) {
		t.Fatalf("got n=%d, want %d (split write must consume every offered byte)", n, len(first))
	}
	if len(s.Text()) != 0 {
		t.Fatalf("expected no committed text yet, got %q", s.Text())
	}

	second := []byte{0x84, 0x9E}
	n = s.Write(trx.Root(), epoch, second)
	if n != len(second) {
		t.Fatalf("got n=%d, want %d", n, len(second))
	}
	want := string([]byte{0xF0, 0x9D, 0x84, 0x9E})
	if string(s.Text()) != want {
		t.Fatalf("unexpected text buffer: %q, want %q", s.Text(), want)
	}
}

func TestStreamWriteInvalidLeadingByteConsumesByte(t *testing.T) {
	c := NewChunk(64)
	s := c.Output()

	buf := []byte{0xFF}
	n := s.Write(trx.Root(), epoch, buf)
	if n != len(buf) {
		t.Fatalf("got n=%d, want %d", n, len(buf))
	}
	if string(s.Text()) != string(replacementChar) {
		t.Fatalf("unexpected text buffer: %q", s.Text())
	}
	if string(s.Bin()) != "255" {
		t.Fatalf("unexpected bin buffer: %q", s.Bin())
	}
}

// TestStreamWriteBadContinuationByteRetriesFromSameByte exercises a
// leading byte that starts a multi-byte run followed by a byte that
// isn't a valid continuation: the run is committed as invalid (one
// byte) and the offending byte is retried as the start of its own,
// separate character rather than being silently dropped.
func TestStreamWriteBadContinuationByteRetriesFromSameByte(t *testing.T) {
	c := NewChunk(64)
	s := c.Output()

	buf := []byte{0xC3, 0x28} // 0xC3 wants a continuation byte; 0x28 ('(') isn't one.
	n := s.Write(trx.Root(), epoch, buf)
	if n != len(buf) {
		t.Fatalf("got n=%d, want %d", n, len(buf))
	}
	want := string(replacementChar) + "("
	if string(s.Text()) != want {
		t.Fatalf("unexpected text buffer: %q, want %q", s.Text(), want)
	}
	if string(s.Bin()) != "195" {
		t.Fatalf("unexpected bin buffer: %q", s.Bin())
	}
}
