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

package transport

import (
	"os"
	"testing"
	"time"
)

func TestFileWriterThenReaderRoundTrip(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tlog-*.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := NewFileWriter(f)
	if err := w.Write(1, []byte("{\"a\":1}\n")); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(2, []byte("{\"a\":2}\n")); err != nil {
		t.Fatal(err)
	}

	if _, err := f.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	r := NewFileReader(f)

	line, ok, err := r.Read()
	if err != nil || !ok || string(line) != `{"a":1}` {
		t.Fatalf("got %q, %v, %v", line, ok, err)
	}
	line, ok, err = r.Read()
	if err != nil || !ok || string(line) != `{"a":2}` {
		t.Fatalf("got %q, %v, %v", line, ok, err)
	}
	_, ok, err = r.Read()
	if err != nil || ok {
		t.Fatalf("expected clean eof, got ok=%v err=%v", ok, err)
	}
}

func TestFileReaderRejectsIncompleteLine(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "tlog-*.jsonl")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := f.WriteString(`{"a":1}` + "\n" + `{"a":2}`); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatal(err)
	}

	r := NewFileReader(f)
	if _, ok, err := r.Read(); err != nil || !ok {
		t.Fatalf("expected first line to parse cleanly, got ok=%v err=%v", ok, err)
	}
	_, ok, err := r.Read()
	if ok || err != ErrIncompleteLine {
		t.Fatalf("expected ErrIncompleteLine, got ok=%v err=%v", ok, err)
	}
}

func TestMemReaderWriterRoundTrip(t *testing.T) {
	w := NewMemWriter()
	if err := w.Write(1, []byte("line-one\n")); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(2, []byte("line-two\n")); err != nil {
		t.Fatal(err)
	}

	r := NewMemReader(w.Lines)
	line, ok, err := r.Read()
	if err != nil || !ok || string(line) != "line-one\n" {
		t.Fatalf("got %q, %v, %v", line, ok, err)
	}
	_, ok, _ = r.Read()
	if !ok {
		t.Fatal("expected second line")
	}
	_, ok, _ = r.Read()
	if ok {
		t.Fatal("expected end of stream")
	}
}

func TestRateLimitWriterDropsPastBurst(t *testing.T) {
	inner := NewMemWriter()
	w := NewRateLimitWriter(inner, time.Hour, 2)

	for i := 0; i < 5; i++ {
		if err := w.Write(uint64(i), []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	if len(inner.Lines) != 2 {
		t.Fatalf("expected burst of 2 lines forwarded, got %d", len(inner.Lines))
	}
}
