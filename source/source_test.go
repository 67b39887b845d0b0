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

package source

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tlogd/tlog/packet"
	"github.com/tlogd/tlog/sink"
	"github.com/tlogd/tlog/trx"
)

// lineReader is a minimal transport.Reader over an in-memory buffer,
// used to feed a sink's output straight back into a source.
type lineReader struct {
	scanner *bufio.Scanner
}

func newLineReader(data []byte) *lineReader {
	return &lineReader{scanner: bufio.NewScanner(bytes.NewReader(data))}
}

func (r *lineReader) Read() ([]byte, bool, error) {
	if !r.scanner.Scan() {
		return nil, false, r.scanner.Err()
	}
	return r.scanner.Bytes(), true, nil
}

type memWriter struct {
	buf bytes.Buffer
}

func (w *memWriter) Write(id uint64, line []byte) error {
	w.buf.Write(line)
	return nil
}

func TestRoundTripCyclicPayload(t *testing.T) {
	epoch := time.Unix(0, 0)
	w := &memWriter{}
	s := sink.New(sink.Identity{Host: "localhost", User: "user", Session: 1}, w, 2048, epoch)

	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}
	if err := s.Write(trx.Root(), packet.NewIO(epoch, true, payload)); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(trx.Root()); err != nil {
		t.Fatal(err)
	}

	src := New(newLineReader(w.buf.Bytes()), epoch, 256, false, nil)
	var got []byte
	for {
		pkt, err := src.Read()
		if err != nil {
			t.Fatalf("unexpected source error: %v", err)
		}
		if pkt.IsVoid() {
			break
		}
		if pkt.Kind == packet.KindIO {
			got = append(got, pkt.Bytes...)
		}
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestRoundTripWindowAndTwoDirections(t *testing.T) {
	epoch := time.Unix(0, 0)
	w := &memWriter{}
	s := sink.New(sink.Identity{Host: "localhost", User: "user", Session: 1}, w, 64, epoch)

	if err := s.Write(trx.Root(), packet.NewWindow(epoch, 80, 24)); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(trx.Root(), packet.NewIO(epoch, false, []byte("hi"))); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(trx.Root()); err != nil {
		t.Fatal(err)
	}

	src := New(newLineReader(w.buf.Bytes()), epoch, 256, false, nil)

	pkt, err := src.Read()
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Kind != packet.KindWindow || pkt.Width != 80 || pkt.Height != 24 {
		t.Fatalf("expected window packet, got %+v", pkt)
	}

	pkt, err = src.Read()
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Kind != packet.KindIO || pkt.Output || string(pkt.Bytes) != "hi" {
		t.Fatalf("expected input IO packet \"hi\", got %+v", pkt)
	}

	pkt, err = src.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !pkt.IsVoid() {
		t.Fatalf("expected end of stream, got %+v", pkt)
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	lines := `{"ver":"2.2","host":"localhost","user":"user","term":"","session":1,"id":1,"pos":0,"timing":"=1x1","in_txt":"","out_txt":"","in_bin":[],"out_bin":[]}
{"ver":"2.2","host":"localhost","user":"user","term":"","session":1,"id":1,"pos":0,"timing":"=2x2","in_txt":"","out_txt":"","in_bin":[],"out_bin":[]}
`
	src := New(newLineReader([]byte(lines)), time.Unix(0, 0), 256, false, nil)

	if _, err := src.Read(); err != nil {
		t.Fatalf("first message should pass, got %v", err)
	}
	_, err := src.Read()
	srcErr, ok := err.(*Error)
	if !ok || srcErr.Kind != MsgIdOutOfOrder {
		t.Fatalf("expected MsgIdOutOfOrder, got %v", err)
	}
}

func TestGappedIDRejectedUnlessLax(t *testing.T) {
	lines := `{"ver":"2.2","host":"localhost","user":"user","term":"","session":1,"id":1,"pos":0,"timing":"=1x1","in_txt":"","out_txt":"","in_bin":[],"out_bin":[]}
{"ver":"2.2","host":"localhost","user":"user","term":"","session":1,"id":3,"pos":0,"timing":"=2x2","in_txt":"","out_txt":"","in_bin":[],"out_bin":[]}
`
	strict := New(newLineReader([]byte(lines)), time.Unix(0, 0), 256, false, nil)
	if _, err := strict.Read(); err != nil {
		t.Fatal(err)
	}
	_, err := strict.Read()
	srcErr, ok := err.(*Error)
	if !ok || srcErr.Kind != MsgIdOutOfOrder {
		t.Fatalf("expected MsgIdOutOfOrder in strict mode, got %v", err)
	}

	lax := New(newLineReader([]byte(lines)), time.Unix(0, 0), 256, true, nil)
	if _, err := lax.Read(); err != nil {
		t.Fatal(err)
	}
	if _, err := lax.Read(); err != nil {
		t.Fatalf("expected gap tolerated in lax mode, got %v", err)
	}
}

func TestIdentityFilterDropsMessage(t *testing.T) {
	lines := `{"ver":"2.2","host":"other","user":"user","term":"","session":1,"id":1,"pos":0,"timing":"=1x1","in_txt":"","out_txt":"","in_bin":[],"out_bin":[]}
{"ver":"2.2","host":"localhost","user":"user","term":"","session":1,"id":1,"pos":0,"timing":"=2x2","in_txt":"","out_txt":"","in_bin":[],"out_bin":[]}
`
	filter := func(host, user string, session uint32) bool { return host == "localhost" }
	src := New(newLineReader([]byte(lines)), time.Unix(0, 0), 256, false, filter)
	pkt, err := src.Read()
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Kind != packet.KindWindow || pkt.Width != 2 {
		t.Fatalf("expected the second message's window (2x2), got %+v", pkt)
	}
}

func TestEmptyStreamYieldsVoid(t *testing.T) {
	src := New(newLineReader([]byte(strings.Repeat("", 0))), time.Unix(0, 0), 256, false, nil)
	pkt, err := src.Read()
	if err != nil {
		t.Fatal(err)
	}
	if !pkt.IsVoid() {
		t.Fatal("expected void packet on empty stream")
	}
}
