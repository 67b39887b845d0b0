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

package tlogfmt

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMarshalFieldOrderAndOmitRec(t *testing.T) {
	m := Message{
		Ver: "2.2", Host: "localhost", User: "user", Term: "xterm",
		Session: 1, ID: 1, Pos: 0, Timing: "=100x200",
	}
	line, err := Line(m)
	if err != nil {
		t.Fatal(err)
	}
	s := string(line)
	if !strings.HasSuffix(s, "\n") {
		t.Fatal("expected trailing newline")
	}
	wantOrder := []string{`"ver"`, `"host"`, `"user"`, `"term"`, `"session"`, `"id"`, `"pos"`, `"timing"`, `"in_txt"`, `"in_bin"`, `"out_txt"`, `"out_bin"`}
	last := -1
	for _, field := range wantOrder {
		idx := strings.Index(s, field)
		if idx < 0 {
			t.Fatalf("missing field %s in %s", field, s)
		}
		if idx < last {
			t.Fatalf("field %s out of order in %s", field, s)
		}
		last = idx
	}
	if strings.Contains(s, `"rec"`) {
		t.Fatal("rec should be omitted when empty")
	}
}

func TestMarshalIncludesRecWhenSet(t *testing.T) {
	m := Message{Ver: "2.2", Host: "h", Rec: "rec-1", User: "u", Term: "t", Session: 1, ID: 1}
	line, err := Line(m)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(line), `"rec":"rec-1"`) {
		t.Fatalf("expected rec field, got %s", line)
	}
}

func TestMarshalEmptyBinArraysAreBrackets(t *testing.T) {
	m := Message{Ver: "2.2", Host: "h", User: "u", Term: "t", Session: 1, ID: 1}
	line, err := Line(m)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(line), `"in_bin":[]`) || !strings.Contains(string(line), `"out_bin":[]`) {
		t.Fatalf("expected empty array literals, got %s", line)
	}
}

func TestMarshalBinArrayContents(t *testing.T) {
	m := Message{Ver: "2.2", Host: "h", User: "u", Term: "t", Session: 1, ID: 1, OutBin: "240,157,132"}
	line, err := Line(m)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(line), `"out_bin":[240,157,132]`) {
		t.Fatalf("unexpected out_bin rendering: %s", line)
	}
}

func TestMarshalOutputIsValidJSON(t *testing.T) {
	m := Message{Ver: "2.2", Host: "h", User: "u", Term: "t", Session: 1, ID: 1, InBin: "1,2"}
	line, err := Line(m)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]any
	if err := json.Unmarshal(line, &generic); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}
}
