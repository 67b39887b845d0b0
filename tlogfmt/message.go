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

// Package tlogfmt is the wire-level JSON object emitted by the sink
// and consumed by the message parser: field order, optional-field
// rules and byte-array rendering are fixed here, independent of
// either the encoder (jsonchunk) or the decoder (msg).
package tlogfmt

import (
	"bytes"
	"encoding/json"
)

// Message is one tlog record, field order exactly as it appears on
// the wire.
type Message struct {
	Ver     string
	Host    string
	Rec     string // optional; omitted from the wire when empty
	User    string
	Term    string
	Session uint32
	ID      uint64
	Pos     int64 // milliseconds since session start
	Timing string
	// InTxt and OutTxt hold the already JSON-escaped string body (no
	// surrounding quotes), exactly as a jsonchunk.Stream's text buffer
	// produces it; they are written verbatim, not passed through
	// encoding/json a second time.
	InTxt string
	// InBin and OutBin hold the already-rendered, comma-joined list of
	// decimal byte values (no surrounding brackets), exactly as a
	// jsonchunk.Stream's binary buffer produces it.
	InBin  string
	OutTxt string
	OutBin string
}

// MarshalJSON renders m in the fixed field order the schema requires,
// terminated (by the caller) with a trailing newline.
func (m Message) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	field := func(name string, v any) error {
		var enc bytes.Buffer
		e := json.NewEncoder(&enc)
		e.SetEscapeHTML(false) // keep the timing script's '<' and '>' literal
		if err := e.Encode(v); err != nil {
			return err
		}
		buf.WriteByte('"')
		buf.WriteString(name)
		buf.WriteString(`":`)
		buf.Write(bytes.TrimSuffix(enc.Bytes(), []byte("\n")))
		return nil
	}

	comma := func() { buf.WriteByte(',') }

	if err := field("ver", m.Ver); err != nil {
		return nil, err
	}
	comma()
	if err := field("host", m.Host); err != nil {
		return nil, err
	}
	if m.Rec != "" {
		comma()
		if err := field("rec", m.Rec); err != nil {
			return nil, err
		}
	}
	comma()
	if err := field("user", m.User); err != nil {
		return nil, err
	}
	comma()
	if err := field("term", m.Term); err != nil {
		return nil, err
	}
	comma()
	if err := field("session", m.Session); err != nil {
		return nil, err
	}
	comma()
	if err := field("id", m.ID); err != nil {
		return nil, err
	}
	comma()
	if err := field("pos", m.Pos); err != nil {
		return nil, err
	}
	comma()
	if err := field("timing", m.Timing); err != nil {
		return nil, err
	}
	comma()
	buf.WriteString(`"in_txt":"`)
	buf.WriteString(m.InTxt)
	buf.WriteByte('"')
	comma()
	buf.WriteString(`"in_bin":[`)
	buf.WriteString(m.InBin)
	buf.WriteByte(']')
	comma()
	buf.WriteString(`"out_txt":"`)
	buf.WriteString(m.OutTxt)
	buf.WriteByte('"')
	comma()
	buf.WriteString(`"out_bin":[`)
	buf.WriteString(m.OutBin)
	buf.WriteByte(']')

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Line renders m as one newline-terminated JSON line, as written by a
// transport.
func Line(m Message) ([]byte, error) {
	b, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	b = append(b, '\n')
	return b, nil
}
