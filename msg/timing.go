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

package msg

import (
	"errors"
	"math"
)

// MaxDelayMillis is the largest pos/delay value the wire format can
// represent (48 bits of milliseconds).
const MaxDelayMillis = 281474976710655

var errTimingSyntax = errors.New("msg: malformed timing record")

// RecordType discriminates one scanned timing record.
type RecordType int

const (
	RecDelay RecordType = iota
	RecWindow
	RecInputText
	RecOutputText
	RecInputBinary
	RecOutputBinary
)

// Record is one parsed timing-script entry.
type Record struct {
	Type          RecordType
	DelayMillis   uint64
	Width, Height uint16
	Count         uint64 // valid-run character count (RecInputText / RecOutputText)
	CharCount     uint64 // invalid-run replacement-character count
	ByteCount     uint64 // invalid-run byte count
}

// Cursor scans a timing-script string one record at a time.
type Cursor struct {
	s   string
	pos int
}

// NewCursor returns a cursor over s.
func NewCursor(s string) *Cursor { return &Cursor{s: s} }

func isTimingSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// Next returns the next record. ok is false once the cursor reaches
// the end of the string with no error.
func (c *Cursor) Next() (rec Record, ok bool, err error) {
	for c.pos < len(c.s) && isTimingSpace(c.s[c.pos]) {
		c.pos++
	}
	if c.pos >= len(c.s) {
		return Record{}, false, nil
	}

	typ := c.s[c.pos]
	c.pos++
	switch typ {
	case '+':
		n, err := c.readUint()
		if err != nil {
			return Record{}, false, err
		}
		return Record{Type: RecDelay, DelayMillis: n}, true, nil
	case '=':
		w, err := c.readUint16()
		if err != nil {
			return Record{}, false, err
		}
		if c.pos >= len(c.s) || c.s[c.pos] != 'x' {
			return Record{}, false, errTimingSyntax
		}
		c.pos++
		h, err := c.readUint16()
		if err != nil {
			return Record{}, false, err
		}
		return Record{Type: RecWindow, Width: w, Height: h}, true, nil
	case '<':
		n, err := c.readUint()
		if err != nil {
			return Record{}, false, err
		}
		return Record{Type: RecInputText, Count: n}, true, nil
	case '>':
		n, err := c.readUint()
		if err != nil {
			return Record{}, false, err
		}
		return Record{Type: RecOutputText, Count: n}, true, nil
	case '[':
		cc, bc, err := c.readPair()
		if err != nil {
			return Record{}, false, err
		}
		return Record{Type: RecInputBinary, CharCount: cc, ByteCount: bc}, true, nil
	case ']':
		cc, bc, err := c.readPair()
		if err != nil {
			return Record{}, false, err
		}
		return Record{Type: RecOutputBinary, CharCount: cc, ByteCount: bc}, true, nil
	default:
		return Record{}, false, errTimingSyntax
	}
}

func (c *Cursor) readPair() (uint64, uint64, error) {
	a, err := c.readUint()
	if err != nil {
		return 0, 0, err
	}
	if c.pos >= len(c.s) || c.s[c.pos] != '/' {
		return 0, 0, errTimingSyntax
	}
	c.pos++
	b, err := c.readUint()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (c *Cursor) readUint() (uint64, error) {
	start := c.pos
	var n uint64
	for c.pos < len(c.s) && c.s[c.pos] >= '0' && c.s[c.pos] <= '9' {
		d := uint64(c.s[c.pos] - '0')
		if n > (math.MaxUint64-d)/10 {
			return 0, errTimingSyntax
		}
		n = n*10 + d
		c.pos++
	}
	if c.pos == start {
		return 0, errTimingSyntax
	}
	return n, nil
}

func (c *Cursor) readUint16() (uint16, error) {
	n, err := c.readUint()
	if err != nil {
		return 0, err
	}
	if n > math.MaxUint16 {
		return 0, errTimingSyntax
	}
	return uint16(n), nil
}

// ValidateTiming scans s end-to-end purely for syntax, without
// interpreting the records.
func ValidateTiming(s string) error {
	c := NewCursor(s)
	for {
		_, ok, err := c.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}
