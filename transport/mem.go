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

import "sync"

// MemReader reads pre-split lines from memory, for tests and for
// replaying a previously captured recording.
type MemReader struct {
	lines [][]byte
	pos   int
}

// NewMemReader returns a Reader over lines, each one record without
// its trailing newline.
func NewMemReader(lines [][]byte) *MemReader {
	return &MemReader{lines: lines}
}

// Read implements Reader.
func (r *MemReader) Read() ([]byte, bool, error) {
	if r.pos >= len(r.lines) {
		return nil, false, nil
	}
	line := r.lines[r.pos]
	r.pos++
	return line, true, nil
}

// MemWriter accumulates written lines in memory, for tests.
type MemWriter struct {
	mu    sync.Mutex
	Lines [][]byte
}

// NewMemWriter returns an empty MemWriter.
func NewMemWriter() *MemWriter { return &MemWriter{} }

// Write implements Writer.
func (w *MemWriter) Write(id uint64, line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]byte, len(line))
	copy(cp, line)
	w.Lines = append(w.Lines, cp)
	return nil
}
