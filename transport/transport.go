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

// Package transport holds the byte-level collaborators that the core
// encoder/decoder never touches directly: concrete readers and
// writers of line-delimited JSON records, over a file descriptor, a
// syslog connection, an in-memory buffer (for tests), or Elasticsearch.
package transport

import "errors"

// Sentinel errors a Reader or Writer may return to signal a
// transport-level exit condition rather than a data error.
var (
	// ErrInterrupted means the underlying call was interrupted
	// (EINTR) and should be retried by the caller.
	ErrInterrupted = errors.New("transport: interrupted")
	// ErrBadFd means the descriptor is no longer valid; the caller
	// should stop without treating this as an error.
	ErrBadFd = errors.New("transport: bad file descriptor")
	// ErrClosedPipe means the peer closed its end; the caller should
	// stop without treating this as an error.
	ErrClosedPipe = errors.New("transport: closed pipe")
	// ErrIncompleteLine means a reader reached the end of its input
	// partway through a line (bytes after the last newline). Readers do
	// not check that each line holds one complete JSON object.
	ErrIncompleteLine = errors.New("transport: incomplete line")
)

// Reader yields successive JSON objects (one per tlog record) as raw
// bytes, without the trailing newline.
type Reader interface {
	// Read returns the next record, or ok=false at a clean
	// end-of-stream. Any non-nil error other than the sentinels above
	// should be treated as fatal by the caller.
	Read() (line []byte, ok bool, err error)
}

// Writer accepts one complete JSON line (including its trailing
// newline) per call, tagged with the record's id. Implementations
// must be all-or-nothing: either the whole line is durably accepted,
// or none of it is. A rate-limiting writer may buffer or drop whole
// lines, but never a partial line.
type Writer interface {
	Write(id uint64, line []byte) error
}
