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
	"bufio"
	"io"

	"github.com/klauspost/compress/zstd"
)

// CompressedFileWriter zstd-compresses the line-delimited record
// stream as it is written, for archived recordings.
type CompressedFileWriter struct {
	enc *zstd.Encoder
}

// NewCompressedFileWriter wraps w with a streaming zstd encoder.
func NewCompressedFileWriter(w io.Writer) (*CompressedFileWriter, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &CompressedFileWriter{enc: enc}, nil
}

// Write implements Writer.
func (w *CompressedFileWriter) Write(id uint64, line []byte) error {
	_, err := w.enc.Write(line)
	return err
}

// Close flushes and closes the underlying zstd stream.
func (w *CompressedFileWriter) Close() error { return w.enc.Close() }

// CompressedFileReader reads a zstd-compressed line-delimited record
// stream, the inverse of CompressedFileWriter.
type CompressedFileReader struct {
	dec *zstd.Decoder
	r   *bufio.Reader
}

// NewCompressedFileReader wraps r with a streaming zstd decoder.
func NewCompressedFileReader(r io.Reader) (*CompressedFileReader, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &CompressedFileReader{dec: dec, r: bufio.NewReaderSize(dec, 64*1024)}, nil
}

// Read implements Reader.
func (r *CompressedFileReader) Read() ([]byte, bool, error) {
	line, err := r.r.ReadBytes('\n')
	if err == nil {
		return line[:len(line)-1], true, nil
	}
	if err == io.EOF {
		if len(line) > 0 {
			return nil, false, ErrIncompleteLine
		}
		return nil, false, nil
	}
	return nil, false, err
}

// Close releases the underlying zstd decoder.
func (r *CompressedFileReader) Close() { r.dec.Close() }
