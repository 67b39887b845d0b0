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

//go:build !windows

package transport

import (
	"log/syslog"
	"strings"
)

// SyslogWriter hands each record to the local syslog daemon as one
// Info-level message, tagged "tlog".
type SyslogWriter struct {
	w *syslog.Writer
}

// NewSyslogWriter dials the local syslog daemon.
func NewSyslogWriter() (*SyslogWriter, error) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, "tlog")
	if err != nil {
		return nil, err
	}
	return &SyslogWriter{w: w}, nil
}

// Write implements Writer. The trailing newline tlogfmt.Line appends
// is stripped since syslog.Writer.Info adds its own framing.
func (w *SyslogWriter) Write(id uint64, line []byte) error {
	return w.w.Info(strings.TrimSuffix(string(line), "\n"))
}

// Close releases the syslog connection.
func (w *SyslogWriter) Close() error { return w.w.Close() }
