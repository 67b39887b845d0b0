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

package sink

import "errors"

// errChunkOverflow indicates Chunk.Flush itself could not reserve the
// bytes for a pending run's meta-record. The budget accounting in
// jsonchunk is designed so this should never actually happen once a
// chunk has accepted a write, but the failure is surfaced rather than
// silently ignored.
var errChunkOverflow = errors.New("sink: chunk overflow on flush")
