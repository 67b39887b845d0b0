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

import "errors"

// Kind identifies why a message was dropped.
type Kind int

const (
	_ Kind = iota
	MsgIdOutOfOrder
	PktTsOutOfOrder
)

func (k Kind) String() string {
	switch k {
	case MsgIdOutOfOrder:
		return "SourceMsgIdOutOfOrder"
	case PktTsOutOfOrder:
		return "SourcePktTsOutOfOrder"
	default:
		return "SourceUnknown"
	}
}

// Error reports that a message was dropped and the source has moved
// on to the next one.
type Error struct {
	Kind Kind
}

func (e *Error) Error() string { return e.Kind.String() }

var errMalformedRun = errors.New("source: timing run does not match text/binary payload")
