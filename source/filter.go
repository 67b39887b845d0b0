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
	"strconv"

	"golang.org/x/exp/slices"
)

// MatchAny returns a Filter that accepts a message when its host is in
// hosts (or hosts is empty), its user is in users (or users is empty),
// and its session is in sessions (or sessions is empty). Each list is a
// small, caller-supplied allowlist, so a plain Contains scan is the
// right tool rather than building a set.
func MatchAny(hosts, users, sessions []string) Filter {
	return func(host, user string, session uint32) bool {
		if len(hosts) > 0 && !slices.Contains(hosts, host) {
			return false
		}
		if len(users) > 0 && !slices.Contains(users, user) {
			return false
		}
		if len(sessions) > 0 && !slices.Contains(sessions, strconv.FormatUint(uint64(session), 10)) {
			return false
		}
		return true
	}
}
