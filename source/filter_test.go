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

import "testing"

func TestMatchAnyFiltersOnEachDimension(t *testing.T) {
	f := MatchAny([]string{"a", "b"}, nil, []string{"1"})

	if !f("a", "anyone", 1) {
		t.Fatal("expected host a, session 1 to match")
	}
	if f("c", "anyone", 1) {
		t.Fatal("expected host c to be rejected")
	}
	if f("a", "anyone", 2) {
		t.Fatal("expected session 2 to be rejected")
	}
}

func TestMatchAnyEmptyListsAcceptEverything(t *testing.T) {
	f := MatchAny(nil, nil, nil)
	if !f("whatever", "whoever", 99) {
		t.Fatal("expected empty allowlists to accept everything")
	}
}
