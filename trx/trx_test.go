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

package trx

import "testing"

// counter is a trivial Object: an int that can be snapshotted.
type counter struct{ n int }

func (c *counter) Save() any  { return c.n }
func (c *counter) Load(s any) { c.n = s.(int) }

func TestCommitKeepsMutation(t *testing.T) {
	c := &counter{n: 1}
	f := Begin(Root(), c)
	c.n = 2
	f.Commit()
	if c.n != 2 {
		t.Fatalf("got %d, want 2", c.n)
	}
}

func TestAbortRestoresMutation(t *testing.T) {
	c := &counter{n: 1}
	f := Begin(Root(), c)
	c.n = 2
	f.Abort()
	if c.n != 1 {
		t.Fatalf("got %d, want 1 (restored)", c.n)
	}
}

func TestNestedFramesOnlyOutermostPersists(t *testing.T) {
	c := &counter{n: 1}
	outer := Begin(Root(), c)
	c.n = 2

	inner := Begin(outer.Next(), c)
	c.n = 3
	inner.Abort() // nested abort must NOT restore by itself

	if c.n != 3 {
		t.Fatalf("nested abort should be a no-op at storage level, got %d", c.n)
	}

	outer.Abort() // only the outermost abort actually restores
	if c.n != 1 {
		t.Fatalf("outer abort should restore to 1, got %d", c.n)
	}
}

func TestNestedCommitThenOuterAbort(t *testing.T) {
	c := &counter{n: 10}
	outer := Begin(Root(), c)
	c.n = 20

	inner := Begin(outer.Next(), c)
	c.n = 30
	inner.Commit()

	outer.Abort()
	if c.n != 10 {
		t.Fatalf("outer abort must still roll back work done in a committed nested frame, got %d", c.n)
	}
}
