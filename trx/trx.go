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

// Package trx implements a small generic backup/commit/abort protocol
// for functions that mutate shared state in several steps and may need
// to roll all of it back atomically if a later step fails.
//
// A function that can partially mutate state declares a Frame listing
// the participating Objects, opens it with Begin, and either Commits or
// Aborts it before returning. Frames nest: only the outermost Begin
// actually snapshots state, and only the outermost Abort restores it,
// so a single user-visible call can freely invoke nested
// transaction-aware helpers without each one re-snapshotting the same
// objects.
package trx

// State threads transaction nesting through a chain of calls. The zero
// value is the outermost (root) state.
type State struct {
	depth int
}

// Root returns the outermost transaction state, for use by the
// top-level caller of a transactional operation.
func Root() State { return State{} }

// Sub returns the state a frame should pass to any transaction-aware
// calls it makes from within itself.
func (s State) Sub() State { return State{depth: s.depth + 1} }

// Object is anything that can be transactionally snapshotted and
// restored. Save returns an opaque snapshot of the object's current
// transaction-relevant fields; Load restores them from such a
// snapshot.
type Object interface {
	Save() any
	Load(snapshot any)
}

// Frame is one declared transaction frame.
type Frame struct {
	state   State
	objects []Object
	saved   []any
}

// Begin opens a frame over state for the given participating objects.
// If state is outermost, every object is snapshotted; nested Begin
// calls only record which objects are in scope and do no snapshotting,
// since the outermost frame's snapshot already covers them.
func Begin(state State, objects ...Object) *Frame {
	f := &Frame{state: state, objects: objects}
	if state.depth == 0 {
		f.saved = make([]any, len(objects))
		for i, o := range objects {
			f.saved[i] = o.Save()
		}
	}
	return f
}

// Next returns the state to pass to transaction-aware calls made from
// within this (already open) frame.
func (f *Frame) Next() State { return f.state.Sub() }

// Commit finalizes the frame's mutations. At the outermost depth this
// discards the snapshot; nested commits are no-ops.
func (f *Frame) Commit() {
	f.saved = nil
}

// Abort rolls back the frame's mutations. At the outermost depth this
// restores every participating object from its snapshot; nested aborts
// are no-ops — the enclosing outermost frame is responsible for the
// actual restore once it, too, aborts.
func (f *Frame) Abort() {
	if f.state.depth != 0 {
		return
	}
	for i, o := range f.objects {
		o.Load(f.saved[i])
	}
}
