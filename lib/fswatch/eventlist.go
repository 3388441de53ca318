// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

import "sync"

// EventType is the logical classification of an Event, derived from its
// IsCreated/IsDeleted flags and whether it carries an OldPath.
type EventType int

const (
	Update EventType = iota
	Create
	Delete
	Rename
)

func (t EventType) String() string {
	switch t {
	case Create:
		return "create"
	case Delete:
		return "delete"
	case Rename:
		return "rename"
	default:
		return "update"
	}
}

// Event is one coalesced logical change to a single path.
type Event struct {
	Path      string
	OldPath   string
	Ino       uint64
	FileID    string
	IsDir     bool
	IsCreated bool
	IsDeleted bool
}

// Type derives the logical event type: a rename if OldPath is set and the
// event is neither a create nor a delete, else create, else delete, else
// update.
func (e Event) Type() EventType {
	switch {
	case e.OldPath != "" && !e.IsCreated && !e.IsDeleted:
		return Rename
	case e.IsCreated:
		return Create
	case e.IsDeleted:
		return Delete
	default:
		return Update
	}
}

// Kind is "directory" or "file", for the public event shape in §6.
func (e Event) Kind() string {
	if e.IsDir {
		return "directory"
	}
	return "file"
}

// EventList is the per-subscription, path-keyed log of pending logical
// events. At most one Event is ever present per path; every mutating method
// preserves that invariant by construction.
type EventList struct {
	mut    sync.Mutex
	events map[string]*Event
	// order preserves insertion order so a delivered batch reflects the
	// order the backend observed the underlying notifications in.
	order []string
}

// NewEventList returns an empty event log.
func NewEventList() *EventList {
	return &EventList{events: make(map[string]*Event)}
}

func (l *EventList) findLocked(path string) *Event {
	return l.events[path]
}

func (l *EventList) insertLocked(e *Event) {
	if _, exists := l.events[e.Path]; !exists {
		l.order = append(l.order, e.Path)
	}
	l.events[e.Path] = e
}

func (l *EventList) eraseLocked(path string) {
	if _, ok := l.events[path]; !ok {
		return
	}
	delete(l.events, path)
	for i, p := range l.order {
		if p == path {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// internalUpdateLocked finds or inserts the event at path, refreshing its
// identity fields (non-sentinel values only) and IsDir unconditionally.
func (l *EventList) internalUpdateLocked(path string, isDir bool, ino uint64, fileID string) *Event {
	e := l.findLocked(path)
	if e == nil {
		e = &Event{Path: path, IsDir: isDir, Ino: ino, FileID: fileID}
		l.insertLocked(e)
		return e
	}
	if ino != FakeIno {
		e.Ino = ino
	}
	if fileID != FakeFileID {
		e.FileID = fileID
	}
	e.IsDir = isDir
	return e
}

// Create records that path was created. A delete+create pair on the same
// path collapses into an update (see spec.md §4.3, and
// https://github.com/parcel-bundler/watcher/issues/72).
func (l *EventList) Create(path string, isDir bool, ino uint64, fileID string) {
	l.mut.Lock()
	defer l.mut.Unlock()
	e := l.internalUpdateLocked(path, isDir, ino, fileID)
	if e.IsDeleted {
		e.IsDeleted = false
	} else {
		e.IsCreated = true
	}
}

// Update records a modification to path. No flags toggle: the default
// state (neither created nor deleted, no OldPath) is itself "update".
func (l *EventList) Update(path string, ino uint64, fileID string) {
	l.mut.Lock()
	defer l.mut.Unlock()
	l.internalUpdateLocked(path, false, ino, fileID)
}

// Remove records that path was removed. A create immediately followed by a
// remove is suppressed entirely (the path never existed long enough to
// matter to a consumer).
func (l *EventList) Remove(path string, isDir bool, ino uint64, fileID string) {
	l.mut.Lock()
	defer l.mut.Unlock()
	e := l.internalUpdateLocked(path, isDir, ino, fileID)
	if e.IsCreated {
		l.eraseLocked(path)
	} else {
		e.IsDeleted = true
	}
}

// removeSemanticsLocked applies the Remove rule to an existing event found
// at path, used by Rename when the destination overwrites a live path.
func (l *EventList) removeSemanticsLocked(e *Event) {
	if e.IsCreated {
		l.eraseLocked(e.Path)
	} else {
		e.IsDeleted = true
	}
}

// Rename records that oldPath became path, as observed live by a backend
// that pairs a removal and an appearance of the same identity within one
// drain (spec.md §4.2). Per spec.md §4.3 step 2, consuming a tracked event
// at oldPath keeps only its ino/fileId/oldPath — the merged record is
// always a fresh, plain rename (isCreated=false, isDeleted=false), never a
// rename that inherits the prior event's created/deleted flags, matching
// original_source/src/Event.hh's Event(path, isDir, …) construction.
// Chains of renames of the same identity therefore collapse into one
// rename from the first source to the last destination, including when
// the first source was itself created earlier in this same batch
// (spec.md §8 scenario 4); a rename onto an existing path applies
// remove-semantics to whatever was there first; a rename onto a tombstone
// revives it as the rename's destination instead of leaving a dangling
// delete.
func (l *EventList) Rename(oldPath, path string, isDir bool, ino uint64, fileID string) {
	l.mut.Lock()
	defer l.mut.Unlock()

	if overwritten := l.findLocked(path); overwritten != nil {
		l.removeSemanticsLocked(overwritten)
	}

	if oldEvent := l.findLocked(oldPath); oldEvent != nil {
		keptIno, keptFileID, keptOldPath := oldEvent.Ino, oldEvent.FileID, oldEvent.OldPath
		l.eraseLocked(oldPath)

		e := &Event{
			Path:   path,
			IsDir:  isDir,
			Ino:    ino,
			FileID: fileID,
		}
		if e.Ino == FakeIno {
			e.Ino = keptIno
		}
		if e.FileID == FakeFileID {
			e.FileID = keptFileID
		}
		if keptOldPath != "" {
			e.OldPath = keptOldPath
		} else {
			e.OldPath = oldPath
		}
		l.insertLocked(e)
		return
	}

	// No tracked event at oldPath: a cold rename of something this batch
	// never otherwise touched. Still a rename, unless it lands on a
	// tombstone left by the overwrite check above, in which case reviving
	// that entry in place (rather than inserting a second one) keeps the
	// one-event-per-path invariant.
	if existing := l.findLocked(path); existing != nil {
		existing.IsDeleted = false
		existing.IsDir = isDir
		if ino != FakeIno {
			existing.Ino = ino
		}
		if fileID != FakeFileID {
			existing.FileID = fileID
		}
		existing.OldPath = oldPath
		return
	}

	l.insertLocked(&Event{
		Path:    path,
		OldPath: oldPath,
		IsDir:   isDir,
		Ino:     ino,
		FileID:  fileID,
	})
}

// insertOfflineRename appends a rename Event directly, bypassing the
// create/rename coalescing Rename performs for live backends. The diff
// engine (DirTree.GetChanges) calls this instead of Rename because it has
// no real prior Create to consult — found.Path only ever existed in the
// snapshot being diffed against, never in this EventList — so going through
// Rename's oldEvent lookup would always take the cold-rename branch anyway,
// and going through Create first (as a way to populate that branch) would
// incorrectly make every offline rename indistinguishable from a rapid
// create-then-rename and collapse it to a create.
func (l *EventList) insertOfflineRename(oldPath, path string, isDir bool, ino uint64, fileID string) {
	l.mut.Lock()
	defer l.mut.Unlock()

	if overwritten := l.findLocked(path); overwritten != nil {
		l.removeSemanticsLocked(overwritten)
	}
	if existing := l.findLocked(path); existing != nil {
		existing.IsDeleted = false
		existing.IsDir = isDir
		existing.Ino = ino
		existing.FileID = fileID
		existing.OldPath = oldPath
		return
	}
	l.insertLocked(&Event{
		Path:    path,
		OldPath: oldPath,
		IsDir:   isDir,
		Ino:     ino,
		FileID:  fileID,
	})
}

// Len returns the number of pending events.
func (l *EventList) Len() int {
	l.mut.Lock()
	defer l.mut.Unlock()
	return len(l.order)
}

// Events returns a copy of the pending events, in the order the underlying
// notifications were first observed.
func (l *EventList) Events() []Event {
	l.mut.Lock()
	defer l.mut.Unlock()
	out := make([]Event, 0, len(l.order))
	for _, p := range l.order {
		out = append(out, *l.events[p])
	}
	return out
}

// Clear empties the log.
func (l *EventList) Clear() {
	l.mut.Lock()
	defer l.mut.Unlock()
	l.events = make(map[string]*Event)
	l.order = nil
}
