// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"weak"
)

// DirTree is a process-wide, mutex-guarded cache of path to DirEntry for one
// watched root. Multiple Watchers on the same root share a single DirTree
// through getCachedTree; it is kept alive only as long as something holds a
// reference to it.
type DirTree struct {
	Root            string
	recursiveRemove bool

	mut        sync.Mutex
	entries    map[string]DirEntry
	isComplete bool
}

var (
	dirTreeCacheMut sync.Mutex
	dirTreeCache    = make(map[string]weak.Pointer[DirTree])
)

// getCachedTree returns the live DirTree for root if one exists, or creates
// and interns a new empty one. The cache holds only a weak reference: once
// every Watcher referencing the returned tree has been dropped and garbage
// collected, the cache entry disappears on its own and the next call builds
// a fresh tree. This is the Go analogue of the teacher's
// std::weak_ptr<DirTree>-valued dirTreeCache with a custom deleter.
func getCachedTree(root string, recursiveRemove bool) *DirTree {
	dirTreeCacheMut.Lock()
	defer dirTreeCacheMut.Unlock()

	if wp, ok := dirTreeCache[root]; ok {
		if tree := wp.Value(); tree != nil {
			return tree
		}
	}

	tree := &DirTree{
		Root:            root,
		recursiveRemove: recursiveRemove,
		entries:         make(map[string]DirEntry),
	}
	dirTreeCache[root] = weak.Make(tree)
	runtime.AddCleanup(tree, evictDirTreeCache, root)
	return tree
}

func evictDirTreeCache(root string) {
	dirTreeCacheMut.Lock()
	defer dirTreeCacheMut.Unlock()
	if wp, ok := dirTreeCache[root]; ok && wp.Value() == nil {
		delete(dirTreeCache, root)
	}
}

// newDirTree builds a standalone, uncached tree — used for snapshot loads,
// which are never shared between subscriptions.
func newDirTree(root string, recursiveRemove bool) *DirTree {
	return &DirTree{
		Root:            root,
		recursiveRemove: recursiveRemove,
		entries:         make(map[string]DirEntry),
	}
}

// loadDirTree deserializes a DirTree in the format documented in snapshot.go.
func loadDirTree(root string, recursiveRemove bool, r io.Reader) (*DirTree, error) {
	tree := newDirTree(root, recursiveRemove)
	tree.isComplete = true

	br := bufio.NewReader(r)
	entries, err := readSnapshotEntries(br)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		tree.entries[e.Path] = e
	}
	return tree, nil
}

func childPrefix(dir string) string {
	return dir + string(os.PathSeparator)
}

func depth(path string) int {
	return strings.Count(path, string(os.PathSeparator))
}

// Add inserts or replaces the entry at path and returns the stored copy.
func (t *DirTree) Add(path string, ino uint64, mtime int64, isDir bool, fileID string) DirEntry {
	t.mut.Lock()
	defer t.mut.Unlock()
	e := newDirEntry(path, ino, mtime, isDir, fileID)
	t.entries[path] = e
	return e
}

// Find returns the entry at path, if any.
func (t *DirTree) Find(path string) (DirEntry, bool) {
	t.mut.Lock()
	defer t.mut.Unlock()
	e, ok := t.entries[path]
	return e, ok
}

// Update sets mtime unconditionally and ino/fileId only when the supplied
// value is non-sentinel. Returns false if no entry exists at path.
func (t *DirTree) Update(path string, ino uint64, mtime int64, fileID string) (DirEntry, bool) {
	t.mut.Lock()
	defer t.mut.Unlock()
	e, ok := t.entries[path]
	if !ok {
		return DirEntry{}, false
	}
	e.MTime = mtime
	if ino != FakeIno {
		e.Ino = ino
	}
	if fileID != FakeFileID {
		e.FileID = fileID
	}
	t.entries[path] = e
	return e, true
}

// Remove erases the entry at path. If it was a directory and the tree's
// recursiveRemove policy is set, every descendant entry is erased too;
// otherwise the caller (a backend that receives per-child delete
// notifications of its own) is responsible for removing descendants.
func (t *DirTree) Remove(path string) {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.removeLocked(path)
}

func (t *DirTree) removeLocked(path string) {
	entry, ok := t.entries[path]
	if ok && entry.IsDir && t.recursiveRemove {
		prefix := childPrefix(path)
		for p := range t.entries {
			if strings.HasPrefix(p, prefix) {
				delete(t.entries, p)
			}
		}
	}
	delete(t.entries, path)
}

// FindByIno performs a linear scan for the entry with the given inode
// number, as the teacher does — DirTree is not expected to grow large
// enough within one watched root to warrant a secondary index, and a
// secondary index would need to be kept consistent with every Add/Update/
// Remove, which is its own source of bugs.
func (t *DirTree) FindByIno(ino uint64) (DirEntry, bool) {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.findByInoLocked(ino)
}

func (t *DirTree) findByInoLocked(ino uint64) (DirEntry, bool) {
	for _, e := range t.entries {
		if e.Ino == ino {
			return e, true
		}
	}
	return DirEntry{}, false
}

// FindByFileID performs a linear scan for the entry with the given Windows
// file reference.
func (t *DirTree) FindByFileID(fileID string) (DirEntry, bool) {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.findByFileIDLocked(fileID)
}

func (t *DirTree) findByFileIDLocked(fileID string) (DirEntry, bool) {
	for _, e := range t.entries {
		if e.FileID == fileID {
			return e, true
		}
	}
	return DirEntry{}, false
}

func (t *DirTree) findIdentityLocked(e DirEntry) (DirEntry, bool) {
	if e.FileID != FakeFileID {
		return t.findByFileIDLocked(e.FileID)
	}
	if e.Ino != FakeIno {
		return t.findByInoLocked(e.Ino)
	}
	found, ok := t.entries[e.Path]
	return found, ok
}

// Write serializes the tree in the snapshot format documented in
// snapshot.go.
func (t *DirTree) Write(w io.Writer) error {
	t.mut.Lock()
	defer t.mut.Unlock()
	entries := make([]DirEntry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	return writeSnapshotEntries(w, entries)
}

// GetChanges reconstructs the logical events that would reconcile prior
// (an older snapshot of the same root) with self (the current state),
// appending them to out. This is the diff engine of spec.md §4.1: identity
// match by fileId/ino first, path match as a fallback, with the rename and
// type-change rewrite rules described there.
//
// Mirrors DirTree::getChanges in the original implementation: self's lock
// is acquired before prior's, fixing a lock order so diffing never
// deadlocks against a concurrent mutation of either tree.
func (t *DirTree) GetChanges(prior *DirTree, out *EventList) {
	t.mut.Lock()
	defer t.mut.Unlock()
	prior.mut.Lock()
	defer prior.mut.Unlock()

	// Directories are visited shallowest-first so a renamed ancestor's
	// rewriteDescendantsLocked runs before any of its descendants are
	// looked up by identity; otherwise map iteration order could have a
	// child's identity match land on its pre-rename path and get reported
	// as its own separate rename in addition to the ancestor's.
	ordered := make([]DirEntry, 0, len(t.entries))
	for _, e := range t.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].IsDir != ordered[j].IsDir {
			return ordered[i].IsDir
		}
		return depth(ordered[i].Path) < depth(ordered[j].Path)
	})

	for _, e := range ordered {
		found, ok := prior.findIdentityLocked(e)
		if ok {
			switch {
			case found.IsDir != e.IsDir:
				out.Remove(found.Path, found.IsDir, found.Ino, found.FileID)
				out.Create(e.Path, e.IsDir, e.Ino, e.FileID)
			case found.Path != e.Path:
				// Record the rename directly (not via Create+Rename: there
				// is no live prior event here, only the snapshot entry
				// found by identity), then rewrite any descendants (if
				// found is a directory) so they do not separately re-emit
				// as removed/created.
				out.insertOfflineRename(found.Path, e.Path, e.IsDir, e.Ino, e.FileID)
				if found.IsDir {
					prior.rewriteDescendantsLocked(found.Path, e.Path)
				}
			case !e.IsDir && found.MTime != e.MTime:
				out.Update(e.Path, e.Ino, e.FileID)
			}
			continue
		}

		if prevEntry, ok := prior.entries[e.Path]; ok {
			if !prevEntry.IsDir && !e.IsDir && prevEntry.MTime != e.MTime {
				out.Update(e.Path, e.Ino, e.FileID)
			}
		} else {
			out.Create(e.Path, e.IsDir, e.Ino, e.FileID)
		}
	}

	for _, e := range prior.entries {
		if _, ok := t.findIdentityLocked(e); !ok {
			out.Remove(e.Path, e.IsDir, e.Ino, e.FileID)
		}
	}
}

// rewriteDescendantsLocked renames every entry in prior beneath oldParent to
// live beneath newParent instead, and drops the originals, so a later pass
// of GetChanges does not see them as independently removed. Caller must hold
// prior.mut.
func (t *DirTree) rewriteDescendantsLocked(oldParent, newParent string) {
	prefix := childPrefix(oldParent)
	for p, e := range t.entries {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		e.Path = newParent + strings.TrimPrefix(p, oldParent)
		t.entries[e.Path] = e
		delete(t.entries, p)
	}
}

// IsComplete reports whether a full scan has populated the tree.
func (t *DirTree) IsComplete() bool {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.isComplete
}

// MarkComplete records that a full scan has populated the tree.
func (t *DirTree) MarkComplete() {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.isComplete = true
}

// Entries returns a snapshot copy of the current entries, keyed by path.
func (t *DirTree) Entries() map[string]DirEntry {
	t.mut.Lock()
	defer t.mut.Unlock()
	out := make(map[string]DirEntry, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}
