// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build darwin || windows

package fswatch

import (
	"errors"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// recentRemovalAge bounds how long a vanished path's identity is kept
// around waiting for a same-identity appearance to pair it with, mirroring
// the inotify backend's pendingMoves aging (spec.md §4.2/§4.3's "within
// one drain").
const recentRemovalAge = 5 * time.Second

// batchWindow is how long to wait after the last event in a burst before
// notifying the watcher, standing in for the drain boundary the inotify
// backend gets for free by reading its buffer to exhaustion before
// calling notify once.
const batchWindow = 50 * time.Millisecond

// fsnotifyBackend implements the abstract FSEvents/ReadDirectoryChangesW
// contract from spec.md §4.2 on top of fsnotify: a single recursive watch
// (fsnotify watches each directory individually, so Subscribe installs one
// per directory, same as the inotify backend) delivering per-path records
// that are classified by lstat-ing the path and comparing against the tree.
type fsnotifyBackend struct {
	mut      sync.Mutex
	watchers map[*Watcher]*fsnotifyState
}

type recentRemoval struct {
	path  string
	at    time.Time
	entry DirEntry
}

type fsnotifyState struct {
	fsw  *fsnotify.Watcher
	stop chan struct{}

	mut     sync.Mutex
	removed map[string]recentRemoval // identity key -> most recent removal
}

func identityKey(ino uint64, fileID string) (string, bool) {
	if fileID != FakeFileID {
		return "f:" + fileID, true
	}
	if ino != FakeIno {
		return "i:" + strconv.FormatUint(ino, 10), true
	}
	return "", false
}

func newFsnotifyBackend() (Backend, error) {
	return &fsnotifyBackend{watchers: make(map[*Watcher]*fsnotifyState)}, nil
}

func (b *fsnotifyBackend) Subscribe(w *Watcher) error {
	info, err := os.Stat(w.Dir)
	if err != nil || !info.IsDir() {
		return &WatcherError{Root: w.Dir, Op: "subscribe", Err: err}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return &WatcherError{Root: w.Dir, Op: "subscribe", Err: err}
	}

	// recursiveRemove=false: fsnotify delivers one Remove event per
	// descendant as the OS unwinds a recursive delete, just like inotify.
	tree := getCachedTree(w.Dir, false)
	if err := readTree(w.Dir, w.Ignore, tree); err != nil {
		fsw.Close()
		return &WatcherError{Root: w.Dir, Op: "subscribe", Err: err}
	}
	w.tree = tree

	if err := fsw.Add(w.Dir); err != nil {
		fsw.Close()
		return &WatcherError{Root: w.Dir, Op: "subscribe", Err: err}
	}
	for path, e := range tree.Entries() {
		if e.IsDir {
			if err := fsw.Add(path); err != nil {
				fsw.Close()
				return &WatcherError{Root: w.Dir, Op: "subscribe", Err: err}
			}
		}
	}

	state := &fsnotifyState{fsw: fsw, stop: make(chan struct{}), removed: make(map[string]recentRemoval)}
	b.mut.Lock()
	b.watchers[w] = state
	b.mut.Unlock()
	metricActiveWatches.Inc()

	go b.loop(w, state)
	return nil
}

func (b *fsnotifyBackend) loop(w *Watcher, state *fsnotifyState) {
	sweepTicker := time.NewTicker(recentRemovalAge)
	defer sweepTicker.Stop()

	batch := time.NewTimer(batchWindow)
	batch.Stop()
	defer batch.Stop()

	for {
		select {
		case <-state.stop:
			return
		case ev, ok := <-state.fsw.Events:
			if !ok {
				return
			}
			b.handle(w, state, ev)
			batch.Reset(batchWindow)
		case err, ok := <-state.fsw.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				metricOverflowTotal.WithLabelValues("fs-events").Inc()
				l.Debugf("fsnotify queue overflow on %s; events dropped", w.Dir)
				continue
			}
			w.fail("fs-events", &WatcherError{Root: w.Dir, Op: "watch", Err: err})
			return
		case <-batch.C:
			w.notify()
		case <-sweepTicker.C:
			b.sweepStaleRemovals(w, state)
		}
	}
}

// handle classifies one fsnotify record against the tree, per the
// existed-before/exists-now decision table in spec.md §4.2. A removal and
// an appearance of the same identity within one drain collapse into a
// rename: the removal side stashes its identity in state.removed instead
// of forgetting it immediately, and the appearance side consults that
// cache before falling back to a plain create.
func (b *fsnotifyBackend) handle(w *Watcher, state *fsnotifyState, ev fsnotify.Event) {
	path := ev.Name
	if w.Ignore.Matches(path) {
		return
	}

	prior, existed := w.tree.Find(path)
	info, statErr := os.Lstat(path)
	existsNow := statErr == nil

	switch {
	case existed && existsNow:
		ino, fileID := platformIdentity(path, info)
		if info.ModTime().UnixNano() != prior.MTime {
			w.tree.Update(path, ino, info.ModTime().UnixNano(), fileID)
			w.Events.Update(path, ino, fileID)
		}

	case !existed && existsNow:
		ino, fileID := platformIdentity(path, info)
		isDir := info.IsDir()

		var oldPath string
		var renamed bool
		if key, ok := identityKey(ino, fileID); ok {
			state.mut.Lock()
			if rr, found := state.removed[key]; found && time.Since(rr.at) <= recentRemovalAge {
				oldPath = rr.path
				renamed = true
				delete(state.removed, key)
			}
			state.mut.Unlock()
		}

		if renamed {
			w.Events.Rename(oldPath, path, isDir, ino, fileID)
		} else {
			w.Events.Create(path, isDir, ino, fileID)
		}
		w.tree.Add(path, ino, info.ModTime().UnixNano(), isDir, fileID)
		if isDir {
			state.fsw.Add(path)
		}

	case existed && !existsNow:
		w.tree.Remove(path)

		// A rename-flagged disappearance might be the source half of a
		// pair whose destination hasn't arrived yet: hold off emitting
		// Remove (which would mark the path isDeleted and poison a later
		// Rename's flag propagation) until the aging sweep decides no
		// matching appearance showed up.
		if ev.Op&fsnotify.Rename != 0 {
			if key, ok := identityKey(prior.Ino, prior.FileID); ok {
				state.mut.Lock()
				state.removed[key] = recentRemoval{path: path, at: time.Now(), entry: prior}
				state.mut.Unlock()
				return
			}
		}
		w.Events.Remove(path, prior.IsDir, prior.Ino, prior.FileID)
	}
}

// sweepStaleRemovals flushes any cached rename-source whose pairing window
// has expired as a plain Remove, the way the inotify backend ages out
// pendingMoves without ever having synthesized a rename event for them.
func (b *fsnotifyBackend) sweepStaleRemovals(w *Watcher, state *fsnotifyState) {
	state.mut.Lock()
	var stale []recentRemoval
	for k, rr := range state.removed {
		if time.Since(rr.at) > recentRemovalAge {
			stale = append(stale, rr)
			delete(state.removed, k)
		}
	}
	state.mut.Unlock()

	for _, rr := range stale {
		w.Events.Remove(rr.path, rr.entry.IsDir, rr.entry.Ino, rr.entry.FileID)
	}
	if len(stale) > 0 {
		w.notify()
	}
}

func (b *fsnotifyBackend) Unsubscribe(w *Watcher) error {
	b.mut.Lock()
	state, ok := b.watchers[w]
	delete(b.watchers, w)
	b.mut.Unlock()
	if !ok {
		return nil
	}
	close(state.stop)
	state.fsw.Close()
	metricActiveWatches.Dec()
	return nil
}

func (b *fsnotifyBackend) Scan(root string, ignore *IgnoreSet) ([]Event, error) {
	return newBruteForceBackend().Scan(root, ignore)
}

func (b *fsnotifyBackend) WriteSnapshot(root string, ignore *IgnoreSet, w io.Writer) error {
	return newBruteForceBackend().WriteSnapshot(root, ignore, w)
}

func (b *fsnotifyBackend) GetEventsSince(root string, ignore *IgnoreSet, r io.Reader) ([]Event, error) {
	return newBruteForceBackend().GetEventsSince(root, ignore, r)
}
