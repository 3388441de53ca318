// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// pollInterval is how often the brute-force backend rescans a subscribed
// root looking for changes. There is no kernel notification channel to
// block on, so Subscribe trades latency for portability.
const pollInterval = 2 * time.Second

// bruteForceBackend is the portable fallback described in spec.md §4.2: a
// full recursive walk stands in for kernel notifications. It also
// implements Scan/WriteSnapshot/GetEventsSince directly on DirTree
// operations for every other backend's snapshot mode, since snapshot mode
// never touches the kernel either way.
type bruteForceBackend struct {
	mut   sync.Mutex
	stops map[*Watcher]chan struct{}
}

func newBruteForceBackend() *bruteForceBackend {
	return &bruteForceBackend{stops: make(map[*Watcher]chan struct{})}
}

// readTree performs a full recursive walk of root, honoring ignore by
// pruning subtrees and skipping files beneath an ignored entry.
func readTree(root string, ignore *IgnoreSet, tree *DirTree) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ignore.Matches(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		ino, fileID := platformIdentity(path, info)
		tree.Add(path, ino, info.ModTime().UnixNano(), d.IsDir(), fileID)
		return nil
	})
	if err != nil {
		return err
	}
	tree.MarkComplete()
	return nil
}

func (b *bruteForceBackend) Subscribe(w *Watcher) error {
	info, err := os.Stat(w.Dir)
	if err != nil || !info.IsDir() {
		return &WatcherError{Root: w.Dir, Op: "subscribe", Err: err}
	}

	tree := getCachedTree(w.Dir, true)
	if err := readTree(w.Dir, w.Ignore, tree); err != nil {
		return &WatcherError{Root: w.Dir, Op: "subscribe", Err: err}
	}
	w.tree = tree

	stop := make(chan struct{})
	b.mut.Lock()
	b.stops[w] = stop
	b.mut.Unlock()
	metricActiveWatches.Inc()

	go b.pollLoop(w, stop)
	return nil
}

func (b *bruteForceBackend) pollLoop(w *Watcher, stop chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			next := newDirTree(w.Dir, true)
			if err := readTree(w.Dir, w.Ignore, next); err != nil {
				w.fail("brute-force", &WatcherError{Root: w.Dir, Op: "poll", Err: err})
				return
			}
			next.GetChanges(w.tree, w.Events)
			w.tree = next
			w.notify()
		}
	}
}

func (b *bruteForceBackend) Unsubscribe(w *Watcher) error {
	b.mut.Lock()
	stop, ok := b.stops[w]
	delete(b.stops, w)
	b.mut.Unlock()
	if !ok {
		return nil
	}
	close(stop)
	metricActiveWatches.Dec()
	return nil
}

func (b *bruteForceBackend) Scan(root string, ignore *IgnoreSet) ([]Event, error) {
	tree := newDirTree(root, true)
	if err := readTree(root, ignore, tree); err != nil {
		return nil, &WatcherError{Root: root, Op: "scan", Err: err}
	}
	events := NewEventList()
	for path, e := range tree.Entries() {
		events.Create(path, e.IsDir, e.Ino, e.FileID)
	}
	return events.Events(), nil
}

func (b *bruteForceBackend) WriteSnapshot(root string, ignore *IgnoreSet, w io.Writer) error {
	tree := newDirTree(root, true)
	if err := readTree(root, ignore, tree); err != nil {
		return &IOError{Path: root, Op: "writeSnapshot", Err: err}
	}
	if err := tree.Write(w); err != nil {
		return &IOError{Path: root, Op: "writeSnapshot", Err: err}
	}
	return nil
}

func (b *bruteForceBackend) GetEventsSince(root string, ignore *IgnoreSet, r io.Reader) ([]Event, error) {
	prior, err := loadDirTree(root, true, r)
	if err != nil {
		return nil, &IOError{Path: root, Op: "getEventsSince", Err: err}
	}

	current := newDirTree(root, true)
	if err := readTree(root, ignore, current); err != nil {
		return nil, &IOError{Path: root, Op: "getEventsSince", Err: err}
	}

	out := NewEventList()
	current.GetChanges(prior, out)
	return out.Events(), nil
}
