// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

import (
	"bytes"
	"os"
)

// Subscription is the handle returned by Subscribe. Unsubscribe stops
// delivery for it.
type Subscription struct {
	watcher *Watcher
	backend Backend
}

// Subscribe starts a long-lived watch on dir, delivering coalesced event
// batches to onBatch and any subscription-ending failure to onError.
// Subscribe itself returns synchronously with a WatcherError if dir is
// missing or not a directory.
func Subscribe(dir string, onBatch EventBatchFunc, onError ErrorFunc, opts Options) (*Subscription, error) {
	backend, err := resolveBackend(opts.Backend)
	if err != nil {
		return nil, err
	}

	w := NewWatcher(dir, opts.Ignore, onBatch, onError)
	if err := backend.Subscribe(w); err != nil {
		return nil, err
	}
	return &Subscription{watcher: w, backend: backend}, nil
}

// Unsubscribe stops delivery for sub and releases the backend's kernel
// resources. It returns without waiting for the backend's goroutine, so a
// batch that is already being delivered when it is called may still reach
// the callback.
func Unsubscribe(sub *Subscription) error {
	return sub.backend.Unsubscribe(sub.watcher)
}

// Scan performs a one-shot recursive read of dir and returns a create
// event per entry found (excluding dir itself).
func Scan(dir string, opts Options) ([]Event, error) {
	backend, err := resolveBackend(opts.Backend)
	if err != nil {
		return nil, err
	}
	return backend.Scan(dir, NewIgnoreSet(opts.Ignore))
}

// WriteSnapshot materializes the current state of dir to snapshotPath, in
// the format documented in snapshot.go.
func WriteSnapshot(dir, snapshotPath string, opts Options) error {
	backend, err := resolveBackend(opts.Backend)
	if err != nil {
		return err
	}

	// Read the tree before touching snapshotPath, so a failed read leaves
	// any previous snapshot file as it was.
	var buf bytes.Buffer
	if err := backend.WriteSnapshot(dir, NewIgnoreSet(opts.Ignore), &buf); err != nil {
		return err
	}
	if err := os.WriteFile(snapshotPath, buf.Bytes(), 0o666); err != nil {
		return &IOError{Path: snapshotPath, Op: "writeSnapshot", Err: err}
	}
	return nil
}

// GetEventsSince loads the snapshot at snapshotPath, reads the current
// state of dir, and returns the events that would reconcile the two.
func GetEventsSince(dir, snapshotPath string, opts Options) ([]Event, error) {
	backend, err := resolveBackend(opts.Backend)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(snapshotPath)
	if err != nil {
		return nil, &IOError{Path: snapshotPath, Op: "getEventsSince", Err: err}
	}
	defer f.Close()

	return backend.GetEventsSince(dir, NewIgnoreSet(opts.Ignore), f)
}
