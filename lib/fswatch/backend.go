// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

import (
	"fmt"
	"io"
	"runtime"
)

// BackendKind selects one of the named backends. The zero value means
// "pick the best native backend for the current platform".
type BackendKind int

const (
	BackendAuto BackendKind = iota
	BackendFSEvents
	BackendInotify
	BackendWindows
	BackendBruteForce
)

func (k BackendKind) String() string {
	switch k {
	case BackendFSEvents:
		return "fs-events"
	case BackendInotify:
		return "inotify"
	case BackendWindows:
		return "windows"
	case BackendBruteForce:
		return "brute-force"
	default:
		return "auto"
	}
}

// ParseBackendKind maps the public option strings (spec.md §6) to a
// BackendKind.
func ParseBackendKind(s string) (BackendKind, error) {
	switch s {
	case "", "auto":
		return BackendAuto, nil
	case "fs-events":
		return BackendFSEvents, nil
	case "inotify":
		return BackendInotify, nil
	case "windows":
		return BackendWindows, nil
	case "brute-force":
		return BackendBruteForce, nil
	default:
		return BackendAuto, fmt.Errorf("fswatch: unknown backend %q", s)
	}
}

// Options configures one of the five public operations.
type Options struct {
	Backend BackendKind
	Ignore  []string
}

// Backend is the uniform operation trait every platform driver implements:
// a recursive-watch subscription, a one-shot scan, and snapshot
// materialization/diffing. A single dispatch in resolveBackend picks the
// concrete implementation; no inheritance or further polymorphism is
// needed beyond this one interface.
type Backend interface {
	// Subscribe starts delivering coalesced batches for w until
	// Unsubscribe is called or a WatcherError is delivered. It blocks
	// briefly to perform the initial recursive walk.
	Subscribe(w *Watcher) error
	// Unsubscribe stops delivery and releases kernel resources for w.
	// Destruction is synchronous: it blocks until the watcher's
	// goroutine has exited.
	Unsubscribe(w *Watcher) error
	// Scan populates a fresh EventList with one create event per entry
	// under root (excluding root itself) and returns it.
	Scan(root string, ignore *IgnoreSet) ([]Event, error)
	// WriteSnapshot materializes the current tree under root to w.
	WriteSnapshot(root string, ignore *IgnoreSet, w io.Writer) error
	// GetEventsSince loads the snapshot from r, reads the current tree,
	// and returns the events that reconcile the two.
	GetEventsSince(root string, ignore *IgnoreSet, r io.Reader) ([]Event, error)
}

// resolveBackend maps a BackendKind (auto-resolving to the best native
// backend for the running platform) to a concrete Backend.
func resolveBackend(kind BackendKind) (Backend, error) {
	if kind == BackendAuto {
		kind = defaultBackendKind()
	}
	switch kind {
	case BackendBruteForce:
		return newBruteForceBackend(), nil
	case BackendInotify:
		return newInotifyBackend()
	case BackendFSEvents, BackendWindows:
		return newFsnotifyBackend()
	default:
		return nil, fmt.Errorf("fswatch: backend %v not available on %s-%s", kind, runtime.GOOS, runtime.GOARCH)
	}
}

func defaultBackendKind() BackendKind {
	switch runtime.GOOS {
	case "linux":
		return BackendInotify
	case "darwin":
		return BackendFSEvents
	case "windows":
		return BackendWindows
	default:
		return BackendBruteForce
	}
}
