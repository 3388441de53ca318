// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

import "sync"

// EventBatchFunc receives one coalesced batch of events for a subscription.
type EventBatchFunc func([]Event)

// ErrorFunc receives a one-shot, subscription-terminating WatcherError.
type ErrorFunc func(error)

// Watcher is a handle to one active subscription: a root, an ignore set, an
// owned EventList, and a consumer callback. Multiple Watchers may share the
// same cached DirTree when they watch the same root.
type Watcher struct {
	Dir    string
	Ignore *IgnoreSet
	Events *EventList

	tree *DirTree

	onBatch EventBatchFunc
	onError ErrorFunc

	mut     sync.Mutex
	backend any // opaque per-backend state (e.g. inotify watch descriptors)
}

// NewWatcher constructs a Watcher for root, with the given ignore paths and
// batch/error callbacks. It does not start delivering events; a Backend's
// Subscribe does that.
func NewWatcher(root string, ignore []string, onBatch EventBatchFunc, onError ErrorFunc) *Watcher {
	return &Watcher{
		Dir:     root,
		Ignore:  NewIgnoreSet(ignore),
		Events:  NewEventList(),
		onBatch: onBatch,
		onError: onError,
	}
}

// BackendState returns the opaque per-backend state previously attached
// with SetBackendState, or nil if none has been set.
func (w *Watcher) BackendState() any {
	w.mut.Lock()
	defer w.mut.Unlock()
	return w.backend
}

// SetBackendState attaches backend-private bookkeeping to the watcher
// (inotify watch descriptors, an fsnotify.Watcher, etc).
func (w *Watcher) SetBackendState(state any) {
	w.mut.Lock()
	defer w.mut.Unlock()
	w.backend = state
}

// notify delivers the current EventList to the callback and clears the
// log, as long as it is non-empty. Safe to call from the backend's watcher
// goroutine after draining a batch of kernel notifications.
func (w *Watcher) notify() {
	if w.Events.Len() == 0 {
		return
	}
	events := w.Events.Events()
	w.Events.Clear()
	recordEvents(events)
	w.onBatch(events)
}

// fail delivers a one-shot WatcherError to the error callback. The
// subscription is considered dead once this has been called; the backend
// must not deliver further batches for this watcher afterward.
func (w *Watcher) fail(backend string, err *WatcherError) {
	metricWatchErrorsTotal.WithLabelValues(backend).Inc()
	if w.onError != nil {
		w.onError(err)
	}
}
