// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWatcherNotifyDeliversAndClearsBatch(t *testing.T) {
	var got []Event
	w := NewWatcher("/root", nil, func(events []Event) {
		got = events
	}, nil)

	w.Events.Create("/root/a", false, 1, "")
	w.notify()

	require.Len(t, got, 1)
	require.Equal(t, 0, w.Events.Len())
}

func TestWatcherNotifySkipsEmptyBatch(t *testing.T) {
	called := false
	w := NewWatcher("/root", nil, func(events []Event) {
		called = true
	}, nil)

	w.notify()
	require.False(t, called)
}

func TestWatcherFailDeliversError(t *testing.T) {
	var got error
	w := NewWatcher("/root", nil, func(events []Event) {}, func(err error) {
		got = err
	})

	w.fail("inotify", &WatcherError{Root: "/root", Op: "watch", Err: nil})
	require.Error(t, got)
}

func TestWatcherBackendState(t *testing.T) {
	w := NewWatcher("/root", nil, func(events []Event) {}, nil)
	require.Nil(t, w.BackendState())

	w.SetBackendState(42)
	require.Equal(t, 42, w.BackendState())
}
