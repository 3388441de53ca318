// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build darwin || windows

package fswatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIdentityKey(t *testing.T) {
	_, ok := identityKey(FakeIno, FakeFileID)
	require.False(t, ok)

	key, ok := identityKey(5, FakeFileID)
	require.True(t, ok)
	require.Equal(t, "i:5", key)

	key, ok = identityKey(5, "ref")
	require.True(t, ok)
	require.Equal(t, "f:ref", key, "fileId takes precedence over ino")
}

func TestFsnotifyBackendSubscribeSeesCreate(t *testing.T) {
	root := t.TempDir()

	backend, err := newFsnotifyBackend()
	require.NoError(t, err)

	batches := make(chan []Event, 16)
	w := NewWatcher(root, nil, func(events []Event) {
		batches <- events
	}, func(err error) {
		t.Errorf("unexpected watcher error: %v", err)
	})

	require.NoError(t, backend.Subscribe(w))
	defer backend.Unsubscribe(w)

	target := filepath.Join(root, "created.txt")
	require.NoError(t, os.WriteFile(target, []byte("hi"), 0o644))

	select {
	case events := <-batches:
		require.Len(t, events, 1)
		require.Equal(t, Create, events[0].Type())
		require.Equal(t, target, events[0].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for create event")
	}
}

func TestFsnotifyBackendRenamePairing(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "old.txt")
	require.NoError(t, os.WriteFile(src, []byte("hi"), 0o644))

	backend, err := newFsnotifyBackend()
	require.NoError(t, err)

	batches := make(chan []Event, 16)
	w := NewWatcher(root, nil, func(events []Event) {
		batches <- events
	}, func(err error) {
		t.Errorf("unexpected watcher error: %v", err)
	})

	require.NoError(t, backend.Subscribe(w))
	defer backend.Unsubscribe(w)

	dst := filepath.Join(root, "new.txt")
	require.NoError(t, os.Rename(src, dst))

	select {
	case events := <-batches:
		require.Len(t, events, 1)
		require.Equal(t, Rename, events[0].Type())
		require.Equal(t, src, events[0].OldPath)
		require.Equal(t, dst, events[0].Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rename event")
	}
}
