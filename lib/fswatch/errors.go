// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

import "fmt"

// WatcherError is bound to a specific subscription. It is returned
// synchronously from Subscribe when the root is missing or not a
// directory, and delivered asynchronously to a Watcher's error callback
// when the notification channel reports an error or a brute-force rescan
// fails. Either way the subscription is dead; the caller must Subscribe
// again. A watch that cannot be installed on a directory created after
// Subscribe is not reported: that directory is simply left unwatched.
type WatcherError struct {
	Root string
	Op   string
	Err  error
}

func (e *WatcherError) Error() string {
	return fmt.Sprintf("fswatch: %s %s: %v", e.Op, e.Root, e.Err)
}

func (e *WatcherError) Unwrap() error {
	return e.Err
}

// IOError wraps a snapshot read or write failure. A WriteSnapshot that
// fails while reading the tree leaves any previous snapshot file untouched
// (a failure while writing the file itself can leave it partly written),
// and a failed GetEventsSince leaves the live tree untouched.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("fswatch: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
