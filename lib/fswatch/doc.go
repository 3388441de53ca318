// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package fswatch reports the sequence of logical create/update/delete/
// rename events affecting a directory tree, either as a long-lived
// subscription or as a point-in-time diff against a persisted snapshot.
//
// The hard engineering lives in four cooperating pieces: DirTree, an
// in-memory mirror of the watched subtree; EventList, a path-keyed log that
// coalesces repeated notifications into one logical event per path; a
// platform Backend that drives both from kernel notifications or a
// recursive scan; and the DirTree diff algorithm that reconstructs events
// from two tree states for snapshot mode.
package fswatch

import "github.com/taratatach/parcel-watcher/lib/logger"

var l = logger.DefaultLogger.NewFacility("fswatch", "Filesystem change notifications")
