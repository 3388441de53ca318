// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build unix

package fswatch

import (
	"io/fs"
	"syscall"
)

// platformIdentity extracts the POSIX inode number from a FileInfo
// produced during a WalkDir. fileId is always FakeFileID on these
// platforms; identity comparisons fall back to ino.
func platformIdentity(_ string, info fs.FileInfo) (uint64, string) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return FakeIno, FakeFileID
	}
	return uint64(stat.Ino), FakeFileID
}
