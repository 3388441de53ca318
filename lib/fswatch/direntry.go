// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

const (
	// FakeIno is the sentinel ino value meaning "unknown".
	FakeIno uint64 = 0
	// FakeFileID is the sentinel fileId value meaning "unused".
	FakeFileID = ""
)

// DirEntry records the identity of one filesystem object beneath a watched
// root: an absolute path, a POSIX inode number or Windows file reference
// (whichever the platform provides), a modification time, and whether the
// entry is a directory.
//
// At least one of Ino or FileID should be populated when known; identity
// comparisons prefer FileID, then Ino, then Path.
type DirEntry struct {
	Path   string
	Ino    uint64
	FileID string
	MTime  int64 // nanoseconds since epoch
	IsDir  bool
}

func newDirEntry(path string, ino uint64, mtime int64, isDir bool, fileID string) DirEntry {
	return DirEntry{
		Path:   path,
		Ino:    ino,
		FileID: fileID,
		MTime:  mtime,
		IsDir:  isDir,
	}
}

// sameIdentity reports whether two entries refer to the same underlying
// filesystem object: by FileID if either has one, else by Ino if either
// has one, else by Path.
func sameIdentity(a, b DirEntry) bool {
	if a.FileID != FakeFileID || b.FileID != FakeFileID {
		return a.FileID == b.FileID
	}
	if a.Ino != FakeIno || b.Ino != FakeIno {
		return a.Ino == b.Ino
	}
	return a.Path == b.Path
}
