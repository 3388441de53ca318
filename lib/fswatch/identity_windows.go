// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build windows

package fswatch

import (
	"fmt"
	"io/fs"

	"golang.org/x/sys/windows"
)

// platformIdentity resolves the stable NTFS file reference for path,
// returned as fileId in spec.md's terms; ino stays FakeIno on Windows.
func platformIdentity(path string, info fs.FileInfo) (uint64, string) {
	pathp, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return FakeIno, FakeFileID
	}
	h, err := windows.CreateFile(pathp, 0, windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil, windows.OPEN_EXISTING, windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		return FakeIno, FakeFileID
	}
	defer windows.CloseHandle(h)

	var fi windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &fi); err != nil {
		return FakeIno, FakeFileID
	}
	fileID := fmt.Sprintf("%08x%08x%08x", fi.VolumeSerialNumber, fi.FileIndexHigh, fi.FileIndexLow)
	return FakeIno, fileID
}
