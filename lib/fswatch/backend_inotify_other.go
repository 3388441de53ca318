// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build !linux

package fswatch

import (
	"fmt"
	"runtime"
)

func newInotifyBackend() (Backend, error) {
	return nil, fmt.Errorf("fswatch: inotify backend not available on %s", runtime.GOOS)
}
