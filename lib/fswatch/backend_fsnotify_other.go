// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build !darwin && !windows

package fswatch

import (
	"fmt"
	"runtime"
)

func newFsnotifyBackend() (Backend, error) {
	return nil, fmt.Errorf("fswatch: fs-events/windows backend not available on %s", runtime.GOOS)
}
