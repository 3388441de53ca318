// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package automaxprocs sets GOMAXPROCS to match the Linux container CPU
// quota on import. Side-effect only; import for the init() function.
package automaxprocs

import (
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/taratatach/parcel-watcher/lib/logger"
)

var l = logger.DefaultLogger.NewFacility("automaxprocs", "Runtime GOMAXPROCS tuning")

func init() {
	if _, err := maxprocs.Set(maxprocs.Logger(l.Debugf)); err != nil {
		l.Debugf("Adjusting GOMAXPROCS: %v", err)
	}
}
