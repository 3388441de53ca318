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

func TestParseBackendKind(t *testing.T) {
	cases := map[string]BackendKind{
		"":            BackendAuto,
		"auto":        BackendAuto,
		"fs-events":   BackendFSEvents,
		"inotify":     BackendInotify,
		"windows":     BackendWindows,
		"brute-force": BackendBruteForce,
	}
	for s, want := range cases {
		got, err := ParseBackendKind(s)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseBackendKind("nonsense")
	require.Error(t, err)
}

func TestBackendKindStringRoundTripsThroughParse(t *testing.T) {
	for _, k := range []BackendKind{BackendAuto, BackendFSEvents, BackendInotify, BackendWindows, BackendBruteForce} {
		parsed, err := ParseBackendKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, parsed)
	}
}

func TestResolveBackendBruteForceAlwaysAvailable(t *testing.T) {
	b, err := resolveBackend(BackendBruteForce)
	require.NoError(t, err)
	require.NotNil(t, b)
}
