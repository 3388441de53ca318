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

func TestPublicEventOmitsSentinelIdentity(t *testing.T) {
	e := Event{Path: "/a", IsCreated: true, Ino: FakeIno, FileID: FakeFileID}
	p := e.Public()
	require.Equal(t, "create", p.Type)
	require.Zero(t, p.Ino)
	require.Empty(t, p.FileID)
}

func TestPublicEventIncludesIdentityWhenKnown(t *testing.T) {
	e := Event{Path: "/a", IsCreated: true, Ino: 7, FileID: "ref"}
	p := e.Public()
	require.Equal(t, uint64(7), p.Ino)
	require.Equal(t, "ref", p.FileID)
}

func TestPublicEventOldPathOnlyOnRename(t *testing.T) {
	rename := Event{Path: "/b", OldPath: "/a"}
	require.Equal(t, "/a", rename.Public().OldPath)

	create := Event{Path: "/b", IsCreated: true}
	require.Empty(t, create.Public().OldPath)
}

func TestPublicEventsPreservesOrder(t *testing.T) {
	events := []Event{
		{Path: "/a", IsCreated: true},
		{Path: "/b", IsDeleted: true},
	}
	out := PublicEvents(events)
	require.Equal(t, []string{"/a", "/b"}, []string{out[0].Path, out[1].Path})
	require.Equal(t, "delete", out[1].Type)
}
