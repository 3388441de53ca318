// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	entries := []DirEntry{
		{Path: "/root/a", Ino: 1, MTime: 123, IsDir: false},
		{Path: "/root/dir", Ino: 2, MTime: 0, IsDir: true},
		{Path: "/root/dir/b", FileID: "ntfs-ref", MTime: 456, IsDir: false},
	}

	var buf bytes.Buffer
	require.NoError(t, writeSnapshotEntries(&buf, entries))

	got, err := readSnapshotEntries(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestSnapshotRoundTripEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSnapshotEntries(&buf, nil))

	got, err := readSnapshotEntries(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSnapshotPathWithEmbeddedWhitespace(t *testing.T) {
	entries := []DirEntry{
		{Path: "/root/has spaces/and\ttabs", Ino: 7, MTime: 1, IsDir: false},
	}

	var buf bytes.Buffer
	require.NoError(t, writeSnapshotEntries(&buf, entries))

	got, err := readSnapshotEntries(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestReadDecimalStopsAtNonDigit(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("123abc")))
	n, err := readDecimal(r)
	require.NoError(t, err)
	require.Equal(t, 123, n)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "abc", string(rest))
}
