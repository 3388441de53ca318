// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

// PublicEvent is the shape delivered across the public API boundary
// (spec.md §6): ino/fileId are omitted when sentinel, and oldPath only
// appears for renames.
type PublicEvent struct {
	Type    string `json:"type"`
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Ino     uint64 `json:"ino,omitempty"`
	FileID  string `json:"fileId,omitempty"`
	OldPath string `json:"oldPath,omitempty"`
}

// Public converts an internal Event to the shape callers of the five
// top-level operations actually see.
func (e Event) Public() PublicEvent {
	p := PublicEvent{
		Type: e.Type().String(),
		Path: e.Path,
		Kind: e.Kind(),
	}
	if e.Ino != FakeIno {
		p.Ino = e.Ino
	}
	if e.FileID != FakeFileID {
		p.FileID = e.FileID
	}
	if e.Type() == Rename {
		p.OldPath = e.OldPath
	}
	return p
}

// PublicEvents converts a slice of Events to their public shape.
func PublicEvents(events []Event) []PublicEvent {
	out := make([]PublicEvent, len(events))
	for i, e := range events {
		out[i] = e.Public()
	}
	return out
}
