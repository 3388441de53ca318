// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

import "strings"

// IgnoreSet holds a list of absolute paths; a path is ignored if it is
// equal to, or nested beneath, any entry.
type IgnoreSet struct {
	paths []string
}

// NewIgnoreSet builds an IgnoreSet from a list of absolute paths.
func NewIgnoreSet(paths []string) *IgnoreSet {
	s := &IgnoreSet{paths: make([]string, len(paths))}
	copy(s.paths, paths)
	return s
}

// Matches reports whether path is equal to, or nested beneath, any entry
// in the set.
func (s *IgnoreSet) Matches(path string) bool {
	if s == nil {
		return false
	}
	for _, p := range s.paths {
		if path == p || strings.HasPrefix(path, childPrefix(p)) {
			return true
		}
	}
	return false
}

// PrunesDir reports whether a recursive walk or watch installation should
// skip descending into dir entirely: true when dir is equal to or beneath
// an ignored entry. An ignored entry nested below dir does not prune dir,
// since dir may still hold non-ignored siblings of it.
func (s *IgnoreSet) PrunesDir(dir string) bool {
	return s.Matches(dir)
}
