// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

import (
	"testing"
)

func rangesEqual(t *rangeSet, e []freeRange) bool {
	if len(t.rs) != len(e) {
		return false
	}

	for i, r := range t.rs {
		if r != e[i] {
			return false
		}
	}
	return true
}

func TestRangeSetInsertFind(t *testing.T) {
	var s rangeSet

	s.insert(100, 50)
	s.insert(10, 5)
	s.insert(300, 1)

	if g, e := s.len(), 3; g != e {
		t.Fatal(g, e)
	}

	if !rangesEqual(&s, []freeRange{{10, 5}, {100, 50}, {300, 1}}) {
		t.Fatal(s.rs)
	}

	tab := []struct {
		blkid uint64
		hit   bool
	}{
		{9, false},
		{10, true},
		{14, true},
		{15, false},
		{99, false},
		{100, true},
		{149, true},
		{150, false},
		{300, true},
		{301, false},
	}
	for _, test := range tab {
		if g, e := s.find(test.blkid) != nil, test.hit; g != e {
			t.Fatal(test.blkid, g, e)
		}
	}
}

func TestRangeSetClearSplit(t *testing.T) {
	var s rangeSet

	s.insert(100, 50)
	s.clear(120, 10)

	if !rangesEqual(&s, []freeRange{{100, 20}, {130, 20}}) {
		t.Fatal(s.rs)
	}
}

func TestRangeSetClearCases(t *testing.T) {
	tab := []struct {
		blkid, nblks uint64
		e            []freeRange
	}{
		// full cover
		{100, 50, nil},
		{90, 70, nil},
		{100, 51, nil},
		// left overlap
		{90, 20, []freeRange{{110, 40}}},
		{100, 1, []freeRange{{101, 49}}},
		// right overlap
		{140, 20, []freeRange{{100, 40}}},
		{149, 1, []freeRange{{100, 49}}},
		// interior
		{101, 48, []freeRange{{100, 1}, {149, 1}}},
		// no overlap
		{10, 5, []freeRange{{100, 50}}},
		{150, 5, []freeRange{{100, 50}}},
		{99, 1, []freeRange{{100, 50}}},
	}
	for i, test := range tab {
		var s rangeSet
		s.insert(100, 50)
		s.clear(test.blkid, test.nblks)
		if !rangesEqual(&s, test.e) {
			t.Fatal(i, test.blkid, test.nblks, s.rs, test.e)
		}
	}
}

func TestRangeSetClearMany(t *testing.T) {
	var s rangeSet

	for blkid := uint64(0); blkid < 100; blkid += 10 {
		s.insert(blkid, 4)
	}

	s.clear(0, 100)
	if g, e := s.len(), 0; g != e {
		t.Fatal(g, e, s.rs)
	}
}

func TestRangeSetClearAcross(t *testing.T) {
	var s rangeSet

	s.insert(10, 10)
	s.insert(30, 10)
	s.insert(50, 10)

	// Covers the tail of the first, all of the second and the head
	// of the third.
	s.clear(15, 40)

	if !rangesEqual(&s, []freeRange{{10, 5}, {55, 5}}) {
		t.Fatal(s.rs)
	}
}

func TestRangeSetClearInsertIdempotent(t *testing.T) {
	var s rangeSet

	for i := 0; i < 2; i++ {
		s.clear(40, 20)
		s.insert(40, 20)
	}

	if !rangesEqual(&s, []freeRange{{40, 20}}) {
		t.Fatal(s.rs)
	}
}

func TestRangeSetOrderInvariant(t *testing.T) {
	var s rangeSet

	s.insert(50, 5)
	s.insert(5, 5)
	s.insert(20, 5)
	s.clear(21, 2)

	var last uint64
	for i, r := range s.rs {
		if r.nblks == 0 {
			t.Fatal(i, "empty range")
		}

		if i > 0 && r.blkid <= last {
			t.Fatal(i, "unsorted or overlapping", s.rs)
		}

		last = r.end()
	}
}
