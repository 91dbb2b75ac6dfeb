// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The per-txg set of block ranges queued for freeing.

package dnode

import (
	"sort"
)

// A freeRange is one half open interval [blkid, blkid+nblks) of
// blocks queued for freeing in some txg.
type freeRange struct {
	blkid uint64
	nblks uint64
}

func (r freeRange) end() uint64 { return r.blkid + r.nblks }

// A rangeSet is an ordered set of disjoint, non adjacent freeRanges,
// sorted by blkid ascending. The zero value is an empty set ready for
// use. Callers serialize access (the owning handle's mutex).
type rangeSet struct {
	rs []freeRange
}

func (t *rangeSet) len() int    { return len(t.rs) }
func (t *rangeSet) empty() bool { return len(t.rs) == 0 }

// search returns the index of the first range with blkid >= id.
func (t *rangeSet) search(id uint64) int {
	return sort.Search(len(t.rs), func(i int) bool { return t.rs[i].blkid >= id })
}

// find returns the range containing blkid, or nil.
func (t *rangeSet) find(blkid uint64) *freeRange {
	i := t.search(blkid)
	if i < len(t.rs) && t.rs[i].blkid == blkid {
		return &t.rs[i]
	}

	// Nearest range before blkid, extent permitting.
	if i > 0 && t.rs[i-1].end() > blkid {
		return &t.rs[i-1]
	}

	return nil
}

// insert adds [blkid, blkid+nblks). The caller MUST have cleared the
// range first; no existing range may start at blkid or overlap the
// insert.
func (t *rangeSet) insert(blkid, nblks uint64) {
	i := t.search(blkid)
	if Debug {
		if i < len(t.rs) && t.rs[i].blkid == blkid {
			panic("internal error: duplicate free range start")
		}
		if r := t.find(blkid); r != nil {
			panic("internal error: overlapping free range insert")
		}
	}
	// Coalesce with adjacent neighbors so the set stays non adjacent.
	if i > 0 && t.rs[i-1].end() == blkid {
		i--
		t.rs[i].nblks += nblks
	} else {
		t.rs = append(t.rs, freeRange{})
		copy(t.rs[i+1:], t.rs[i:])
		t.rs[i] = freeRange{blkid, nblks}
	}
	if i+1 < len(t.rs) && t.rs[i].end() == t.rs[i+1].blkid {
		t.rs[i].nblks += t.rs[i+1].nblks
		t.rs = append(t.rs[:i+1], t.rs[i+2:]...)
	}
}

// clear removes [blkid, blkid+nblks) from every overlapping range.
// The four overlap cases: full cover deletes the range, a left or
// right overlap shrinks it, an interior overlap splits it in two.
func (t *rangeSet) clear(blkid, nblks uint64) {
	endblk := blkid + nblks

	// First candidate: the range containing blkid if any, else the
	// first range starting at or after it.
	i := t.search(blkid)
	if i > 0 && t.rs[i-1].end() > blkid {
		i--
	}

	for i < len(t.rs) && t.rs[i].blkid <= endblk {
		r := t.rs[i]
		rend := r.end()
		switch {
		case blkid <= r.blkid && endblk >= rend:
			// clear this entire range
			t.rs = append(t.rs[:i], t.rs[i+1:]...)
			continue // do not advance; next range shifted into i
		case blkid <= r.blkid && endblk > r.blkid && endblk < rend:
			// clear the beginning of this range
			t.rs[i] = freeRange{endblk, rend - endblk}
		case blkid > r.blkid && blkid < rend && endblk >= rend:
			// clear the end of this range
			t.rs[i].nblks = blkid - r.blkid
		case blkid > r.blkid && endblk < rend:
			// clear a chunk out of this range
			t.rs[i].nblks = blkid - r.blkid
			rest := freeRange{endblk, rend - endblk}
			t.rs = append(t.rs, freeRange{})
			copy(t.rs[i+2:], t.rs[i+1:])
			t.rs[i+1] = rest
			i++
		}
		// there may be no overlap
		i++
	}
}
