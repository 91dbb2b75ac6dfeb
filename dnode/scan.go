// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The sparse offset scan: hole and data skipping over the block tree.

package dnode

// nextOffsetLevel advances *offset at one tree level. At the top
// level it examines the embedded root pointers, below it the indirect
// (or, for a meta dnode, leaf) block covering *offset. A pointer
// matches when its fill count is consistent with the polarity of the
// search; matching stops the walk, otherwise *offset advances by the
// level's stride. ErrNotFound reports a fully scanned block.
func (dn *Dnode) nextOffsetLevel(hole bool, offset *uint64, lvl int, blkfill uint64) error {
	var db Buf
	var data []byte
	epbs := uint(dn.phys.IndBlkShift) - BlkptrShift
	epb := uint64(1) << epbs

	dprintf("probing obj=%d offset=%#x level=%d of %d", dn.object, *offset, lvl, dn.phys.NLevels)

	if lvl == int(dn.phys.NLevels) {
		epb = uint64(dn.phys.NBlkptr)
	} else {
		blkid := whichBlock(dn, *offset) >> (epbs * uint(lvl))
		var err error
		db, err = dn.os.bufs.Hold(dn, lvl, blkid, true, holdTag)
		if err != nil {
			if err == ErrHole {
				if hole {
					return nil
				}
				return ErrNotFound
			}
			return err
		}
		data = db.Data()
		defer db.Rele(holdTag)
	}

	if lvl == 0 {
		// Leaf blocks of a meta dnode: an array of image slots, one
		// per DnodeSize stride, scanned by their type tag.
		if Debug && dn.typ != TypeMeta {
			panic("internal error: level 0 scan of a non-meta dnode")
		}
		span := uint(DnodeShift)
		for i := (*offset >> span) & (blkfill - 1); i < blkfill; i++ {
			free := data[i<<DnodeShift+poType] == 0
			if free == hole {
				return nil
			}
			*offset += 1 << span
		}
		return ErrNotFound
	}

	span := uint(lvl-1)*epbs + uint(dn.datablkshift)
	minfill, maxfill := uint64(0), blkfill<<(uint(lvl-1)*epbs)

	if hole {
		maxfill--
	} else {
		minfill++
	}

	for i := (*offset >> span) & (epb - 1); i < epb; i++ {
		var fill uint64
		if lvl == int(dn.phys.NLevels) {
			fill = dn.phys.Blkptr[i].Fill
		} else {
			fill = bpFillAt(data, int(i))
		}
		if fill >= minfill && fill <= maxfill {
			return nil
		}
		*offset += 1 << span
	}
	return ErrNotFound
}

// NextOffset finds the next hole or data span at or after *offset.
// blkfill is the expected number of items in a full level 0 block: 1
// for plain objects, DnodesPerBlock for a meta dnode, and a fraction
// of DnodesPerBlock when hunting for partially empty meta dnode
// indirects. minlvl is the lowest tree level to resolve to: 1 for
// block granularity, 0 for slot granularity in a meta dnode.
//
// ErrNotFound reports that the scan walked off the end of the object
// without a match.
func (dn *Dnode) NextOffset(hole bool, offset *uint64, minlvl int, blkfill uint64) error {
	initial := *offset

	dn.structLock.RLock()
	defer dn.structLock.RUnlock()

	if dn.phys.NLevels == 0 {
		return ErrNotFound
	}

	if dn.datablkshift == 0 {
		// A single, possibly odd sized block: everything before its
		// end is data, everything after a hole.
		if *offset < uint64(dn.datablksz) {
			if hole {
				*offset = uint64(dn.datablksz)
			}
			return nil
		}
		return ErrNotFound
	}

	maxlvl := int(dn.phys.NLevels)

	// Ascend until some level has a match at or after *offset, then
	// descend refining *offset at each level.
	lvl := minlvl
	var err error
	for ; lvl <= maxlvl; lvl++ {
		if err = dn.nextOffsetLevel(hole, offset, lvl, blkfill); err == nil {
			break
		}
	}

	for lvl--; lvl >= minlvl && err == nil; lvl-- {
		err = dn.nextOffsetLevel(hole, offset, lvl, blkfill)
	}

	if err == nil && initial > *offset {
		// Wrapped past the end.
		return ErrNotFound
	}

	return err
}
