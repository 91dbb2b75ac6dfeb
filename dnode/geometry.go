// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Geometry mutators: data block size changes and block tree growth.

package dnode

// SetBlockSize tries to change the data block size and indirect
// block shift. This can only succeed while no blocks beyond the
// first are allocated or cached: afterwards every block's size is
// fixed. A zero size means MinBlockSize; a zero ibs keeps the
// current shift. Shrinking below data already present in the first
// block is refused. ErrNOTSUP reports any violated precondition.
func (dn *Dnode) SetBlockSize(size, ibs int, tx *Tx) error {
	if size == 0 {
		size = MinBlockSize
	}
	if size > MaxBlockSize {
		size = MaxBlockSize
	} else {
		size = (size + MinBlockSize - 1) &^ (MinBlockSize - 1)
	}

	if ibs == 0 {
		ibs = dn.indblkshift
	}

	if size>>MinBlockShift == dn.datablkszsec && ibs == dn.indblkshift {
		return nil
	}

	dn.structLock.Lock()
	defer dn.structLock.Unlock()

	// Check for any allocated blocks beyond the first.
	if dn.phys.MaxBlkid != 0 {
		return &ErrNOTSUP{"dnode.SetBlockSize: blocks beyond the first exist"}
	}

	// Any buffers cached for blocks beyond the first would be the
	// wrong size. Holding structLock in write mode keeps new ones
	// from appearing while we look.
	have0 := false
	for _, id := range dn.os.bufs.Cached(dn) {
		switch {
		case id.Blkid == 0:
			have0 = true
		case id.Blkid != BonusBlkid:
			return &ErrNOTSUP{"dnode.SetBlockSize: cached blocks beyond the first"}
		}
	}

	txgoff := tx.Txg & TXGMask

	// Fast track: nothing in the object at all.
	if dn.phys.Blkptr[0].IsHole() && !have0 {
		dn.setDblksz(size)
		dn.indblkshift = ibs
		dn.SetDirty(tx)
		dn.dirtyblksz[txgoff] = size
		dn.nextIndBlkShift[txgoff] = ibs
		return nil
	}

	// Obtain the old first block.
	db, err := dn.os.bufs.Hold(dn, 0, 0, false, holdTag)
	if err != nil {
		return err
	}

	// Not allowed to decrease the size if there is data present.
	if size < db.Size() {
		db.Rele(holdTag)
		return &ErrNOTSUP{"dnode.SetBlockSize: shrinking below first block size"}
	}

	db.Resize(size, tx)

	dn.setDblksz(size)
	dn.indblkshift = ibs
	dn.SetDirty(tx)
	dn.dirtyblksz[txgoff] = size
	dn.nextIndBlkShift[txgoff] = ibs
	db.Rele(holdTag)
	return nil
}

// NewBlkid notes that block blkid is about to be written: it raises
// maxblkid, computes the tree height the new block needs, publishes
// it into the group's pending geometry and, when the height grew,
// dirties the leftmost indirect path at the old top level so the new
// root layer is materialized.
func (dn *Dnode) NewBlkid(blkid uint64, tx *Tx) {
	if blkid == BonusBlkid {
		// Early exit; the structural lock was not taken and must not
		// be released.
		return
	}

	txgoff := tx.Txg & TXGMask

	dn.structLock.Lock()
	defer dn.structLock.Unlock()

	if blkid > dn.maxblkid {
		dn.maxblkid = blkid
	}

	// Compute the number of levels necessary to support the new
	// blkid: one root layer addresses nblkptr blocks, every indirect
	// level multiplies that by 1<<epbs.
	newNLevels := 1
	epbs := uint(dn.indblkshift - BlkptrShift)

	for sz := uint64(dn.nblkptr); sz <= blkid && sz >= uint64(dn.nblkptr); sz <<= epbs {
		newNLevels++
	}

	oldNLevels := dn.nlevels

	if newNLevels > dn.nextNLevels[txgoff] {
		dn.nextNLevels[txgoff] = newNLevels
	}

	if newNLevels > oldNLevels {
		dprintf("obj=%d increasing nlevels from %d to %d", dn.object, oldNLevels, newNLevels)
		dn.nlevels = newNLevels

		// Dirty the left indirects so the new root layer exists come
		// sync time.
		if db, err := dn.os.bufs.Hold(dn, oldNLevels, 0, false, holdTag); err == nil {
			db.MarkDirty(tx)
			db.Rele(holdTag)
		}
	}
}
