// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Range freeing: deleting spans of an object's address space.

package dnode

// FreeRange deletes the content of [off, off+length). Passing
// FreeToEnd as length truncates the object at off.
//
// Partial head and tail blocks are zeroed in place through the buffer
// cache; the block aligned interior is recorded in the group's free
// range set and finished during the group's sync walk. On truncation
// maxblkid drops to the last surviving block.
func (dn *Dnode) FreeRange(off, length uint64, tx *Tx) {
	trunc := false

	dn.structLock.Lock()
	defer dn.structLock.Unlock()

	blksz := uint64(dn.datablksz)
	blkshift := uint(dn.datablkshift)
	epbs := uint(dn.indblkshift - BlkptrShift)

	// A range past the end of the object is a no-op.
	objsize := blksz * (dn.maxblkid + 1)
	if off >= objsize {
		return
	}
	if length == FreeToEnd {
		length = ^uint64(0) - off
		trunc = true
	}

	// Block align the region to free.
	var head, start uint64
	if dn.maxblkid == 0 {
		// A single block object may have a non power of two size.
		if off == 0 {
			head = 0
		} else {
			head = blksz - off
		}
		start = off
	} else {
		if Debug && blksz&(blksz-1) != 0 {
			panic("internal error: multi-block object with odd block size")
		}
		head = -off & (blksz - 1)
		start = off & (blksz - 1)
	}

	// Zero out any partial block data at the start of the range.
	if head != 0 {
		if Debug && start+head != blksz {
			panic("internal error: head does not reach the block boundary")
		}
		if length < head {
			head = length
		}
		if db, err := dn.os.bufs.Hold(dn, 0, whichBlock(dn, off), true, holdTag); err == nil {
			// Don't dirty it if it isn't on disk and isn't dirty.
			if db.IsDirty() || !db.IsHole() {
				db.MarkDirty(tx)
				data := db.Data()
				for i := start; i < start+head; i++ {
					data[i] = 0
				}
			}
			db.Rele(holdTag)
		}
		off += head
		length -= head
	}

	// A range of less than one block is now fully handled.
	if length == 0 {
		return
	}

	// The remaining range may start past the end of the object.
	if off > dn.maxblkid<<blkshift {
		return
	}

	var tail uint64
	if off+length == ^uint64(0) {
		tail = 0
	} else {
		tail = length & (blksz - 1)
	}

	if Debug && off&(blksz-1) != 0 {
		panic("internal error: unaligned interior start")
	}

	// Zero out any partial block data at the end of the range.
	if tail != 0 {
		if length < tail {
			tail = length
		}
		if db, err := dn.os.bufs.Hold(dn, 0, whichBlock(dn, off+length), true, holdTag); err == nil {
			if db.IsDirty() || !db.IsHole() {
				db.MarkDirty(tx)
				data := db.Data()
				for i := uint64(0); i < tail; i++ {
					data[i] = 0
				}
			}
			db.Rele(holdTag)
		}
		length -= tail
	}

	// Nothing left once the partial blocks are gone.
	if length == 0 {
		return
	}

	// Dirty the indirects spanning the left edge of the interior.
	if dn.nlevels > 1 && off != 0 {
		if db, err := dn.os.bufs.Hold(dn, 1, (off-head)>>(blkshift+epbs), false, holdTag); err == nil {
			db.MarkDirty(tx)
			db.Rele(holdTag)
		}
	}

	// And the right edge, unless truncating.
	if dn.nlevels > 1 && !trunc {
		if db, err := dn.os.bufs.Hold(dn, 1, (off+length+tail-1)>>(blkshift+epbs), false, holdTag); err == nil {
			db.MarkDirty(tx)
			db.Rele(holdTag)
		}
	}

	blkid := off >> blkshift
	nblks := length >> blkshift

	if trunc {
		if blkid != 0 {
			dn.maxblkid = blkid - 1
		} else {
			dn.maxblkid = 0
		}
	}

	// Record the interior range; the sync walk finishes the free.
	dn.mtx.Lock()
	dn.ranges[tx.Txg&TXGMask].clear(blkid, nblks)
	dn.ranges[tx.Txg&TXGMask].insert(blkid, nblks)
	dn.mtx.Unlock()

	dprintf("free range obj=%d blkid=%d nblks=%d txg=%d", dn.object, blkid, nblks, tx.Txg)

	dn.os.bufs.FreeRange(dn, blkid, nblks, tx)
	dn.SetDirty(tx)
}

// ClearRange removes [blkid, blkid+nblks) from the free ranges
// recorded against tx's group. The buffer cache calls it when a new
// write lands inside a pending free.
func (dn *Dnode) ClearRange(blkid, nblks uint64, tx *Tx) {
	if Debug && nblks > ^uint64(0)-blkid {
		panic("internal error: clear range overflow")
	}

	dn.mtx.Lock()
	dn.ranges[tx.Txg&TXGMask].clear(blkid, nblks)
	dn.mtx.Unlock()
}

// BlockFreed reports whether blkid was freed in one of the open
// transaction groups, or the whole object is being deleted.
func (dn *Dnode) BlockFreed(blkid uint64) bool {
	if blkid == BonusBlkid {
		return false
	}

	if dn.freeTxg != 0 {
		return true
	}

	dn.mtx.Lock()
	defer dn.mtx.Unlock()

	for i := 0; i < TXGSize; i++ {
		if r := dn.ranges[i].find(blkid); r != nil {
			if Debug && r.nblks == 0 {
				panic("internal error: empty free range")
			}
			return true
		}
	}
	return false
}
