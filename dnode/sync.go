// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The per-txg sync walk over an objectset's dirty and free lists.

package dnode

// A FreedFunc receives the block ranges a sync walk releases; the
// physical frees belong to the allocator.
type FreedFunc func(dn *Dnode, blkid, nblks uint64)

// SyncTxg walks the dirty and free dnode lists of txg: freed objects
// have their slots zeroed, dirty ones get their pending geometry and
// working copy written back into the image and their queued free
// ranges drained through freed (which may be nil). Images of handles
// backed by a meta dnode block are encoded back into their slots.
//
// SyncTxg is the syncing context of the group: the caller (the txg
// engine) guarantees no new dirtying of this group runs concurrently.
func (os *Objset) SyncTxg(txg uint64, freed FreedFunc) {
	txgoff := txg & TXGMask

	os.mu.Lock()
	dirty := os.dirty[txgoff]
	free := os.free[txgoff]
	os.dirty[txgoff] = nil
	os.free[txgoff] = nil
	os.mu.Unlock()

	for _, dn := range free {
		os.syncFree(dn, txg, freed)
	}
	for _, dn := range dirty {
		os.syncDirty(dn, txg, freed)
	}
}

func (os *Objset) syncFree(dn *Dnode, txg uint64, freed FreedFunc) {
	txgoff := txg & TXGMask

	dn.drainRanges(txgoff, freed)

	// Everything the object had is gone with it.
	if freed != nil && (dn.maxblkid != 0 || !dn.phys.Blkptr[0].IsHole()) {
		freed(dn, 0, dn.maxblkid+1)
	}

	dn.mtx.Lock()
	dn.typ = TypeNone
	dn.bonustype = TypeNone
	dn.bonuslen = 0
	dn.nblkptr = 0
	dn.nlevels = 0
	dn.indblkshift = 0
	dn.datablksz = 0
	dn.datablkszsec = 0
	dn.datablkshift = 0
	dn.maxblkid = 0
	dn.allocatedTxg = 0
	dn.freeTxg = 0
	dn.dirtyblksz[txgoff] = 0
	dn.nextNLevels[txgoff] = 0
	dn.nextIndBlkShift[txgoff] = 0
	dn.phys.Zero()
	dn.mtx.Unlock()

	os.writeback(dn)
	dn.Rele(txg)
}

func (os *Objset) syncDirty(dn *Dnode, txg uint64, freed FreedFunc) {
	txgoff := txg & TXGMask

	dn.drainRanges(txgoff, freed)

	dn.mtx.Lock()
	p := dn.phys
	p.Type = dn.typ
	p.IndBlkShift = uint8(dn.indblkshift)
	if Debug && dn.nlevels < int(p.NLevels) {
		panic("internal error: nlevels shrank")
	}
	p.NLevels = uint8(dn.nlevels)
	p.NBlkptr = uint8(dn.nblkptr)
	p.BonusType = dn.bonustype
	p.BonusLen = uint16(dn.bonuslen)
	p.Checksum = dn.checksum
	p.Compress = dn.compress
	p.DataBlkSzSec = uint16(dn.datablkszsec)
	p.MaxBlkid = dn.maxblkid
	dn.dirtyblksz[txgoff] = 0
	dn.nextNLevels[txgoff] = 0
	dn.nextIndBlkShift[txgoff] = 0
	dn.mtx.Unlock()

	os.writeback(dn)
	dn.Rele(txg)
}

// drainRanges empties the group's free range set, reporting every
// interval to freed.
func (dn *Dnode) drainRanges(txgoff uint64, freed FreedFunc) {
	dn.mtx.Lock()
	rs := dn.ranges[txgoff].rs
	dn.ranges[txgoff] = rangeSet{}
	dn.mtx.Unlock()

	if freed == nil {
		return
	}

	for _, r := range rs {
		freed(dn, r.blkid, r.nblks)
	}
}

// writeback encodes the image into its meta dnode block slot.
func (os *Objset) writeback(dn *Dnode) {
	if dn.dbuf == nil {
		return
	}

	data := dn.dbuf.Data()
	dn.phys.Encode(data[dn.slot<<DnodeShift:])
}
