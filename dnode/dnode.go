// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The dnode handle: materialization, holds, lifecycle and dirty
// state.

package dnode

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cznic/mathutil"
)

// Tag used for the package's own short lived buffer holds.
const holdTag = "dnode.internal"

// Objects with the high bit set belong to the private number space;
// only private transactions may reallocate them.
const privateObject = uint64(1) << 63

// A HoldFlag constrains what Objset.HoldImpl accepts.
type HoldFlag int

const (
	// MustBeAllocated makes the hold fail with ErrNotAllocated on a
	// free slot.
	MustBeAllocated HoldFlag = 1 << iota

	// MustBeFree makes the hold fail with ErrAllocated on a slot in
	// use.
	MustBeFree
)

// A Dnode is the in-memory handle of one object: the decoded on-disk
// image plus the working copy of its geometry, the per-txg shadow
// state, and the hold bookkeeping. Handles are created on first hold
// of an object number and destroyed only when the meta dnode block
// buffer containing their image slot is paged out.
//
// Locking: structLock serializes geometry changes (write) against
// tree traversals (read); mtx protects the bonus fields, freeTxg and
// the range sets; the objectset's lock protects the per-txg lists.
type Dnode struct {
	structLock sync.RWMutex
	mtx        sync.Mutex

	os     *Objset
	object uint64
	dbuf   Buf // meta dnode block holding the image; nil for special dnodes
	slot   int // image slot index within dbuf
	phys   *DnodePhys

	// Working copy of the image geometry, written back at sync.
	typ          ObjectType
	bonustype    ObjectType
	bonuslen     int
	nblkptr      int
	nlevels      int
	indblkshift  int
	datablksz    int
	datablkszsec int
	datablkshift int
	checksum     uint8
	compress     uint8
	maxblkid     uint64

	allocatedTxg uint64
	freeTxg      uint64
	assignedTxg  uint64

	// Per-txg shadow state, indexed by txg&TXGMask.
	dirtyblksz      [TXGSize]int
	nextNLevels     [TXGSize]int
	nextIndBlkShift [TXGSize]int
	ranges          [TXGSize]rangeSet

	holds   refcount
	txHolds refcount
}

// childDnodes is the user data installed on a meta dnode block
// buffer: the decoded image of every slot plus the lazily created
// handle of each.
type childDnodes struct {
	phys []DnodePhys
	dn   []atomic.Pointer[Dnode]
}

func newChildDnodes(data []byte, epb int) *childDnodes {
	c := &childDnodes{
		phys: make([]DnodePhys, epb),
		dn:   make([]atomic.Pointer[Dnode], epb),
	}
	for i := range c.phys {
		c.phys[i].Decode(data[i*DnodeSize:])
	}
	return c
}

// childPageout is the eviction callback of a meta dnode block: it
// destroys every handle the block still carries. A held handle pins
// the block, so eviction implies every handle is idle.
func childPageout(user interface{}) {
	c := user.(*childDnodes)
	for i := range c.dn {
		dn := c.dn[i].Load()
		if dn == nil {
			continue
		}

		if Debug {
			switch {
			case !dn.holds.zero():
				panic("internal error: pageout of a held dnode")
			case !dn.txHolds.zero():
				panic("internal error: pageout of a tx-held dnode")
			case len(dn.os.bufs.Cached(dn)) != 0:
				panic("internal error: pageout of a dnode with cached blocks")
			}
			for n := 0; n < TXGSize; n++ {
				if dn.dirtyblksz[n] != 0 {
					panic("internal error: pageout of a dirty dnode")
				}
			}
		}
		c.dn[i].Store(nil)
		dn.destroy()
	}
}

// setDblksz installs a data block size into the working copy,
// deriving the sector count and, for power of two sizes, the shift.
func (dn *Dnode) setDblksz(size int) {
	if Debug {
		switch {
		case size&(MinBlockSize-1) != 0:
			panic("internal error: unaligned block size")
		case size < MinBlockSize || size > MaxBlockSize:
			panic("internal error: block size out of limits")
		}
	}
	dn.datablksz = size
	dn.datablkszsec = size >> MinBlockShift
	if size&(size-1) == 0 {
		dn.datablkshift = mathutil.Log2Uint64(uint64(size))
	} else {
		dn.datablkshift = 0
	}
}

// createDnode materializes a handle over the image phys of object,
// held in slot of db, and registers it with the objectset.
func (os *Objset) createDnode(phys *DnodePhys, db Buf, slot int, object uint64) *Dnode {
	dn := &Dnode{
		os:     os,
		object: object,
		dbuf:   db,
		slot:   slot,
		phys:   phys,
	}

	if phys.DataBlkSzSec != 0 {
		dn.setDblksz(int(phys.DataBlkSzSec) << MinBlockShift)
	}
	dn.indblkshift = int(phys.IndBlkShift)
	dn.nlevels = int(phys.NLevels)
	dn.typ = phys.Type
	dn.nblkptr = int(phys.NBlkptr)
	dn.checksum = phys.Checksum
	dn.compress = phys.Compress
	dn.bonustype = phys.BonusType
	dn.bonuslen = int(phys.BonusLen)
	dn.maxblkid = phys.MaxBlkid

	os.mu.Lock()
	os.dnodes[dn] = struct{}{}
	os.mu.Unlock()

	return dn
}

func (dn *Dnode) destroy() {
	os := dn.os

	os.mu.Lock()
	delete(os.dnodes, dn)
	os.mu.Unlock()
}

// HoldImpl returns a held handle for object, materializing it from
// the meta dnode block if needed. The hold succeeds even for free
// slots unless flag says otherwise. Every successful HoldImpl MUST be
// balanced by one Dnode.Rele with the same ref tag.
func (os *Objset) HoldImpl(object uint64, flag HoldFlag, ref interface{}) (*Dnode, error) {
	if object == 0 || object >= MaxObject {
		return nil, &ErrINVAL{"dnode.HoldImpl: object out of limits", object}
	}

	mdn := os.meta
	mdn.verify()

	mdn.structLock.RLock()
	blk := whichBlock(mdn, object*DnodeSize)
	db, err := os.bufs.Hold(mdn, 0, blk, false, holdTag)
	mdn.structLock.RUnlock()
	if err != nil {
		return nil, err
	}

	epb := db.Size() >> DnodeShift
	idx := int(object % uint64(epb))

	children, _ := db.User().(*childDnodes)
	if children == nil {
		c := newChildDnodes(db.Data(), epb)
		if winner := db.SetUser(c, childPageout); winner != nil {
			children = winner.(*childDnodes)
		} else {
			children = c
		}
	}

	dn := children.dn[idx].Load()
	if dn == nil {
		dn = os.createDnode(&children.phys[idx], db, idx, object)
		if !children.dn[idx].CompareAndSwap(nil, dn) {
			// Lost the installation race; discard our construction.
			dn.destroy()
			dn = children.dn[idx].Load()
		}
	}

	dn.mtx.Lock()
	switch {
	case dn.freeTxg != 0:
		err = ErrObjectFreed
	case flag&MustBeAllocated != 0 && dn.typ == TypeNone:
		err = ErrNotAllocated
	case flag&MustBeFree != 0 && dn.typ != TypeNone:
		err = ErrAllocated
	}
	dn.mtx.Unlock()
	if err != nil {
		db.Rele(holdTag)
		return nil, err
	}

	// The first hold pins the containing block buffer.
	if dn.holds.add(ref) == 1 {
		db.AddRef(dn)
	}

	dn.verify()
	db.Rele(holdTag)
	return dn, nil
}

// Hold returns a held handle for object if it is allocated.
func (os *Objset) Hold(object uint64, ref interface{}) (*Dnode, error) {
	return os.HoldImpl(object, MustBeAllocated, ref)
}

// AddRef adds a hold under ref to an already held handle.
func (dn *Dnode) AddRef(ref interface{}) {
	if Debug && dn.holds.count() <= 0 {
		panic("internal error: AddRef of an unheld dnode")
	}
	dn.holds.add(ref)
}

// Rele drops the hold taken under ref. When the last hold goes away
// the handle unpins its containing block buffer.
func (dn *Dnode) Rele(ref interface{}) {
	refs := dn.holds.remove(ref)
	// A special dnode has no containing buffer.
	if refs == 0 && dn.dbuf != nil {
		dn.dbuf.Rele(dn)
	}
}

// AddTxHold adds a transactional reference: the transaction engine
// takes one per dnode a transaction touches, for the time the
// transaction stays open.
func (dn *Dnode) AddTxHold(tx *Tx) {
	dn.mtx.Lock()
	if dn.assignedTxg == 0 {
		dn.assignedTxg = tx.Txg
	}
	dn.txHolds.add(tx.Txg)
	dn.mtx.Unlock()
}

// ReleTxHold drops the transactional reference taken by AddTxHold.
func (dn *Dnode) ReleTxHold(tx *Tx) {
	dn.mtx.Lock()
	if dn.txHolds.remove(tx.Txg) == 0 {
		dn.assignedTxg = 0
	}
	dn.mtx.Unlock()
}

// OpenMeta materializes the objectset's meta dnode from phys. The
// meta dnode has no containing buffer and object number zero.
func (os *Objset) OpenMeta(phys *DnodePhys) *Dnode {
	dn := os.createDnode(phys, nil, -1, 0)
	os.meta = dn
	dn.verify()
	return dn
}

// OpenSpecial materializes a bootstrap dnode that lives outside the
// meta dnode's address space.
func (os *Objset) OpenSpecial(phys *DnodePhys, object uint64) *Dnode {
	dn := os.createDnode(phys, nil, -1, object)
	dn.verify()
	return dn
}

// CloseSpecial tears down a dnode opened by OpenMeta or OpenSpecial.
func (dn *Dnode) CloseSpecial() {
	dn.destroy()
}

// SetDirty records dn as modified in tx's group: first call per group
// snapshots the block size, enqueues the handle on the objectset's
// dirty (or free) list and adds a synthetic hold keyed by the group
// so the handle survives until the sync walk. Idempotent per group.
func (dn *Dnode) SetDirty(tx *Tx) {
	os := dn.os
	txg := tx.Txg

	if dn == os.meta {
		return
	}

	dn.verify()

	if Debug {
		dn.mtx.Lock()
		if dn.phys.Type == TypeNone && dn.allocatedTxg == 0 {
			panic("internal error: dirtying a free dnode")
		}
		dn.mtx.Unlock()
	}

	os.mu.Lock()

	// If we are already marked dirty, we're done.
	if dn.dirtyblksz[txg&TXGMask] > 0 {
		os.mu.Unlock()
		return
	}

	if Debug && dn.datablksz == 0 {
		panic("internal error: dirtying a dnode with no block size")
	}
	dn.dirtyblksz[txg&TXGMask] = dn.datablksz

	dprintf("setdirty obj=%d txg=%d", dn.object, txg)

	if dn.freeTxg > 0 && dn.freeTxg <= txg {
		os.free[txg&TXGMask] = append(os.free[txg&TXGMask], dn)
	} else {
		os.dirty[txg&TXGMask] = append(os.dirty[txg&TXGMask], dn)
	}

	os.mu.Unlock()

	// The handle must hang around after its holders are done, until
	// the group syncs; pin it under the group number.
	if dn.holds.add(txg) == 1 && dn.dbuf != nil {
		dn.dbuf.AddRef(dn)
	}

	if dn.dbuf != nil {
		dn.dbuf.MarkDirty(tx)
	}

	os.ds.MarkDirty(tx)
}

// Allocate claims a free slot: installs type, geometry and bonus
// layout, and dirties the handle against tx. The caller must hold the
// handle, the slot must be free and its image zero.
func (dn *Dnode) Allocate(ot ObjectType, blocksize, ibs int, bonustype ObjectType, bonuslen int, tx *Tx) {
	os := dn.os

	if blocksize == 0 {
		blocksize = 1 << uint(os.opt.DefaultBlockShift)
	}
	blocksize = mathutil.Min(mathutil.Max(blocksize, MinBlockSize), MaxBlockSize)

	if ibs == 0 {
		ibs = os.opt.DefaultIndBlockShift
	}
	ibs = mathutil.Min(mathutil.Max(ibs, MinIndBlkShift), MaxIndBlkShift)

	dprintf("allocate obj=%d txg=%d blocksize=%d ibs=%d", dn.object, tx.Txg, blocksize, ibs)

	if Debug {
		switch {
		case dn.typ != TypeNone:
			panic("internal error: allocate of an allocated dnode")
		case !dn.phys.IsZero():
			panic("internal error: allocate over a non-zero image")
		case ot == TypeNone || ot >= typeInvalid:
			panic(fmt.Sprintf("internal error: allocate with type %d", ot))
		case (bonustype == TypeNone) != (bonuslen == 0):
			panic("internal error: mismatched bonus type and length")
		case bonustype >= typeInvalid:
			panic(fmt.Sprintf("internal error: allocate with bonus type %d", bonustype))
		case bonuslen > MaxBonusLen:
			panic("internal error: bonus length out of limits")
		case dn.maxblkid != 0 || dn.allocatedTxg != 0 || dn.assignedTxg != 0:
			panic("internal error: allocate of a used dnode")
		case !dn.txHolds.zero():
			panic("internal error: allocate with transaction holds")
		case dn.holds.count() > 1:
			panic("internal error: allocate of a shared dnode")
		}
		for i := 0; i < TXGSize; i++ {
			if dn.nextNLevels[i] != 0 || dn.nextIndBlkShift[i] != 0 ||
				dn.dirtyblksz[i] != 0 || !dn.ranges[i].empty() {
				panic("internal error: allocate with pending txg state")
			}
		}
	}

	dn.typ = ot
	dn.setDblksz(blocksize)
	dn.indblkshift = ibs
	dn.nlevels = 1
	dn.nblkptr = 1 + ((MaxBonusLen - bonuslen) >> BlkptrShift)
	dn.bonustype = bonustype
	dn.bonuslen = bonuslen
	dn.checksum = ChecksumInherit
	dn.compress = CompressInherit
	dn.freeTxg = 0
	dn.allocatedTxg = tx.Txg

	dn.SetDirty(tx)
}

// Reallocate changes the object's type, block size and bonus layout
// while retaining its identity. Content incompatible with the new
// shape is scheduled for freeing first.
func (dn *Dnode) Reallocate(ot ObjectType, blocksize int, bonustype ObjectType, bonuslen int, tx *Tx) {
	if Debug {
		switch {
		case blocksize < MinBlockSize || blocksize > MaxBlockSize:
			panic("internal error: reallocate block size out of limits")
		case blocksize&(MinBlockSize-1) != 0:
			panic("internal error: unaligned reallocate block size")
		case dn.object&privateObject != 0 && !tx.PrivateOK():
			panic("internal error: reallocate of a private object")
		case tx.Txg == 0:
			panic("internal error: reallocate outside a transaction")
		case (bonustype == TypeNone) != (bonuslen == 0):
			panic("internal error: mismatched bonus type and length")
		case bonustype >= typeInvalid:
			panic("internal error: invalid bonus type")
		case bonuslen > MaxBonusLen:
			panic("internal error: bonus length out of limits")
		}
		for _, id := range dn.os.bufs.Cached(dn) {
			if id.Blkid != BonusBlkid {
				panic("internal error: reallocate with cached blocks")
			}
		}
		for i := 0; i < TXGSize; i++ {
			if dn.dirtyblksz[i] != 0 {
				panic("internal error: reallocate of a dirty dnode")
			}
		}
	}

	if blocksize != dn.datablksz ||
		dn.bonustype != bonustype || dn.bonuslen != bonuslen {
		// Free all old content.
		dn.FreeRange(0, FreeToEnd, tx)
	}

	// Change the block size.
	dn.structLock.Lock()
	dn.setDblksz(blocksize)
	dn.SetDirty(tx)
	dn.dirtyblksz[tx.Txg&TXGMask] = blocksize
	dn.structLock.Unlock()

	// Change the type.
	dn.typ = ot

	var db Buf
	if dn.bonuslen != bonuslen {
		if bonuslen == 0 {
			// Keep a bonus buffer present.
			bonuslen = 1
		}
		db, _ = dn.os.bufs.HoldBonus(dn, holdTag)
		if Debug && db.Size() != dn.bonuslen {
			panic("internal error: stale bonus buffer size")
		}
		db.Resize(bonuslen, tx)
	}

	// Change the bonus layout.
	dn.mtx.Lock()
	dn.bonustype = bonustype
	dn.bonuslen = bonuslen
	dn.nblkptr = 1 + ((MaxBonusLen - bonuslen) >> BlkptrShift)
	dn.checksum = ChecksumInherit
	dn.compress = CompressInherit
	if Debug && dn.nblkptr > MaxNBlkptr {
		panic("internal error: nblkptr out of limits")
	}
	dn.allocatedTxg = tx.Txg
	dn.mtx.Unlock()

	if db != nil {
		db.Rele(holdTag)
	}
}

// Free schedules the object for deletion in tx's group. The actual
// freeing happens during that group's sync walk.
func (dn *Dnode) Free(tx *Tx) {
	dprintf("free obj=%d txg=%d", dn.object, tx.Txg)

	dn.mtx.Lock()
	if dn.typ == TypeNone || dn.freeTxg != 0 {
		dn.mtx.Unlock()
		return
	}
	dn.freeTxg = tx.Txg
	dn.mtx.Unlock()

	os := dn.os
	txgoff := tx.Txg & TXGMask

	// If the dnode is already dirty it moves from the dirty list to
	// the free list; otherwise dirtying inserts it there directly.
	os.mu.Lock()
	if dn.dirtyblksz[txgoff] > 0 {
		os.dirty[txgoff] = removeDnode(os.dirty[txgoff], dn)
		os.free[txgoff] = append(os.free[txgoff], dn)
		os.mu.Unlock()
	} else {
		os.mu.Unlock()
		dn.SetDirty(tx)
	}
}

// MaxNonzeroOffset returns the end of the last byte the object may
// hold nonzero data at: zero for an empty object, otherwise the byte
// after its highest ever dirtied block.
func (dn *Dnode) MaxNonzeroOffset() uint64 {
	if dn.phys.MaxBlkid == 0 && dn.phys.Blkptr[0].IsHole() {
		return 0
	}

	return (dn.phys.MaxBlkid + 1) * uint64(dn.datablksz)
}

// verify checks the at-rest handle invariants. Active only when Debug
// is on.
func (dn *Dnode) verify() {
	if !Debug {
		return
	}

	switch {
	case dn.phys == nil:
		panic("internal error: dnode without an image")
	case dn.os == nil:
		panic("internal error: dnode without an objectset")
	case dn.phys.Type >= typeInvalid:
		panic("internal error: invalid image type")
	}

	if dn.typ != TypeNone || dn.allocatedTxg != 0 {
		switch {
		case dn.indblkshift < 0 || dn.indblkshift > MaxBlockShift:
			panic("internal error: indblkshift out of limits")
		case dn.datablkshift != 0 &&
			(dn.datablkshift < MinBlockShift || dn.datablkshift > MaxBlockShift):
			panic("internal error: datablkshift out of limits")
		case dn.datablkshift != 0 && 1<<uint(dn.datablkshift) != dn.datablksz:
			panic("internal error: datablkshift disagrees with datablksz")
		case dn.nlevels > MaxLevels:
			panic("internal error: nlevels out of limits")
		case dn.typ >= typeInvalid:
			panic("internal error: invalid type")
		case dn.nblkptr < 1 || dn.nblkptr > MaxNBlkptr:
			panic("internal error: nblkptr out of limits")
		case dn.bonuslen > MaxBonusLen:
			panic("internal error: bonuslen out of limits")
		case dn.datablksz != dn.datablkszsec<<MinBlockShift:
			panic("internal error: datablksz disagrees with datablkszsec")
		case (dn.datablksz&(dn.datablksz-1) == 0) != (dn.datablkshift != 0):
			panic("internal error: datablkshift set iff size is a power of two")
		case (dn.nblkptr-1)<<BlkptrShift+dn.bonuslen > MaxBonusLen:
			panic("internal error: bonus region overflows the image")
		}
		for i := 0; i < TXGSize; i++ {
			if dn.nextNLevels[i] > dn.nlevels {
				panic("internal error: pending nlevels above working copy")
			}
		}
	}
	if dn.phys.Type != TypeNone && int(dn.phys.NLevels) > dn.nlevels {
		panic("internal error: image nlevels above working copy")
	}
	if dn.object != 0 && dn.dbuf == nil && dn != dn.os.meta && dn.slot >= 0 {
		panic("internal error: non-special dnode without a buffer")
	}
}

func removeDnode(list []*Dnode, dn *Dnode) []*Dnode {
	for i, v := range list {
		if v == dn {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Accessors over the working copy.

// Object returns the object number.
func (dn *Dnode) Object() uint64 { return dn.object }

// Type returns the working copy object type.
func (dn *Dnode) Type() ObjectType { return dn.typ }

// DataBlockSize returns the working copy data block size in bytes.
func (dn *Dnode) DataBlockSize() int { return dn.datablksz }

// IndBlkShift returns the working copy indirect block shift.
func (dn *Dnode) IndBlkShift() int { return dn.indblkshift }

// NLevels returns the working copy tree height.
func (dn *Dnode) NLevels() int { return dn.nlevels }

// NBlkptr returns the working copy embedded root pointer count.
func (dn *Dnode) NBlkptr() int { return dn.nblkptr }

// BonusLen returns the working copy bonus length.
func (dn *Dnode) BonusLen() int { return dn.bonuslen }

// MaxBlkid returns the working copy highest ever dirtied block id.
func (dn *Dnode) MaxBlkid() uint64 { return dn.maxblkid }

// AllocatedTxg returns the group the object was allocated in.
func (dn *Dnode) AllocatedTxg() uint64 { return dn.allocatedTxg }

// FreeTxg returns the group that will finalize freeing the object;
// nonzero means the object is being deleted.
func (dn *Dnode) FreeTxg() uint64 { return dn.freeTxg }

// Holds returns the current hold count.
func (dn *Dnode) Holds() int64 { return dn.holds.count() }

// Phys returns the decoded on-disk image. The image is written back
// to its slot by the sync walk; direct mutation is the business of
// the syncing context only.
func (dn *Dnode) Phys() *DnodePhys { return dn.phys }
