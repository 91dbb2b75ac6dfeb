// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

// DiduseSpace is called from syncing context when space was actually
// written or freed for the object; it moves the image's physical
// sector count by space bytes.
func (dn *Dnode) DiduseSpace(space int64) {
	if Debug && space&(1<<DevBShift-1) != 0 {
		panic("internal error: space delta not sector aligned")
	}

	dprintf("diduse obj=%d secphys=%d space=%d", dn.object, dn.phys.SecPhys, space)

	dn.mtx.Lock()
	if space > 0 {
		sectors := uint64(space) >> DevBShift
		if Debug && dn.phys.SecPhys+sectors < dn.phys.SecPhys {
			panic("internal error: secphys overflow")
		}
		dn.phys.SecPhys += sectors
	} else {
		sectors := uint64(-space) >> DevBShift
		if dn.phys.SecPhys < sectors {
			panic("internal error: secphys underflow")
		}
		dn.phys.SecPhys -= sectors
	}
	dn.mtx.Unlock()
}

// WilluseSpace is called in open context when space is about to be
// written or freed. The estimate is conservative: syncing may write
// less or free more, never the opposite. Positive deltas are expanded
// by the allocator's worst case ratio before charging the dataset and
// the transaction.
func (dn *Dnode) WilluseSpace(space int64, tx *Tx) {
	os := dn.os

	if space > 0 {
		space = os.asize(space)
	}

	os.ds.WillUseSpace(space, tx)
	tx.addWillUse(space)
}
