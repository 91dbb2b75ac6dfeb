// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

import (
	"testing"
)

type recordingTracker struct {
	willUse int64
	dirtied int
}

func (r *recordingTracker) WillUseSpace(space int64, tx *Tx) { r.willUse += space }
func (r *recordingTracker) MarkDirty(tx *Tx)                 { r.dirtied++ }

func TestDiduseSpace(t *testing.T) {
	o, _ := newTestObjset(t)
	tx := NewTx(2)

	dn := holdAllocate(t, o, 5, 0, TypeNone, 0, tx, "t")

	dn.DiduseSpace(3 << DevBShift)
	if g, e := dn.Phys().SecPhys, uint64(3); g != e {
		t.Fatal(g, e)
	}

	dn.DiduseSpace(-(2 << DevBShift))
	if g, e := dn.Phys().SecPhys, uint64(1); g != e {
		t.Fatal(g, e)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("sector underflow not caught")
			}
		}()
		dn.DiduseSpace(-(2 << DevBShift))
	}()

	dn.Rele("t")
}

func TestWilluseSpace(t *testing.T) {
	tr := &recordingTracker{}
	c := NewMemBufCache()
	o := NewObjset(c, tr, nil)
	o.OpenMeta(MetaPhys())

	tx := NewTx(2)
	dn := holdAllocate(t, o, 5, 0, TypeNone, 0, tx, "t")

	if g := tr.dirtied; g == 0 {
		t.Fatal("tracker saw no dirtying")
	}

	// Positive estimates are expanded by the allocator ratio; frees
	// pass through unexpanded.
	o.SetAsize(func(space int64) int64 { return 3 * space })

	dn.WilluseSpace(1024, tx)
	if g, e := tx.WillUse(), int64(3*1024); g != e {
		t.Fatal(g, e)
	}

	dn.WilluseSpace(-512, tx)
	if g, e := tx.WillUse(), int64(3*1024-512); g != e {
		t.Fatal(g, e)
	}

	if g, e := tr.willUse, tx.WillUse(); g != e {
		t.Fatal(g, e)
	}

	dn.Rele("t")
}

func TestTxHoldPairing(t *testing.T) {
	o, _ := newTestObjset(t)
	tx := NewTx(2)

	dn := holdAllocate(t, o, 5, 0, TypeNone, 0, tx, "t")

	dn.AddTxHold(tx)
	dn.AddTxHold(tx)
	if g, e := dn.txHolds.count(), int64(2); g != e {
		t.Fatal(g, e)
	}

	dn.ReleTxHold(tx)
	dn.ReleTxHold(tx)
	if g, e := dn.txHolds.count(), int64(0); g != e {
		t.Fatal(g, e)
	}

	dn.Rele("t")
}
