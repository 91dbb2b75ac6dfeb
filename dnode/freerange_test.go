// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

import (
	"bytes"
	"testing"
)

func TestFreeRangeTruncate(t *testing.T) {
	o, c := newTestObjset(t)
	tx := NewTx(5)

	dn := holdAllocate(t, o, 6, 4096, TypeNone, 0, tx, "t")
	dn.NewBlkid(9, tx)

	if g, e := dn.MaxBlkid(), uint64(9); g != e {
		t.Fatal(g, e)
	}

	// Block 5 has content on disk.
	blk5 := make([]byte, 4096)
	for i := range blk5 {
		blk5[i] = 0xee
	}
	c.Put(6, 0, 5, blk5)

	dn.FreeRange(5*4096+100, FreeToEnd, tx)

	// The partial head block is zeroed from the cut on.
	db, err := c.Hold(dn, 0, 5, false, "t2")
	if err != nil {
		t.Fatal(err)
	}

	data := db.Data()
	if !bytes.Equal(data[:100], blk5[:100]) {
		t.Fatal("data before the cut changed")
	}

	if !bytes.Equal(data[100:], make([]byte, 4096-100)) {
		t.Fatal("data after the cut not zeroed")
	}

	if !db.IsDirty() {
		t.Fatal("head block not dirtied")
	}

	db.Rele("t2")

	// Truncation drops maxblkid to the cut block.
	if g, e := dn.MaxBlkid(), uint64(5); g != e {
		t.Fatal(g, e)
	}

	// The interior [6, inf) is queued for freeing.
	if dn.BlockFreed(5) {
		t.Fatal("kept block reported freed")
	}

	for _, blkid := range []uint64{6, 7, 1 << 40} {
		if !dn.BlockFreed(blkid) {
			t.Fatal(blkid, "not reported freed")
		}
	}

	dn.Rele("t")
}

func TestFreeRangeInterior(t *testing.T) {
	o, c := newTestObjset(t)
	tx := NewTx(3)

	dn := holdAllocate(t, o, 4, 4096, TypeNone, 0, tx, "t")
	dn.NewBlkid(9, tx)

	// Head and tail blocks both present.
	blk := make([]byte, 4096)
	for i := range blk {
		blk[i] = 0x11
	}
	c.Put(4, 0, 2, append([]byte(nil), blk...))
	c.Put(4, 0, 7, append([]byte(nil), blk...))

	// Free [2.5 blocks, 7.5 blocks).
	dn.FreeRange(2*4096+2048, 5*4096, tx)

	db, err := c.Hold(dn, 0, 2, false, "h")
	if err != nil {
		t.Fatal(err)
	}

	data := db.Data()
	if !bytes.Equal(data[2048:], make([]byte, 2048)) {
		t.Fatal("head tail half not zeroed")
	}

	if !bytes.Equal(data[:2048], blk[:2048]) {
		t.Fatal("head leading half changed")
	}

	db.Rele("h")

	db, err = c.Hold(dn, 0, 7, false, "h")
	if err != nil {
		t.Fatal(err)
	}

	data = db.Data()
	if !bytes.Equal(data[:2048], make([]byte, 2048)) {
		t.Fatal("tail leading half not zeroed")
	}

	if !bytes.Equal(data[2048:], blk[2048:]) {
		t.Fatal("tail trailing half changed")
	}

	db.Rele("h")

	// Only the interior whole blocks are queued.
	for blkid := uint64(0); blkid < 10; blkid++ {
		if g, e := dn.BlockFreed(blkid), blkid >= 3 && blkid <= 6; g != e {
			t.Fatal(blkid, g, e)
		}
	}

	// No truncation happened.
	if g, e := dn.MaxBlkid(), uint64(9); g != e {
		t.Fatal(g, e)
	}

	dn.Rele("t")
}

func TestFreeRangeIdempotent(t *testing.T) {
	o, _ := newTestObjset(t)
	tx := NewTx(2)

	dn := holdAllocate(t, o, 5, 4096, TypeNone, 0, tx, "t")
	dn.NewBlkid(9, tx)

	dn.FreeRange(4096, 3*4096, tx)
	dn.FreeRange(4096, 3*4096, tx)

	dn.mtx.Lock()
	rs := append([]freeRange(nil), dn.ranges[tx.Txg&TXGMask].rs...)
	dn.mtx.Unlock()

	if len(rs) != 1 || rs[0] != (freeRange{1, 3}) {
		t.Fatal(rs)
	}

	dn.Rele("t")
}

func TestFreeRangePastEnd(t *testing.T) {
	o, _ := newTestObjset(t)
	tx := NewTx(2)

	dn := holdAllocate(t, o, 5, 4096, TypeNone, 0, tx, "t")

	// maxblkid == 0: anything at or past one block is a no-op.
	dn.FreeRange(4096, FreeToEnd, tx)

	dn.mtx.Lock()
	n := dn.ranges[tx.Txg&TXGMask].len()
	dn.mtx.Unlock()

	if g, e := n, 0; g != e {
		t.Fatal(g, e)
	}

	dn.Rele("t")
}

func TestFreeRangeWholeObject(t *testing.T) {
	o, _ := newTestObjset(t)
	tx := NewTx(6)

	dn := holdAllocate(t, o, 5, 512, TypeNone, 0, tx, "t")

	// Truncating a freshly allocated object keeps maxblkid at zero
	// and queues the whole address space.
	dn.FreeRange(0, FreeToEnd, tx)

	if g, e := dn.MaxBlkid(), uint64(0); g != e {
		t.Fatal(g, e)
	}

	if !dn.BlockFreed(0) {
		t.Fatal("block 0 not reported freed")
	}

	// Clearing the queued span back out of the range set, as writes
	// landing inside it do, leaves nothing queued.
	dn.ClearRange(0, ^uint64(0)-1, tx)

	dn.mtx.Lock()
	n := dn.ranges[tx.Txg&TXGMask].len()
	dn.mtx.Unlock()

	if g, e := n, 0; g != e {
		t.Fatal(g, e)
	}

	dn.Rele("t")
}

func TestFreeRangeDropsCachedBufs(t *testing.T) {
	o, c := newTestObjset(t)
	tx := NewTx(2)

	dn := holdAllocate(t, o, 5, 4096, TypeNone, 0, tx, "t")
	dn.NewBlkid(9, tx)

	c.Put(5, 0, 4, make([]byte, 4096))

	dn.FreeRange(0, FreeToEnd, tx)

	for _, id := range c.Cached(dn) {
		if id.Level == 0 && id.Blkid == 4 {
			t.Fatal("cached block survived the range free")
		}
	}

	dn.Rele("t")
}

func TestBlockFreedOnDeletedObject(t *testing.T) {
	o, _ := newTestObjset(t)
	tx := NewTx(2)

	dn := holdAllocate(t, o, 5, 4096, TypeNone, 0, tx, "t")

	if dn.BlockFreed(0) {
		t.Fatal("fresh object reports freed blocks")
	}

	if dn.BlockFreed(BonusBlkid) {
		t.Fatal("bonus pseudo block reports freed")
	}

	dn.Free(tx)

	if !dn.BlockFreed(0) || !dn.BlockFreed(123) {
		t.Fatal("deleted object does not report freed blocks")
	}

	dn.Rele("t")
}

func TestSyncDrainsRanges(t *testing.T) {
	o, _ := newTestObjset(t)
	tx := NewTx(5)

	dn := holdAllocate(t, o, 6, 4096, TypeNone, 0, tx, "t")
	dn.NewBlkid(9, tx)
	dn.FreeRange(4096, 3*4096, tx)

	type span struct{ blkid, nblks uint64 }
	var got []span
	o.SyncTxg(5, func(dn *Dnode, blkid, nblks uint64) {
		got = append(got, span{blkid, nblks})
	})

	if len(got) != 1 || got[0] != (span{1, 3}) {
		t.Fatal(got)
	}

	if dn.BlockFreed(2) {
		t.Fatal("drained range still reported freed")
	}

	dn.Rele("t")
}
