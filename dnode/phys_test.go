// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func testImage() *DnodePhys {
	p := &DnodePhys{
		Type:         TypeData,
		IndBlkShift:  MaxIndBlkShift,
		NLevels:      3,
		NBlkptr:      16,
		BonusType:    TypeUint64,
		Checksum:     ChecksumInherit,
		Compress:     CompressInherit,
		DataBlkSzSec: 8,
		BonusLen:     192,
		MaxBlkid:     0x1122334455,
		SecPhys:      77,
	}
	for i := 0; i < int(p.NBlkptr); i++ {
		p.Blkptr[i] = BlkPtr{Birth: uint64(i + 1), Fill: uint64(100 + i)}
	}
	for i := range p.BonusData() {
		p.BonusData()[i] = byte(i)
	}
	return p
}

func TestPhysLayout(t *testing.T) {
	if g, e := DnodeSize, 512; g != e {
		t.Fatal(g, e)
	}

	if g, e := dnodeCoreSize+MaxNBlkptr*BlkptrSize, DnodeSize; g != e {
		t.Fatal(g, e)
	}

	if g, e := (MaxNBlkptr-1)*BlkptrSize+0, MaxBonusLen; g != e {
		t.Fatal(g, e)
	}
}

func TestPhysEncodeDecode(t *testing.T) {
	p := testImage()

	var b [DnodeSize]byte
	p.Encode(b[:])

	var q DnodePhys
	q.Decode(b[:])

	if g, e := q.Type, p.Type; g != e {
		t.Fatal(g, e)
	}

	if g, e := q.NBlkptr, p.NBlkptr; g != e {
		t.Fatal(g, e)
	}

	if g, e := q.BonusLen, p.BonusLen; g != e {
		t.Fatal(g, e)
	}

	if g, e := q.MaxBlkid, p.MaxBlkid; g != e {
		t.Fatal(g, e)
	}

	for i := 0; i < int(p.NBlkptr); i++ {
		if g, e := q.Blkptr[i], p.Blkptr[i]; g != e {
			t.Fatal(i, g, e)
		}
	}

	if !bytes.Equal(q.BonusData(), p.BonusData()) {
		t.Fatal("bonus data mismatch")
	}

	// The second root pointer shadows the front of the bonus region.
	if g, e := binary.LittleEndian.Uint64(b[poBonus:]), p.Blkptr[1].Birth; g != e {
		t.Fatalf("%#x %#x", g, e)
	}
}

func TestPhysEncodeFreeSlot(t *testing.T) {
	var p DnodePhys
	var b [DnodeSize]byte
	for i := range b {
		b[i] = 0xa5
	}

	p.Encode(b[:])
	for i, v := range b {
		if v != 0 {
			t.Fatal(i, v)
		}
	}
}

func TestSwapDnodeInvolution(t *testing.T) {
	p := testImage()

	var b, b0 [DnodeSize]byte
	p.Encode(b[:])
	copy(b0[:], b[:])

	SwapDnode(b[:])
	if bytes.Equal(b[:], b0[:]) {
		t.Fatal("swap is the identity")
	}

	SwapDnode(b[:])
	if !bytes.Equal(b[:], b0[:]) {
		t.Fatal("double swap is not the identity")
	}
}

func TestSwapDnodeFields(t *testing.T) {
	p := testImage()

	var b [DnodeSize]byte
	p.Encode(b[:])
	SwapDnode(b[:])

	if g, e := binary.BigEndian.Uint16(b[poDataBlkSzSec:]), p.DataBlkSzSec; g != e {
		t.Fatal(g, e)
	}

	if g, e := binary.BigEndian.Uint64(b[poMaxBlkid:]), p.MaxBlkid; g != e {
		t.Fatal(g, e)
	}

	if g, e := binary.BigEndian.Uint64(b[poBlkptr:]), p.Blkptr[0].Birth; g != e {
		t.Fatal(g, e)
	}

	// The bonus payload of a TypeUint64 region swaps as 64 bit words.
	off := poBonus + p.BonusOff()
	var word [8]byte
	copy(word[:], p.BonusData())
	if g, e := binary.BigEndian.Uint64(b[off:]), binary.LittleEndian.Uint64(word[:]); g != e {
		t.Fatalf("%#x %#x", g, e)
	}
}

func TestSwapDnodeFreeSlot(t *testing.T) {
	var b [DnodeSize]byte
	for i := 1; i < len(b); i++ {
		b[i] = 0xff // type stays 0: a free slot with garbage
	}

	SwapDnode(b[:])
	for i, v := range b {
		if v != 0 {
			t.Fatal(i, v)
		}
	}
}

func TestSwapDnodeBuf(t *testing.T) {
	p := testImage()

	b := make([]byte, 4*DnodeSize)
	p.Encode(b[:DnodeSize])
	p.Encode(b[2*DnodeSize : 3*DnodeSize])
	b0 := append([]byte(nil), b...)

	SwapDnodeBuf(b)
	SwapDnodeBuf(b)
	if !bytes.Equal(b, b0) {
		t.Fatal("double buffer swap is not the identity")
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("odd sized buffer not rejected")
			}
		}()
		SwapDnodeBuf(make([]byte, DnodeSize+1))
	}()
}
