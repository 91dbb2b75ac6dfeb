// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The on-disk dnode image codec and byte swap.

package dnode

import (
	"encoding/binary"
)

// Image offsets of the fixed header fields. See the package
// documentation for the full layout.
const (
	poType         = 0
	poIndBlkShift  = 1
	poNLevels      = 2
	poNBlkptr      = 3
	poBonusType    = 4
	poChecksum     = 5
	poCompress     = 6
	poDataBlkSzSec = 8
	poBonusLen     = 10
	poMaxBlkid     = 16
	poSecPhys      = 24
	poBlkptr       = dnodeCoreSize
	poBonus        = dnodeCoreSize + BlkptrSize
)

// A DnodePhys is the decoded form of one on-disk dnode image. The
// buffer cache hands out raw block bytes; handles decode their slot
// at materialization and the sync walk encodes it back.
//
// Blkptr holds the embedded root pointers; only the first NBlkptr
// entries are meaningful. Bonus mirrors the image tail from offset
// poBonus: its first (NBlkptr-1)*BlkptrSize bytes are shadowed by
// Blkptr[1:] and ignored on encode, the actual bonus payload starts
// at BonusOff.
type DnodePhys struct {
	Type         ObjectType
	IndBlkShift  uint8
	NLevels      uint8
	NBlkptr      uint8
	BonusType    ObjectType
	Checksum     uint8
	Compress     uint8
	DataBlkSzSec uint16
	BonusLen     uint16
	MaxBlkid     uint64
	SecPhys      uint64
	Blkptr       [MaxNBlkptr]BlkPtr
	Bonus        [MaxBonusLen]byte
}

// BonusOff returns the offset of the bonus payload within the Bonus
// array: the bytes before it belong to the root pointers.
func (p *DnodePhys) BonusOff() int {
	return (int(p.NBlkptr) - 1) << BlkptrShift
}

// BonusData returns the bonus payload.
func (p *DnodePhys) BonusData() []byte {
	off := p.BonusOff()
	return p.Bonus[off : off+int(p.BonusLen)]
}

// IsZero reports whether p is an untouched free slot.
func (p *DnodePhys) IsZero() bool {
	return *p == DnodePhys{}
}

// Zero resets p to a free slot.
func (p *DnodePhys) Zero() {
	*p = DnodePhys{}
}

// Decode fills p from the DnodeSize image at b.
func (p *DnodePhys) Decode(b []byte) {
	b = b[:DnodeSize]
	p.Type = ObjectType(b[poType])
	p.IndBlkShift = b[poIndBlkShift]
	p.NLevels = b[poNLevels]
	p.NBlkptr = b[poNBlkptr]
	p.BonusType = ObjectType(b[poBonusType])
	p.Checksum = b[poChecksum]
	p.Compress = b[poCompress]
	p.DataBlkSzSec = binary.LittleEndian.Uint16(b[poDataBlkSzSec:])
	p.BonusLen = binary.LittleEndian.Uint16(b[poBonusLen:])
	p.MaxBlkid = binary.LittleEndian.Uint64(b[poMaxBlkid:])
	p.SecPhys = binary.LittleEndian.Uint64(b[poSecPhys:])
	n := int(p.NBlkptr)
	if n > MaxNBlkptr {
		n = MaxNBlkptr
	}
	for i := 0; i < n; i++ {
		p.Blkptr[i].decode(b[poBlkptr+i<<BlkptrShift:])
	}
	copy(p.Bonus[:], b[poBonus:])
}

// Encode writes p into the DnodeSize image at b. The root pointers
// are written after the bonus bytes so that they shadow the front of
// the bonus region, matching the on-disk overlay.
func (p *DnodePhys) Encode(b []byte) {
	b = b[:DnodeSize]
	for i := range b {
		b[i] = 0
	}
	if p.Type == TypeNone {
		return
	}

	b[poType] = byte(p.Type)
	b[poIndBlkShift] = p.IndBlkShift
	b[poNLevels] = p.NLevels
	b[poNBlkptr] = p.NBlkptr
	b[poBonusType] = byte(p.BonusType)
	b[poChecksum] = p.Checksum
	b[poCompress] = p.Compress
	binary.LittleEndian.PutUint16(b[poDataBlkSzSec:], p.DataBlkSzSec)
	binary.LittleEndian.PutUint16(b[poBonusLen:], p.BonusLen)
	binary.LittleEndian.PutUint64(b[poMaxBlkid:], p.MaxBlkid)
	binary.LittleEndian.PutUint64(b[poSecPhys:], p.SecPhys)
	copy(b[poBonus:], p.Bonus[:])
	n := int(p.NBlkptr)
	if n > MaxNBlkptr {
		n = MaxNBlkptr
	}
	for i := 0; i < n; i++ {
		p.Blkptr[i].encode(b[poBlkptr+i<<BlkptrShift:])
	}
}

// SwapDnode converts the byte order of the DnodeSize image at b in
// place. A free slot (type 0) is zeroed entirely. The embedded block
// pointer array is swapped as an array of 64 bit words; a non empty
// bonus region is swapped by the routine registered for its type,
// over the region starting after the last root pointer.
//
// SwapDnode is an involution: applying it twice restores the image.
func SwapDnode(b []byte) {
	b = b[:DnodeSize]
	if b[poType] == 0 {
		for i := range b {
			b[i] = 0
		}
		return
	}

	// Single byte fields need no swap.
	swap16(b[poDataBlkSzSec:])
	swap16(b[poBonusLen:])
	swap64(b[poMaxBlkid:])
	swap64(b[poSecPhys:])

	// nblkptr is one byte, so it reads the same in either order.
	nblkptr := int(b[poNBlkptr])
	if nblkptr > MaxNBlkptr {
		nblkptr = MaxNBlkptr
	}
	swapUint64Array(b[poBlkptr : poBlkptr+nblkptr<<BlkptrShift])

	// A zero bonuslen is zero in either byte order, so it is safe to
	// test before knowing the image's endianness.
	if b[poBonusLen] != 0 || b[poBonusLen+1] != 0 {
		// The region handed to the type's swap routine may be longer
		// than the actual bonus payload; it extends from the end of
		// the block pointer array to the end of the image.
		off := (nblkptr - 1) << BlkptrShift
		bt := ObjectType(b[poBonusType])
		if bt < typeInvalid && typeInfo[bt].swap != nil {
			typeInfo[bt].swap(b[poBonus+off : poBonus+MaxBonusLen])
		}
	}
}

// SwapDnodeBuf applies SwapDnode to every DnodeSize slot of a whole
// meta dnode block.
func SwapDnodeBuf(b []byte) {
	if len(b)&(DnodeSize-1) != 0 {
		panic("internal error: odd dnode buffer size")
	}

	for off := 0; off < len(b); off += DnodeSize {
		SwapDnode(b[off:])
	}
}
