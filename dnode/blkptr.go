// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

import (
	"encoding/binary"
)

// A BlkPtr is one 16 byte block pointer: the txg the pointed-to block
// was born in and the number of non hole leaf blocks beneath it. A
// zero birth marks a hole.
//
// An indirect block is a raw array of such pointers; the bp*At
// helpers read entries straight out of block bytes.
type BlkPtr struct {
	Birth uint64
	Fill  uint64
}

// IsHole reports whether bp refers to no allocated block.
func (bp *BlkPtr) IsHole() bool { return bp.Birth == 0 }

func (bp *BlkPtr) decode(b []byte) {
	bp.Birth = binary.LittleEndian.Uint64(b)
	bp.Fill = binary.LittleEndian.Uint64(b[8:])
}

func (bp *BlkPtr) encode(b []byte) {
	binary.LittleEndian.PutUint64(b, bp.Birth)
	binary.LittleEndian.PutUint64(b[8:], bp.Fill)
}

// bpBirthAt returns the birth word of the i-th pointer of a raw
// indirect block.
func bpBirthAt(b []byte, i int) uint64 {
	return binary.LittleEndian.Uint64(b[i<<BlkptrShift:])
}

// bpFillAt returns the fill count of the i-th pointer of a raw
// indirect block.
func bpFillAt(b []byte, i int) uint64 {
	return binary.LittleEndian.Uint64(b[i<<BlkptrShift+8:])
}

// bpSetAt writes the i-th pointer of a raw indirect block. It is the
// seam test fixtures and buffer cache implementations use to build
// tree levels.
func bpSetAt(b []byte, i int, bp BlkPtr) {
	bp.encode(b[i<<BlkptrShift:])
}

// BpSetAt is bpSetAt for external buffer cache implementations and
// fixtures.
func BpSetAt(b []byte, i int, bp BlkPtr) { bpSetAt(b, i, bp) }

// swap64 reverses the byte order of the 64 bit word at b[:8].
func swap64(b []byte) {
	binary.BigEndian.PutUint64(b, binary.LittleEndian.Uint64(b))
}

// swap16 reverses the byte order of the 16 bit word at b[:2].
func swap16(b []byte) {
	b[0], b[1] = b[1], b[0]
}

// swapUint64Array byte swaps b as an array of 64 bit words. Trailing
// bytes beyond the last whole word are left alone.
func swapUint64Array(b []byte) {
	for len(b) >= 8 {
		swap64(b)
		b = b[8:]
	}
}
