// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

// On-disk geometry. These values are part of the image format and
// MUST NOT change.
const (
	// MinBlockShift is the log2 of the smallest supported data block
	// size, one 512 byte sector.
	MinBlockShift = 9
	MinBlockSize  = 1 << MinBlockShift

	// MaxBlockShift is the log2 of the largest supported data block
	// size, 128 KB.
	MaxBlockShift = 17
	MaxBlockSize  = 1 << MaxBlockShift

	// BlkptrShift is the log2 of the size of one block pointer.
	BlkptrShift = 4
	BlkptrSize  = 1 << BlkptrShift

	// DnodeShift is the log2 of the size of one on-disk dnode image.
	DnodeShift = 9
	DnodeSize  = 1 << DnodeShift

	// dnodeCoreSize is the size of the fixed header of an image; the
	// embedded block pointers and the bonus region follow it.
	dnodeCoreSize = 64

	// MaxBonusLen is the maximum extent of the bonus region. The
	// region shares the image tail with all root block pointers
	// beyond the first: (nblkptr-1)*BlkptrSize + bonuslen never
	// exceeds MaxBonusLen.
	MaxBonusLen = DnodeSize - dnodeCoreSize - BlkptrSize

	// MaxNBlkptr is the embedded root pointer count of an image with
	// an empty bonus region.
	MaxNBlkptr = 1 + (MaxBonusLen >> BlkptrShift)

	// Bounds of the indirect block shift.
	MinIndBlkShift = 10
	MaxIndBlkShift = 14

	// MaxLevels bounds the height of the block tree.
	MaxLevels = 30

	// MetaBlockShift is the log2 of the data block size of a meta
	// dnode, and DnodesPerBlock the number of image slots per such
	// block.
	MetaBlockShift = 14
	DnodesPerBlock = 1 << (MetaBlockShift - DnodeShift)

	// MaxObject bounds the object number space.
	MaxObjectShift = 48
	MaxObject      = uint64(1) << MaxObjectShift

	// TXGSize is the number of concurrently open transaction groups;
	// all per-txg state is kept in TXGSize slot arrays indexed by
	// txg&TXGMask.
	TXGSize = 4
	TXGMask = TXGSize - 1

	// DevBShift is the log2 of the physical sector size used by the
	// secphys usage counter.
	DevBShift = 9
)

// BonusBlkid is the pseudo block id of an object's bonus buffer in
// the buffer cache.
const BonusBlkid = ^uint64(0)

// FreeToEnd, passed as the length to Dnode.FreeRange, frees from the
// given offset through the end of the object (truncation).
const FreeToEnd = ^uint64(0)

// Inherited policy ids for the checksum and compress image fields.
const (
	ChecksumInherit = 0
	CompressInherit = 0
)

// An ObjectType tags the content of an object or of a bonus region.
// TypeNone marks a free image slot.
type ObjectType uint8

const (
	TypeNone      ObjectType = iota
	TypeMeta                 // a meta dnode; data blocks hold image slots
	TypeData                 // opaque object content
	TypeDirectory            // directory content
	TypeUint64               // array of 64 bit words
	typeInvalid
)

// typeInfo drives the per-type behavior the image codec needs: the
// byte swap routine applied to a bonus region of that type.
//
// The table is populated in init rather than in this declaration's
// initializer: TypeMeta's entry refers to SwapDnodeBuf, which itself
// reads typeInfo, and a composite literal here would make that a
// package-level initialization cycle.
var typeInfo [typeInvalid]struct {
	name string
	swap func(b []byte)
}

func init() {
	typeInfo[TypeNone] = struct {
		name string
		swap func(b []byte)
	}{"none", nil}
	typeInfo[TypeMeta] = struct {
		name string
		swap func(b []byte)
	}{"meta dnode", SwapDnodeBuf}
	typeInfo[TypeData] = struct {
		name string
		swap func(b []byte)
	}{"data", nil}
	typeInfo[TypeDirectory] = struct {
		name string
		swap func(b []byte)
	}{"directory", nil}
	typeInfo[TypeUint64] = struct {
		name string
		swap func(b []byte)
	}{"uint64", swapUint64Array}
}

func (t ObjectType) String() string {
	if t >= typeInvalid {
		return "invalid"
	}

	return typeInfo[t].name
}
