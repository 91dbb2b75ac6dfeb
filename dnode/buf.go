// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// An abstraction of the block buffer cache the dnode layer runs on
// top of. Cached blocks are keyed by (object, level, blkid); the
// cache performs the actual reads and carries the dirty state the txg
// engine later syncs.

package dnode

import (
	"fmt"
)

// A BufID names one cached block of one object.
type BufID struct {
	Level int
	Blkid uint64
}

// A BufCache is the block buffer cache collaborator. It is consumed
// from multiple goroutines; implementations serialize internally.
// Hold and HoldBonus perform a synchronous read of the block before
// returning. Every successful Hold/HoldBonus MUST be balanced by
// exactly one Buf.Rele with the same ref tag.
type BufCache interface {
	// Hold returns the cached block (level, blkid) of dn, reading it
	// if necessary. With failSparse set, a block that is not cached
	// and has no backing pointer fails with ErrHole instead of
	// materializing zeros; a block already cached is returned even if
	// it is a hole (see Buf.IsHole).
	Hold(dn *Dnode, level int, blkid uint64, failSparse bool, ref interface{}) (Buf, error)

	// HoldBonus returns the bonus buffer of dn, sized dn.BonusLen.
	HoldBonus(dn *Dnode, ref interface{}) (Buf, error)

	// FreeRange drops every cached, unreferenced data block of dn
	// inside [blkid, blkid+nblks) and detaches dirty state the range
	// free supersedes.
	FreeRange(dn *Dnode, blkid, nblks uint64, tx *Tx)

	// Cached reports the blocks of dn currently in the cache. The
	// bonus buffer is reported with Blkid == BonusBlkid.
	Cached(dn *Dnode) []BufID
}

// A Buf is one cached block. Data returns the block's bytes for
// reading and, under the owning dnode's lock discipline, writing;
// mutations require MarkDirty against the open txg.
type Buf interface {
	// Data returns the block content. The slice aliases cache memory
	// and stays valid while the Buf is held.
	Data() []byte

	// Size returns the block's logical size in bytes.
	Size() int

	// Resize changes the logical size, dirtying the buffer. Used for
	// bonus region growth and first-block size changes.
	Resize(size int, tx *Tx)

	// MarkDirty records the buffer as modified in tx's group.
	MarkDirty(tx *Tx)

	// IsDirty reports whether the buffer was ever dirtied and not
	// yet synced.
	IsDirty() bool

	// IsHole reports whether the buffer has no backing block pointer
	// and no pending write.
	IsHole() bool

	// AddRef and Rele adjust the buffer's reference count under a
	// tag; the buffer is evictable only at zero.
	AddRef(ref interface{})
	Rele(ref interface{})

	// SetUser atomically installs user data with an eviction
	// callback, invoked with the user value when the buffer is paged
	// out. If user data is already present the existing value is
	// returned and the new one is NOT installed; on success SetUser
	// returns nil.
	SetUser(user interface{}, evict func(user interface{})) interface{}

	// User returns the installed user data, or nil.
	User() interface{}
}

// whichBlock returns the id of dn's level 0 block containing byte
// offset off.
func whichBlock(dn *Dnode, off uint64) uint64 {
	if dn.datablkshift == 0 {
		// Single block objects have no shift; everything is block 0.
		return 0
	}

	return off >> uint(dn.datablkshift)
}

func (id BufID) String() string {
	if id.Blkid == BonusBlkid {
		return fmt.Sprintf("L%d/bonus", id.Level)
	}

	return fmt.Sprintf("L%d/%d", id.Level, id.Blkid)
}
