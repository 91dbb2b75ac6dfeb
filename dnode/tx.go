// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The transaction and dataset collaborator surfaces. The transaction
// group engine itself lives outside this package; the dnode layer
// only needs the group number a mutation is made against and the
// space accounting hooks.

package dnode

import (
	"sync/atomic"
)

// A Tx is a handle onto one open transaction group. Mutating
// operations take a Tx and record their dirty state against
// Tx.Txg&TXGMask; the engine guarantees at most TXGSize groups are
// open concurrently.
type Tx struct {
	// Txg is the transaction group number, nonzero for any Tx used
	// with mutating operations.
	Txg uint64

	// Private marks transactions allowed to touch objects in the
	// private object number space.
	Private bool

	willUse int64
}

// NewTx returns a Tx against transaction group txg.
func NewTx(txg uint64) *Tx { return &Tx{Txg: txg} }

// PrivateOK reports whether tx may operate on private objects.
func (tx *Tx) PrivateOK() bool { return tx.Private }

// WillUse returns the space, in bytes, charged to tx so far by
// Dnode.WilluseSpace. The estimate is conservative: syncing may write
// less or free more, never the other way around.
func (tx *Tx) WillUse() int64 { return atomic.LoadInt64(&tx.willUse) }

func (tx *Tx) addWillUse(space int64) { atomic.AddInt64(&tx.willUse, space) }

// A DatasetTracker receives the dataset level dirty and quota
// notifications the dnode layer emits. Implementations belong to the
// dataset layer; an Objset created without one falls back to a no-op.
type DatasetTracker interface {
	// WillUseSpace forwards a conservative space delta estimate, in
	// bytes, already expanded by the allocator's worst case ratio.
	WillUseSpace(space int64, tx *Tx)

	// MarkDirty notes that the objectset has dirty state in tx's
	// group.
	MarkDirty(tx *Tx)
}

type nopTracker struct{}

func (nopTracker) WillUseSpace(int64, *Tx) {}
func (nopTracker) MarkDirty(*Tx)           {}
