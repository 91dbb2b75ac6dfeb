// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The objectset: the container of live dnode handles and of the
// per-txg dirty and free lists.

package dnode

import (
	"sync"
)

// An Objset owns the handles of one objectset: the meta dnode whose
// data blocks hold every image slot, the set of live handles, and
// four per-txg dirty and free lists the sync walk drains.
type Objset struct {
	mu     sync.Mutex // protects dnodes and the per-txg lists
	dnodes map[*Dnode]struct{}
	dirty  [TXGSize][]*Dnode
	free   [TXGSize][]*Dnode

	meta  *Dnode
	bufs  BufCache
	ds    DatasetTracker
	asize func(int64) int64
	opt   Options
}

// NewObjset returns an objectset over the given buffer cache. A nil
// tracker disables dataset notifications. The meta dnode must be
// materialized with OpenMeta before any hold.
func NewObjset(bufs BufCache, ds DatasetTracker, opt *Options) *Objset {
	if ds == nil {
		ds = nopTracker{}
	}

	var o Options
	if opt != nil {
		o = *opt
	}
	o.check()

	return &Objset{
		dnodes: map[*Dnode]struct{}{},
		bufs:   bufs,
		ds:     ds,
		asize:  defaultAsize,
		opt:    o,
	}
}

// defaultAsize is the stand-in for the allocator's worst case
// expansion when no SPA is attached: doubling covers indirect block
// overhead and replicated metadata.
func defaultAsize(space int64) int64 { return 2 * space }

// SetAsize installs the allocator's worst case size expansion used by
// WilluseSpace estimates.
func (os *Objset) SetAsize(f func(int64) int64) {
	if f != nil {
		os.asize = f
	}
}

// Meta returns the objectset's meta dnode.
func (os *Objset) Meta() *Dnode { return os.meta }

// Bufs returns the buffer cache the objectset runs on.
func (os *Objset) Bufs() BufCache { return os.bufs }

// DirtyCount returns the length of the dirty and free lists of txg.
// It is a debug aid; the lists themselves belong to the sync walk.
func (os *Objset) DirtyCount(txg uint64) (dirty, free int) {
	os.mu.Lock()
	defer os.mu.Unlock()

	return len(os.dirty[txg&TXGMask]), len(os.free[txg&TXGMask])
}

// MetaPhys returns a fresh meta dnode image: one level, meta sized
// data blocks, the full root pointer array and no bonus.
func MetaPhys() *DnodePhys {
	return &DnodePhys{
		Type:         TypeMeta,
		IndBlkShift:  MaxIndBlkShift,
		NLevels:      1,
		NBlkptr:      MaxNBlkptr,
		Checksum:     ChecksumInherit,
		Compress:     CompressInherit,
		DataBlkSzSec: (1 << MetaBlockShift) >> MinBlockShift,
	}
}
