// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// A memory-only implementation of BufCache.

package dnode

import (
	"sync"

	"github.com/pkg/errors"
)

var _ BufCache = &MemBufCache{} // Ensure MemBufCache is a BufCache.

type memKey struct {
	obj   uint64
	level int
	blkid uint64
}

// MemBufCache is a memory backed BufCache. Blocks materialize as
// zero filled holes on first hold and stay resident until evicted
// explicitly, which makes the cache suitable for tests and for
// embedders that keep whole objectsets in memory. It is safe for
// concurrent use.
type MemBufCache struct {
	mu sync.Mutex
	m  map[memKey]*MemBuf
}

// NewMemBufCache returns a new, empty MemBufCache.
func NewMemBufCache() *MemBufCache {
	return &MemBufCache{m: map[memKey]*MemBuf{}}
}

// MemBuf is the Buf of a MemBufCache.
type MemBuf struct {
	c   *MemBufCache
	key memKey

	mu      sync.Mutex
	data    []byte
	size    int
	backed  bool // has a backing block pointer
	dirtied bool
	dirty   [TXGSize]bool
	user    interface{}
	evict   func(interface{})

	holds refcount
}

func blockSize(dn *Dnode, level int, blkid uint64) int {
	switch {
	case blkid == BonusBlkid:
		return dn.bonuslen
	case level > 0:
		return 1 << uint(dn.indblkshift)
	default:
		return dn.datablksz
	}
}

// Hold implements BufCache.
func (c *MemBufCache) Hold(dn *Dnode, level int, blkid uint64, failSparse bool, ref interface{}) (Buf, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := memKey{dn.object, level, blkid}
	b := c.m[key]
	if b == nil {
		if failSparse {
			return nil, ErrHole
		}

		sz := blockSize(dn, level, blkid)
		b = &MemBuf{c: c, key: key, data: make([]byte, sz), size: sz}
		c.m[key] = b
	}
	b.holds.add(ref)
	return b, nil
}

// HoldBonus implements BufCache.
func (c *MemBufCache) HoldBonus(dn *Dnode, ref interface{}) (Buf, error) {
	return c.Hold(dn, 0, BonusBlkid, false, ref)
}

// FreeRange implements BufCache. Unreferenced blocks in the range are
// dropped; referenced ones are zeroed and turned back into holes.
func (c *MemBufCache) FreeRange(dn *Dnode, blkid, nblks uint64, tx *Tx) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, b := range c.m {
		if key.obj != dn.object || key.level != 0 || key.blkid == BonusBlkid {
			continue
		}

		if key.blkid < blkid || key.blkid-blkid >= nblks {
			continue
		}

		if b.holds.zero() {
			delete(c.m, key)
			continue
		}

		b.mu.Lock()
		for i := range b.data {
			b.data[i] = 0
		}
		b.backed = false
		b.dirtied = false
		b.dirty = [TXGSize]bool{}
		b.mu.Unlock()
	}
}

// Cached implements BufCache.
func (c *MemBufCache) Cached(dn *Dnode) (r []BufID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.m {
		if key.obj == dn.object {
			r = append(r, BufID{key.level, key.blkid})
		}
	}
	return
}

// Put installs block (level, blkid) of object obj with the given
// content and a backing pointer, as if it had been written and
// synced. It is the fixture seam for building tree levels in tests.
func (c *MemBufCache) Put(obj uint64, level int, blkid uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := memKey{obj, level, blkid}
	b := c.m[key]
	if b == nil {
		b = &MemBuf{c: c, key: key}
		c.m[key] = b
	}
	b.data = data
	b.size = len(data)
	b.backed = true
}

// Evict pages out block (level, blkid) of object obj, running the
// installed eviction callback. Eviction of a referenced block is
// refused. A dirty block is flushed first: its bytes stay behind as
// the backing store content a later hold re-reads, the cache being
// its own storage.
func (c *MemBufCache) Evict(obj uint64, level int, blkid uint64) error {
	c.mu.Lock()
	b := c.m[memKey{obj, level, blkid}]
	c.mu.Unlock()

	if b == nil {
		return errors.Errorf("membuf: evict of uncached block %v/%v/%v", obj, level, blkid)
	}

	if !b.holds.zero() {
		return errors.Errorf("membuf: evict of referenced block %v/%v/%v", obj, level, blkid)
	}

	b.mu.Lock()
	if b.dirtied {
		b.backed = true
		b.dirtied = false
		b.dirty = [TXGSize]bool{}
	}
	user, evict := b.user, b.evict
	b.user, b.evict = nil, nil
	b.mu.Unlock()

	if evict != nil {
		evict(user)
	}
	return nil
}

// Data implements Buf.
func (b *MemBuf) Data() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.data[:b.size]
}

// Size implements Buf.
func (b *MemBuf) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.size
}

// Resize implements Buf.
func (b *MemBuf) Resize(size int, tx *Tx) {
	b.mu.Lock()
	if size > len(b.data) {
		data := make([]byte, size)
		copy(data, b.data)
		b.data = data
	}
	b.size = size
	b.dirtied = true
	b.dirty[tx.Txg&TXGMask] = true
	b.mu.Unlock()
}

// MarkDirty implements Buf.
func (b *MemBuf) MarkDirty(tx *Tx) {
	b.mu.Lock()
	b.dirtied = true
	b.dirty[tx.Txg&TXGMask] = true
	b.mu.Unlock()
}

// IsDirty implements Buf.
func (b *MemBuf) IsDirty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dirtied
}

// IsHole implements Buf.
func (b *MemBuf) IsHole() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return !b.backed && !b.dirtied
}

// AddRef implements Buf.
func (b *MemBuf) AddRef(ref interface{}) {
	b.holds.add(ref)
}

// Rele implements Buf.
func (b *MemBuf) Rele(ref interface{}) {
	b.holds.remove(ref)
}

// SetUser implements Buf.
func (b *MemBuf) SetUser(user interface{}, evict func(interface{})) interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.user != nil {
		return b.user
	}

	b.user, b.evict = user, evict
	return nil
}

// User implements Buf.
func (b *MemBuf) User() interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.user
}
