// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

import (
	"testing"
)

func init() {
	Debug = true
}

// newTestObjset returns an objectset over a fresh memory buffer cache
// with its meta dnode open.
func newTestObjset(t testing.TB) (*Objset, *MemBufCache) {
	c := NewMemBufCache()
	o := NewObjset(c, nil, nil)
	o.OpenMeta(MetaPhys())
	return o, c
}

// holdAllocate holds the free slot of object and allocates it.
func holdAllocate(t testing.TB, o *Objset, object uint64, blocksize int, bonustype ObjectType, bonuslen int, tx *Tx, ref interface{}) *Dnode {
	dn, err := o.HoldImpl(object, MustBeFree, ref)
	if err != nil {
		t.Fatal(err)
	}

	dn.Allocate(TypeData, blocksize, 0, bonustype, bonuslen, tx)
	return dn
}
