// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

import (
	"testing"
)

func TestBlkPtrRawAccess(t *testing.T) {
	b := make([]byte, 8<<BlkptrShift)

	bpSetAt(b, 3, BlkPtr{Birth: 11, Fill: 22})
	bpSetAt(b, 7, BlkPtr{Birth: 33, Fill: 44})

	if g, e := bpBirthAt(b, 3), uint64(11); g != e {
		t.Fatal(g, e)
	}

	if g, e := bpFillAt(b, 3), uint64(22); g != e {
		t.Fatal(g, e)
	}

	if g, e := bpBirthAt(b, 7), uint64(33); g != e {
		t.Fatal(g, e)
	}

	if g, e := bpFillAt(b, 0), uint64(0); g != e {
		t.Fatal(g, e)
	}
}

func TestBlkPtrHole(t *testing.T) {
	var bp BlkPtr
	if !bp.IsHole() {
		t.Fatal("zero pointer is not a hole")
	}

	bp.Birth = 1
	if bp.IsHole() {
		t.Fatal("born pointer is a hole")
	}
}
