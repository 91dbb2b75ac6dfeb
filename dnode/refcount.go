// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

import (
	"fmt"
	"sync"
)

// A refcount counts references tagged with arbitrary comparable
// values. With Debug on it verifies exact add/remove pairing per tag;
// otherwise only the total is maintained.
type refcount struct {
	mu   sync.Mutex
	n    int64
	tags map[interface{}]int64
}

// add increments the count under ref and returns the new total.
func (rc *refcount) add(ref interface{}) int64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.n++
	if Debug {
		if rc.tags == nil {
			rc.tags = map[interface{}]int64{}
		}
		rc.tags[ref]++
	}
	return rc.n
}

// remove decrements the count under ref and returns the new total.
func (rc *refcount) remove(ref interface{}) int64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if Debug {
		if rc.tags[ref] == 0 {
			panic(fmt.Sprintf("internal error: release of unheld reference %v", ref))
		}
		if rc.tags[ref]--; rc.tags[ref] == 0 {
			delete(rc.tags, ref)
		}
	}
	if rc.n == 0 {
		panic("internal error: reference count underflow")
	}

	rc.n--
	return rc.n
}

// count returns the current total.
func (rc *refcount) count() int64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	return rc.n
}

func (rc *refcount) zero() bool { return rc.count() == 0 }
