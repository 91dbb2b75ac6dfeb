// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

import (
	"fmt"

	"github.com/pkg/errors"
)

// Condition sentinels.
var (
	// ErrNotFound is returned by Dnode.NextOffset when the scan
	// walked off the end of the object without a match.
	ErrNotFound = errors.New("dnode: no matching offset")

	// ErrNotAllocated is returned by Objset.HoldImpl when
	// MustBeAllocated was requested and the slot is free.
	ErrNotAllocated = errors.New("dnode: object not allocated")

	// ErrAllocated is returned by Objset.HoldImpl when MustBeFree
	// was requested and the slot is in use.
	ErrAllocated = errors.New("dnode: object already allocated")

	// ErrObjectFreed is returned by Objset.HoldImpl when the object
	// is being deleted.
	ErrObjectFreed = errors.New("dnode: object is being freed")

	// ErrHole is returned by BufCache.Hold with failSparse set when
	// the requested block is a hole.
	ErrHole = errors.New("dnode: block is a hole")
)

// ErrINVAL reports invalid argument values.
type ErrINVAL struct {
	Src string
	Val interface{}
}

// Error implements the built in error type.
func (e *ErrINVAL) Error() string {
	return fmt.Sprintf("%s: %v", e.Src, e.Val)
}

// ErrNOTSUP is returned by geometry mutators when a precondition for
// the change does not hold.
type ErrNOTSUP struct {
	Src string
}

// Error implements the built in error type.
func (e *ErrNOTSUP) Error() string {
	return e.Src + ": not supported"
}
