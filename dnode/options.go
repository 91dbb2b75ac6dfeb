// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dnode

import (
	"log"
)

// Debug enables the package's defensive assertions (handle
// verification, hold/release pairing checks) and trace output.
// Violations of documented preconditions are undefined behavior when
// Debug is off.
var Debug bool

// Options amend the behavior of an Objset. The compatibility promise
// is the same as of struct types in the Go standard library -
// introducing changes can be made only by adding new exported fields,
// which is backward compatible as long as client code uses field
// names to assign values of imported struct types literals.
type Options struct {
	// DefaultBlockShift is the log2 of the data block size used by
	// Dnode.Allocate when the caller passes a zero block size. Zero
	// means MinBlockShift.
	DefaultBlockShift int

	// DefaultIndBlockShift is the indirect block shift used by
	// Dnode.Allocate when the caller passes zero. Zero means
	// MaxIndBlkShift.
	DefaultIndBlockShift int

	checked bool
}

func (o *Options) check() {
	if o.checked {
		return
	}

	if o.DefaultBlockShift == 0 {
		o.DefaultBlockShift = MinBlockShift
	}
	if o.DefaultIndBlockShift == 0 {
		o.DefaultIndBlockShift = MaxIndBlkShift
	}
	o.checked = true
}

// dprintf emits trace output when Debug is on.
func dprintf(format string, arg ...interface{}) {
	if Debug {
		log.Printf("dnode: "+format, arg...)
	}
}
