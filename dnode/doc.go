// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package dnode implements the in-memory object metadata layer of a
copy-on-write, transactional object store. A dnode is the per-object
descriptor: it records the object's type, its block geometry (data
block size, indirect block shift, number of tree levels), the small
embedded array of root block pointers, a variable length "bonus"
region holding type specific metadata, and usage counters.

The package owns the lifecycle of dnode handles, coordinates
concurrent holders, tracks per transaction group ("txg") dirty state,
grows the block tree as the object is written, records ranges queued
for asynchronous freeing, and answers hole/data skipping queries over
the sparse address space of an object.

The terms MUST or MUST NOT, if/where used in the documentation of this
package, written in all caps as seen here, are a requirement for any
possible alternative implementations aiming for compatibility with
this one.

# On-disk image

Every object is described by a fixed size 512 byte image. A block of
the meta dnode - the special object whose data blocks hold the images
of all other objects in its objectset - is a contiguous array of such
slots. The image layout, offsets in bytes:

	+--------+----------------+----------------------------------------+
	| offset | field          | semantics                              |
	+--------+----------------+----------------------------------------+
	|      0 | type           | object type tag; 0 means slot is free  |
	|      1 | indblkshift    | log2 of the indirect block size        |
	|      2 | nlevels        | height of the block tree, 1..30        |
	|      3 | nblkptr        | count of embedded root block pointers  |
	|      4 | bonustype      | object type of the bonus region        |
	|      5 | checksum       | inherited checksum policy id           |
	|      6 | compress       | inherited compression policy id        |
	|      7 | padding        |                                        |
	|      8 | datablkszsec   | data block size in 512 byte sectors    |
	|     10 | bonuslen       | length of the bonus region             |
	|     12 | padding        |                                        |
	|     16 | maxblkid       | highest block id ever dirtied          |
	|     24 | secphys        | physical sectors used by this object   |
	|     32 | padding        |                                        |
	|     64 | blkptr[0]      | first root block pointer               |
	|     80 | bonus region   | blkptr[1..nblkptr-1], then bonus bytes |
	+--------+----------------+----------------------------------------+

The root block pointers are laid out contiguously from offset 64; the
bonus bytes start immediately after the last of them. Consequently

	(nblkptr-1)*16 + bonuslen <= MaxBonusLen

MUST hold for every valid image, and at allocation time

	nblkptr == 1 + (MaxBonusLen-bonuslen)/16

All multi byte fields are little endian in memory; SwapDnode converts
an image with foreign byte order in place.

# Block pointers

A block pointer is 16 bytes: a birth txg word and a fill count word. A
birth of zero marks a hole - the absence of an allocated block, read
back as zeros. The fill count of a pointer at tree level L is the
number of non hole leaves beneath it; the sparse offset scan uses it
to skip whole subtrees.

# Transaction groups

Mutations are made against an open transaction group. At most four
groups are in flight at once, so all per-txg state lives in four slot
arrays indexed by txg&3. A handle dirtied in a txg stays pinned (via a
synthetic hold keyed by the txg) until the group's sync walk writes
its image back and drains its queued free ranges.

# Concurrency

Handles may be held by any number of goroutines. Geometry changes and
tree traversals are serialized by a per handle RW lock; bonus/range
bookkeeping by a plain mutex; handle installation into a meta dnode
block by a per slot compare and swap. Evicting a handle while anyone
references it is a correctness bug, and the reference counts verify
exact hold/release pairing when debugging is enabled.
*/
package dnode
