// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package shmem

import "sync/atomic"

// Seq is the head/tail pair that opens every shared block. A writer
// bumps Head, writes the body, then sets Tail to Head. A copy taken by
// a reader is consistent only if Tail read before the copy equals Head
// read after it.
type Seq struct {
	Head uint32
	Tail uint32
}

func (s *Seq) seq() *Seq { return s }

// BeginWrite marks the block as being updated and returns the new
// sequence number.
func (s *Seq) BeginWrite() uint32 {
	n := atomic.LoadUint32(&s.Head) + 1
	atomic.StoreUint32(&s.Head, n)
	return n
}

// EndWrite publishes the update started by BeginWrite.
func (s *Seq) EndWrite(n uint32) {
	atomic.StoreUint32(&s.Tail, n)
}

// BeginRead returns the tail to validate an in-place read against.
func (s *Seq) BeginRead() uint32 {
	return atomic.LoadUint32(&s.Tail)
}

// Validate reports whether no write started since BeginRead returned
// tail.
func (s *Seq) Validate(tail uint32) bool {
	return atomic.LoadUint32(&s.Head) == tail
}

// Stable reports whether the block is not being written right now.
func (s *Seq) Stable() bool {
	return atomic.LoadUint32(&s.Head) == atomic.LoadUint32(&s.Tail)
}

type sequenced interface {
	seq() *Seq
}

// Block is satisfied by pointers to every shared block type.
type Block[T any] interface {
	*T
	sequenced
}

// Publish copies src into the shared block dst under the head/tail
// discipline. src's sequence fields are overwritten.
func Publish[T any, P Block[T]](dst, src P) {
	n := dst.seq().BeginWrite()
	// while the body is in flight dst must read as torn
	src.seq().Head = n
	src.seq().Tail = n - 1
	*dst = *src
	dst.seq().EndWrite(n)
	src.seq().Tail = n
}

// Snapshot copies the shared block src into dst and reports whether the
// copy is consistent. On success dst.Head == dst.Tail.
func Snapshot[T any, P Block[T]](dst, src P) bool {
	tail := src.seq().BeginRead()
	*dst = *src
	head := atomic.LoadUint32(&src.seq().Head)
	dst.seq().Head = head
	dst.seq().Tail = tail
	return head == tail
}
