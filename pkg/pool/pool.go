// Reusable buffers for the supervisor side
//
// Data log dumps format tens of thousands of rows; each row is built in
// a pooled buffer instead of going through fmt.
//
// Usage:
//
//	b := pool.GetByteBuffer()
//	defer pool.PutByteBuffer(b)
//	b.AppendFloat(v, 6)
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"strconv"
	"sync"
)

// maxPooled is the largest buffer capacity returned to the pool.
const maxPooled = 4096

// ByteBuffer is an append-only byte buffer.
type ByteBuffer struct {
	buf []byte
}

var byteBufferPool = sync.Pool{
	New: func() any {
		return &ByteBuffer{buf: make([]byte, 0, 256)}
	},
}

// GetByteBuffer gets an empty buffer from the pool.
func GetByteBuffer() *ByteBuffer {
	b := byteBufferPool.Get().(*ByteBuffer)
	b.buf = b.buf[:0]
	return b
}

// PutByteBuffer returns b to the pool. Oversized buffers are dropped.
func PutByteBuffer(b *ByteBuffer) {
	if b == nil || cap(b.buf) > maxPooled {
		return
	}
	byteBufferPool.Put(b)
}

func (b *ByteBuffer) Bytes() []byte { return b.buf }
func (b *ByteBuffer) Len() int      { return len(b.buf) }
func (b *ByteBuffer) Reset()        { b.buf = b.buf[:0] }

func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *ByteBuffer) WriteByte(c byte) error {
	b.buf = append(b.buf, c)
	return nil
}

func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// AppendFloat appends v in fixed notation with prec decimals.
func (b *ByteBuffer) AppendFloat(v float64, prec int) {
	b.buf = strconv.AppendFloat(b.buf, v, 'f', prec, 64)
}

// Float64 slices sized for one joint vector.
var floatSlicePool = sync.Pool{
	New: func() any {
		s := make([]float64, 0, 16)
		return &s
	},
}

// GetFloat64Slice returns a zeroed slice of length n.
func GetFloat64Slice(n int) *[]float64 {
	s := floatSlicePool.Get().(*[]float64)
	if cap(*s) < n {
		*s = make([]float64, n)
	} else {
		*s = (*s)[:n]
		clear(*s)
	}
	return s
}

// PutFloat64Slice returns s to the pool.
func PutFloat64Slice(s *[]float64) {
	if s == nil || cap(*s) > 256 {
		return
	}
	floatSlicePool.Put(s)
}
