// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"sync"
	"testing"
)

func TestByteBuffer(t *testing.T) {
	b := GetByteBuffer()
	defer PutByteBuffer(b)

	b.WriteString("t=")
	b.AppendFloat(0.25, 6)
	b.WriteByte('\t')
	b.Write([]byte("ok"))
	if got := string(b.Bytes()); got != "t=0.250000\tok" {
		t.Errorf("buffer = %q", got)
	}
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("len after reset = %d", b.Len())
	}
}

func TestByteBufferOversizedDropped(t *testing.T) {
	b := GetByteBuffer()
	b.Write(make([]byte, maxPooled+1))
	PutByteBuffer(b)
	PutByteBuffer(nil)

	if got := GetByteBuffer(); got.Len() != 0 {
		t.Errorf("pooled buffer not empty: %d", got.Len())
	}
}

func TestFloat64Slice(t *testing.T) {
	tests := []int{0, 3, 8, 40}
	for _, n := range tests {
		s := GetFloat64Slice(n)
		if len(*s) != n {
			t.Fatalf("len = %d, want %d", len(*s), n)
		}
		for i := range *s {
			if (*s)[i] != 0 {
				t.Fatalf("slice of %d not zeroed", n)
			}
			(*s)[i] = 1
		}
		PutFloat64Slice(s)
	}
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				b := GetByteBuffer()
				b.AppendFloat(float64(j), 1)
				if b.Len() == 0 {
					t.Error("empty buffer")
				}
				PutByteBuffer(b)
			}
		}()
	}
	wg.Wait()
}
