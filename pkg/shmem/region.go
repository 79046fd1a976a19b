// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package shmem

import (
	"fmt"
	"os"
	"time"

	uuid "github.com/satori/go.uuid"

	"emcmot-go/pkg/errors"
)

// Region owns the memory backing a Shmem.
type Region struct {
	mem   *Shmem
	data  []byte
	file  *os.File
	path  string
	owner bool
}

// NewHeap returns a region allocated on the Go heap, for use when the
// controller and supervisor run in one process.
func NewHeap() *Region {
	r := &Region{mem: new(Shmem), owner: true}
	r.mem.initHeader()
	return r
}

// Shmem returns the shared blocks.
func (r *Region) Shmem() *Shmem {
	return r.mem
}

// Path returns the backing file, empty for heap regions.
func (r *Region) Path() string {
	return r.path
}

// InstanceID returns the id written by the region's creator.
func (r *Region) InstanceID() string {
	id, err := uuid.FromBytes(r.mem.Header.Instance[:])
	if err != nil {
		return ""
	}
	return id.String()
}

func (m *Shmem) initHeader() {
	m.Header = Header{
		Magic:   Magic,
		Version: Version,
		Size:    uint64(Size),
		Started: time.Now().UnixNano(),
	}
	copy(m.Header.Instance[:], uuid.NewV4().Bytes())
}

// validate checks that an attached region has the expected layout.
func (m *Shmem) validate() error {
	h := m.Header
	if h.Magic != Magic {
		return errors.New(errors.ErrShmemLayout, fmt.Sprintf("bad magic 0x%08x", h.Magic))
	}
	if h.Version != Version || h.Size != uint64(Size) {
		return errors.New(errors.ErrShmemLayout,
			fmt.Sprintf("layout version %d size %d, want version %d size %d", h.Version, h.Size, Version, Size))
	}
	return nil
}
