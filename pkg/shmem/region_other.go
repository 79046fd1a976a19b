//go:build !linux

// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package shmem

import (
	"emcmot-go/pkg/errors"
)

var errUnsupported = errors.New(errors.ErrShmem, "file-backed regions are only supported on linux")

// Create is not supported on this platform.
func Create(path string) (*Region, error) {
	return nil, errUnsupported
}

// Open is not supported on this platform.
func Open(path string) (*Region, error) {
	return nil, errUnsupported
}

// Close releases a heap region.
func (r *Region) Close() error {
	r.mem = nil
	return nil
}

// Lock is a no-op on this platform.
func (r *Region) Lock() error {
	return nil
}
