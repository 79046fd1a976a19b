//go:build linux

// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package shmem

import (
	"os"
	"unsafe"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"emcmot-go/pkg/errors"
)

// Create makes a new file-backed region at path, typically under
// /dev/shm, and initialises its header. The caller owns the file and
// Close removes it.
func Create(path string) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o660)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrShmem, "create "+path)
	}
	fd := int(f.Fd())
	// truncate to zero first so a stale region is wiped
	if err := unix.Ftruncate(fd, 0); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, errors.ErrShmem, "truncate "+path), f.Close())
	}
	if err := unix.Ftruncate(fd, int64(Size)); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, errors.ErrShmem, "size "+path), f.Close())
	}
	r, err := mapFile(f, path)
	if err != nil {
		return nil, err
	}
	r.owner = true
	r.mem.initHeader()
	return r, nil
}

// Open attaches to a region created by another process.
func Open(path string) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrShmem, "open "+path)
	}
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, errors.ErrShmem, "stat "+path), f.Close())
	}
	if st.Size < int64(Size) {
		return nil, multierr.Combine(
			errors.New(errors.ErrShmemLayout, "region smaller than layout"),
			f.Close())
	}
	r, err := mapFile(f, path)
	if err != nil {
		return nil, err
	}
	if err := r.mem.validate(); err != nil {
		return nil, multierr.Combine(err, r.Close())
	}
	return r, nil
}

func mapFile(f *os.File, path string) (*Region, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, multierr.Combine(errors.Wrap(err, errors.ErrShmem, "mmap "+path), f.Close())
	}
	return &Region{
		mem:  (*Shmem)(unsafe.Pointer(&data[0])),
		data: data,
		file: f,
		path: path,
	}, nil
}

// Close unmaps the region and, for the creator, removes the file.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	r.mem = nil
	err = multierr.Append(err, r.file.Close())
	if r.owner {
		err = multierr.Append(err, os.Remove(r.path))
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrShmem, "close "+r.path)
	}
	return nil
}

// Lock pins the region in memory so the real-time side never faults.
func (r *Region) Lock() error {
	if r.data == nil {
		return nil
	}
	if err := unix.Mlock(r.data); err != nil {
		return errors.Wrap(err, errors.ErrShmem, "mlock "+r.path)
	}
	return nil
}
