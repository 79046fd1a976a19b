//go:build linux

// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package shmem

import (
	"os"
	"path/filepath"
	"testing"

	"emcmot-go/pkg/errors"
)

func TestFileRegionShared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emcmot.shm")
	owner, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}

	peer, err := Open(path)
	if err != nil {
		owner.Close()
		t.Fatal(err)
	}
	if peer.InstanceID() != owner.InstanceID() {
		t.Errorf("instance ids differ: %s vs %s", peer.InstanceID(), owner.InstanceID())
	}

	owner.Shmem().Errors.Put("from owner")
	if msg, ok := peer.Shmem().Errors.Get(); !ok || msg != "from owner" {
		t.Errorf("peer read %q ok=%v", msg, ok)
	}

	if err := peer.Close(); err != nil {
		t.Errorf("peer close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("peer close removed the file: %v", err)
	}
	if err := owner.Close(); err != nil {
		t.Errorf("owner close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("owner close left the file behind: %v", err)
	}
}

func TestOpenRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	if err := os.WriteFile(path, make([]byte, Size), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if !errors.Is(err, errors.ErrShmemLayout) {
		t.Errorf("got %v, want layout error", err)
	}
}
