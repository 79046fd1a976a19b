//go:build !race

// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package shmem

import (
	"sync"
	"testing"
)

// The body copy in Publish/Snapshot races by construction; the head/tail
// check is what makes it safe, so this test is skipped under -race.
func TestConcurrentPublishNeverTears(t *testing.T) {
	shm := NewHeap().Shmem()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		var local Debug
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			for j := range local.JointPos {
				local.JointPos[j] = float64(i)
			}
			Publish(&shm.Debug, &local)
		}
	}()

	accepted := 0
	for i := 0; i < 20000; i++ {
		var got Debug
		if !Snapshot(&got, &shm.Debug) {
			continue
		}
		accepted++
		for j := range got.JointPos {
			if got.JointPos[j] != got.JointPos[0] {
				t.Fatalf("accepted torn snapshot: %v", got.JointPos)
			}
		}
	}
	close(stop)
	wg.Wait()
	t.Logf("accepted %d snapshots", accepted)
}
