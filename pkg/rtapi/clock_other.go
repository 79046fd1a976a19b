//go:build !linux

// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package rtapi

import "time"

var epoch = time.Now()

func monotonicNanos() int64 {
	return int64(time.Since(epoch))
}

func sleepUntil(deadline int64) error {
	if d := time.Duration(deadline - monotonicNanos()); d > 0 {
		time.Sleep(d)
	}
	return nil
}

func lockMemory() error {
	return nil
}
