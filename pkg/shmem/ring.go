// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package shmem

import "sync/atomic"

// ErrorRing is a single-producer single-consumer queue of text
// messages. Start is advanced only by the reader and End only by the
// writer; both count up without wrapping the slot index.
type ErrorRing struct {
	Start uint32
	End   uint32
	Len   [ErrorSlots]uint16
	Msg   [ErrorSlots][ErrorLen]byte
}

// Put appends msg, truncated to ErrorLen bytes. It never blocks and
// returns false when the ring is full, leaving unread messages intact.
func (r *ErrorRing) Put(msg string) bool {
	end := atomic.LoadUint32(&r.End)
	start := atomic.LoadUint32(&r.Start)
	if end-start >= ErrorSlots {
		return false
	}
	slot := end % ErrorSlots
	n := copy(r.Msg[slot][:], msg)
	r.Len[slot] = uint16(n)
	atomic.StoreUint32(&r.End, end+1)
	return true
}

// Get removes and returns the oldest message.
func (r *ErrorRing) Get() (string, bool) {
	start := atomic.LoadUint32(&r.Start)
	end := atomic.LoadUint32(&r.End)
	if start == end {
		return "", false
	}
	slot := start % ErrorSlots
	msg := string(r.Msg[slot][:r.Len[slot]])
	atomic.StoreUint32(&r.Start, start+1)
	return msg, true
}

// Pending returns the number of unread messages.
func (r *ErrorRing) Pending() int {
	return int(atomic.LoadUint32(&r.End) - atomic.LoadUint32(&r.Start))
}

// Add appends an item in place, overwriting the oldest once the log
// holds Size items.
func (b *LogBuffer) Add(item LogItem) {
	if b.Size <= 0 || b.Size > LogMax {
		return
	}
	n := b.BeginWrite()
	b.Items[b.End] = item
	b.End = (b.End + 1) % b.Size
	if b.HowMany >= b.Size {
		b.Start = (b.Start + 1) % b.Size
	} else {
		b.HowMany++
	}
	b.EndWrite(n)
}

// Reset empties the log and sets its type and capacity.
func (b *LogBuffer) Reset(t LogType, size int32) {
	n := b.BeginWrite()
	b.Type = t
	b.Size = size
	b.Start = 0
	b.End = 0
	b.HowMany = 0
	b.EndWrite(n)
}

// Ordered returns the logged samples oldest first.
func (b *LogBuffer) Ordered() []LogItem {
	out := make([]LogItem, 0, b.HowMany)
	for i := int32(0); i < b.HowMany; i++ {
		out = append(out, b.Items[(b.Start+i)%b.Size])
	}
	return out
}
