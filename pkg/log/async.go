// Non-blocking log mailbox for the real-time task
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"context"
	"sync/atomic"
)

// Record is a message posted from a context that must not block.
type Record struct {
	Level  LogLevel
	Msg    string
	Fields Fields
}

// Mailbox buffers records for a Logger. Post never blocks: when the
// buffer is full the record is dropped and counted.
type Mailbox struct {
	logger  *Logger
	ch      chan Record
	dropped atomic.Uint64
}

// NewMailbox creates a mailbox with the given capacity.
func NewMailbox(logger *Logger, size int) *Mailbox {
	if size <= 0 {
		size = 64
	}
	return &Mailbox{
		logger: logger,
		ch:     make(chan Record, size),
	}
}

// Post queues a record without blocking. It reports whether the record
// was accepted.
func (m *Mailbox) Post(level LogLevel, msg string, fields Fields) bool {
	select {
	case m.ch <- Record{Level: level, Msg: msg, Fields: fields}:
		return true
	default:
		m.dropped.Add(1)
		return false
	}
}

// Dropped returns the number of records lost to a full buffer.
func (m *Mailbox) Dropped() uint64 {
	return m.dropped.Load()
}

// Run writes queued records to the logger until ctx is done, then
// flushes whatever is left.
func (m *Mailbox) Run(ctx context.Context) {
	for {
		select {
		case r := <-m.ch:
			m.write(r)
		case <-ctx.Done():
			m.Flush()
			return
		}
	}
}

// Flush writes all currently queued records.
func (m *Mailbox) Flush() {
	for {
		select {
		case r := <-m.ch:
			m.write(r)
		default:
			return
		}
	}
}

func (m *Mailbox) write(r Record) {
	e := m.logger.WithFields(r.Fields)
	switch r.Level {
	case DEBUG:
		e.Debug(r.Msg)
	case INFO:
		e.Info(r.Msg)
	case WARN:
		e.Warn(r.Msg)
	default:
		e.Error(r.Msg)
	}
}
