// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestMailboxDropsWhenFull(t *testing.T) {
	var buf bytes.Buffer
	logger := New("rt")
	logger.SetWriter(&buf)
	logger.SetColorize(false)

	mb := NewMailbox(logger, 2)
	if !mb.Post(ERROR, "first", nil) || !mb.Post(WARN, "second", nil) {
		t.Fatal("expected first two posts to be accepted")
	}
	if mb.Post(ERROR, "third", nil) {
		t.Error("expected post to a full mailbox to be dropped")
	}
	if mb.Dropped() != 1 {
		t.Errorf("expected 1 dropped record, got %d", mb.Dropped())
	}

	mb.Flush()
	out := buf.String()
	if !strings.Contains(out, "first") || !strings.Contains(out, "second") {
		t.Errorf("expected flushed records, got: %s", out)
	}
	if strings.Contains(out, "third") {
		t.Errorf("dropped record was written: %s", out)
	}
}

func TestMailboxRunFlushesOnCancel(t *testing.T) {
	var buf bytes.Buffer
	logger := New("rt")
	logger.SetWriter(&buf)
	logger.SetColorize(false)

	mb := NewMailbox(logger, 8)
	mb.Post(INFO, "queued", Fields{"axis": 2})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mb.Run(ctx)

	if !strings.Contains(buf.String(), "queued") {
		t.Errorf("expected record written on shutdown, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "axis=2") {
		t.Errorf("expected field in output, got: %s", buf.String())
	}
}
