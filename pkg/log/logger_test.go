// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newTestLogger(prefix string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := New(prefix)
	l.SetWriter(&buf)
	l.SetColorize(false)
	l.SetLevel(DEBUG)
	return l, &buf
}

func TestTextLine(t *testing.T) {
	l, buf := newTestLogger("usrmot")
	l.SetTimeFormat("T")

	l.WithFields(Fields{"num": 7, "command": "ENABLE"}).Warn("command not echoed")

	want := "T WARN  usrmot: command not echoed command=ENABLE num=7\n"
	if got := buf.String(); got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestTextQuotesValues(t *testing.T) {
	l, buf := newTestLogger("motion")
	l.SetTimeFormat("T")

	l.WithField("msg", "joint 1 following error").WithField("empty", "").Error("fault")

	want := `T ERROR motion: fault empty="" msg="joint 1 following error"` + "\n"
	if got := buf.String(); got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  []string
	}{
		{DEBUG, []string{"d", "i", "w", "e"}},
		{INFO, []string{"i", "w", "e"}},
		{WARN, []string{"w", "e"}},
		{ERROR, []string{"e"}},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			l, buf := newTestLogger("x")
			l.SetTimeFormat("T")
			l.SetLevel(tt.level)
			l.Debug("d")
			l.Info("i")
			l.Warn("w")
			l.Error("e")

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d lines: %q", len(lines), buf.String())
			}
			for i, msg := range tt.want {
				if !strings.HasSuffix(lines[i], ": "+msg) {
					t.Errorf("line %d = %q, want message %q", i, lines[i], msg)
				}
			}
		})
	}
}

func TestFormatArgs(t *testing.T) {
	l, buf := newTestLogger("rtapi")
	l.Info("period %dus", 1000)
	l.WithField("axis", 1).Warnf("ferror %.3f", 0.0126)

	out := buf.String()
	if !strings.Contains(out, "period 1000us") {
		t.Errorf("formatted message missing: %q", out)
	}
	if !strings.Contains(out, "ferror 0.013 axis=1") {
		t.Errorf("entry format missing: %q", out)
	}
}

func TestJSONLine(t *testing.T) {
	l, buf := newTestLogger("wsapi")
	l.SetFormat(FormatJSON)

	l.WithError(errors.New("broken pipe")).WithField("client", "c1").Info("client gone")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("not json: %v: %q", err, buf.String())
	}
	if rec["level"] != "INFO" || rec["logger"] != "wsapi" || rec["msg"] != "client gone" {
		t.Errorf("record = %v", rec)
	}
	fields, _ := rec["fields"].(map[string]any)
	if fields["error"] != "broken pipe" || fields["client"] != "c1" {
		t.Errorf("fields = %v", rec["fields"])
	}
	if _, ok := rec["caller"]; ok {
		t.Error("caller present without SetCaller")
	}
}

func TestCaller(t *testing.T) {
	tests := []struct {
		name   string
		format OutputFormat
		log    func(l *Logger)
	}{
		{"logger", FormatText, func(l *Logger) { l.Info("x") }},
		{"entry", FormatText, func(l *Logger) { l.WithField("k", 1).Info("x") }},
		{"json", FormatJSON, func(l *Logger) { l.Warn("x") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newTestLogger("c")
			l.SetFormat(tt.format)
			l.SetCaller(true)
			tt.log(l)
			if !strings.Contains(buf.String(), "logger_test.go:") {
				t.Errorf("caller is not the test file: %q", buf.String())
			}
		})
	}
}

func TestWithPrefixSharesOutput(t *testing.T) {
	root, buf := newTestLogger("emcmot")
	root.SetTimeFormat("T")
	child := root.WithPrefix("safety")

	// settings made on the root after deriving still apply
	root.SetFormat(FormatJSON)
	child.Info("heartbeat ok")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("child did not follow root format: %q", buf.String())
	}
	if rec["logger"] != "safety" {
		t.Errorf("logger = %v", rec["logger"])
	}

	child.SetLevel(ERROR)
	if root.GetLevel() != DEBUG {
		t.Error("child level change leaked into root")
	}
}

func TestEntryIsImmutable(t *testing.T) {
	l, buf := newTestLogger("x")
	l.SetTimeFormat("T")

	base := l.WithField("axis", 0)
	base.WithField("phase", 3).Info("homing")
	base.Info("done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasSuffix(lines[0], "homing axis=0 phase=3") {
		t.Errorf("first line = %q", lines[0])
	}
	if strings.Contains(lines[1], "phase") {
		t.Errorf("field leaked into parent entry: %q", lines[1])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		" warn ":  WARN,
		"warning": WARN,
		"Error":   ERROR,
		"loud":    INFO,
		"":        INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if LogLevel(9).String() != "UNKNOWN" {
		t.Error("out of range level has a name")
	}
}

func TestDefaultLogger(t *testing.T) {
	prev := defaultLogger.Load()
	defer SetDefaultLogger(prev)

	root, buf := newTestLogger("emcmot")
	SetDefaultLogger(root)
	GetLogger("usrmot").Warn("slow echo")
	Error("package %s", "level")

	out := buf.String()
	if !strings.Contains(out, "usrmot: slow echo") {
		t.Errorf("component logger output = %q", out)
	}
	if !strings.Contains(out, "emcmot: package level") {
		t.Errorf("package level output = %q", out)
	}
}
