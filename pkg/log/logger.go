// Structured logging for the motion controller
//
// Loggers derived from one root (GetLogger, WithPrefix) share its output
// settings, so the daemon configures the writer and format once and
// every component follows. Lines are either text:
//
//	2026-01-02 15:04:05.000 INFO  usrmot: command not echoed command=ENABLE num=7
//
// or one JSON object per line.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LogLevel is the severity of a message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l LogLevel) String() string {
	if l < DEBUG || l > ERROR {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a level name to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARNING" {
		return WARN
	}
	for i, name := range levelNames {
		if s == name {
			return LogLevel(i)
		}
	}
	return INFO
}

// OutputFormat selects text or JSON lines.
type OutputFormat int

const (
	FormatText OutputFormat = iota
	FormatJSON
)

// Fields are key/value pairs attached to a message.
type Fields map[string]interface{}

const ansiReset = "\x1b[0m"

var levelColors = [...]string{
	DEBUG: "\x1b[36m",
	INFO:  "\x1b[32m",
	WARN:  "\x1b[33m",
	ERROR: "\x1b[31m",
}

// sink is the output shared by a root logger and everything derived
// from it.
type sink struct {
	mu         sync.Mutex
	w          io.Writer
	timeFormat string
	colorize   bool
	format     OutputFormat
	caller     bool
}

// Logger writes messages for one component.
type Logger struct {
	prefix string
	level  atomic.Int32
	out    *sink
	fields Fields
}

// Entry is a message under construction with its fields.
type Entry struct {
	logger *Logger
	fields Fields
}

// New creates a root logger writing text to stderr at INFO.
func New(prefix string) *Logger {
	l := &Logger{
		prefix: prefix,
		out: &sink{
			w:          os.Stderr,
			timeFormat: "2006-01-02 15:04:05.000",
			colorize:   os.Getenv("NO_COLOR") == "",
		},
	}
	l.level.Store(int32(INFO))
	return l
}

// SetLevel sets the minimum level this logger writes.
func (l *Logger) SetLevel(level LogLevel) { l.level.Store(int32(level)) }

func (l *Logger) GetLevel() LogLevel { return LogLevel(l.level.Load()) }

func (l *Logger) enabled(level LogLevel) bool { return level >= l.GetLevel() }

// SetWriter redirects the output of l and every logger sharing it.
func (l *Logger) SetWriter(w io.Writer) {
	l.out.mu.Lock()
	l.out.w = w
	l.out.mu.Unlock()
}

func (l *Logger) SetTimeFormat(format string) {
	l.out.mu.Lock()
	l.out.timeFormat = format
	l.out.mu.Unlock()
}

// SetColorize enables ANSI colors on the prefix in text output.
func (l *Logger) SetColorize(enable bool) {
	l.out.mu.Lock()
	l.out.colorize = enable
	l.out.mu.Unlock()
}

func (l *Logger) SetFormat(format OutputFormat) {
	l.out.mu.Lock()
	l.out.format = format
	l.out.mu.Unlock()
}

// SetCaller adds the file:line of the logging call to each message.
func (l *Logger) SetCaller(enable bool) {
	l.out.mu.Lock()
	l.out.caller = enable
	l.out.mu.Unlock()
}

// WithPrefix returns a logger for another component sharing l's output,
// level and fields.
func (l *Logger) WithPrefix(prefix string) *Logger {
	c := &Logger{prefix: prefix, out: l.out, fields: l.fields}
	c.level.Store(l.level.Load())
	return c
}

func (l *Logger) WithField(key string, value interface{}) *Entry {
	return &Entry{logger: l, fields: Fields{key: value}}
}

func (l *Logger) WithFields(fields Fields) *Entry {
	return (&Entry{logger: l}).WithFields(fields)
}

func (l *Logger) WithError(err error) *Entry {
	return l.WithField("error", errString(err))
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.emit(DEBUG, sprintf(msg, args), nil) }
func (l *Logger) Info(msg string, args ...interface{})  { l.emit(INFO, sprintf(msg, args), nil) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.emit(WARN, sprintf(msg, args), nil) }
func (l *Logger) Error(msg string, args ...interface{}) { l.emit(ERROR, sprintf(msg, args), nil) }

// Errorf is Error with an explicit format.
func (l *Logger) Errorf(msg string, args ...interface{}) { l.emit(ERROR, sprintf(msg, args), nil) }

func sprintf(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// emit must be called directly from the exported logging functions so
// the caller lookup lands on user code.
func (l *Logger) emit(level LogLevel, msg string, fields Fields) {
	if !l.enabled(level) {
		return
	}
	now := time.Now()

	s := l.out
	s.mu.Lock()
	defer s.mu.Unlock()

	var caller string
	if s.caller {
		if _, file, line, ok := runtime.Caller(2); ok {
			caller = filepath.Base(file) + ":" + strconv.Itoa(line)
		} else {
			caller = "unknown:0"
		}
	}
	merged := l.fields
	if len(fields) > 0 {
		merged = mergeFields(l.fields, fields)
	}

	var line string
	if s.format == FormatJSON {
		line = l.jsonLine(now, level, msg, caller, merged)
	} else {
		line = l.textLine(now, level, msg, caller, merged)
	}
	io.WriteString(s.w, line)
}

func mergeFields(base, extra Fields) Fields {
	out := make(Fields, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (l *Logger) textLine(now time.Time, level LogLevel, msg, caller string, fields Fields) string {
	s := l.out
	var sb strings.Builder
	sb.WriteString(now.Format(s.timeFormat))
	fmt.Fprintf(&sb, " %-5s ", level)
	if s.colorize {
		sb.WriteString(levelColors[level])
		sb.WriteString(l.prefix)
		sb.WriteString(ansiReset)
	} else {
		sb.WriteString(l.prefix)
	}
	sb.WriteString(": ")
	sb.WriteString(msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteByte(' ')
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(textValue(fields[k]))
	}
	if caller != "" {
		sb.WriteString(" caller=")
		sb.WriteString(caller)
	}
	sb.WriteByte('\n')
	return sb.String()
}

// textValue quotes values that would not read back as a single token.
func textValue(v interface{}) string {
	s := fmt.Sprint(v)
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

type jsonRecord struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Logger  string `json:"logger"`
	Message string `json:"msg"`
	Caller  string `json:"caller,omitempty"`
	Fields  Fields `json:"fields,omitempty"`
}

func (l *Logger) jsonLine(now time.Time, level LogLevel, msg, caller string, fields Fields) string {
	data, err := json.Marshal(jsonRecord{
		Time:    now.Format(time.RFC3339Nano),
		Level:   level.String(),
		Logger:  l.prefix,
		Message: msg,
		Caller:  caller,
		Fields:  fields,
	})
	if err != nil {
		return fmt.Sprintf(`{"level":"ERROR","msg":%q}`+"\n", "unencodable log fields: "+err.Error())
	}
	return string(data) + "\n"
}

// WithField returns a copy of e with key set.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	return e.WithFields(Fields{key: value})
}

// WithFields returns a copy of e with fields added.
func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{logger: e.logger, fields: mergeFields(e.fields, fields)}
}

func (e *Entry) WithError(err error) *Entry {
	return e.WithField("error", errString(err))
}

func (e *Entry) Debug(msg string) { e.logger.emit(DEBUG, msg, e.fields) }
func (e *Entry) Info(msg string)  { e.logger.emit(INFO, msg, e.fields) }
func (e *Entry) Warn(msg string)  { e.logger.emit(WARN, msg, e.fields) }
func (e *Entry) Error(msg string) { e.logger.emit(ERROR, msg, e.fields) }

func (e *Entry) Debugf(format string, args ...interface{}) {
	e.logger.emit(DEBUG, fmt.Sprintf(format, args...), e.fields)
}

func (e *Entry) Infof(format string, args ...interface{}) {
	e.logger.emit(INFO, fmt.Sprintf(format, args...), e.fields)
}

func (e *Entry) Warnf(format string, args ...interface{}) {
	e.logger.emit(WARN, fmt.Sprintf(format, args...), e.fields)
}

func (e *Entry) Errorf(format string, args ...interface{}) {
	e.logger.emit(ERROR, fmt.Sprintf(format, args...), e.fields)
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	root := New("emcmot")
	ConfigureFromEnv(root)
	defaultLogger.Store(root)
}

// SetDefaultLogger replaces the root used by GetLogger and the package
// level functions.
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

// GetLogger returns a component logger derived from the default root.
func GetLogger(prefix string) *Logger {
	return defaultLogger.Load().WithPrefix(prefix)
}

func Debug(msg string, args ...interface{}) { defaultLogger.Load().emit(DEBUG, sprintf(msg, args), nil) }
func Info(msg string, args ...interface{})  { defaultLogger.Load().emit(INFO, sprintf(msg, args), nil) }
func Warn(msg string, args ...interface{})  { defaultLogger.Load().emit(WARN, sprintf(msg, args), nil) }
func Error(msg string, args ...interface{}) { defaultLogger.Load().emit(ERROR, sprintf(msg, args), nil) }

func Errorf(msg string, args ...interface{}) {
	defaultLogger.Load().emit(ERROR, sprintf(msg, args), nil)
}

// ConfigureFromEnv applies EMCMOT_LOG_LEVEL (debug|info|warn|error),
// EMCMOT_LOG_FORMAT (text|json), EMCMOT_LOG_CALLER (any value) and
// NO_COLOR to l.
func ConfigureFromEnv(l *Logger) {
	if v := os.Getenv("EMCMOT_LOG_LEVEL"); v != "" {
		l.SetLevel(ParseLevel(v))
	}
	switch strings.ToLower(os.Getenv("EMCMOT_LOG_FORMAT")) {
	case "json":
		l.SetFormat(FormatJSON)
	case "text":
		l.SetFormat(FormatText)
	}
	if os.Getenv("EMCMOT_LOG_CALLER") != "" {
		l.SetCaller(true)
	}
	if os.Getenv("NO_COLOR") != "" {
		l.SetColorize(false)
	}
}
