// Size based log rotation for the daemon log file
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package log

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// RotationConfig configures a RotatingFile.
type RotationConfig struct {
	// Filename is the active log file. Backups are Filename.1 (newest)
	// through Filename.N, with a .gz suffix when compressed.
	Filename string

	// MaxBytes is the size that triggers rotation. Default 10 MiB.
	MaxBytes int64

	// Backups is the number of rotated files kept. Default 5.
	Backups int

	// Compress gzips each backup as it is rotated out.
	Compress bool
}

// RotatingFile is an io.Writer that rotates the file it writes to once
// it grows past MaxBytes.
type RotatingFile struct {
	mu   sync.Mutex
	cfg  RotationConfig
	file *os.File
	size int64
}

// OpenRotatingFile opens (appending to) cfg.Filename.
func OpenRotatingFile(cfg RotationConfig) (*RotatingFile, error) {
	if cfg.Filename == "" {
		return nil, fmt.Errorf("log filename is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.Backups <= 0 {
		cfg.Backups = 5
	}
	w := &RotatingFile{cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingFile) open() error {
	if err := os.MkdirAll(filepath.Dir(w.cfg.Filename), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(w.cfg.Filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// Write appends p, rotating first when p would push the file past the
// size limit. A single oversized write still goes to one file.
func (w *RotatingFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.size > 0 && w.size+int64(len(p)) > w.cfg.MaxBytes {
		if err := w.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log file: %w", err)
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *RotatingFile) backup(i int) string {
	name := fmt.Sprintf("%s.%d", w.cfg.Filename, i)
	if w.cfg.Compress {
		name += ".gz"
	}
	return name
}

// rotate shifts Filename.i to Filename.i+1, dropping the oldest, and
// starts a fresh file.
func (w *RotatingFile) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	os.Remove(w.backup(w.cfg.Backups))
	for i := w.cfg.Backups - 1; i >= 1; i-- {
		if _, err := os.Stat(w.backup(i)); err == nil {
			if err := os.Rename(w.backup(i), w.backup(i+1)); err != nil {
				return err
			}
		}
	}

	var err error
	if w.cfg.Compress {
		err = gzipFile(w.cfg.Filename, w.backup(1))
	} else {
		err = os.Rename(w.cfg.Filename, w.backup(1))
	}
	if err != nil {
		// keep logging to the old file rather than losing output
		if openErr := w.open(); openErr != nil {
			return openErr
		}
		return err
	}
	return w.open()
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Size returns the size of the active file.
func (w *RotatingFile) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Close closes the active file.
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
