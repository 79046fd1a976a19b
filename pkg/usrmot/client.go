// Supervisor side of the shared memory interface
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package usrmot is the non-real-time client of the motion controller.
// It writes commands into the single command slot and waits for their
// echo, and takes consistent snapshots of the blocks the controller
// publishes.
//
// Every operation returns nil or a *errors.MotionError whose code is one
// of ErrCommConnect, ErrCommTimeout, ErrCommCommand, ErrCommSplitRead or
// ErrCommInvalid.
package usrmot

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/log"
	"emcmot-go/pkg/shmem"
)

// readRetries bounds the attempts to take a consistent snapshot.
const readRetries = 3

// Options configure a Client.
type Options struct {
	// Timeout is how long to wait for a command echo (COMM_TIMEOUT).
	Timeout time.Duration
	// Wait is the status polling interval (COMM_WAIT).
	Wait time.Duration
	// Sleep is called between polls. Defaults to time.Sleep.
	Sleep func(time.Duration)

	Logger *log.Logger
}

func (o *Options) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 10 * time.Millisecond
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Logger == nil {
		o.Logger = log.GetLogger("usrmot")
	}
}

// Stats counts protocol events since the client was created.
type Stats struct {
	Commands   uint64
	Rejected   uint64
	Failed     uint64
	Timeouts   uint64
	SplitReads uint64
}

// Client talks to one controller through its shared region.
type Client struct {
	region *shmem.Region
	shm    *shmem.Shmem
	opts   Options
	log    *log.Logger

	// serialises command writers within this process
	mu sync.Mutex
	// the error ring has a single consumer
	errMu sync.Mutex

	commands   atomic.Uint64
	rejected   atomic.Uint64
	failed     atomic.Uint64
	timeouts   atomic.Uint64
	splitReads atomic.Uint64
}

// Connect attaches to the region at path.
func Connect(path string, opts Options) (*Client, error) {
	region, err := shmem.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCommConnect, "attach "+path)
	}
	c := New(region.Shmem(), opts)
	c.region = region
	return c, nil
}

// New returns a client for a region already mapped in this process.
func New(shm *shmem.Shmem, opts Options) *Client {
	opts.setDefaults()
	return &Client{
		shm:  shm,
		opts: opts,
		log:  opts.Logger,
	}
}

// Close detaches from the region. Later calls fail with ErrCommConnect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shm = nil
	if c.region == nil {
		return nil
	}
	err := c.region.Close()
	c.region = nil
	return err
}

// InstanceID identifies the controller instance that created the region.
func (c *Client) InstanceID() string {
	if c.region == nil {
		return ""
	}
	return c.region.InstanceID()
}

// Stats returns the protocol counters.
func (c *Client) Stats() Stats {
	return Stats{
		Commands:   c.commands.Load(),
		Rejected:   c.rejected.Load(),
		Failed:     c.failed.Load(),
		Timeouts:   c.timeouts.Load(),
		SplitReads: c.splitReads.Load(),
	}
}

func (c *Client) mem(what string) (*shmem.Shmem, error) {
	if c.shm == nil {
		return nil, errors.CommError(errors.ErrCommConnect, what, "not connected")
	}
	return c.shm, nil
}

// snapshot copies src into dst, retrying a torn copy.
func snapshot[T any, P shmem.Block[T]](c *Client, dst, src P, what string) error {
	for i := 0; i < readRetries; i++ {
		if shmem.Snapshot(dst, src) {
			return nil
		}
		runtime.Gosched()
	}
	c.splitReads.Add(1)
	return errors.CommError(errors.ErrCommSplitRead, what,
		fmt.Sprintf("inconsistent after %d reads", readRetries))
}

// ReadStatus copies the latest status into s.
func (c *Client) ReadStatus(s *shmem.Status) error {
	shm, err := c.mem("status")
	if err != nil {
		return err
	}
	return snapshot(c, s, &shm.Status, "status")
}

// ReadConfig copies the latest configuration into cfg.
func (c *Client) ReadConfig(cfg *shmem.Config) error {
	shm, err := c.mem("config")
	if err != nil {
		return err
	}
	return snapshot(c, cfg, &shm.Config, "config")
}

// ReadDebug copies the latest debug block into d.
func (c *Client) ReadDebug(d *shmem.Debug) error {
	shm, err := c.mem("debug")
	if err != nil {
		return err
	}
	return snapshot(c, d, &shm.Debug, "debug")
}

// ErrorGet removes the oldest message from the error ring. ok is false
// when the ring is empty.
func (c *Client) ErrorGet() (msg string, ok bool, err error) {
	shm, err := c.mem("error")
	if err != nil {
		return "", false, err
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	msg, ok = shm.Errors.Get()
	return msg, ok, nil
}

// WriteCommand submits cmd and waits until the controller echoes it.
//
// Only one command may be outstanding. If the slot still holds a
// command the controller has not echoed, for instance after an earlier
// timeout, the write is refused with ErrCommCommand and the slot is
// left untouched. A command the controller processes but refuses also
// yields ErrCommCommand, with the result in the error context under
// "status".
func (c *Client) WriteCommand(cmd shmem.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := cmd.Code.String()
	shm, err := c.mem(name)
	if err != nil {
		return err
	}

	var st shmem.Status
	if err := snapshot(c, &st, &shm.Status, name); err != nil {
		return err
	}
	var slot shmem.Command
	if err := snapshot(c, &slot, &shm.Command, name); err != nil {
		return err
	}
	if slot.CommandNum != st.CommandNumEcho {
		c.rejected.Add(1)
		return errors.CommError(errors.ErrCommCommand, name,
			fmt.Sprintf("command %d (%s) not yet echoed", slot.CommandNum, slot.Code))
	}

	num := slot.CommandNum + 1
	cmd.CommandNum = num
	shmem.Publish(&shm.Command, &cmd)
	c.commands.Add(1)

	deadline := time.Now().Add(c.opts.Timeout)
	for {
		if snapshot(c, &st, &shm.Status, name) == nil && st.CommandNumEcho == num {
			if st.CommandStatus != shmem.StatusOK {
				c.failed.Add(1)
				return errors.CommError(errors.ErrCommCommand, name, st.CommandStatus.String()).
					SetContext("status", st.CommandStatus)
			}
			return nil
		}
		if !time.Now().Before(deadline) {
			c.timeouts.Add(1)
			c.log.WithFields(log.Fields{"command": name, "num": num}).Warn("command not echoed")
			return errors.CommError(errors.ErrCommTimeout, name,
				fmt.Sprintf("not echoed within %v", c.opts.Timeout))
		}
		c.opts.Sleep(c.opts.Wait)
	}
}

// CommandStatusOf extracts the controller's result from an error
// returned by WriteCommand.
func CommandStatusOf(err error) (shmem.CommandStatus, bool) {
	var me *errors.MotionError
	for err != nil {
		if !stderrors.As(err, &me) {
			return 0, false
		}
		if s, ok := me.Context["status"].(shmem.CommandStatus); ok {
			return s, true
		}
		err = me.Err
	}
	return 0, false
}

func checkAxis(axis int, what string) error {
	if axis < 0 || axis >= shmem.MaxJoints {
		return errors.CommError(errors.ErrCommInvalid, what, fmt.Sprintf("axis %d out of range", axis)).
			SetAxis(axis)
	}
	return nil
}
