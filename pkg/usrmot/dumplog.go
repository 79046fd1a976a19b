// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package usrmot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/pool"
	"emcmot-go/pkg/shmem"
)

// ReadLog returns a consistent copy of the data log, oldest sample
// first.
func (c *Client) ReadLog() (shmem.LogType, []shmem.LogItem, error) {
	shm, err := c.mem("log")
	if err != nil {
		return shmem.LogNone, nil, err
	}
	buf := new(shmem.LogBuffer)
	if err := snapshot(c, buf, &shm.Log, "log"); err != nil {
		return shmem.LogNone, nil, err
	}
	if buf.Size <= 0 {
		return buf.Type, nil, nil
	}
	return buf.Type, buf.Ordered(), nil
}

// logColumns names the columns written for each log type after time.
func logColumns(t shmem.LogType, axes int) []string {
	switch t {
	case shmem.LogAxisPos:
		return []string{"input", "output"}
	case shmem.LogAxisVel:
		return []string{"cmd_vel", "act_vel"}
	case shmem.LogPosVoltage:
		return []string{"pos", "voltage"}
	case shmem.LogCmd:
		return []string{"command", "command_num"}
	case shmem.LogTrajPos, shmem.LogTrajVel, shmem.LogTrajAcc:
		return []string{"x", "y", "z", "mag"}
	case shmem.LogAllInpos, shmem.LogAllOutpos, shmem.LogAllFerror:
		cols := make([]string, axes)
		for i := range cols {
			cols[i] = fmt.Sprintf("axis%d", i)
		}
		return cols
	}
	return nil
}

// logRow appends the columns of it to row.
func logRow(row []float64, t shmem.LogType, it *shmem.LogItem, axes int) []float64 {
	switch t {
	case shmem.LogCmd:
		return append(row, float64(it.Command), float64(it.CommandNum))
	case shmem.LogTrajPos, shmem.LogTrajVel, shmem.LogTrajAcc:
		return append(row, it.Value[0], it.Value[1], it.Value[2], it.Extra[0])
	case shmem.LogAllInpos, shmem.LogAllOutpos, shmem.LogAllFerror:
		return append(row, it.Value[:axes]...)
	}
	return append(row, it.Value[:2]...)
}

// DumpLog writes the data log to w as whitespace separated columns,
// with time relative to the first sample. With header set, comment
// lines naming the log type and columns come first.
func (c *Client) DumpLog(w io.Writer, header bool) error {
	typ, items, err := c.ReadLog()
	if err != nil {
		return err
	}
	axes := shmem.MaxJoints
	var cfg shmem.Config
	if c.ReadConfig(&cfg) == nil && cfg.NumAxes > 0 && int(cfg.NumAxes) <= shmem.MaxJoints {
		axes = int(cfg.NumAxes)
	}

	bw := bufio.NewWriter(w)
	if header {
		fmt.Fprintf(bw, "# emcmot data log\n")
		fmt.Fprintf(bw, "# type: %s\n", typ)
		fmt.Fprintf(bw, "# points: %d\n", len(items))
		fmt.Fprintf(bw, "# columns: time %s\n", strings.Join(logColumns(typ, axes), " "))
	}
	line := pool.GetByteBuffer()
	defer pool.PutByteBuffer(line)
	row := pool.GetFloat64Slice(0)
	defer pool.PutFloat64Slice(row)

	var start float64
	for i := range items {
		it := &items[i]
		if i == 0 {
			start = it.Time
		}
		line.Reset()
		line.AppendFloat(it.Time-start, 6)
		*row = logRow((*row)[:0], typ, it, axes)
		for _, v := range *row {
			line.WriteByte('\t')
			line.AppendFloat(v, 6)
		}
		line.WriteByte('\n')
		bw.Write(line.Bytes())
	}
	return bw.Flush()
}

// DumpLogFile writes the data log to path.
func (c *Client) DumpLogFile(path string, header bool) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrRuntime, "create "+path)
	}
	if err := c.DumpLog(f, header); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
