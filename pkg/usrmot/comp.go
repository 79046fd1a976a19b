// Compensation tables
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package usrmot

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/shmem"
)

// LoadCompFile loads the compensation table of axis from path.
func (c *Client) LoadCompFile(axis int, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, errors.ErrCompFile, "open "+path).SetAxis(axis)
	}
	defer f.Close()
	return c.LoadComp(axis, f)
}

// LoadComp reads "nominal forward reverse" triplets, one per line, and
// installs them as the compensation table of axis. Reading stops at the
// first line that is not a triplet or when the table is full. Blank
// lines and lines starting with '#' are skipped. The table needs at
// least two points with increasing nominal positions. The alter offset
// is preserved.
func (c *Client) LoadComp(axis int, r io.Reader) error {
	if err := checkAxis(axis, "load comp"); err != nil {
		return err
	}
	shm, err := c.mem("load comp")
	if err != nil {
		return err
	}

	table := shm.Comp[axis]
	table.Nominal = [shmem.CompSize]float64{}
	table.Forward = [shmem.CompSize]float64{}
	table.Reverse = [shmem.CompSize]float64{}

	total := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() && total < shmem.CompSize {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		vals, ok := parseTriplet(line)
		if !ok {
			break
		}
		table.Nominal[total] = vals[0]
		table.Forward[total] = vals[1]
		table.Reverse[total] = vals[2]
		total++
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCompFile, "read").SetAxis(axis)
	}

	if total < 2 {
		return errors.New(errors.ErrCompFile, "compensation table has too few points").SetAxis(axis)
	}
	table.AvgInt = (table.Nominal[total-1] - table.Nominal[0]) / float64(total-1)
	if table.AvgInt <= 0 {
		return errors.New(errors.ErrCompFile, "compensation table has too few distinct points").SetAxis(axis)
	}
	table.Total = int32(total)

	shmem.Publish(&shm.Comp[axis], &table)
	return nil
}

func parseTriplet(line string) ([3]float64, bool) {
	var vals [3]float64
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return vals, false
	}
	for i := range vals {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return vals, false
		}
		vals[i] = v
	}
	return vals, true
}

// SetAlter sets the offset added to the nominal position of axis before
// the table lookup.
func (c *Client) SetAlter(axis int, alter float64) error {
	if err := checkAxis(axis, "alter"); err != nil {
		return err
	}
	shm, err := c.mem("alter")
	if err != nil {
		return err
	}
	table := shm.Comp[axis]
	table.Alter = alter
	shmem.Publish(&shm.Comp[axis], &table)
	return nil
}

// QueryAlter returns the alter offset of axis.
func (c *Client) QueryAlter(axis int) (float64, error) {
	if err := checkAxis(axis, "alter"); err != nil {
		return 0, err
	}
	shm, err := c.mem("alter")
	if err != nil {
		return 0, err
	}
	return shm.Comp[axis].Alter, nil
}

// PrintComp writes the compensation table of axis to w.
func (c *Client) PrintComp(axis int, w io.Writer) error {
	if err := checkAxis(axis, "print comp"); err != nil {
		return err
	}
	shm, err := c.mem("print comp")
	if err != nil {
		return err
	}
	t := &shm.Comp[axis]
	fmt.Fprintf(w, "total:  %d\n", t.Total)
	fmt.Fprintf(w, "avgint: %f\n", t.AvgInt)
	fmt.Fprintf(w, "alter:  %f\n", t.Alter)
	for i := 0; i < int(t.Total) && i < shmem.CompSize; i++ {
		fmt.Fprintf(w, "%f\t%f\t%f\n", t.Nominal[i], t.Forward[i], t.Reverse[i])
	}
	return nil
}
