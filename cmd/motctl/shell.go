// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/shmem"
	"emcmot-go/pkg/usrmot"
)

// errQuit ends the shell.
var errQuit = errors.New(errors.ErrRuntime, "quit")

// shell runs operator commands against one controller.
type shell struct {
	client *usrmot.Client
	out    io.Writer
	tpl    *templates
	cmds   map[string]command
}

type command struct {
	usage string
	args  int // minimum argument count
	run   func(sh *shell, args []string) error
}

func newShell(client *usrmot.Client, out io.Writer) (*shell, error) {
	tpl, err := newTemplates()
	if err != nil {
		return nil, err
	}
	return &shell{client: client, out: out, tpl: tpl, cmds: commands()}, nil
}

func simple(fn func(*usrmot.Client) error) func(*shell, []string) error {
	return func(sh *shell, _ []string) error { return fn(sh.client) }
}

func commands() map[string]command {
	return map[string]command{
		"enable":   {"enable", 0, simple((*usrmot.Client).Enable)},
		"disable":  {"disable", 0, simple((*usrmot.Client).Disable)},
		"free":     {"free", 0, simple((*usrmot.Client).Free)},
		"coord":    {"coord", 0, simple((*usrmot.Client).Coord)},
		"teleop":   {"teleop", 0, simple((*usrmot.Client).Teleop)},
		"pause":    {"pause", 0, simple((*usrmot.Client).Pause)},
		"resume":   {"resume", 0, simple((*usrmot.Client).Resume)},
		"step":     {"step", 0, simple((*usrmot.Client).Step)},
		"abort":    {"abort [axis]", 0, cmdAbort},
		"home":     {"home <axis>", 1, axisCmd((*usrmot.Client).Home)},
		"activate": {"activate <axis>", 1, axisCmd((*usrmot.Client).ActivateAxis)},
		"jog":      {"jog <axis> <vel>", 2, cmdJog},
		"jogincr":  {"jogincr <axis> <vel> <offset>", 3, cmdJogIncr},
		"jogabs":   {"jogabs <axis> <vel> <pos>", 3, cmdJogAbs},
		"line":     {"line <x> <y> <z> [id]", 3, cmdLine},
		"scale":    {"scale <factor>", 1, cmdScale},
		"override": {"override on|off", 1, cmdOverride},
		"status":   {"status [template]", 0, cmdStatus},
		"errors":   {"errors", 0, cmdErrors},
		"loadcomp": {"loadcomp <axis> <file>", 2, cmdLoadComp},
		"alter":    {"alter <axis> [value]", 1, cmdAlter},
		"comp":     {"comp <axis>", 1, cmdPrintComp},
		"log":      {"log open <type> <size> [axis] [skip] | log start|stop|close", 1, cmdLog},
		"dumplog":  {"dumplog [file]", 0, cmdDumpLog},
		"stats":    {"stats", 0, cmdStats},
		"help":     {"help", 0, cmdHelp},
		"quit":     {"quit", 0, func(*shell, []string) error { return errQuit }},
	}
}

// Exec runs one command line. Blank lines and '#' comments are ignored.
func (sh *shell) Exec(line string) error {
	words, err := shlex.Split(line)
	if err != nil {
		return errors.Wrap(err, errors.ErrCommInvalid, "parse")
	}
	if len(words) == 0 {
		return nil
	}
	name, args := strings.ToLower(words[0]), words[1:]
	cmd, ok := sh.cmds[name]
	if !ok {
		return errors.New(errors.ErrCommInvalid, fmt.Sprintf("unknown command %q, try help", name))
	}
	if len(args) < cmd.args {
		return errors.New(errors.ErrCommInvalid, "usage: "+cmd.usage)
	}
	return cmd.run(sh, args)
}

// Run executes lines from r until EOF or quit, reporting errors to the
// output and carrying on.
func (sh *shell) Run(r io.Reader, prompt bool) error {
	sc := bufio.NewScanner(r)
	for {
		if prompt {
			fmt.Fprint(sh.out, "motctl> ")
		}
		if !sc.Scan() {
			return sc.Err()
		}
		err := sh.Exec(sc.Text())
		if err == errQuit {
			return nil
		}
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

func parseInt(s, what string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New(errors.ErrCommInvalid, fmt.Sprintf("bad %s %q", what, s))
	}
	return v, nil
}

func parseFloats(args []string) ([]float64, error) {
	vals := make([]float64, len(args))
	for i, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.New(errors.ErrCommInvalid, fmt.Sprintf("bad number %q", s))
		}
		vals[i] = v
	}
	return vals, nil
}

func axisCmd(fn func(*usrmot.Client, int) error) func(*shell, []string) error {
	return func(sh *shell, args []string) error {
		axis, err := parseInt(args[0], "axis")
		if err != nil {
			return err
		}
		return fn(sh.client, axis)
	}
}

func cmdAbort(sh *shell, args []string) error {
	axis := 0
	if len(args) > 0 {
		var err error
		if axis, err = parseInt(args[0], "axis"); err != nil {
			return err
		}
	}
	return sh.client.Abort(axis)
}

// axisAndFloats parses "<axis> <f>..." argument lists.
func axisAndFloats(args []string) (int, []float64, error) {
	axis, err := parseInt(args[0], "axis")
	if err != nil {
		return 0, nil, err
	}
	vals, err := parseFloats(args[1:])
	return axis, vals, err
}

func cmdJog(sh *shell, args []string) error {
	axis, v, err := axisAndFloats(args[:2])
	if err != nil {
		return err
	}
	return sh.client.JogCont(axis, v[0])
}

func cmdJogIncr(sh *shell, args []string) error {
	axis, v, err := axisAndFloats(args[:3])
	if err != nil {
		return err
	}
	return sh.client.JogIncr(axis, v[0], v[1])
}

func cmdJogAbs(sh *shell, args []string) error {
	axis, v, err := axisAndFloats(args[:3])
	if err != nil {
		return err
	}
	return sh.client.JogAbs(axis, v[0], v[1])
}

func cmdLine(sh *shell, args []string) error {
	v, err := parseFloats(args[:3])
	if err != nil {
		return err
	}
	id := 0
	if len(args) > 3 {
		if id, err = parseInt(args[3], "id"); err != nil {
			return err
		}
	}
	var pos kinematics.Pose
	for i, x := range v {
		pos.SetAxis(i, x)
	}
	return sh.client.SetLine(pos, int32(id))
}

func cmdScale(sh *shell, args []string) error {
	v, err := parseFloats(args[:1])
	if err != nil {
		return err
	}
	return sh.client.Scale(v[0])
}

func cmdOverride(sh *shell, args []string) error {
	switch strings.ToLower(args[0]) {
	case "on":
		return sh.client.OverrideLimits(true)
	case "off":
		return sh.client.OverrideLimits(false)
	}
	return errors.New(errors.ErrCommInvalid, "usage: override on|off")
}

func (sh *shell) axes() int {
	var cfg shmem.Config
	if sh.client.ReadConfig(&cfg) == nil && cfg.NumAxes > 0 {
		return int(cfg.NumAxes)
	}
	return shmem.MaxJoints
}

func cmdStatus(sh *shell, args []string) error {
	var st shmem.Status
	if err := sh.client.ReadStatus(&st); err != nil {
		return err
	}
	tpl := sh.tpl.status
	if len(args) > 0 {
		var err error
		if tpl, err = sh.tpl.FromString(strings.Join(args, " ") + "\n"); err != nil {
			return err
		}
	}
	return render(sh.out, tpl, statusContext(&st, sh.axes()))
}

func cmdErrors(sh *shell, _ []string) error {
	for {
		msg, ok, err := sh.client.ErrorGet()
		if err != nil || !ok {
			return err
		}
		fmt.Fprintln(sh.out, msg)
	}
}

func cmdLoadComp(sh *shell, args []string) error {
	axis, err := parseInt(args[0], "axis")
	if err != nil {
		return err
	}
	return sh.client.LoadCompFile(axis, args[1])
}

func cmdAlter(sh *shell, args []string) error {
	axis, err := parseInt(args[0], "axis")
	if err != nil {
		return err
	}
	if len(args) == 1 {
		v, err := sh.client.QueryAlter(axis)
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "%f\n", v)
		return nil
	}
	v, err := parseFloats(args[1:2])
	if err != nil {
		return err
	}
	return sh.client.SetAlter(axis, v[0])
}

func cmdPrintComp(sh *shell, args []string) error {
	axis, err := parseInt(args[0], "axis")
	if err != nil {
		return err
	}
	return sh.client.PrintComp(axis, sh.out)
}

func cmdLog(sh *shell, args []string) error {
	switch strings.ToLower(args[0]) {
	case "start":
		return sh.client.StartLog()
	case "stop":
		return sh.client.StopLog()
	case "close":
		return sh.client.CloseLog()
	case "open":
	default:
		return errors.New(errors.ErrCommInvalid, "usage: "+sh.cmds["log"].usage)
	}
	if len(args) < 3 {
		return errors.New(errors.ErrCommInvalid, "usage: "+sh.cmds["log"].usage)
	}
	typ, ok := shmem.ParseLogType(args[1])
	if !ok {
		return errors.New(errors.ErrCommInvalid, fmt.Sprintf("unknown log type %q", args[1]))
	}
	opts := usrmot.LogOptions{Type: typ}
	ints := make([]int, len(args)-2)
	for i, s := range args[2:] {
		v, err := parseInt(s, "log argument")
		if err != nil {
			return err
		}
		ints[i] = v
	}
	opts.Size = ints[0]
	if len(ints) > 1 {
		opts.Axis = ints[1]
	}
	if len(ints) > 2 {
		opts.Skip = ints[2]
	}
	return sh.client.OpenLog(opts)
}

func cmdDumpLog(sh *shell, args []string) error {
	if len(args) > 0 {
		return sh.client.DumpLogFile(args[0], true)
	}
	return sh.client.DumpLog(sh.out, true)
}

func cmdStats(sh *shell, _ []string) error {
	s := sh.client.Stats()
	fmt.Fprintf(sh.out, "commands %d rejected %d failed %d timeouts %d split_reads %d\n",
		s.Commands, s.Rejected, s.Failed, s.Timeouts, s.SplitReads)
	return nil
}

func cmdHelp(sh *shell, _ []string) error {
	names := make([]string, 0, len(sh.cmds))
	for name := range sh.cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(sh.out, "  %s\n", sh.cmds[name].usage)
	}
	return nil
}
