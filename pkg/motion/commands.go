// Command slot processing
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package motion

import (
	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/shmem"
)

var errInvalidCycleTime = errors.New(errors.ErrRuntime, "cycle time must be positive")

type handlerFunc func(c *Controller, cmd *shmem.Command) shmem.CommandStatus

type handlerEntry struct {
	fn handlerFunc
	// config handlers alter persistent tunables and bump ConfigNum on
	// success
	config bool
}

var handlers = map[shmem.CommandCode]handlerEntry{
	shmem.CmdFree:              {fn: (*Controller).cmdFree},
	shmem.CmdCoord:             {fn: (*Controller).cmdCoord},
	shmem.CmdTeleop:            {fn: (*Controller).cmdTeleop},
	shmem.CmdSetNumAxes:        {fn: (*Controller).cmdSetNumAxes, config: true},
	shmem.CmdSetWorldHome:      {fn: (*Controller).cmdSetWorldHome},
	shmem.CmdSetJointHome:      {fn: (*Controller).cmdSetJointHome},
	shmem.CmdSetHomeOffset:     {fn: (*Controller).cmdSetHomeOffset, config: true},
	shmem.CmdOverrideLimits:    {fn: (*Controller).cmdOverrideLimits},
	shmem.CmdSetTrajCycleTime:  {fn: (*Controller).cmdSetTrajCycleTime, config: true},
	shmem.CmdSetServoCycleTime: {fn: (*Controller).cmdSetServoCycleTime, config: true},
	shmem.CmdSetPositionLimits: {fn: (*Controller).cmdSetPositionLimits, config: true},
	shmem.CmdSetOutputLimits:   {fn: (*Controller).cmdSetOutputLimits, config: true},
	shmem.CmdSetOutputScale:    {fn: (*Controller).cmdSetOutputScale},
	shmem.CmdSetInputScale:     {fn: (*Controller).cmdSetInputScale},
	shmem.CmdSetMaxFerror:      {fn: (*Controller).cmdSetMaxFerror, config: true},
	shmem.CmdSetMinFerror:      {fn: (*Controller).cmdSetMinFerror, config: true},
	shmem.CmdJogCont:           {fn: (*Controller).cmdJogCont},
	shmem.CmdJogIncr:           {fn: (*Controller).cmdJogIncr},
	shmem.CmdJogAbs:            {fn: (*Controller).cmdJogAbs},
	shmem.CmdSetTermCond:       {fn: (*Controller).cmdSetTermCond},
	shmem.CmdSetLine:           {fn: (*Controller).cmdSetLine},
	shmem.CmdSetCircle:         {fn: (*Controller).cmdSetCircle},
	shmem.CmdSetVel:            {fn: (*Controller).cmdSetVel},
	shmem.CmdSetVelLimit:       {fn: (*Controller).cmdSetVelLimit, config: true},
	shmem.CmdSetAxisVelLimit:   {fn: (*Controller).cmdSetAxisVelLimit, config: true},
	shmem.CmdSetHomingVel:      {fn: (*Controller).cmdSetHomingVel, config: true},
	shmem.CmdSetAcc:            {fn: (*Controller).cmdSetAcc},
	shmem.CmdPause:             {fn: (*Controller).cmdPause},
	shmem.CmdResume:            {fn: (*Controller).cmdResume},
	shmem.CmdStep:              {fn: (*Controller).cmdStep},
	shmem.CmdScale:             {fn: (*Controller).cmdScale},
	shmem.CmdAbort:             {fn: (*Controller).cmdAbort},
	shmem.CmdDisable:           {fn: (*Controller).cmdDisable},
	shmem.CmdEnable:            {fn: (*Controller).cmdEnable},
	shmem.CmdSetPID:            {fn: (*Controller).cmdSetPID, config: true},
	shmem.CmdActivateAxis:      {fn: (*Controller).cmdActivateAxis},
	shmem.CmdDeactivateAxis:    {fn: (*Controller).cmdDeactivateAxis},
	shmem.CmdEnableAmplifier:   {fn: (*Controller).cmdEnableAmplifier},
	shmem.CmdDisableAmplifier:  {fn: (*Controller).cmdDisableAmplifier},
	shmem.CmdOpenLog:           {fn: (*Controller).cmdOpenLog},
	shmem.CmdStartLog:          {fn: (*Controller).cmdStartLog},
	shmem.CmdStopLog:           {fn: (*Controller).cmdStopLog},
	shmem.CmdCloseLog:          {fn: (*Controller).cmdCloseLog},
	shmem.CmdDacOut:            {fn: (*Controller).cmdDacOut},
	shmem.CmdHome:              {fn: (*Controller).cmdHome},
	shmem.CmdEnableWatchdog:    {fn: (*Controller).cmdEnableWatchdog},
	shmem.CmdDisableWatchdog:   {fn: (*Controller).cmdDisableWatchdog},
	shmem.CmdSetPolarity:       {fn: (*Controller).cmdSetPolarity, config: true},
	shmem.CmdSetProbeIndex:     {fn: (*Controller).cmdSetProbeIndex, config: true},
	shmem.CmdSetProbePolarity:  {fn: (*Controller).cmdSetProbePolarity, config: true},
	shmem.CmdClearProbeFlags:   {fn: (*Controller).cmdClearProbeFlags},
	shmem.CmdProbe:             {fn: (*Controller).cmdProbe},
	shmem.CmdSetTeleopVector:   {fn: (*Controller).cmdSetTeleopVector},
	shmem.CmdSetDebug:          {fn: (*Controller).cmdSetDebug, config: true},
	shmem.CmdSetAout:           {fn: (*Controller).cmdSetAout},
	shmem.CmdSetDout:           {fn: (*Controller).cmdSetDout},
	shmem.CmdSetIndexBit:       {fn: (*Controller).cmdSetIndexBit},
	shmem.CmdReadIndexBit:      {fn: (*Controller).cmdReadIndexBit},
	shmem.CmdSetStepParams:     {fn: (*Controller).cmdSetStepParams, config: true},
}

// HandleCommand consumes the command slot if it holds a new, completely
// written command. A slot caught mid-write is left for the next cycle.
// It reports whether a command was processed.
func (c *Controller) HandleCommand() bool {
	if !shmem.Snapshot(&c.cmd, &c.shm.Command) {
		c.split++
		return false
	}
	cmd := &c.cmd
	if cmd.CommandNum == c.commandNumEcho {
		return false
	}

	c.commandEcho = cmd.Code
	c.commandNumEcho = cmd.CommandNum
	c.logCommand(cmd)

	entry, ok := handlers[cmd.Code]
	if !ok {
		c.reportError(-1, "unrecognized command %d", int32(cmd.Code))
		c.commandStatus = shmem.StatusUnknownCommand
		return true
	}
	c.commandStatus = entry.fn(c, cmd)
	if entry.config && c.commandStatus == shmem.StatusOK {
		c.markConfigChange()
	}
	return true
}

// axisArg validates the joint index carried by a command.
func (c *Controller) axisArg(cmd *shmem.Command) (int, bool) {
	axis := int(cmd.Axis)
	if axis < 0 || axis >= c.numJoints {
		c.reportError(-1, "%s: axis %d out of range", cmd.Code, axis)
		return 0, false
	}
	return axis, true
}
