// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package usrmot

import (
	"fmt"

	"go.uber.org/multierr"

	"emcmot-go/pkg/config"
	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/shmem"
)

// polarityMask selects the signals configured by SET_POLARITY. The
// homing direction travels with HOMING_VEL instead.
const polarityMask = shmem.AxisEnable | shmem.AxisMaxHardLimit | shmem.AxisMinHardLimit |
	shmem.AxisHomeSwitch | shmem.AxisFault

// Configure pushes a machine configuration to the controller. Global
// settings are sent first and stop at the first failure; every axis is
// then configured and the failures of all axes are returned together.
func (c *Client) Configure(m *config.Machine) error {
	global := []shmem.Command{
		{Code: shmem.CmdSetTrajCycleTime, CycleTime: m.TrajCycleTime},
		{Code: shmem.CmdSetServoCycleTime, CycleTime: m.ServoPeriod},
		{Code: shmem.CmdSetNumAxes, Axis: int32(m.NumAxes)},
		{Code: shmem.CmdSetVel, Vel: m.DefaultVelocity},
		{Code: shmem.CmdSetVelLimit, Vel: m.MaxVelocity},
		{Code: shmem.CmdSetAcc, Acc: m.DefaultAcceleration},
		{Code: shmem.CmdSetWorldHome, Pos: m.Home},
		{Code: shmem.CmdSetProbeIndex, ProbeIndex: int32(m.ProbeIndex)},
		{Code: shmem.CmdSetProbePolarity, Level: m.ProbePolarity},
	}
	for _, cmd := range global {
		if err := c.WriteCommand(cmd); err != nil {
			return err
		}
	}

	var errs error
	for i := range m.Axes {
		errs = multierr.Append(errs, c.configureAxis(i, &m.Axes[i]))
	}
	return errs
}

func (c *Client) configureAxis(axis int, a *config.Axis) error {
	high := a.Polarity.Bits() & polarityMask
	cmds := []shmem.Command{
		{Code: shmem.CmdSetPID, Gains: a.Gains},
		{Code: shmem.CmdSetInputScale, Scale: a.InputScale, Offset: a.InputOffset},
		{Code: shmem.CmdSetOutputScale, Scale: a.OutputScale, Offset: a.OutputOffset},
		{Code: shmem.CmdSetPositionLimits, MinLimit: a.MinLimit, MaxLimit: a.MaxLimit},
		{Code: shmem.CmdSetOutputLimits, MinLimit: a.MinOutput, MaxLimit: a.MaxOutput},
		{Code: shmem.CmdSetMaxFerror, MaxFerror: a.MaxFerror},
		{Code: shmem.CmdSetMinFerror, MinFerror: a.MinFerror},
		{Code: shmem.CmdSetAxisVelLimit, Vel: a.MaxVelocity},
		{Code: shmem.CmdSetHomingVel, Vel: a.HomingVel},
		{Code: shmem.CmdSetHomeOffset, Offset: a.HomeOffset},
		{Code: shmem.CmdSetJointHome, Offset: a.Home},
		{Code: shmem.CmdSetPolarity, AxisFlag: high, Level: true},
		{Code: shmem.CmdSetPolarity, AxisFlag: polarityMask &^ high, Level: false},
		{Code: shmem.CmdSetStepParams, SetupTime: a.SetupTime, HoldTime: a.HoldTime},
		{Code: shmem.CmdActivateAxis},
	}
	for _, cmd := range cmds {
		if err := c.axisCommand(axis, cmd); err != nil {
			return wrapAxis(err, axis)
		}
	}
	if a.CompFile != "" {
		if err := c.LoadCompFile(axis, a.CompFile); err != nil {
			return wrapAxis(err, axis)
		}
	}
	return nil
}

func wrapAxis(err error, axis int) error {
	return errors.Wrap(err, errors.CodeOf(err), fmt.Sprintf("configure axis %d", axis)).SetAxis(axis)
}
