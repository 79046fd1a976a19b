// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package main

import (
	"io"
	"strings"

	pongo2 "github.com/flosch/pongo2/v5"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/shmem"
)

const statusTemplate = `mode:    {% if enabled %}enabled{% else %}disabled{% endif %} {% if coord %}coord{% elif teleop %}teleop{% else %}free{% endif %}{% if inpos %} inpos{% endif %}{% if error %} ERROR{% endif %}
command: {{ echo }} #{{ num }} {{ result }}
pos:     x {{ x|floatformat:4 }}  y {{ y|floatformat:4 }}  z {{ z|floatformat:4 }}  vel {{ vel|floatformat:4 }}
queue:   depth {{ depth }} id {{ id }}{% if paused %} paused{% endif %}
beat:    {{ heartbeat }} ({{ compute_us|floatformat:1 }} us)
{% for j in joints %}axis {{ j.n }}: pos {{ j.pos|floatformat:4 }} ferror {{ j.ferror|floatformat:5 }} {{ j.flags }}
{% endfor %}`

// templates renders status reports.
type templates struct {
	set    *pongo2.TemplateSet
	status *pongo2.Template
}

func newTemplates() (*templates, error) {
	set := pongo2.NewSet("motctl", pongo2.DefaultLoader)
	tpl, err := set.FromString(statusTemplate)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrRuntimeInit, "status template")
	}
	return &templates{set: set, status: tpl}, nil
}

// FromString compiles a user supplied template.
func (t *templates) FromString(src string) (*pongo2.Template, error) {
	tpl, err := t.set.FromString(src)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrRuntime, "template")
	}
	return tpl, nil
}

var jointFlagNames = []struct {
	bit  uint32
	name string
}{
	{shmem.AxisActive, "active"},
	{shmem.AxisEnable, "enabled"},
	{shmem.AxisInpos, "inpos"},
	{shmem.AxisHoming, "homing"},
	{shmem.AxisHomed, "homed"},
	{shmem.AxisMaxSoftLimit, "+soft"},
	{shmem.AxisMinSoftLimit, "-soft"},
	{shmem.AxisMaxHardLimit, "+hard"},
	{shmem.AxisMinHardLimit, "-hard"},
	{shmem.AxisFerror, "ferror"},
	{shmem.AxisFault, "fault"},
	{shmem.AxisError, "error"},
}

func jointFlags(b uint32) string {
	var names []string
	for _, f := range jointFlagNames {
		if b&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, ",")
}

// statusContext exposes st to templates, reporting the first axes joints.
func statusContext(st *shmem.Status, axes int) pongo2.Context {
	joints := make([]map[string]any, 0, axes)
	for i := 0; i < axes && i < shmem.MaxJoints; i++ {
		joints = append(joints, map[string]any{
			"n":      i,
			"pos":    st.AxisPos[i],
			"input":  st.Input[i],
			"output": st.Output[i],
			"ferror": st.Ferror[i],
			"phase":  st.HomingPhase[i],
			"flags":  jointFlags(st.AxisFlag[i]),
		})
	}
	return pongo2.Context{
		"enabled":    st.MotionFlag&shmem.MotionEnable != 0,
		"coord":      st.MotionFlag&shmem.MotionCoord != 0,
		"teleop":     st.MotionFlag&shmem.MotionTeleop != 0,
		"inpos":      st.MotionFlag&shmem.MotionInpos != 0,
		"error":      st.MotionFlag&shmem.MotionError != 0,
		"echo":       st.CommandEcho.String(),
		"num":        st.CommandNumEcho,
		"result":     st.CommandStatus.String(),
		"x":          st.Pos.Tran.X,
		"y":          st.Pos.Tran.Y,
		"z":          st.Pos.Tran.Z,
		"vel":        st.Vel,
		"depth":      st.Depth,
		"id":         st.ID,
		"paused":     st.Paused,
		"heartbeat":  st.Heartbeat,
		"compute_us": st.ComputeTime * 1e6,
		"joints":     joints,
	}
}

func render(w io.Writer, tpl *pongo2.Template, ctx pongo2.Context) error {
	if err := tpl.ExecuteWriter(ctx, w); err != nil {
		return errors.Wrap(err, errors.ErrRuntime, "render")
	}
	return nil
}
