// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package wsapi

import (
	"encoding/json"
	"fmt"
	"time"

	"emcmot-go/pkg/errors"
	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/shmem"
)

func (s *Server) dispatch(method string, params json.RawMessage, client *wsClient) (any, error) {
	switch method {
	case "server.info":
		return s.methodServerInfo(), nil
	case "motion.status":
		return s.methodStatus()
	case "motion.config":
		return s.methodConfig()
	case "motion.command":
		return s.methodCommand(params)
	case "motion.subscribe":
		if client == nil {
			return nil, failure(codeInvalidParams, fmt.Errorf("subscriptions need a websocket"))
		}
		client.subscribed.Store(true)
		return s.methodStatus()
	case "motion.errors":
		return s.methodErrors()
	case "motion.emergency_stop":
		return s.methodEmergencyStop(params)
	default:
		return nil, failure(codeMethodNotFound, fmt.Errorf("method not found: %s", method))
	}
}

func (s *Server) methodServerInfo() map[string]any {
	info := map[string]any{
		"instance":        s.ctl.InstanceID(),
		"websocket_count": s.ClientCount(),
		"uptime":          time.Since(s.startTime).Seconds(),
	}
	if s.cfg.Safety != nil {
		info["safety"] = s.cfg.Safety.Report()
	}
	return info
}

// JointView is the per-joint part of StatusView.
type JointView struct {
	Pos         float64 `json:"pos"`
	Input       float64 `json:"input"`
	Output      float64 `json:"output"`
	Ferror      float64 `json:"ferror"`
	HomingPhase int32   `json:"homing_phase"`
	Flags       uint32  `json:"flags"`
	Homed       bool    `json:"homed"`
	Fault       bool    `json:"fault"`
}

// StatusView is the JSON form of the status block.
type StatusView struct {
	Heartbeat     uint32          `json:"heartbeat"`
	CommandEcho   string          `json:"command_echo"`
	CommandNum    uint32          `json:"command_num"`
	CommandStatus string          `json:"command_status"`
	Enabled       bool            `json:"enabled"`
	Coord         bool            `json:"coord"`
	Teleop        bool            `json:"teleop"`
	Inpos         bool            `json:"inpos"`
	Error         bool            `json:"error"`
	Pos           kinematics.Pose `json:"pos"`
	Vel           float64         `json:"vel"`
	ID            int32           `json:"id"`
	Depth         int32           `json:"depth"`
	QueueFull     bool            `json:"queue_full"`
	Paused        bool            `json:"paused"`
	Probing       bool            `json:"probing"`
	ProbeTripped  bool            `json:"probe_tripped"`
	ComputeTime   float64         `json:"compute_time"`
	Joints        []JointView     `json:"joints"`
}

// NewStatusView converts st, reporting the first axes joints.
func NewStatusView(st *shmem.Status, axes int) StatusView {
	v := StatusView{
		Heartbeat:     st.Heartbeat,
		CommandEcho:   st.CommandEcho.String(),
		CommandNum:    st.CommandNumEcho,
		CommandStatus: st.CommandStatus.String(),
		Enabled:       st.MotionFlag&shmem.MotionEnable != 0,
		Coord:         st.MotionFlag&shmem.MotionCoord != 0,
		Teleop:        st.MotionFlag&shmem.MotionTeleop != 0,
		Inpos:         st.MotionFlag&shmem.MotionInpos != 0,
		Error:         st.MotionFlag&shmem.MotionError != 0,
		Pos:           st.Pos,
		Vel:           st.Vel,
		ID:            st.ID,
		Depth:         st.Depth,
		QueueFull:     st.QueueFull,
		Paused:        st.Paused,
		Probing:       st.Probing,
		ProbeTripped:  st.ProbeTripped,
		ComputeTime:   st.ComputeTime,
	}
	for i := 0; i < axes && i < shmem.MaxJoints; i++ {
		v.Joints = append(v.Joints, JointView{
			Pos:         st.AxisPos[i],
			Input:       st.Input[i],
			Output:      st.Output[i],
			Ferror:      st.Ferror[i],
			HomingPhase: st.HomingPhase[i],
			Flags:       st.AxisFlag[i],
			Homed:       st.AxisFlag[i]&shmem.AxisHomed != 0,
			Fault:       st.AxisFlag[i]&shmem.AxisFault != 0,
		})
	}
	return v
}

func (s *Server) methodStatus() (StatusView, error) {
	axes := shmem.MaxJoints
	var cfg shmem.Config
	if s.ctl.ReadConfig(&cfg) == nil && cfg.NumAxes > 0 {
		axes = int(cfg.NumAxes)
	}
	var st shmem.Status
	if err := s.ctl.ReadStatus(&st); err != nil {
		return StatusView{}, err
	}
	return NewStatusView(&st, axes), nil
}

func (s *Server) methodConfig() (*shmem.Config, error) {
	cfg := new(shmem.Config)
	if err := s.ctl.ReadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type commandParams struct {
	Command string          `json:"command"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// methodCommand writes one command and waits for its echo.
func (s *Server) methodCommand(raw json.RawMessage) (any, error) {
	var p commandParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, failure(codeInvalidParams, errors.Wrap(err, errors.ErrCommInvalid, "command params"))
	}
	code, ok := shmem.ParseCommandCode(p.Command)
	if !ok {
		return nil, failure(codeInvalidParams,
			errors.New(errors.ErrCommInvalid, fmt.Sprintf("unknown command %q", p.Command)))
	}
	var cmd shmem.Command
	if len(p.Args) > 0 {
		if err := json.Unmarshal(p.Args, &cmd); err != nil {
			return nil, failure(codeInvalidParams, errors.Wrap(err, errors.ErrCommInvalid, "command args"))
		}
	}
	cmd.Code = code
	cmd.Seq = shmem.Seq{}

	if err := s.checkSafety(code); err != nil {
		return nil, err
	}
	s.cmdMu.Lock()
	err := s.ctl.WriteCommand(cmd)
	s.cmdMu.Unlock()
	if err != nil {
		return nil, err
	}
	return map[string]any{"command": code.String(), "status": shmem.StatusOK.String()}, nil
}

// checkSafety refuses commands that could start motion while the safety
// watchdog is tripped. Disabling and aborting stay allowed.
func (s *Server) checkSafety(code shmem.CommandCode) error {
	if s.cfg.Safety == nil {
		return nil
	}
	switch code {
	case shmem.CmdDisable, shmem.CmdAbort, shmem.CmdPause:
		return nil
	}
	return s.cfg.Safety.Ready()
}

func (s *Server) methodErrors() ([]string, error) {
	msgs := []string{}
	for {
		msg, ok, err := s.ctl.ErrorGet()
		if err != nil {
			return msgs, err
		}
		if !ok {
			return msgs, nil
		}
		msgs = append(msgs, msg)
	}
}

func (s *Server) methodEmergencyStop(raw json.RawMessage) (any, error) {
	if s.cfg.Safety == nil {
		return nil, errors.New(errors.ErrRuntime, "no safety watchdog configured")
	}
	var p struct {
		Message string `json:"message"`
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &p)
	}
	if p.Message == "" {
		p.Message = "emergency stop requested over api"
	}
	if err := s.cfg.Safety.EStop(p.Message); err != nil {
		return nil, err
	}
	return s.cfg.Safety.Report(), nil
}
