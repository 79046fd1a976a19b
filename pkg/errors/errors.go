// Unified error handling for the motion controller
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrConfigType       ErrorCode = "CONFIG_TYPE"

	// Supervisor communication results. These mirror the usrmot result
	// set returned to callers of the supervisor API.
	ErrCommConnect   ErrorCode = "COMM_CONNECT"
	ErrCommTimeout   ErrorCode = "COMM_TIMEOUT"
	ErrCommCommand   ErrorCode = "COMM_COMMAND"
	ErrCommSplitRead ErrorCode = "COMM_SPLIT_READ"
	ErrCommInvalid   ErrorCode = "COMM_INVALID"

	// Shared memory errors
	ErrShmem       ErrorCode = "SHMEM"
	ErrShmemLayout ErrorCode = "SHMEM_LAYOUT"

	// Kinematics errors
	ErrKinematics       ErrorCode = "KINEMATICS"
	ErrKinematicsBounds ErrorCode = "KINEMATICS_BOUNDS"

	// Trajectory planner errors
	ErrPlanner ErrorCode = "PLANNER"

	// Compensation file errors
	ErrCompFile ErrorCode = "COMP_FILE"

	// Runtime errors
	ErrRuntime     ErrorCode = "RUNTIME"
	ErrRuntimeInit ErrorCode = "RUNTIME_INIT"
)

// MotionError is the unified error type for the controller and supervisor
type MotionError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Section is the config section (if applicable)
	Section string

	// Option is the config option name (if applicable)
	Option string

	// Axis is the joint index, -1 when not axis specific
	Axis int

	// Command is the command name for comm errors
	Command string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *MotionError) Error() string {
	where := e.Section
	switch {
	case e.Command != "":
		where = e.Command
	case e.Option != "":
		where = e.Section + "." + e.Option
	case e.Axis >= 0 && where == "":
		where = fmt.Sprintf("axis %d", e.Axis)
	}
	msg := fmt.Sprintf("[%s:%s] %s", e.Code, where, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *MotionError) Unwrap() error {
	return e.Err
}

// SetSection sets the context section
func (e *MotionError) SetSection(section string) *MotionError {
	e.Section = section
	return e
}

// SetOption sets the config option
func (e *MotionError) SetOption(option string) *MotionError {
	e.Option = option
	return e
}

// SetAxis sets the joint index
func (e *MotionError) SetAxis(axis int) *MotionError {
	e.Axis = axis
	return e
}

// SetCommand sets the command name
func (e *MotionError) SetCommand(command string) *MotionError {
	e.Command = command
	return e
}

// SetContext adds additional context
func (e *MotionError) SetContext(key string, value interface{}) *MotionError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *MotionError {
	return &MotionError{
		Code:    code,
		Message: message,
		Axis:    -1,
		Err:     err,
	}
}

// New creates a new MotionError
func New(code ErrorCode, message string) *MotionError {
	return &MotionError{
		Code:    code,
		Message: message,
		Axis:    -1,
	}
}

// Config errors

// ConfigSectionError creates an error for missing config section
func ConfigSectionError(section string) *MotionError {
	return New(ErrConfigSection, fmt.Sprintf("section '%s' not found", section)).
		SetSection(section)
}

// ConfigValidationError creates an error for config validation failure
func ConfigValidationError(section, option string, reason string) *MotionError {
	return New(ErrConfigValidation, reason).
		SetSection(section).
		SetOption(option)
}

// Comm errors

// CommError creates a supervisor communication error for a command
func CommError(code ErrorCode, command string, message string) *MotionError {
	return New(code, message).SetCommand(command)
}

// Kinematics errors

// KinematicsBoundsError creates an error for a joint outside its range
func KinematicsBoundsError(axis int, pos, min, max float64) *MotionError {
	return New(ErrKinematicsBounds, fmt.Sprintf("joint position %.4f out of range [%.4f, %.4f]", pos, min, max)).
		SetAxis(axis)
}

// Runtime errors

// RuntimeError creates a general runtime error
func RuntimeError(message string) *MotionError {
	return New(ErrRuntime, message)
}

// RuntimeErrorInit creates an error for initialization failure
func RuntimeErrorInit(component string, reason string) *MotionError {
	return New(ErrRuntimeInit, fmt.Sprintf("failed to initialize %s: %s", component, reason))
}

// RecoverPanic converts a recovered panic value into an error
func RecoverPanic(r interface{}) *MotionError {
	if r == nil {
		return nil
	}
	switch x := r.(type) {
	case runtime.Error:
		return Wrap(x, ErrRuntime, "panic")
	case error:
		return Wrap(x, ErrRuntime, "panic")
	case string:
		return RuntimeError(fmt.Sprintf("panic: %s", x))
	default:
		return RuntimeError(fmt.Sprintf("panic: %v", x))
	}
}

// Is checks if any error in the chain matches the given code
func Is(err error, code ErrorCode) bool {
	var me *MotionError
	for err != nil {
		if !stderrors.As(err, &me) {
			return false
		}
		if me.Code == code {
			return true
		}
		err = me.Err
	}
	return false
}

// CodeOf returns the code of the outermost MotionError in the chain
func CodeOf(err error) ErrorCode {
	var me *MotionError
	if stderrors.As(err, &me) {
		return me.Code
	}
	return ""
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigSection) ||
		Is(err, ErrConfigOption) ||
		Is(err, ErrConfigValidation) ||
		Is(err, ErrConfigType)
}

// IsComm checks if error is a supervisor communication error
func IsComm(err error) bool {
	return Is(err, ErrCommConnect) ||
		Is(err, ErrCommTimeout) ||
		Is(err, ErrCommCommand) ||
		Is(err, ErrCommSplitRead) ||
		Is(err, ErrCommInvalid)
}
