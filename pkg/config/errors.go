// Package config parses machine INI files with access tracking and
// typed, validated getters, and maps them onto the controller's
// configuration.
package config

import (
	"fmt"

	"emcmot-go/pkg/errors"
)

// ErrMissingOption returns an error for a required but missing option.
func ErrMissingOption(section, option string) *errors.MotionError {
	return errors.New(errors.ErrConfigOption, "must be specified").
		SetSection(section).
		SetOption(option)
}

// ErrMissingSection returns an error for a missing section.
func ErrMissingSection(section string) *errors.MotionError {
	return errors.ConfigSectionError(section)
}

// ErrInvalidValue returns an error for an option that does not parse.
func ErrInvalidValue(section, option, value, expected string) *errors.MotionError {
	return errors.New(errors.ErrConfigType, fmt.Sprintf("invalid value '%s', expected %s", value, expected)).
		SetSection(section).
		SetOption(option)
}

// ErrOutOfRange returns an error for a value outside the allowed range.
func ErrOutOfRange(section, option string, value float64, constraint string) *errors.MotionError {
	return errors.ConfigValidationError(section, option, fmt.Sprintf("value %v %s", value, constraint))
}

// ErrInvalidChoice returns an error for an invalid choice value.
func ErrInvalidChoice(section, option, value string, choices []string) *errors.MotionError {
	return errors.ConfigValidationError(section, option,
		fmt.Sprintf("'%s' is not a valid choice (valid: %v)", value, choices))
}
