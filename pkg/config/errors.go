package config

import "errors"

var (
	// ErrParsingConfig is returned when the environment cannot be parsed
	// into the config struct, e.g. a required variable is missing.
	ErrParsingConfig = errors.New("failed to parse environment into config")
	// ErrLoadingEnvFiles is returned by LoadEnv when a named file cannot be
	// read.
	ErrLoadingEnvFiles = errors.New("failed to load env files")
	// ErrNilPointer is returned when Load or Reload receives a nil pointer.
	ErrNilPointer = errors.New("config pointer cannot be nil")
)
