package config

import "errors"

// Sentinel error kinds returned by Load and Validate.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config")
)
