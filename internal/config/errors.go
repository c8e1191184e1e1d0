package config

import "errors"

// Sentinel errors for configuration access.
var (
	// ErrSettingNotFound indicates the path has no value.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrTypeMismatch indicates the value at a path has the wrong type.
	ErrTypeMismatch = errors.New("setting type mismatch")

	// ErrInvalidPath indicates an empty or malformed setting path.
	ErrInvalidPath = errors.New("invalid setting path")
)
