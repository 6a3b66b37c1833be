// Package config provides environment loading with validated fallback.
// Operational knobs load fail-open: an invalid value falls back to its
// default with a warning instead of refusing to start. Credentials and
// other hard requirements are validated fail-closed by their owners.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LoadResult carries the outcome of loading one configuration value.
type LoadResult[T any] struct {
	// Value is the loaded value, or the default when the env value was
	// missing or invalid.
	Value T

	// Warning describes why the fallback was applied; empty otherwise.
	Warning string

	// FallbackApplied is true when the default replaced an invalid value.
	FallbackApplied bool
}

// String loads a plain string from the environment with no validation.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Bool loads a boolean from the environment. Only "true" and "false" are
// accepted; anything else falls back to the default.
func Bool(key string, def bool) LoadResult[bool] {
	raw := os.Getenv(key)
	if raw == "" {
		return LoadResult[bool]{Value: def}
	}
	switch raw {
	case "true":
		return LoadResult[bool]{Value: true}
	case "false":
		return LoadResult[bool]{Value: false}
	}
	return fallback(key, raw, def, fmt.Errorf("must be true or false"))
}

// Validated loads a string from the environment and applies validate.
// A missing variable returns the default silently; an invalid value
// returns the default with a warning.
func Validated(key, def string, validate func(string) error) LoadResult[string] {
	raw := os.Getenv(key)
	if raw == "" {
		return LoadResult[string]{Value: def}
	}
	if validate != nil {
		if err := validate(raw); err != nil {
			return fallback(key, raw, def, err)
		}
	}
	return LoadResult[string]{Value: raw}
}

// Int loads an integer from the environment and applies validate.
func Int(key string, def int, validate func(int) error) LoadResult[int] {
	raw := os.Getenv(key)
	if raw == "" {
		return LoadResult[int]{Value: def}
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback(key, raw, def, err)
	}
	if validate != nil {
		if err := validate(parsed); err != nil {
			return fallback(key, raw, def, err)
		}
	}
	return LoadResult[int]{Value: parsed}
}

// Duration loads a time.Duration from the environment (Go duration syntax,
// e.g. "30m") and applies validate.
func Duration(key string, def time.Duration, validate func(time.Duration) error) LoadResult[time.Duration] {
	raw := os.Getenv(key)
	if raw == "" {
		return LoadResult[time.Duration]{Value: def}
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallback(key, raw, def, err)
	}
	if validate != nil {
		if err := validate(parsed); err != nil {
			return fallback(key, raw, def, err)
		}
	}
	return LoadResult[time.Duration]{Value: parsed}
}

func fallback[T any](key, raw string, def T, err error) LoadResult[T] {
	return LoadResult[T]{
		Value:           def,
		Warning:         fmt.Sprintf("invalid %s=%q: %v, falling back to default %v", key, raw, err, def),
		FallbackApplied: true,
	}
}
