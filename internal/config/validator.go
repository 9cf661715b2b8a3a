package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "batch.workers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSplit()...)
	errors = append(errors, c.validateBatch()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateServer()...)

	return errors
}

func (c *Config) validateSplit() []ValidationError {
	var errors []ValidationError

	if c.Split.SplitPoint < 0 || c.Split.SplitPoint > 127 {
		errors = append(errors, ValidationError{
			Field:   "split.split_point",
			Value:   c.Split.SplitPoint,
			Message: "must be a MIDI pitch between 0 and 127",
		})
	}
	if c.Split.SimpleSuffix == "" {
		errors = append(errors, ValidationError{
			Field:   "split.simple_suffix",
			Value:   c.Split.SimpleSuffix,
			Message: "must not be empty",
		})
	}
	if c.Split.SmartSuffix == "" {
		errors = append(errors, ValidationError{
			Field:   "split.smart_suffix",
			Value:   c.Split.SmartSuffix,
			Message: "must not be empty",
		})
	}
	if c.Split.SimpleSuffix != "" && c.Split.SimpleSuffix == c.Split.SmartSuffix {
		errors = append(errors, ValidationError{
			Field:   "split.smart_suffix",
			Value:   c.Split.SmartSuffix,
			Message: "must differ from split.simple_suffix",
		})
	}

	return errors
}

func (c *Config) validateBatch() []ValidationError {
	var errors []ValidationError

	if c.Batch.Workers < 1 || c.Batch.Workers > 64 {
		errors = append(errors, ValidationError{
			Field:   "batch.workers",
			Value:   c.Batch.Workers,
			Message: "must be between 1 and 64",
		})
	}
	if len(c.Batch.Extensions) == 0 {
		errors = append(errors, ValidationError{
			Field:   "batch.extensions",
			Value:   c.Batch.Extensions,
			Message: "must list at least one extension",
		})
	}
	for _, ext := range c.Batch.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errors = append(errors, ValidationError{
				Field:   "batch.extensions",
				Value:   ext,
				Message: "extensions must start with a dot",
			})
		}
	}
	if c.Batch.MaxFiles < 0 {
		errors = append(errors, ValidationError{
			Field:   "batch.max_files",
			Value:   c.Batch.MaxFiles,
			Message: "must be non-negative (0 = unlimited)",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		return []ValidationError{{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		}}
	}
	return nil
}

func (c *Config) validateServer() []ValidationError {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return []ValidationError{{
			Field:   "server.port",
			Value:   c.Server.Port,
			Message: "must be between 1 and 65535",
		}}
	}
	return nil
}
