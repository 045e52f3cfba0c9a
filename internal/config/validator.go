package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dineshadepu/wrestler/internal/sweep"
	"github.com/dineshadepu/wrestler/internal/tmpl"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "problems.heat.run_name")
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

	for _, name := range c.TargetNames() {
		errors = append(errors, validateTarget(name, c.Targets[name])...)
	}

	for _, name := range c.ProblemNames() {
		errors = append(errors, validateProblem(name, c.Problems[name])...)
	}

	errors = append(errors, c.validateExecution()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func validateTarget(name string, t Target) []ValidationError {
	var errors []ValidationError
	field := "targets." + name

	if strings.TrimSpace(t.Root) == "" {
		errors = append(errors, ValidationError{
			Field:   field + ".root",
			Value:   t.Root,
			Message: "must not be empty",
		})
	}
	if strings.ContainsAny(t.SSH, " \t\n") {
		errors = append(errors, ValidationError{
			Field:   field + ".ssh",
			Value:   t.SSH,
			Message: "must be a single ssh destination without whitespace",
		})
	}

	return errors
}

func validateProblem(name string, p Problem) []ValidationError {
	var errors []ValidationError
	field := "problems." + name

	if strings.TrimSpace(p.RunName) == "" {
		errors = append(errors, ValidationError{
			Field:   field + ".run_name",
			Value:   p.RunName,
			Message: "must not be empty",
		})
	}

	for _, key := range sweep.Keys(p.Parameters) {
		if key == tmpl.ProjectRoot || key == tmpl.RunDir {
			errors = append(errors, ValidationError{
				Field:   field + ".parameters." + key,
				Value:   key,
				Message: "is a reserved token name",
			})
		}
		for i, v := range p.Parameters[key] {
			if _, err := sweep.Canonicalize(v); err != nil {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("%s.parameters.%s[%d]", field, key, i),
					Value:   v,
					Message: "must be a string, number or boolean",
				})
			}
		}
	}

	if strings.TrimSpace(p.Phases.Run.Program) == "" {
		errors = append(errors, ValidationError{
			Field:   field + ".phases.run.program",
			Value:   p.Phases.Run.Program,
			Message: "run phase is required and must name a program",
		})
	}
	if p.Phases.Build != nil && strings.TrimSpace(p.Phases.Build.Program) == "" {
		errors = append(errors, ValidationError{
			Field:   field + ".phases.build.program",
			Value:   p.Phases.Build.Program,
			Message: "must not be empty",
		})
	}
	if p.Phases.Analyze != nil && strings.TrimSpace(p.Phases.Analyze.Program) == "" {
		errors = append(errors, ValidationError{
			Field:   field + ".phases.analyze.program",
			Value:   p.Phases.Analyze.Program,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateExecution validates the ExecutionConfig
func (c *Config) validateExecution() []ValidationError {
	var errors []ValidationError

	const maxParallelLimit = 256
	if c.Execution.MaxParallel < 1 {
		errors = append(errors, ValidationError{
			Field:   "execution.max_parallel",
			Value:   c.Execution.MaxParallel,
			Message: "must be at least 1",
		})
	}
	if c.Execution.MaxParallel > maxParallelLimit {
		errors = append(errors, ValidationError{
			Field:   "execution.max_parallel",
			Value:   c.Execution.MaxParallel,
			Message: fmt.Sprintf("exceeds maximum of %d", maxParallelLimit),
		})
	}
	if c.Execution.PhaseTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "execution.phase_timeout",
			Value:   c.Execution.PhaseTimeout,
			Message: "must be non-negative",
		})
	}
	if strings.TrimSpace(c.Execution.SSHBinary) == "" {
		errors = append(errors, ValidationError{
			Field:   "execution.ssh_binary",
			Value:   c.Execution.SSHBinary,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
