// Package errors provides centralized error definitions and error handling utilities
// for wrestler. It defines the error taxonomy used by the planning and execution
// engine, error constructors with context wrapping, and classification helpers.
//
// # Error Types
//
// Engine errors describe a failure of one step of a run:
//   - ConfigError: configuration file unreadable or malformed
//   - LookupError: unknown problem or target name
//   - DirectoryProvisionError: local or remote directory creation failed
//   - PhaseExecutionError: a phase exited non-zero or could not be started
//   - LogPersistError: captured stdout/stderr could not be written
//   - RemoteTransportError: the remote-shell client failed to launch or connect
//
// ValidationError reports invalid input (bad parameter values, colliding
// run names). PlanFailuresError aggregates the failed plans of one sweep.
//
// # Usage
//
//	err := errors.NewPhaseExecutionError("build", errors.ErrPhaseFailed).WithExitCode(2)
//
//	var phaseErr *errors.PhaseExecutionError
//	if errors.As(err, &phaseErr) {
//	    fmt.Println(phaseErr.Phase)
//	}
//
//	if errors.IsUserFacing(err) { ... }
//
// Nothing in wrestler retries; a failed operation is reported once.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound indicates that a named problem or target does not exist.
	ErrNotFound = New("not found")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrCollision indicates that two plans resolved to the same run root.
	ErrCollision = New("run name collision")
	// ErrPhaseFailed indicates that a phase exited with a non-zero status.
	ErrPhaseFailed = New("phase failed")
	// ErrTransport indicates that the remote-shell client could not run.
	ErrTransport = New("remote transport failed")
	// ErrUnsupported indicates an operation the target cannot perform.
	ErrUnsupported = New("operation not supported")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// WrestlerError is the base interface for all wrestler errors.
type WrestlerError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

func newBase(message string, cause error, severity Severity) baseError {
	return baseError{
		message:    message,
		cause:      cause,
		severity:   severity,
		userFacing: true,
	}
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// format renders "kind [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Configuration and Lookup Errors
// -----------------------------------------------------------------------------

// ConfigError represents an unreadable or malformed configuration file.
type ConfigError struct {
	baseError
	Path string
}

// NewConfigError creates a new ConfigError.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{baseError: newBase(message, cause, SeverityCritical)}
}

// WithPath adds the configuration file path to the error context.
func (e *ConfigError) WithPath(path string) *ConfigError {
	e.Path = path
	return e
}

// Error returns the formatted error message.
func (e *ConfigError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	return e.format("config error", parts)
}

// LookupError reports a problem or target name that is not defined in the
// configuration.
//
// Example:
//
//	err := errors.NewLookupError("target", "cluster").WithAvailable([]string{"local"})
//	fmt.Println(err) // "target 'cluster' not found (available: local)"
type LookupError struct {
	baseError
	Kind      string
	Name      string
	Available []string
}

// NewLookupError creates a new LookupError.
func NewLookupError(kind, name string) *LookupError {
	return &LookupError{
		baseError: newBase(fmt.Sprintf("%s '%s' not found", kind, name), ErrNotFound, SeverityWarning),
		Kind:      kind,
		Name:      name,
	}
}

// WithAvailable records the names that do exist, sorted.
func (e *LookupError) WithAvailable(names []string) *LookupError {
	e.Available = append([]string(nil), names...)
	sort.Strings(e.Available)
	return e
}

// Error returns the formatted error message.
func (e *LookupError) Error() string {
	msg := fmt.Sprintf("%s '%s' not found", e.Kind, e.Name)
	if len(e.Available) > 0 {
		msg += fmt.Sprintf(" (available: %s)", strings.Join(e.Available, ", "))
	}
	return msg
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("parameter values must be scalars")
//	err = err.WithField("parameters.n").WithValue([]any{1})
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{baseError: newBase(message, nil, SeverityWarning)}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is matches ErrInvalidInput in addition to the wrapped cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// -----------------------------------------------------------------------------
// Execution Errors
// -----------------------------------------------------------------------------

// DirectoryProvisionError represents a failed local or remote directory creation.
type DirectoryProvisionError struct {
	baseError
	Paths []string
	Host  string
}

// NewDirectoryProvisionError creates a new DirectoryProvisionError.
func NewDirectoryProvisionError(paths []string, cause error) *DirectoryProvisionError {
	return &DirectoryProvisionError{
		baseError: newBase("failed to create directories", cause, SeverityError),
		Paths:     append([]string(nil), paths...),
	}
}

// WithHost records the remote endpoint the directories were created on.
func (e *DirectoryProvisionError) WithHost(host string) *DirectoryProvisionError {
	e.Host = host
	return e
}

// Error returns the formatted error message.
func (e *DirectoryProvisionError) Error() string {
	var parts []string
	if e.Host != "" {
		parts = append(parts, "host="+e.Host)
	}
	if len(e.Paths) > 0 {
		parts = append(parts, "paths="+strings.Join(e.Paths, " "))
	}
	return e.format("directory error", parts)
}

// PhaseExecutionError reports a phase that exited non-zero or whose process
// (or remote connection) could not be started.
//
// Example:
//
//	err := errors.NewPhaseExecutionError("run", errors.ErrPhaseFailed).WithExitCode(1)
//	fmt.Println(err) // "phase error [phase=run, exit=1]: phase 'run' failed: phase failed"
type PhaseExecutionError struct {
	baseError
	Phase    string
	Plan     string
	ExitCode int
}

// NewPhaseExecutionError creates a new PhaseExecutionError. ExitCode is -1
// until set, meaning the process never produced a status.
func NewPhaseExecutionError(phase string, cause error) *PhaseExecutionError {
	return &PhaseExecutionError{
		baseError: newBase(fmt.Sprintf("phase '%s' failed", phase), cause, SeverityError),
		Phase:     phase,
		ExitCode:  -1,
	}
}

// WithExitCode records the exit status of the phase.
func (e *PhaseExecutionError) WithExitCode(code int) *PhaseExecutionError {
	e.ExitCode = code
	return e
}

// WithPlan records the run name of the plan the phase belongs to.
func (e *PhaseExecutionError) WithPlan(name string) *PhaseExecutionError {
	e.Plan = name
	return e
}

// Error returns the formatted error message.
func (e *PhaseExecutionError) Error() string {
	var parts []string
	if e.Plan != "" {
		parts = append(parts, "run="+e.Plan)
	}
	parts = append(parts, "phase="+e.Phase)
	if e.ExitCode >= 0 {
		parts = append(parts, fmt.Sprintf("exit=%d", e.ExitCode))
	}
	return e.format("phase error", parts)
}

// LogPersistError reports captured output that could not be written.
type LogPersistError struct {
	baseError
	Path string
}

// NewLogPersistError creates a new LogPersistError.
func NewLogPersistError(path string, cause error) *LogPersistError {
	return &LogPersistError{
		baseError: newBase("failed to persist log", cause, SeverityError),
		Path:      path,
	}
}

// Error returns the formatted error message.
func (e *LogPersistError) Error() string {
	return e.format("log error", []string{"path=" + e.Path})
}

// RemoteTransportError reports that the remote-shell client itself failed to
// launch or connect, independent of the remote command's own outcome.
type RemoteTransportError struct {
	baseError
	Host   string
	Output string
}

// NewRemoteTransportError creates a new RemoteTransportError.
func NewRemoteTransportError(host string, cause error) *RemoteTransportError {
	return &RemoteTransportError{
		baseError: newBase("remote shell failed", cause, SeverityError),
		Host:      host,
	}
}

// WithOutput attaches the client's diagnostic output.
func (e *RemoteTransportError) WithOutput(output string) *RemoteTransportError {
	e.Output = strings.TrimSpace(output)
	return e
}

// Error returns the formatted error message.
func (e *RemoteTransportError) Error() string {
	msg := e.format("transport error", []string{"host=" + e.Host})
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Is matches ErrTransport in addition to the wrapped cause.
func (e *RemoteTransportError) Is(target error) bool {
	return target == ErrTransport
}

// -----------------------------------------------------------------------------
// Aggregate Errors
// -----------------------------------------------------------------------------

// PlanFailure names one failed plan of a sweep.
type PlanFailure struct {
	Plan  string
	Phase string
	Err   error
}

// PlanFailuresError aggregates every failed plan of one sweep.
type PlanFailuresError struct {
	Total    int
	Failures []PlanFailure
}

// Error returns a one-line summary followed by one line per failed plan.
func (e *PlanFailuresError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d of %d runs failed", len(e.Failures), e.Total)
	for _, f := range e.Failures {
		sb.WriteString("\n  ")
		sb.WriteString(f.Plan)
		if f.Phase != "" {
			sb.WriteString(" (" + f.Phase + ")")
		}
		if f.Err != nil {
			sb.WriteString(": ")
			sb.WriteString(f.Err.Error())
		}
	}
	return sb.String()
}

// Unwrap exposes the individual plan errors to errors.Is and errors.As.
func (e *PlanFailuresError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var werr WrestlerError
	if As(err, &werr) {
		return werr.IsUserFacing()
	}

	var failures *PlanFailuresError
	return As(err, &failures)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement WrestlerError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var werr WrestlerError
	if As(err, &werr) {
		return werr.Severity()
	}

	return SeverityError
}

// FailedPhase returns the phase named by the first PhaseExecutionError in the
// chain, or "" if there is none.
func FailedPhase(err error) string {
	var phaseErr *PhaseExecutionError
	if As(err, &phaseErr) {
		return phaseErr.Phase
	}
	return ""
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
