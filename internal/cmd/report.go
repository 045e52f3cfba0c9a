package cmd

import (
	"fmt"
	"io"

	"github.com/dineshadepu/wrestler/internal/errors"
	"github.com/dineshadepu/wrestler/internal/styles"
)

// Exit statuses returned by ExitCode.
const (
	ExitOK      = 0
	ExitFailure = 1 // a run failed or an unexpected error occurred
	ExitInvalid = 2 // bad configuration, unknown names or invalid input
)

// ExitCode maps an error returned by Execute to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if !errors.IsUserFacing(err) {
		return ExitFailure
	}
	switch errors.GetSeverity(err) {
	case errors.SeverityWarning, errors.SeverityCritical:
		// Lookup, validation and config errors: nothing was executed.
		return ExitInvalid
	default:
		return ExitFailure
	}
}

// ReportError prints err to w and returns the exit status for it. Warnings
// are rendered in the warning color, everything else as a failure. When a
// phase failed the reader is pointed at its captured output.
func ReportError(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}
	p := styles.NewPrinter(w)

	style := styles.Failure
	label := "Error:"
	switch errors.GetSeverity(err) {
	case errors.SeverityWarning:
		style = styles.Warning
	case errors.SeverityCritical:
		label = "Fatal:"
	}
	fmt.Fprintf(w, "%s %v\n", p.Render(style, label), err)

	if phase := errors.FailedPhase(err); phase != "" {
		fmt.Fprintf(w, "%s\n", p.Render(styles.Muted, fmt.Sprintf(
			"inspect the %s output with: wrestler logs <problem> --target <target> --run <run> --phase %s", phase, phase)))
	}
	return ExitCode(err)
}
