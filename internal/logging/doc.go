// Package logging provides structured logging for wrestler runs.
//
// This package wraps Go's log/slog to write JSON-formatted debug logs with
// context propagation. Every line written while executing a sweep carries
// the invocation id and, where known, the problem, target, run name and
// phase, so a single debug log can be filtered per run after the fact.
//
// These logs describe what wrestler did. The captured stdout and stderr of
// the phases themselves are persisted separately under each run root's
// logs/ directory.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/tmp/wrestler-debug.log", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithProblem("heat").WithTarget("local").WithRun("fast-1")
//	runLogger.WithPhase("build").Info("phase completed", "exit_code", 0)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"phase completed","problem":"heat","target":"local","run":"fast-1","phase":"build","exit_code":0}
//
// An empty path writes to stderr.
//
// # Testing
//
// Use [NopLogger] to discard all log output.
package logging
