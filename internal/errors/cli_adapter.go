package errors

import (
	"fmt"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if dpe, ok := err.(*DocPipeError); ok {
		return a.exitCodeFromDocPipe(dpe)
	}

	return 1
}

// exitCodeFromDocPipe maps DocPipeError to exit codes.
func (a *CLIErrorAdapter) exitCodeFromDocPipe(err *DocPipeError) int {
	switch err.Category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryNotFound:
		return 4 // Unknown repository or document
	case CategoryAuth:
		return 5 // Auth error
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryNetwork, CategoryHost:
		return 8 // External system error
	case CategoryInternal:
		return 10 // Internal error
	case CategoryPipeline, CategoryStore, CategoryExport:
		return 11 // Run error
	case CategoryDaemon:
		return 12 // Runtime error
	default:
		return 1 // General error
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	if dpe, ok := err.(*DocPipeError); ok {
		return a.formatDocPipe(dpe)
	}

	return fmt.Sprintf("Error: %v", err)
}

// formatDocPipe formats a DocPipeError for display.
func (a *CLIErrorAdapter) formatDocPipe(err *DocPipeError) string {
	if a.verbose {
		return err.Error()
	}

	switch err.Category {
	case CategoryConfig, CategoryValidation, CategoryAuth, CategoryNotFound:
		return err.Message
	default:
		return fmt.Sprintf("%s: %s", err.Category, err.Message)
	}
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	exitCode := a.ExitCodeFor(err)
	message := a.FormatError(err)

	if a.shouldLog(err) {
		a.logError(err)
	}

	fmt.Fprintf(os.Stderr, "%s\n", message)
	os.Exit(exitCode)
}

// shouldLog determines if an error should be logged.
func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}

	if dpe, ok := err.(*DocPipeError); ok {
		return dpe.Category == CategoryInternal ||
			dpe.Category == CategoryDaemon ||
			dpe.Severity == SeverityFatal
	}

	return true
}

// logError logs an error with appropriate level and context.
func (a *CLIErrorAdapter) logError(err error) {
	if dpe, ok := err.(*DocPipeError); ok {
		level := a.slogLevelFromDocPipeSeverity(dpe.Severity)
		attrs := []slog.Attr{
			slog.String("category", string(dpe.Category)),
		}
		if dpe.Retryable {
			attrs = append(attrs, slog.Bool("retryable", true))
		}

		a.logger.LogAttrs(nil, level, dpe.Message, attrs...)
		return
	}

	a.logger.Error("Unclassified error", "error", err)
}

// slogLevelFromDocPipeSeverity converts DocPipeError severity to slog level.
func (a *CLIErrorAdapter) slogLevelFromDocPipeSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityFatal:
		return slog.LevelError
	default:
		return slog.LevelError
	}
}
