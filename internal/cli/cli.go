// Package cli holds the start-up plumbing shared by the captcha-lab commands:
// required-argument errors, exit handling and logger creation.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/book-expert/logger"
)

// ExitFailure is the exit code for missing arguments and runtime failures.
const ExitFailure = 1

// MissingArgError reports a required argument that was not given. Its message
// is printed as-is.
type MissingArgError struct {
	Message string
}

func (e *MissingArgError) Error() string {
	return e.Message
}

// MissingArg returns a MissingArgError with the given message.
func MissingArg(message string) error {
	return &MissingArgError{Message: message}
}

// Report writes err for the user and returns the process exit code: 0 for a
// nil error or a help request, ExitFailure otherwise. Missing arguments go to
// stdout verbatim, other failures to stderr.
func Report(err error, stdout, stderr io.Writer) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return 0
	}

	var missing *MissingArgError
	if errors.As(err, &missing) {
		fmt.Fprintln(stdout, missing.Message)

		return ExitFailure
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)

	return ExitFailure
}

// Exit reports err and terminates the process with the matching code.
func Exit(err error) {
	os.Exit(Report(err, os.Stdout, os.Stderr))
}

// NewLogger creates a file logger in dir, or in the temp dir when dir is empty.
func NewLogger(dir, fileName string) (*logger.Logger, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	log, err := logger.New(dir, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// CloseLogger closes log, reporting a failure on stderr.
func CloseLogger(log *logger.Logger) {
	closeErr := log.Close()
	if closeErr != nil {
		fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
	}
}

// StringOr returns value unless it is empty, then fallback.
func StringOr(value, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}

// IntOr returns value unless it is not positive, then fallback.
func IntOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}

	return value
}
