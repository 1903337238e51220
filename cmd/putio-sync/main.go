package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/verygreenboi/putio-trauma/internal/config"
	"github.com/verygreenboi/putio-trauma/internal/mirror"
	"github.com/verygreenboi/putio-trauma/internal/remote"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitMissingToken    = 3
	ExitNotFound        = 4
	ExitRemoteError     = 5
	ExitLocalIOError    = 6
	ExitDownloadsFailed = 7
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	return runWithIO(args, os.Stdout, os.Stderr)
}

func runWithIO(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if err == nil {
		return ExitSuccess
	}

	var usage *usageError
	switch {
	case errors.As(err, &usage):
		fmt.Fprintf(stderr, "Error: %v\nRun 'putio-sync --help' for usage.\n", err)
	case errors.Is(err, errDownloadsFailed):
		// The failed files were already listed in the summary.
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// usageError marks bad flags or arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// errDownloadsFailed is returned when --fail-on-error is set and at least
// one file could not be mirrored.
var errDownloadsFailed = errors.New("some downloads failed")

func exitCode(err error) int {
	var usage *usageError
	var localErr *mirror.LocalIOError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage):
		return ExitInvalidArgs
	case errors.Is(err, config.ErrMissingToken):
		return ExitMissingToken
	case errors.Is(err, context.Canceled):
		return ExitGeneralError
	case remote.IsNotFound(err):
		return ExitNotFound
	case errors.Is(err, remote.ErrUnavailable):
		return ExitRemoteError
	case errors.As(err, &localErr):
		return ExitLocalIOError
	case errors.Is(err, errDownloadsFailed):
		return ExitDownloadsFailed
	default:
		return ExitGeneralError
	}
}
