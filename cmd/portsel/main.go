package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Portfolio selected and reported
	ExitEmptyCorpus = 1 // No usable samples: malformed input or everything excluded
	ExitError       = 2 // Configuration or runtime error
)

// EmptyCorpusError indicates that the input parsed but left nothing to
// select over, either because every record was skipped or because the
// degenerate policy excluded every sample.
type EmptyCorpusError struct {
	Err error
}

func (e *EmptyCorpusError) Error() string {
	return e.Err.Error()
}

func (e *EmptyCorpusError) Unwrap() error {
	return e.Err
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		// Check error type to determine exit code
		var emptyErr *EmptyCorpusError
		if errors.As(err, &emptyErr) {
			os.Exit(ExitEmptyCorpus)
		}

		// All other errors are configuration/runtime errors
		os.Exit(ExitError)
	}
}
