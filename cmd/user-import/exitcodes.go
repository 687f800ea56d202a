package main

import (
	"errors"

	"github.com/iota-uz/userimport/modules/userimport/infrastructure/api"
	"github.com/iota-uz/userimport/modules/userimport/services"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitAPI        = 4
	exitRejected   = 5
	exitIO         = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	if errors.Is(err, api.ErrInvalidBaseURL) {
		return exitUsage
	}
	var ie *services.ImportError
	if errors.As(err, &ie) {
		return importExitCode(ie)
	}
	return 1
}

func importExitCode(ie *services.ImportError) int {
	switch {
	case errors.Is(ie, services.ErrSubmissionRejected):
		return exitRejected
	case errors.Is(ie, services.ErrReferenceDataUnavailable),
		errors.Is(ie, services.ErrReferenceDataNotLoaded):
		return exitAPI
	case errors.Is(ie, services.ErrUnresolvedRole):
		return 1
	default:
		// file-level failures and NOTHING_TO_SUBMIT
		return exitValidation
	}
}
