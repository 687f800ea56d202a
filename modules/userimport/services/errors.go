package services

import (
	"errors"
	"fmt"
	"strings"
)

// ImportError is returned for every workflow-fatal and submission-level failure.
// errors.Is matches on Code, so callers compare against the sentinels below.
type ImportError struct {
	Code    string
	Message string
	// Missing lists the absent required columns for ErrMissingRequiredColumns.
	Missing []string
	Cause   error
}

func (e *ImportError) Error() string {
	msg := e.Message
	if len(e.Missing) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Missing, ", "))
	}
	if e.Cause == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Cause)
}

func (e *ImportError) Unwrap() error { return e.Cause }

func (e *ImportError) Is(target error) bool {
	var t *ImportError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Fatal-to-workflow.
var (
	ErrUnsupportedFormat        = &ImportError{Code: "UNSUPPORTED_FORMAT", Message: "unsupported file type (expected .xlsx or .xls)"}
	ErrOversizedFile            = &ImportError{Code: "OVERSIZED_FILE", Message: "file is too large"}
	ErrParseFailure             = &ImportError{Code: "PARSE_FAILURE", Message: "spreadsheet could not be decoded"}
	ErrEmptyDataset             = &ImportError{Code: "EMPTY_DATASET", Message: "spreadsheet has no data rows"}
	ErrMissingRequiredColumns   = &ImportError{Code: "MISSING_REQUIRED_COLUMNS", Message: "missing required columns"}
	ErrReferenceDataNotLoaded   = &ImportError{Code: "REFERENCE_DATA_NOT_LOADED", Message: "roles are still loading, please wait"}
	ErrReferenceDataUnavailable = &ImportError{Code: "REFERENCE_DATA_UNAVAILABLE", Message: "roles could not be loaded"}
)

// Submission-level.
var (
	ErrNothingToSubmit      = &ImportError{Code: "NOTHING_TO_SUBMIT", Message: "no valid records to submit"}
	ErrSubmissionInProgress = &ImportError{Code: "SUBMISSION_IN_PROGRESS", Message: "a submission is already in progress"}
	ErrAlreadySubmitted     = &ImportError{Code: "ALREADY_SUBMITTED", Message: "records were already submitted; reset to import another file"}
	ErrSubmissionRejected   = &ImportError{Code: "SUBMISSION_REJECTED", Message: "bulk user creation failed"}
	// ErrUnresolvedRole means a record passed validation but its role no longer
	// resolves; it points at a resolver/validator inconsistency, not a backend rejection.
	ErrUnresolvedRole = &ImportError{Code: "UNRESOLVED_ROLE", Message: "record role could not be resolved"}
)

func newImportError(base *ImportError, message string, cause error) *ImportError {
	if message == "" {
		message = base.Message
	}
	return &ImportError{Code: base.Code, Message: message, Cause: cause}
}
