package llm

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/brd-breakdown/constants"
)

// Error is a generation failure with a structured code. StatusCode and Body are
// set only for UPSTREAM_ERROR.
type Error struct {
	Code       constants.FailureCode
	Message    string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(code constants.FailureCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: cause}
}

// CodeOf returns the failure code carried by err, or "" when err is not an *Error.
func CodeOf(err error) constants.FailureCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// MissingCredentialMessage is recorded when no API key is configured.
const MissingCredentialMessage = "LLM API key not found: set GROQ_API_KEY or VITE_GROQ_API_KEY"
