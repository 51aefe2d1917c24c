package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidDraft         = errors.New("invalid draft")
	ErrImageRejected        = errors.New("image rejected")
	ErrSubmissionFailed     = errors.New("submission failed")
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrSubmissionInFlight   = errors.New("submission already in flight")
)

// Reason codes shared by the error types below.
const (
	ReasonTooShort      = "too_short"
	ReasonTooLong       = "too_long"
	ReasonTooMany       = "too_many"
	ReasonInvalidOption = "invalid_option"
	ReasonDecodeFailed  = "decode_failed"
	ReasonEncodeFailed  = "encode_failed"
	ReasonBadResponse   = "bad_response"
	ReasonHTTPStatus    = "http_status"
	ReasonTransport     = "transport"
)

// ValidationError describes one content rule a draft failed.
type ValidationError struct {
	Field    string `json:"field"`
	Reason   string `json:"reason"`
	Required int    `json:"required"`
	Actual   int    `json:"actual"`
	Value    string `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	switch e.Reason {
	case ReasonTooShort:
		return fmt.Sprintf("%s: too short (%d < %d characters)", e.Field, e.Actual, e.Required)
	case ReasonTooLong:
		return fmt.Sprintf("%s: too long (%d > %d characters)", e.Field, e.Actual, e.Required)
	case ReasonTooMany:
		return fmt.Sprintf("%s: too many items (%d > %d)", e.Field, e.Actual, e.Required)
	case ReasonInvalidOption:
		return fmt.Sprintf("%s: %q is not a valid option", e.Field, e.Value)
	default:
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
}

// ValidationErrors accumulates every violation found in a draft.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return "invalid draft: " + strings.Join(msgs, "; ")
}

// Is lets callers match any validation failure with errors.Is(err, ErrInvalidDraft).
func (v ValidationErrors) Is(target error) bool {
	return target == ErrInvalidDraft
}

// Fields returns the offending field names in order.
func (v ValidationErrors) Fields() []string {
	out := make([]string, 0, len(v))
	for _, e := range v {
		out = append(out, e.Field)
	}
	return out
}

// ImageError reports a single image that could not be prepared.
type ImageError struct {
	Index    int    `json:"index"`
	Filename string `json:"filename,omitempty"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

func (e *ImageError) Error() string {
	msg := fmt.Sprintf("image %d", e.Index)
	if e.Filename != "" {
		msg += fmt.Sprintf(" (%s)", e.Filename)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ImageError) Unwrap() error { return e.Err }

func (e *ImageError) Is(target error) bool { return target == ErrImageRejected }

// SubmissionError reports a failed call to the generation backend. Status is zero when
// the request never produced a response.
type SubmissionError struct {
	Status  int    `json:"status,omitempty"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *SubmissionError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("submission failed: %s (status %d): %s", e.Reason, e.Status, e.Message)
	}
	return fmt.Sprintf("submission failed: %s: %s", e.Reason, e.Message)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool { return target == ErrSubmissionFailed }

// ConfigurationError is returned when a feature is used without its required settings.
type ConfigurationError struct {
	Feature string
	Key     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured: %s is required", e.Feature, e.Key)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrMissingConfiguration }
