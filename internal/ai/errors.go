package ai

import (
	"errors"
)

// Kinds of extraction failure. Match them with errors.Is.
var (
	ErrTransport       = errors.New("transport failure")
	ErrUnavailable     = errors.New("service unavailable")
	ErrUpstream        = errors.New("upstream error")
	ErrEmptyResponse   = errors.New("empty response")
	ErrInvalidEnvelope = errors.New("invalid response envelope")
	ErrNoCandidate     = errors.New("no candidate")
	ErrEmptyContent    = errors.New("empty content")
	ErrInvalidRecipe   = errors.New("invalid recipe json")
	ErrValidation      = errors.New("recipe validation failed")
)

const unavailableMessage = "Gemini service unavailable. Please try again in a moment."

// Error carries a message fit to show the user. Kind is one of the sentinels
// above and Err is the underlying cause when there is one.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func validationError(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

// UserMessage returns the most specific message available for err.
func UserMessage(err error) string {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Message
	}
	if err == nil {
		return ""
	}
	return "Failed to extract recipe. Please try again."
}
