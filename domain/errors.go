package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a request failure. Every per-request error surfaced
// by the pipeline carries exactly one kind.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindSynthesis
	KindTranscode
	KindDispatch
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSynthesis:
		return "synthesis"
	case KindTranscode:
		return "transcode"
	case KindDispatch:
		return "dispatch"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error is a classified request error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and message. err may be nil.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind of err, or KindInternal if err is not a
// classified *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
