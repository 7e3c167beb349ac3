package utils

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidURL       ErrorKind = "InvalidUrl"
	KindAuthRequired     ErrorKind = "AuthRequired"
	KindExtractionFailed ErrorKind = "ExtractionFailed"
	KindMergeFailed      ErrorKind = "MergeFailed"
	KindInvalidRequest   ErrorKind = "InvalidRequest"
	KindBusy             ErrorKind = "Busy"
	KindNotFound         ErrorKind = "NotFound"
	KindTimeout          ErrorKind = "Timeout"
	KindCancelled        ErrorKind = "Cancelled"
)

var kindLabels = map[ErrorKind]string{
	KindInvalidURL:       "INVALID_URL",
	KindAuthRequired:     "AUTH_REQUIRED",
	KindExtractionFailed: "EXTRACTION_FAILED",
	KindMergeFailed:      "MERGE_FAILED",
	KindInvalidRequest:   "INVALID_REQUEST",
	KindBusy:             "BUSY",
	KindNotFound:         "NOT_FOUND",
	KindTimeout:          "TIMEOUT",
	KindCancelled:        "CANCELLED",
}

// Label is the short wire form of the kind, e.g. AUTH_REQUIRED.
func (k ErrorKind) Label() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return "INTERNAL"
}

// Error is the structured failure surfaced to callers: a kind plus a human detail.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func WrapError(kind ErrorKind, err error, detail string) *Error {
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func DetailOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	return err.Error()
}
