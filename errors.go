package instakit

import (
	"errors"
	"strconv"
)

// Kind classifies the errors surfaced by the client.
type Kind int

const (
	KindMissingConfiguration Kind = iota + 1
	KindInvalidRequest
	KindParseError
	KindStorageError
	KindCancelled
)

// Sentinels for errors.Is. Every *Error unwraps to the sentinel of its kind.
var (
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrParseError           = errors.New("parse error")
	ErrStorageError         = errors.New("storage error")
	ErrCancelled            = errors.New("cancelled")
)

func (k Kind) String() string {
	switch k {
	case KindMissingConfiguration:
		return "missingConfiguration"
	case KindInvalidRequest:
		return "invalidRequest"
	case KindParseError:
		return "parseError"
	case KindStorageError:
		return "storageError"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindMissingConfiguration:
		return ErrMissingConfiguration
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindParseError:
		return ErrParseError
	case KindStorageError:
		return ErrStorageError
	case KindCancelled:
		return ErrCancelled
	default:
		return nil
	}
}

// Error is a terminal failure of a login, storage or request operation.
type Error struct {
	Kind    Kind
	Op      string // "login", "store.set", "request", ...
	Code    int    // HTTP status, meta code or storage result code; 0 if none
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		msg = s.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Code != 0 {
		msg += " (code " + strconv.Itoa(e.Code) + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func storageError(op string, code int, err error) *Error {
	return &Error{Kind: KindStorageError, Op: op, Code: code, Err: err}
}
