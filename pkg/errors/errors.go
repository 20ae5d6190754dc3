// Package errors classifies the ways a fetch can fail.
// Import it as perrors to keep the stdlib package name free.
package errors

import (
	"errors"
	"fmt"
)

// Kind is the broad class of a pipeline failure. Callers branch on it to pick exit codes and messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindResolution
	KindTrustLoad
	KindConnect
	KindHandshake
	KindCertificate
	KindWrite
	KindRead
	KindProtocol
	KindTruncatedBody
	KindJSONSyntax
)

func (k Kind) String() string {
	switch k {
	case KindResolution:
		return "resolution error"
	case KindTrustLoad:
		return "trust store load error"
	case KindConnect:
		return "connect error"
	case KindHandshake:
		return "TLS handshake error"
	case KindCertificate:
		return "certificate verification error"
	case KindWrite:
		return "write error"
	case KindRead:
		return "read error"
	case KindProtocol:
		return "protocol error"
	case KindTruncatedBody:
		return "truncated body"
	case KindJSONSyntax:
		return "JSON syntax error"
	default:
		return fmt.Sprintf("unknown error kind %d", int(k))
	}
}

type Error struct {
	Kind Kind
	// Op names the pipeline step that failed, eg "resolve" or "read body"
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is New with a formatted cause.
func Errorf(kind Kind, op string, format string, args ...interface{}) *Error {
	return New(kind, op, fmt.Errorf(format, args...))
}

// Wrap classifies err as kind, unless it's already been classified further down, in which case it's returned untouched.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return New(kind, op, err)
}

// KindOf returns the Kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
