package types

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindValidation             ErrorKind = "validation"
	KindRiskRejection          ErrorKind = "risk_rejection"
	KindComplianceRejection    ErrorKind = "compliance_rejection"
	KindInsufficientBalance    ErrorKind = "insufficient_balance"
	KindSettlementFailure      ErrorKind = "settlement_failure"
	KindConcurrencyConflict    ErrorKind = "concurrency_conflict"
	KindTemporarilyUnavailable ErrorKind = "temporarily_unavailable"
	KindNotFound               ErrorKind = "not_found"
	KindForbidden              ErrorKind = "forbidden"
	KindInvalidState           ErrorKind = "invalid_state"
	KindInternal               ErrorKind = "internal"
)

// Error is the typed error carried out of the order pipeline. Code follows the
// "<scope>.<entity>.<reason>" convention used by the API error payloads.
type Error struct {
	Kind       ErrorKind
	Code       string
	Message    string
	Violations []string
	Err        error
}

func NewError(kind ErrorKind, code string, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind ErrorKind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Code)

	if len(e.Message) > 0 {
		b.WriteString(" (")
		b.WriteString(e.Message)
		b.WriteString(")")
	}

	if len(e.Violations) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Violations, ", "))
		b.WriteString("]")
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and, when set, by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	if t.Kind != e.Kind {
		return false
	}

	return len(t.Code) == 0 || t.Code == e.Code
}

// WithViolations returns a copy of e carrying the given violation codes.
func (e *Error) WithViolations(violations ...string) *Error {
	cp := *e
	cp.Violations = append(append([]string{}, e.Violations...), violations...)
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	return KindInternal
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) string {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Code
	}

	return "server.internal_error"
}

func Errorf(kind ErrorKind, code string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}
