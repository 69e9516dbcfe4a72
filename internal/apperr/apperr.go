// Package apperr defines the caller-facing error taxonomy. Every error that
// reaches a caller carries a stable machine-readable code and a human-readable
// message; the wrapped cause is for logs only.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups codes by who can act on them.
type Kind string

const (
	KindValidation Kind = "validation"
	KindQuota      Kind = "quota"
	KindSafety     Kind = "safety"
	KindNotFound   Kind = "not_found"
	KindUpstream   Kind = "upstream"
	KindIntegrity  Kind = "integrity"
	KindRejected   Kind = "rejected"
	KindInternal   Kind = "internal"
)

// Stable reason codes.
const (
	CodeValidation          = "validation_error"
	CodeQuotaDaily          = "quota_daily_exceeded"
	CodeQuotaMonthly        = "quota_monthly_exceeded"
	CodeSafetyBlocked       = "safety_blocked"
	CodeSessionNotFound     = "session_not_found"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeIntegrity           = "integrity_error"
	CodeBranchingDisabled   = "branching_disabled"
	CodeBranchQuotaZero     = "branch_quota_zero"
	CodeMaxBranchesReached  = "max_branches_reached"
	CodeParentNotFound      = "parent_not_found"
	CodeMaxDepthReached     = "max_depth_reached"
	CodeBranchNotFound      = "branch_not_found"
	CodeInternal            = "internal_error"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Validation(message string) *Error {
	return New(KindValidation, CodeValidation, message, nil)
}

func SessionNotFound() *Error {
	return New(KindNotFound, CodeSessionNotFound, "conversation not found", nil)
}

func SafetyBlocked() *Error {
	return New(KindSafety, CodeSafetyBlocked, "this request can't be answered", nil)
}

func Upstream(err error) *Error {
	return New(KindUpstream, CodeUpstreamUnavailable, "the assistant is temporarily unavailable, please retry shortly", err)
}

func Integrity(message string, err error) *Error {
	return New(KindIntegrity, CodeIntegrity, message, err)
}

// QuotaExceeded reports an exhausted daily or monthly allowance.
func QuotaExceeded(monthly bool) *Error {
	if monthly {
		return New(KindQuota, CodeQuotaMonthly, "you have used this month's allowance", nil)
	}
	return New(KindQuota, CodeQuotaDaily, "you have used today's allowance, please come back tomorrow", nil)
}

// Rejected is a policy refusal such as a branch limit.
func Rejected(code, message string) *Error {
	return New(KindRejected, code, message, nil)
}

func Internal(err error) *Error {
	return New(KindInternal, CodeInternal, "internal error", err)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the reason code of err, or CodeInternal for untyped errors.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

// Public returns the code and message safe to show a caller.
func Public(err error) (code, message string) {
	if e, ok := As(err); ok {
		return e.Code, e.Message
	}
	return CodeInternal, "internal error"
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindQuota:
		return http.StatusTooManyRequests
	case KindSafety:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusServiceUnavailable
	case KindRejected:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
