// Package kerr defines kaybee's uniform error payload, in the same spirit as
// a CLI tool's structured error codes: every caller-visible failure carries a
// machine-readable Code plus a human Message, and recoverable failures are
// distinguishable from systemic ones by code alone.
package kerr

import "encoding/json"

// Code enumerates the error kinds the spec requires callers to distinguish.
type Code string

const (
	NotFound          Code = "NotFound"
	Exists            Code = "Exists"
	Invalid           Code = "Invalid"
	SchemaConflict    Code = "SchemaConflict"
	LayoutMismatch    Code = "LayoutMismatch"
	ChangelogDisabled Code = "ChangelogDisabled"
)

// Error is a uniform error payload for both human and JSON-facing callers.
type Error struct {
	Code    Code     `json:"code"`
	Message string   `json:"message"`
	Detail  string   `json:"detail,omitempty"`
	Rules   []string `json:"rules,omitempty"` // populated for Invalid: every failing rule's message
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// JSON renders the error as a JSON payload. The kaybee CLI does not call
// it: errors print as text even when --json is set.
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// Is lets errors.Is(err, kerr.ErrNotFound) (or any other *Error sentinel)
// match every *Error that carries the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New builds an Error with no wrapped detail.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap builds an Error that carries an inner error's text as Detail.
func Wrap(code Code, msg string, inner error) error {
	if inner == nil {
		return &Error{Code: code, Message: msg}
	}
	return &Error{Code: code, Message: msg, Detail: inner.Error()}
}

// NewInvalid builds the structured validator-rejection error: every failing
// rule's message is carried, never just the first (per the spec's "never
// short-circuit after the first" requirement).
func NewInvalid(messages []string) error {
	return &Error{
		Code:    Invalid,
		Message: "validation failed",
		Rules:   messages,
	}
}

// CodeOf extracts the Code from err, or "" if err is not a *Error.
func CodeOf(err error) Code {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// Sentinel instances for errors.Is comparisons against a bare code.
var (
	ErrNotFound          = &Error{Code: NotFound}
	ErrExists            = &Error{Code: Exists}
	ErrSchemaConflict    = &Error{Code: SchemaConflict}
	ErrLayoutMismatch    = &Error{Code: LayoutMismatch}
	ErrChangelogDisabled = &Error{Code: ChangelogDisabled}
)
