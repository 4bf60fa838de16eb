// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// Kinds and Codes
// =============================================================================

// Kind is the closed set of fault categories.
type Kind string

const (
	KindAuthentication      Kind = "AUTHENTICATION"
	KindNotFound            Kind = "NOT_FOUND"
	KindPermission          Kind = "PERMISSION"
	KindRateLimit           Kind = "RATE_LIMIT"
	KindValidation          Kind = "VALIDATION"
	KindTransientNetwork    Kind = "TRANSIENT_NETWORK"
	KindInternalAggregation Kind = "INTERNAL_AGGREGATION"
)

// Retryable reports whether a fault of this kind may succeed on retry.
func (k Kind) Retryable() bool {
	return k == KindTransientNetwork
}

// Code is the closed enumeration rendered as ERROR_TYPE and stored under
// DebugInfo["code"].
type Code string

const (
	CodeInvalidToken                Code = "INVALID_TOKEN"
	CodeServiceInitializationFailed Code = "SERVICE_INITIALIZATION_FAILED"
	CodeAuthenticationFailed        Code = "AUTHENTICATION_FAILED"
	CodeResourceNotFound            Code = "RESOURCE_NOT_FOUND"
	CodePermissionDenied            Code = "PERMISSION_DENIED"
	CodeRateLimitExceeded           Code = "RATE_LIMIT_EXCEEDED"
	CodeInvalidInput                Code = "INVALID_INPUT"
	CodeNetworkError                Code = "NETWORK_ERROR"
	CodeAggregationFailed           Code = "AGGREGATION_FAILED"
)

// defaultCodes maps each kind to the code used when a constructor is not
// given a more specific one.
var defaultCodes = map[Kind]Code{
	KindAuthentication:      CodeAuthenticationFailed,
	KindNotFound:            CodeResourceNotFound,
	KindPermission:          CodePermissionDenied,
	KindRateLimit:           CodeRateLimitExceeded,
	KindValidation:          CodeInvalidInput,
	KindTransientNetwork:    CodeNetworkError,
	KindInternalAggregation: CodeAggregationFailed,
}

// DebugKeyCode is the DebugInfo key holding the Code.
const DebugKeyCode = "code"

// DebugKeyError is the DebugInfo key holding the original error text of a
// wrapped fault.
const DebugKeyError = "error"

// =============================================================================
// OrchestratorError
// =============================================================================

// OrchestratorError is the typed fault carried by envelopes.
//
// # Description
//
// OrchestratorError pairs a fault with the steps a user (or the downstream
// consumer) should take to recover. It is created once, at the boundary
// where a raw error first becomes meaningful, and travels unchanged from
// there on.
//
// # Thread Safety
//
// OrchestratorError is immutable after construction. Accessors return
// copies of the slice and map fields.
type OrchestratorError struct {
	// Kind is the fault category.
	Kind Kind

	// Cause is the underlying error. Never nil.
	Cause error

	recovery []string
	debug    map[string]string
}

// Error returns "<code>: <cause>".
func (e *OrchestratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code(), e.Cause)
}

// Unwrap exposes Cause to errors.Is and errors.As.
func (e *OrchestratorError) Unwrap() error {
	return e.Cause
}

// Code returns the closed-enum code from DebugInfo, or the kind's default
// code for errors not built by a constructor.
func (e *OrchestratorError) Code() Code {
	if c := e.debug[DebugKeyCode]; c != "" {
		return Code(c)
	}
	return defaultCodes[e.Kind]
}

// RecoveryInstructions returns the ordered remediation steps.
func (e *OrchestratorError) RecoveryInstructions() []string {
	out := make([]string, len(e.recovery))
	copy(out, e.recovery)
	return out
}

// DebugInfo returns a copy of the debug map. It always contains "code".
func (e *OrchestratorError) DebugInfo() map[string]string {
	out := make(map[string]string, len(e.debug))
	for k, v := range e.debug {
		out[k] = v
	}
	return out
}

// DebugKeys returns the DebugInfo keys in sorted order, with "code" first.
func (e *OrchestratorError) DebugKeys() []string {
	keys := make([]string, 0, len(e.debug))
	for k := range e.debug {
		if k != DebugKeyCode {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return append([]string{DebugKeyCode}, keys...)
}

// Compile-time interface satisfaction check
var _ error = (*OrchestratorError)(nil)

// =============================================================================
// Constructors
// =============================================================================

// New creates an OrchestratorError.
//
// # Inputs
//
//   - kind: Fault category.
//   - code: Closed-enum code. Empty selects the kind's default code.
//   - cause: Underlying error. A nil cause is replaced by a generic error
//     naming the kind.
//   - recovery: Steps to prepend to the kind's canonical instructions.
//
// # Outputs
//
//   - *OrchestratorError: Never nil; RecoveryInstructions is never empty.
func New(kind Kind, code Code, cause error, recovery ...string) *OrchestratorError {
	if cause == nil {
		cause = errors.New(strings.ToLower(string(kind)))
	}
	if code == "" {
		code = defaultCodes[kind]
	}
	steps := make([]string, 0, len(recovery)+4)
	for _, r := range recovery {
		if strings.TrimSpace(r) != "" {
			steps = append(steps, r)
		}
	}
	steps = append(steps, Recovery(kind)...)
	return &OrchestratorError{
		Kind:     kind,
		Cause:    cause,
		recovery: steps,
		debug:    map[string]string{DebugKeyCode: string(code)},
	}
}

// WithDebug returns a copy of e with an extra DebugInfo entry. The "code"
// key cannot be overwritten.
func (e *OrchestratorError) WithDebug(key, value string) *OrchestratorError {
	if key == DebugKeyCode {
		return e
	}
	cp := &OrchestratorError{
		Kind:     e.Kind,
		Cause:    e.Cause,
		recovery: e.RecoveryInstructions(),
		debug:    e.DebugInfo(),
	}
	cp.debug[key] = value
	return cp
}

// InvalidToken is returned by the service factory when no usable
// credential could be validated.
func InvalidToken(cause error) *OrchestratorError {
	return New(KindAuthentication, CodeInvalidToken, cause)
}

// Authentication reports a rejected credential on an individual call.
func Authentication(cause error) *OrchestratorError {
	return New(KindAuthentication, "", cause)
}

// NotFound reports a missing or invisible resource.
func NotFound(resource string, cause error) *OrchestratorError {
	return New(KindNotFound, "", cause,
		fmt.Sprintf("Verify that %q exists and is spelled correctly", resource)).
		WithDebug("resource", resource)
}

// Permission reports a missing token scope. scope may be empty when the
// platform did not say which scope is required.
func Permission(scope string, cause error) *OrchestratorError {
	var extra []string
	if scope != "" {
		extra = append(extra, fmt.Sprintf("Grant the token the %q scope: gh auth refresh -s %s", scope, scope))
	}
	e := New(KindPermission, "", cause, extra...)
	if scope != "" {
		e = e.WithDebug("required_scope", scope)
	}
	return e
}

// RateLimit reports an exhausted API quota that resets at reset.
func RateLimit(reset time.Time, cause error) *OrchestratorError {
	resetText := reset.UTC().Format(time.RFC3339)
	return New(KindRateLimit, "", cause,
		fmt.Sprintf("Wait until %s before retrying", resetText)).
		WithDebug("reset_at", resetText)
}

// Validation reports malformed input. expected describes the accepted
// format and is always surfaced as the first recovery step.
func Validation(expected string, cause error) *OrchestratorError {
	return New(KindValidation, "", cause, "Expected format: "+expected).
		WithDebug("expected", expected)
}

// TransientNetwork reports a timeout, connection failure or 5xx response
// for operation op.
func TransientNetwork(op string, cause error) *OrchestratorError {
	return New(KindTransientNetwork, "", cause).WithDebug("operation", op)
}

// InternalAggregation reports a defect in the aggregation step.
func InternalAggregation(cause error) *OrchestratorError {
	return New(KindInternalAggregation, "", cause)
}

// =============================================================================
// Wrapping and Inspection
// =============================================================================

// Wrap types an unexpected error at a service boundary.
//
// # Description
//
// If err already is, or wraps, an *OrchestratorError that error is
// returned unchanged (no double-wrap). Context deadline and network
// timeouts become TRANSIENT_NETWORK faults. Everything else is wrapped with
// code SERVICE_INITIALIZATION_FAILED and the original message preserved in
// DebugInfo["error"].
//
// # Outputs
//
//   - *OrchestratorError: nil when err is nil.
func Wrap(err error) *OrchestratorError {
	if err == nil {
		return nil
	}
	var typed *OrchestratorError
	if errors.As(err, &typed) {
		return typed
	}
	if IsTimeout(err) {
		return New(KindTransientNetwork, "", err).WithDebug(DebugKeyError, err.Error())
	}
	return New(KindInternalAggregation, CodeServiceInitializationFailed, err,
		"Re-run with --log-level debug and inspect the log output").
		WithDebug(DebugKeyError, err.Error())
}

// As extracts an *OrchestratorError from err's chain.
func As(err error) (*OrchestratorError, bool) {
	var typed *OrchestratorError
	if errors.As(err, &typed) {
		return typed, true
	}
	return nil, false
}

// KindOf returns the kind of a typed error, or "" for untyped errors.
func KindOf(err error) Kind {
	if typed, ok := As(err); ok {
		return typed.Kind
	}
	return ""
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
