// Copyright 2026 The Grange Authors
// SPDX-License-Identifier: Apache-2.0

package lobby

import (
	"errors"
	"fmt"
)

// Code classifies a rejected operation. Every rejection surfaces to
// the triggering actor with a human-readable reason; none of them
// leaves partial state behind.
type Code string

const (
	// CodeInvalidInput marks malformed input: unparseable schedule
	// text, capacity outside 1..3, a slot index with no slot, a
	// profile link that is not a profile link.
	CodeInvalidInput Code = "invalid-input"

	// CodePreconditionFailed marks an operation that is well-formed
	// but impossible in the current state: slot occupied or already
	// requested, event full, already joined, actor not a member.
	CodePreconditionFailed Code = "precondition-failed"

	// CodeNotPrivileged marks an operation reserved for privileged
	// actors.
	CodeNotPrivileged Code = "not-privileged"

	// CodeNotFound marks a reference to an absent entity: unknown
	// event, channel without a pool, user without a pending
	// verification.
	CodeNotFound Code = "not-found"

	// CodeUnreachable marks a collaborator failure. For render and
	// notify calls these are logged and swallowed (state is already
	// committed); for identity resolution the failure is surfaced to
	// the submitter.
	CodeUnreachable Code = "collaborator-unreachable"
)

// Error is the rejection type for all lobby operations. Inspect with
// errors.As or [IsCode].
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("lobby: %s: %s", e.Code, e.Message)
}

// IsCode reports whether err is a lobby *Error carrying code.
func IsCode(err error, code Code) bool {
	var lobbyErr *Error
	if errors.As(err, &lobbyErr) {
		return lobbyErr.Code == code
	}
	return false
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func preconditionFailed(format string, args ...any) *Error {
	return &Error{Code: CodePreconditionFailed, Message: fmt.Sprintf(format, args...)}
}

func notPrivileged(format string, args ...any) *Error {
	return &Error{Code: CodeNotPrivileged, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func unreachable(format string, args ...any) *Error {
	return &Error{Code: CodeUnreachable, Message: fmt.Sprintf(format, args...)}
}

// ErrRenderTargetGone is returned by Renderer implementations when the
// backing message for a rendering has been deleted. The pool refresh
// loop treats it as permanent: the pool is torn down and its tick
// cancelled. Any other render error is transient and retried on the
// next tick.
var ErrRenderTargetGone = errors.New("lobby: render target gone")

// ErrBadLink is returned by Directory.CheckLink for text that is not a
// syntactically valid profile link. A bad link does not consume the
// submitter's verification attempt.
var ErrBadLink = errors.New("lobby: not a valid profile link")

// ErrProfileNotFound is returned by Directory.ResolveProfile when the
// link is well-formed but resolves to no profile.
var ErrProfileNotFound = errors.New("lobby: profile not found")
