// Package apperrors is the closed error taxonomy returned by the services.
// Callers switch on Kind; Reason narrows the cause for clients and tests.
package apperrors

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

type Reason string

const (
	ReasonPackageNotFound         Reason = "package_not_found"
	ReasonStatusNotFound          Reason = "status_not_found"
	ReasonHistoryEntryNotFound    Reason = "history_entry_not_found"
	ReasonGroupNotFound           Reason = "group_not_found"
	ReasonLockerNotFound          Reason = "locker_not_found"
	ReasonAssignmentNotFound      Reason = "assignment_not_found"
	ReasonDuplicateName           Reason = "duplicate_name"
	ReasonDuplicateTrackingNumber Reason = "duplicate_tracking_number"
	ReasonNoOpTransition          Reason = "no_op_transition"
	ReasonAlreadyAssigned         Reason = "already_assigned"
	ReasonInvalidInput            Reason = "invalid_input"
	ReasonStorage                 Reason = "storage"
)

type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and reason, so the sentinels below work
// with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// Detail is the diagnostic attached to internal errors.
func (e *Error) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

var (
	ErrPackageNotFound         = &Error{Kind: KindNotFound, Reason: ReasonPackageNotFound, Message: "package not found"}
	ErrStatusNotFound          = &Error{Kind: KindNotFound, Reason: ReasonStatusNotFound, Message: "status not found"}
	ErrHistoryEntryNotFound    = &Error{Kind: KindNotFound, Reason: ReasonHistoryEntryNotFound, Message: "history entry not found"}
	ErrGroupNotFound           = &Error{Kind: KindNotFound, Reason: ReasonGroupNotFound, Message: "group not found"}
	ErrLockerNotFound          = &Error{Kind: KindNotFound, Reason: ReasonLockerNotFound, Message: "locker not found"}
	ErrAssignmentNotFound      = &Error{Kind: KindNotFound, Reason: ReasonAssignmentNotFound, Message: "assignment not found"}
	ErrDuplicateName           = &Error{Kind: KindValidation, Reason: ReasonDuplicateName, Message: "an active record with that name already exists"}
	ErrDuplicateTrackingNumber = &Error{Kind: KindValidation, Reason: ReasonDuplicateTrackingNumber, Message: "an active package with that tracking number already exists"}
	ErrNoOpTransition          = &Error{Kind: KindValidation, Reason: ReasonNoOpTransition, Message: "same status may not be applied twice consecutively"}
	ErrAlreadyAssigned         = &Error{Kind: KindValidation, Reason: ReasonAlreadyAssigned, Message: "package is already assigned to a locker"}
)

func NotFound(reason Reason, msg string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason, Message: msg}
}

func Validation(reason Reason, msg string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: msg}
}

func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Reason: ReasonInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps a storage or unexpected failure. An err that already is an
// *Error is returned unchanged.
func Internal(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindInternal, Reason: ReasonStorage, Message: msg, Err: err}
}

// KindOf reports the kind of err; anything foreign is internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func ReasonOf(err error) Reason {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ReasonStorage
}
