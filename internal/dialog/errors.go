// Package dialog implements the dialog lifecycle and assignment state
// machine: claim, release, transfer, status transitions, and message append.
//
// All assignment mutations are guarded UPDATEs checked via RowsAffected, so
// concurrent claims and transfers serialize at the database rather than in
// application code.
package dialog

import "errors"

var (
	// ErrNotFound is returned when the dialog does not exist.
	ErrNotFound = errors.New("dialog not found")
	// ErrAlreadyAssigned is returned when a claim or transfer loses the
	// race to another assignee.
	ErrAlreadyAssigned = errors.New("dialog already assigned")
	// ErrNotAssignee is returned when the actor is not the current assignee.
	ErrNotAssignee = errors.New("not the current assignee")
	// ErrDialogClosed is returned for operations rejected on CLOSED dialogs.
	ErrDialogClosed = errors.New("dialog is closed")
	// ErrNotPermitted is returned when the actor's role or tenant forbids
	// the operation.
	ErrNotPermitted = errors.New("operation not permitted")
	// ErrBadTransition is returned for invalid status or reason values.
	ErrBadTransition = errors.New("invalid status transition")
)
