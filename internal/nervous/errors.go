package nervous

import (
	"errors"
	"fmt"

	"github.com/kestrelworks/nervecenter/internal/record"
)

// #region error-types
// UnknownActorError reports a write naming an actor id that was never
// registered. It is always surfaced; a missing actor is never defaulted.
type UnknownActorError struct {
	ActorID string
	Op      string
}

func (e *UnknownActorError) Error() string {
	return fmt.Sprintf("%s: unknown actor %s", e.Op, e.ActorID)
}

// NotFoundError reports an operation referencing a nonexistent record id.
type NotFoundError struct {
	Kind record.Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// PermissionError reports a write on behalf of an actor whose permission
// set does not allow it.
type PermissionError struct {
	ActorID string
	Op      string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: actor %s lacks write permission", e.Op, e.ActorID)
}

// ValidationError reports malformed input to an operation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
// #endregion error-types

// #region error-predicates
// IsNotFound reports whether err is any of the not-found kinds.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsUnknownActor reports whether err is an unknown-actor reference.
func IsUnknownActor(err error) bool {
	var ua *UnknownActorError
	return errors.As(err, &ua)
}

// IsPermission reports whether err is a permission denial.
func IsPermission(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
// #endregion error-predicates
