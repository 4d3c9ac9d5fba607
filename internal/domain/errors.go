package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// InvalidTransitionError rejects an operation the current document or
// contributor state does not permit: publishing with no authors, signing out
// of turn, re-signing a terminal contributor.
type InvalidTransitionError struct {
	Status DocumentStatus
	Detail string
}

func (e InvalidTransitionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid transition from status %s", e.Status)
	}
	return fmt.Sprintf("invalid transition from status %s: %s", e.Status, e.Detail)
}

func (e InvalidTransitionError) Is(target error) bool {
	_, ok := target.(InvalidTransitionError)
	if ok {
		return true
	}
	_, ok = target.(*InvalidTransitionError)
	return ok
}

var ErrInvalidTransition = InvalidTransitionError{}

// InvitationNotActionableError covers accept/decline on an invitation that is
// no longer pending or whose expiry has passed, regardless of stored status.
type InvitationNotActionableError struct {
	Status  InvitationStatus
	Expired bool
}

func (e InvitationNotActionableError) Error() string {
	if e.Expired {
		return "invitation has expired"
	}
	return fmt.Sprintf("invitation already %s", e.Status)
}

func (e InvitationNotActionableError) Is(target error) bool {
	_, ok := target.(InvitationNotActionableError)
	if ok {
		return true
	}
	_, ok = target.(*InvitationNotActionableError)
	return ok
}

var ErrInvitationNotActionable = InvitationNotActionableError{}

// DuplicateMembershipError rejects adding a user to a team they already
// belong to on the same document.
type DuplicateMembershipError struct {
	UserID string
	Team   Team
}

func (e DuplicateMembershipError) Error() string {
	return fmt.Sprintf("user %s is already a member of %s", e.UserID, e.Team)
}

func (e DuplicateMembershipError) Is(target error) bool {
	_, ok := target.(DuplicateMembershipError)
	if ok {
		return true
	}
	_, ok = target.(*DuplicateMembershipError)
	return ok
}

var ErrDuplicateMembership = DuplicateMembershipError{}

// PermissionDeniedError rejects a caller whose effective level is below the
// level the operation requires.
type PermissionDeniedError struct {
	Required PermissionLevel
}

func (e PermissionDeniedError) Error() string {
	if e.Required == LevelNone {
		return "permission denied"
	}
	return fmt.Sprintf("permission denied: %s level required", e.Required)
}

func (e PermissionDeniedError) Is(target error) bool {
	_, ok := target.(PermissionDeniedError)
	if ok {
		return true
	}
	_, ok = target.(*PermissionDeniedError)
	return ok
}

var ErrPermissionDenied = PermissionDeniedError{}

// ValidationError rejects malformed input before any state is touched.
type ValidationError struct {
	Field  string
	Detail string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request"
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

var ErrValidation = ValidationError{}

// ConflictError reports an optimistic-concurrency failure on the atomic
// mutation unit. Safe to retry.
type ConflictError struct {
	Resource string
}

func (e ConflictError) Error() string {
	if e.Resource == "" {
		return "concurrent modification"
	}
	return fmt.Sprintf("concurrent modification of %s", e.Resource)
}

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

var ErrConflict = ConflictError{}
