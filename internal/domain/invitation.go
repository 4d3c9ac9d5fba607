package domain

import "time"

// Invitation is a pending offer to join a contributor team. The token itself
// is opaque and single use; only its digest is ever stored.
type Invitation struct {
	ID            string           `json:"id"`
	DocumentID    string           `json:"documentId"`
	InvitedBy     string           `json:"invitedBy"`
	InvitedEmail  string           `json:"invitedEmail"`
	InvitedUserID *string          `json:"invitedUserId,omitempty"`
	TokenDigest   string           `json:"-"`
	Team          Team             `json:"team"`
	Status        InvitationStatus `json:"status"`
	Message       string           `json:"message,omitempty"`
	ExpiresAt     time.Time        `json:"expiresAt"`
	SentAt        time.Time        `json:"sentAt"`
	AcceptedAt    *time.Time       `json:"acceptedAt,omitempty"`
	DeclinedAt    *time.Time       `json:"declinedAt,omitempty"`
	DeclineReason string           `json:"declineReason,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// DefaultInvitationTTL is applied when no explicit expiry is given.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// Expired evaluates time-based expiry at the given instant. The stored status
// may still read pending; actionability always consults the clock.
func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Actionable reports whether the invitation can still be accepted or
// declined.
func (i *Invitation) Actionable(now time.Time) bool {
	return i.Status == InvitationPending && !i.Expired(now)
}

// Permission is an explicit access grant on a document. At most one active
// row exists per (document, user); later grants supersede earlier ones.
type Permission struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId"`
	UserID     string          `json:"userId"`
	Level      PermissionLevel `json:"level"`
	GrantedBy  string          `json:"grantedBy"`
	GrantedAt  time.Time       `json:"grantedAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}
