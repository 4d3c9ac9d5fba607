package domain

import "time"

// EventKind discriminates workflow events dispatched to the notification
// channel and the activity sink.
type EventKind string

const (
	EventInvitationSent      EventKind = "invitation.sent"
	EventInvitationAccepted  EventKind = "invitation.accepted"
	EventInvitationDeclined  EventKind = "invitation.declined"
	EventInvitationCancelled EventKind = "invitation.cancelled"
	EventInvitationResent    EventKind = "invitation.resent"
	EventDocumentPublished   EventKind = "document.published"
	EventContributorSigned   EventKind = "contributor.signed"
	EventContributorRejected EventKind = "contributor.rejected"
	EventStageAdvanced       EventKind = "document.stage_advanced"
	EventDocumentApproved    EventKind = "document.approved"
	EventDocumentArchived    EventKind = "document.archived"
	EventDocumentReset       EventKind = "document.reset"
	EventVersionCreated      EventKind = "document.version_created"
	EventPermissionGranted   EventKind = "permission.granted"
	EventPermissionRevoked   EventKind = "permission.revoked"
)

// InvitationDetail is the payload for invitation events. The token is never
// part of an event payload.
type InvitationDetail struct {
	InvitationID string `json:"invitationId"`
	Email        string `json:"email"`
	Team         Team   `json:"team"`
	Reason       string `json:"reason,omitempty"`
}

// SignatureDetail is the payload for signing and rejection events.
type SignatureDetail struct {
	UserID string        `json:"userId"`
	Team   Team          `json:"team"`
	Type   SignatureType `json:"type,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// StageDetail is the payload for status transitions.
type StageDetail struct {
	From DocumentStatus `json:"from"`
	To   DocumentStatus `json:"to"`
}

// PermissionDetail is the payload for grant and revoke events.
type PermissionDetail struct {
	UserID string          `json:"userId"`
	Level  PermissionLevel `json:"level,omitempty"`
}

// VersionDetail is the payload for snapshot events.
type VersionDetail struct {
	VersionID  string `json:"versionId"`
	Version    string `json:"version"`
	ChangeNote string `json:"changeNote,omitempty"`
}

// Event is a workflow occurrence. Exactly one detail pointer matching Kind is
// set; the rest stay nil. This replaces freeform detail maps so payload shapes
// are fixed per kind.
type Event struct {
	Kind       EventKind `json:"kind"`
	DocumentID string    `json:"documentId"`
	Actor      string    `json:"actor"`
	Success    bool      `json:"success"`
	At         time.Time `json:"at"`

	Invitation *InvitationDetail `json:"invitation,omitempty"`
	Signature  *SignatureDetail  `json:"signature,omitempty"`
	Stage      *StageDetail      `json:"stage,omitempty"`
	Permission *PermissionDetail `json:"permission,omitempty"`
	Version    *VersionDetail    `json:"version,omitempty"`
}

// Notification is a fire-and-forget dispatch to one recipient. Secret carries
// the invitation token to the delivery channel on send/resend and is the only
// place the plaintext token travels; it is never logged or stored.
type Notification struct {
	Recipient string `json:"recipient"`
	Event     Event  `json:"event"`
	Secret    string `json:"secret,omitempty"`
}
