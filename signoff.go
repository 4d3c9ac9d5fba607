// Package signoff holds the wire types shared between the workflow service
// and its clients.
package signoff

import (
	"encoding/json"
	"time"

	"github.com/opsdocs/signoff/internal/domain"
)

type CreateDocumentRequest struct {
	Reference    string             `json:"reference"`
	Title        string             `json:"title"`
	Version      string             `json:"version"`
	Body         json.RawMessage    `json:"body,omitempty"`
	Contributors []ContributorInput `json:"contributors,omitempty"`
}

type ContributorInput struct {
	UserID string      `json:"userId"`
	Team   domain.Team `json:"team"`
}

type UpdateDocumentRequest struct {
	Title      *string         `json:"title,omitempty"`
	Version    *string         `json:"version,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	ChangeNote string          `json:"changeNote,omitempty"`
	Autosave   bool            `json:"autosave,omitempty"`
}

type SignRequest struct {
	Payload string `json:"payload"`
	// OnBehalfOf lets an admin record a signature for another contributor,
	// e.g. from a wet-ink original. Empty means the caller signs for
	// themselves.
	OnBehalfOf string `json:"onBehalfOf,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason,omitempty"`
}

type InviteRequest struct {
	DocumentID string      `json:"documentId"`
	Email      string      `json:"email"`
	Team       domain.Team `json:"team"`
	Message    string      `json:"message,omitempty"`
}

type AcceptInvitationRequest struct {
	Token string `json:"token"`
}

type DeclineInvitationRequest struct {
	Token  string `json:"token"`
	Reason string `json:"reason,omitempty"`
}

type GrantPermissionRequest struct {
	UserID string                 `json:"userId"`
	Level  domain.PermissionLevel `json:"level"`
}

// InvitationCreated is returned to the inviter. The token is intentionally
// absent; it travels to the invitee through the notification channel only.
type InvitationCreated struct {
	Invitation domain.Invitation `json:"invitation"`
}

// VersionSummary is the list form of a snapshot, without the full payload.
type VersionSummary struct {
	ID         string    `json:"id"`
	Version    string    `json:"version"`
	CreatedBy  string    `json:"createdBy"`
	ChangeNote string    `json:"changeNote"`
	CreatedAt  time.Time `json:"createdAt"`
}

// RealtimeRequest is a client frame on the realtime socket.
type RealtimeRequest struct {
	Type      string   `json:"type"`
	Documents []string `json:"documents,omitempty"`
}
