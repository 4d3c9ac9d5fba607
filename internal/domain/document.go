package domain

import (
	"encoding/json"
	"time"
)

// User is an identity resolved through the external identity service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Contributor is a (document, user) membership inside exactly one team.
type Contributor struct {
	UserID       string          `json:"userId"`
	Name         string          `json:"name"`
	Team         Team            `json:"team"`
	Status       SignatureStatus `json:"status"`
	RejectReason string          `json:"rejectReason,omitempty"`
	SignedAt     *time.Time      `json:"signedAt,omitempty"`
	InvitedAt    time.Time       `json:"invitedAt"`
}

// Terminal reports whether the contributor's signature status can no longer
// change for this document lifecycle.
func (c Contributor) Terminal() bool {
	return c.Status == SignatureStatusSigned || c.Status == SignatureStatusRejected
}

// Document is the workflow subject.
type Document struct {
	ID           string          `json:"id"`
	Reference    string          `json:"reference"`
	Title        string          `json:"title"`
	Version      string          `json:"version"`
	Status       DocumentStatus  `json:"status"`
	CreatedBy    string          `json:"createdBy"`
	Body         json.RawMessage `json:"body,omitempty"`
	Contributors []Contributor   `json:"contributors"`
	Revision     int64           `json:"revision"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	ApprovedAt   *time.Time      `json:"approvedAt,omitempty"`
}

// Team returns the contributors belonging to one team, in stored order.
func (d *Document) Team(team Team) []Contributor {
	var members []Contributor
	for _, c := range d.Contributors {
		if c.Team == team {
			members = append(members, c)
		}
	}
	return members
}

// Member returns a pointer into Contributors for the given (user, team) pair.
func (d *Document) Member(userID string, team Team) *Contributor {
	for i := range d.Contributors {
		if d.Contributors[i].UserID == userID && d.Contributors[i].Team == team {
			return &d.Contributors[i]
		}
	}
	return nil
}

// Memberships returns every team membership the user holds on the document.
func (d *Document) Memberships(userID string) []Contributor {
	var out []Contributor
	for _, c := range d.Contributors {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

// Editable reports whether document content may still be mutated. Approved and
// archived documents are locked.
func (d *Document) Editable() bool {
	return d.Status != StatusApproved && d.Status != StatusArchived
}

// Signature is an immutable record that a user signed a document under a team
// role. Never updated or deleted after creation; the contributor status is
// the authoritative queryable state and this row is the audit trail.
type Signature struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"documentId"`
	UserID     string        `json:"userId"`
	Type       SignatureType `json:"type"`
	Payload    string        `json:"payload"`
	IPAddress  string        `json:"ipAddress"`
	UserAgent  string        `json:"userAgent"`
	SignedAt   time.Time     `json:"signedAt"`
}

// DocumentVersion is an immutable snapshot of the full document payload at a
// point in time. Append only.
type DocumentVersion struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId"`
	Version    string          `json:"version"`
	Data       json.RawMessage `json:"data"`
	CreatedBy  string          `json:"createdBy"`
	ChangeNote string          `json:"changeNote"`
	CreatedAt  time.Time       `json:"createdAt"`
}
