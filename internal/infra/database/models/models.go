package models

import (
	"time"
)

type Document struct {
	ID         string     `json:"id" gorm:"primaryKey;type:text"`
	Reference  string     `json:"reference" gorm:"type:text;index"`
	Title      string     `json:"title" gorm:"type:text;not null"`
	Version    string     `json:"version" gorm:"type:text;not null"`
	Status     string     `json:"status" gorm:"type:text;not null;index"`
	CreatedBy  string     `json:"createdBy" gorm:"type:text;not null;index"`
	Body       []byte     `json:"body" gorm:"type:jsonb"`
	Revision   int64      `json:"revision" gorm:"not null;default:0"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
	ApprovedAt *time.Time `json:"approvedAt" gorm:"type:timestamp with time zone"`

	Contributors []Contributor `json:"contributors" gorm:"constraint:OnDelete:CASCADE;"`
}

type Contributor struct {
	ID           int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	DocumentID   string     `json:"documentId" gorm:"type:text;index:contributor_member,unique"`
	UserID       string     `json:"userId" gorm:"type:text;index:contributor_member,unique"`
	Team         string     `json:"team" gorm:"type:text;index:contributor_member,unique"`
	Name         string     `json:"name" gorm:"type:text"`
	Status       string     `json:"status" gorm:"type:text;not null"`
	RejectReason string     `json:"rejectReason" gorm:"type:text"`
	SignedAt     *time.Time `json:"signedAt" gorm:"type:timestamp with time zone"`
	InvitedAt    time.Time  `json:"invitedAt" gorm:"type:timestamp with time zone"`
}

// Signature rows are append only. No update path exists in the repository.
type Signature struct {
	ID         string    `json:"id" gorm:"primaryKey;type:text"`
	DocumentID string    `json:"documentId" gorm:"type:text;index"`
	Document   Document  `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	UserID     string    `json:"userId" gorm:"type:text;index"`
	Type       string    `json:"type" gorm:"type:text;not null"`
	Payload    string    `json:"payload" gorm:"type:text"`
	IPAddress  string    `json:"ipAddress" gorm:"type:text"`
	UserAgent  string    `json:"userAgent" gorm:"type:text"`
	SignedAt   time.Time `json:"signedAt" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type DocumentVersion struct {
	ID         string    `json:"id" gorm:"primaryKey;type:text"`
	DocumentID string    `json:"documentId" gorm:"type:text;index"`
	Document   Document  `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	Version    string    `json:"version" gorm:"type:text;not null"`
	Data       []byte    `json:"data" gorm:"type:jsonb"`
	CreatedBy  string    `json:"createdBy" gorm:"type:text"`
	ChangeNote string    `json:"changeNote" gorm:"type:text"`
	CreatedAt  time.Time `json:"createdAt" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Invitation struct {
	ID            string     `json:"id" gorm:"primaryKey;type:text"`
	DocumentID    string     `json:"documentId" gorm:"type:text;index"`
	Document      Document   `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	InvitedBy     string     `json:"invitedBy" gorm:"type:text"`
	InvitedEmail  string     `json:"invitedEmail" gorm:"type:text;index"`
	InvitedUserID *string    `json:"invitedUserId" gorm:"type:text"`
	TokenDigest   string     `json:"-" gorm:"type:text;uniqueIndex"`
	Team          string     `json:"team" gorm:"type:text;not null"`
	Status        string     `json:"status" gorm:"type:text;not null;index"`
	Message       string     `json:"message" gorm:"type:text"`
	ExpiresAt     time.Time  `json:"expiresAt" gorm:"type:timestamp with time zone;not null;index"`
	SentAt        time.Time  `json:"sentAt" gorm:"type:timestamp with time zone;not null"`
	AcceptedAt    *time.Time `json:"acceptedAt" gorm:"type:timestamp with time zone"`
	DeclinedAt    *time.Time `json:"declinedAt" gorm:"type:timestamp with time zone"`
	DeclineReason string     `json:"declineReason" gorm:"type:text"`
	CreatedAt     time.Time  `json:"createdAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
	UpdatedAt     time.Time  `json:"updatedAt" gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Permission struct {
	ID         string    `json:"id" gorm:"type:text;not null"`
	DocumentID string    `json:"documentId" gorm:"type:text;primaryKey"`
	Document   Document  `json:"-" gorm:"constraint:OnDelete:CASCADE;"`
	UserID     string    `json:"userId" gorm:"type:text;primaryKey"`
	Level      string    `json:"level" gorm:"type:text;not null"`
	GrantedBy  string    `json:"grantedBy" gorm:"type:text"`
	GrantedAt  time.Time `json:"grantedAt" gorm:"type:timestamp with time zone;not null"`
	UpdatedAt  time.Time `json:"updatedAt" gorm:"type:timestamp with time zone;not null"`
}

type ActivityLog struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Kind       string    `json:"kind" gorm:"type:text;not null;index"`
	DocumentID string    `json:"documentId" gorm:"type:text;index"`
	Actor      string    `json:"actor" gorm:"type:text;index"`
	Success    bool      `json:"success" gorm:"type:boolean;not null;default:true"`
	Detail     []byte    `json:"detail" gorm:"type:jsonb"`
	CDate      time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
