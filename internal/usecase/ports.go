package usecase

import (
	"context"
	"time"

	"github.com/opsdocs/signoff/internal/domain"
)

// Effects are side rows the document mutation unit persists atomically with
// the document itself.
type Effects struct {
	Signature *domain.Signature
	Snapshot  *Snapshot
}

// Snapshot requests a DocumentVersion row capturing the post-mutation
// payload.
type Snapshot struct {
	CreatedBy  string
	ChangeNote string
}

// DocumentRepository defines storage for documents, contributors, signatures
// and version snapshots.
//
// Update is the atomic mutation unit: the implementation loads the document
// and its contributors under a write lock, invokes apply, and persists the
// result together with any Effects in one transaction. Concurrent updates of
// the same document serialize; a revision mismatch surfaces as
// domain.ConflictError.
type DocumentRepository interface {
	Create(ctx context.Context, doc domain.Document, changeNote string) error
	Get(ctx context.Context, id string) (domain.Document, error)
	Update(ctx context.Context, id string, apply func(doc *domain.Document) (Effects, error)) (domain.Document, error)
	Versions(ctx context.Context, documentID string) ([]domain.DocumentVersion, error)
	Signatures(ctx context.Context, documentID string) ([]domain.Signature, error)
}

// InvitationRepository defines storage for invitations. Accept consumes the
// token and creates the contributor row in one transaction; both happen or
// neither does.
type InvitationRepository interface {
	Create(ctx context.Context, inv domain.Invitation) error
	Get(ctx context.Context, id string) (domain.Invitation, error)
	GetByToken(ctx context.Context, digest string) (domain.Invitation, error)
	HasPending(ctx context.Context, documentID, email string) (bool, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.Invitation, error)
	Accept(ctx context.Context, digest string, user domain.User, now time.Time) (domain.Invitation, error)
	Decline(ctx context.Context, digest string, reason string, now time.Time) (domain.Invitation, error)
	Cancel(ctx context.Context, id string, now time.Time) (domain.Invitation, error)
	Refresh(ctx context.Context, id string, newDigest string, sentAt, expiresAt time.Time) error
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// PermissionRepository defines storage for explicit grants. Upsert is
// last-writer-wins per (document, user).
type PermissionRepository interface {
	Upsert(ctx context.Context, p domain.Permission) error
	Get(ctx context.Context, documentID, userID string) (domain.Permission, error)
	Delete(ctx context.Context, documentID, userID string) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.Permission, error)
}

// IdentityGateway resolves users through the external identity service.
type IdentityGateway interface {
	Resolve(ctx context.Context, userID string) (domain.User, error)
	ResolveEmail(ctx context.Context, email string) (domain.User, error)
}

// Notifier dispatches fire-and-forget notifications. Delivery failures are
// the dispatcher's problem; callers never block on them.
type Notifier interface {
	Dispatch(ctx context.Context, n domain.Notification)
}

// ActivitySink records workflow events. Failures must not affect the primary
// operation.
type ActivitySink interface {
	Record(ctx context.Context, ev domain.Event)
}
