package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/opsdocs/signoff/internal/domain"
)

var docTracer = otel.Tracer("document")

// CreateDocumentInput is the validated input for creating a document.
type CreateDocumentInput struct {
	Reference    string
	Title        string
	Version      string
	Body         json.RawMessage
	Contributors []ContributorInput
}

// ContributorInput names an initial member by user ID.
type ContributorInput struct {
	UserID string
	Team   domain.Team
}

// UpdateDocumentInput carries a partial content update. Nil pointers leave
// fields untouched. Autosave suppresses the version snapshot.
type UpdateDocumentInput struct {
	Title      *string
	Version    *string
	Body       json.RawMessage
	ChangeNote string
	Autosave   bool
}

// DocumentUsecase covers document CRUD and the snapshot history.
type DocumentUsecase struct {
	docs     DocumentRepository
	perm     *PermissionUsecase
	identity IdentityGateway
	activity ActivitySink
}

func NewDocumentUsecase(
	docs DocumentRepository,
	perm *PermissionUsecase,
	identity IdentityGateway,
	activity ActivitySink,
) *DocumentUsecase {
	return &DocumentUsecase{
		docs:     docs,
		perm:     perm,
		identity: identity,
		activity: activity,
	}
}

// Create persists a new draft document with its initial contributors and an
// initial version snapshot. The creator is not required to be a contributor.
func (uc *DocumentUsecase) Create(ctx context.Context, actor domain.User, input CreateDocumentInput) (domain.Document, error) {
	ctx, span := docTracer.Start(ctx, "Document.Create")
	defer span.End()

	if input.Title == "" {
		return domain.Document{}, domain.ValidationError{Field: "title", Detail: "title is required"}
	}
	if input.Version == "" {
		input.Version = "1.0"
	}

	now := time.Now().UTC()
	doc := domain.Document{
		ID:        uuid.NewString(),
		Reference: input.Reference,
		Title:     input.Title,
		Version:   input.Version,
		Status:    domain.StatusDraft,
		CreatedBy: actor.ID,
		Body:      input.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, in := range input.Contributors {
		user, err := uc.identity.Resolve(ctx, in.UserID)
		if err != nil {
			return domain.Document{}, err
		}
		if err := domain.Join(&doc, user, in.Team, now, now); err != nil {
			return domain.Document{}, err
		}
	}

	if err := uc.docs.Create(ctx, doc, "initial version"); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// Get returns a document with contributors. Requires read.
func (uc *DocumentUsecase) Get(ctx context.Context, actor domain.User, documentID string) (domain.Document, error) {
	if err := uc.perm.Require(ctx, documentID, actor.ID, domain.LevelRead); err != nil {
		return domain.Document{}, err
	}
	return uc.docs.Get(ctx, documentID)
}

// Update mutates document content. Approved and archived documents refuse
// edits. Unless the update is an autosave, a version snapshot of the new
// payload is written in the same transaction.
func (uc *DocumentUsecase) Update(ctx context.Context, actor domain.User, documentID string, input UpdateDocumentInput) (domain.Document, error) {
	ctx, span := docTracer.Start(ctx, "Document.Update")
	defer span.End()

	if err := uc.perm.Require(ctx, documentID, actor.ID, domain.LevelWrite); err != nil {
		return domain.Document{}, err
	}

	now := time.Now().UTC()
	doc, err := uc.docs.Update(ctx, documentID, func(doc *domain.Document) (Effects, error) {
		if !doc.Editable() {
			return Effects{}, domain.InvalidTransitionError{Status: doc.Status, Detail: "document content is locked"}
		}
		if input.Title != nil {
			doc.Title = *input.Title
		}
		if input.Version != nil {
			doc.Version = *input.Version
		}
		if input.Body != nil {
			doc.Body = input.Body
		}
		doc.UpdatedAt = now

		if input.Autosave {
			return Effects{}, nil
		}
		return Effects{Snapshot: &Snapshot{CreatedBy: actor.ID, ChangeNote: input.ChangeNote}}, nil
	})
	if err != nil {
		return domain.Document{}, err
	}

	if !input.Autosave {
		uc.activity.Record(ctx, domain.Event{
			Kind:       domain.EventVersionCreated,
			DocumentID: doc.ID,
			Actor:      actor.ID,
			Success:    true,
			At:         now,
			Version:    &domain.VersionDetail{Version: doc.Version, ChangeNote: input.ChangeNote},
		})
	}
	return doc, nil
}

// Versions lists the snapshot history, oldest first. Requires read.
func (uc *DocumentUsecase) Versions(ctx context.Context, actor domain.User, documentID string) ([]domain.DocumentVersion, error) {
	if err := uc.perm.Require(ctx, documentID, actor.ID, domain.LevelRead); err != nil {
		return nil, err
	}
	return uc.docs.Versions(ctx, documentID)
}

// Signatures lists the immutable signature ledger. Requires read.
func (uc *DocumentUsecase) Signatures(ctx context.Context, actor domain.User, documentID string) ([]domain.Signature, error) {
	if err := uc.perm.Require(ctx, documentID, actor.ID, domain.LevelRead); err != nil {
		return nil, err
	}
	return uc.docs.Signatures(ctx, documentID)
}
