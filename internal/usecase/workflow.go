package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/opsdocs/signoff/internal/domain"
)

var tracer = otel.Tracer("workflow")

// SignContext carries client metadata captured at the transport boundary.
type SignContext struct {
	IPAddress string
	UserAgent string
}

// WorkflowUsecase drives the document state machine and the contributor
// ledger.
type WorkflowUsecase struct {
	docs     DocumentRepository
	perm     *PermissionUsecase
	notifier Notifier
	activity ActivitySink
}

func NewWorkflowUsecase(
	docs DocumentRepository,
	perm *PermissionUsecase,
	notifier Notifier,
	activity ActivitySink,
) *WorkflowUsecase {
	return &WorkflowUsecase{
		docs:     docs,
		perm:     perm,
		notifier: notifier,
		activity: activity,
	}
}

// Publish opens the author review stage. Requires write.
func (uc *WorkflowUsecase) Publish(ctx context.Context, actor domain.User, documentID string) (domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Workflow.Publish")
	defer span.End()

	if err := uc.perm.Require(ctx, documentID, actor.ID, domain.LevelWrite); err != nil {
		return domain.Document{}, err
	}

	now := time.Now().UTC()
	doc, err := uc.docs.Update(ctx, documentID, func(d *domain.Document) (Effects, error) {
		return Effects{}, domain.Publish(d, now)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Document{}, err
	}

	ev := domain.Event{
		Kind:       domain.EventDocumentPublished,
		DocumentID: doc.ID,
		Actor:      actor.ID,
		Success:    true,
		At:         now,
		Stage:      &domain.StageDetail{From: domain.StatusDraft, To: doc.Status},
	}
	uc.activity.Record(ctx, ev)
	uc.notifyPending(ctx, &doc, domain.TeamAuthors, ev)

	return doc, nil
}

// Sign appends a signature for the subject contributor and re-evaluates the
// state machine in the same atomic unit. Signing for someone else requires
// admin.
func (uc *WorkflowUsecase) Sign(ctx context.Context, actor domain.User, documentID, subjectID, payload string, meta SignContext) (domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Workflow.Sign")
	defer span.End()

	if payload == "" {
		return domain.Document{}, domain.ValidationError{Field: "payload", Detail: "signature payload must not be empty"}
	}
	if subjectID == "" {
		subjectID = actor.ID
	}
	if subjectID != actor.ID {
		if err := uc.perm.Require(ctx, documentID, actor.ID, domain.LevelAdmin); err != nil {
			return domain.Document{}, err
		}
	}

	now := time.Now().UTC()
	var changes []domain.StatusChange
	doc, err := uc.docs.Update(ctx, documentID, func(d *domain.Document) (Effects, error) {
		team, _ := domain.ActiveTeam(d.Status)
		if err := domain.Sign(d, subjectID, now); err != nil {
			return Effects{}, err
		}
		sig := domain.Signature{
			ID:         uuid.NewString(),
			DocumentID: d.ID,
			UserID:     subjectID,
			Type:       domain.TeamSignatureType(team),
			Payload:    payload,
			IPAddress:  meta.IPAddress,
			UserAgent:  meta.UserAgent,
			SignedAt:   now,
		}
		changes = domain.Advance(d, now)
		return Effects{Signature: &sig}, nil
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "sign failed"))
		return domain.Document{}, err
	}

	uc.activity.Record(ctx, domain.Event{
		Kind:       domain.EventContributorSigned,
		DocumentID: doc.ID,
		Actor:      actor.ID,
		Success:    true,
		At:         now,
		Signature:  &domain.SignatureDetail{UserID: subjectID, Team: teamOf(&doc, subjectID)},
	})
	uc.emitTransitions(ctx, actor, &doc, changes, now)

	return doc, nil
}

// Reject marks the subject contributor rejected, stalling advancement. No
// signature record is written.
func (uc *WorkflowUsecase) Reject(ctx context.Context, actor domain.User, documentID, reason string) (domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Workflow.Reject")
	defer span.End()

	now := time.Now().UTC()
	doc, err := uc.docs.Update(ctx, documentID, func(d *domain.Document) (Effects, error) {
		return Effects{}, domain.Reject(d, actor.ID, reason, now)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Document{}, err
	}

	uc.activity.Record(ctx, domain.Event{
		Kind:       domain.EventContributorRejected,
		DocumentID: doc.ID,
		Actor:      actor.ID,
		Success:    true,
		At:         now,
		Signature:  &domain.SignatureDetail{UserID: actor.ID, Team: teamOf(&doc, actor.ID), Reason: reason},
	})
	uc.notifier.Dispatch(ctx, domain.Notification{
		Recipient: doc.CreatedBy,
		Event: domain.Event{
			Kind:       domain.EventContributorRejected,
			DocumentID: doc.ID,
			Actor:      actor.ID,
			Success:    true,
			At:         now,
			Signature:  &domain.SignatureDetail{UserID: actor.ID, Reason: reason},
		},
	})

	return doc, nil
}

// Archive retires an approved document. Requires admin.
func (uc *WorkflowUsecase) Archive(ctx context.Context, actor domain.User, documentID string) (domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Workflow.Archive")
	defer span.End()

	if err := uc.perm.Require(ctx, documentID, actor.ID, domain.LevelAdmin); err != nil {
		return domain.Document{}, err
	}

	now := time.Now().UTC()
	doc, err := uc.docs.Update(ctx, documentID, func(d *domain.Document) (Effects, error) {
		return Effects{}, domain.Archive(d, now)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Document{}, err
	}

	uc.activity.Record(ctx, domain.Event{
		Kind:       domain.EventDocumentArchived,
		DocumentID: doc.ID,
		Actor:      actor.ID,
		Success:    true,
		At:         now,
		Stage:      &domain.StageDetail{From: domain.StatusApproved, To: domain.StatusArchived},
	})
	return doc, nil
}

// Reset returns a stalled document to draft. Requires admin; this is the
// explicit privileged escape hatch after a rejection.
func (uc *WorkflowUsecase) Reset(ctx context.Context, actor domain.User, documentID string) (domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Workflow.Reset")
	defer span.End()

	if err := uc.perm.Require(ctx, documentID, actor.ID, domain.LevelAdmin); err != nil {
		return domain.Document{}, err
	}

	now := time.Now().UTC()
	var from domain.DocumentStatus
	doc, err := uc.docs.Update(ctx, documentID, func(d *domain.Document) (Effects, error) {
		from = d.Status
		return Effects{}, domain.Reset(d, now)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Document{}, err
	}

	uc.activity.Record(ctx, domain.Event{
		Kind:       domain.EventDocumentReset,
		DocumentID: doc.ID,
		Actor:      actor.ID,
		Success:    true,
		At:         now,
		Stage:      &domain.StageDetail{From: from, To: domain.StatusDraft},
	})
	return doc, nil
}

func (uc *WorkflowUsecase) emitTransitions(ctx context.Context, actor domain.User, doc *domain.Document, changes []domain.StatusChange, now time.Time) {
	for _, ch := range changes {
		kind := domain.EventStageAdvanced
		if ch.To == domain.StatusApproved {
			kind = domain.EventDocumentApproved
		}
		ev := domain.Event{
			Kind:       kind,
			DocumentID: doc.ID,
			Actor:      actor.ID,
			Success:    true,
			At:         now,
			Stage:      &domain.StageDetail{From: ch.From, To: ch.To},
		}
		uc.activity.Record(ctx, ev)

		if team, ok := domain.ActiveTeam(ch.To); ok {
			uc.notifyPending(ctx, doc, team, ev)
		}
		if ch.To == domain.StatusApproved {
			uc.notifier.Dispatch(ctx, domain.Notification{Recipient: doc.CreatedBy, Event: ev})
		}
	}
}

// notifyPending tells every pending member of a team their signature window
// is open.
func (uc *WorkflowUsecase) notifyPending(ctx context.Context, doc *domain.Document, team domain.Team, ev domain.Event) {
	for _, c := range doc.Team(team) {
		if c.Status == domain.SignatureStatusPending {
			uc.notifier.Dispatch(ctx, domain.Notification{Recipient: c.UserID, Event: ev})
		}
	}
}

func teamOf(doc *domain.Document, userID string) domain.Team {
	for _, c := range doc.Contributors {
		if c.UserID == userID && c.Terminal() {
			return c.Team
		}
	}
	for _, c := range doc.Contributors {
		if c.UserID == userID {
			return c.Team
		}
	}
	return ""
}
