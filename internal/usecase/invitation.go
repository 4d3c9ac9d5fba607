package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/opsdocs/signoff/internal/domain"
)

// InviteInput is the validated input for creating an invitation.
type InviteInput struct {
	DocumentID string
	Email      string
	Team       domain.Team
	Message    string
}

// InvitationUsecase manages the tokenized invitation lifecycle.
type InvitationUsecase struct {
	invites  InvitationRepository
	docs     DocumentRepository
	perm     *PermissionUsecase
	identity IdentityGateway
	notifier Notifier
	activity ActivitySink
}

func NewInvitationUsecase(
	invites InvitationRepository,
	docs DocumentRepository,
	perm *PermissionUsecase,
	identity IdentityGateway,
	notifier Notifier,
	activity ActivitySink,
) *InvitationUsecase {
	return &InvitationUsecase{
		invites:  invites,
		docs:     docs,
		perm:     perm,
		identity: identity,
		notifier: notifier,
		activity: activity,
	}
}

// newToken returns the plaintext token and its stored digest. Only the digest
// is ever persisted; the plaintext goes to the notification channel once.
func newToken() (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token := hex.EncodeToString(buf)
	return token, TokenDigest(token), nil
}

// TokenDigest maps a plaintext token to its storage form.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Invite creates a pending invitation and dispatches it. Requires write on
// the document.
func (uc *InvitationUsecase) Invite(ctx context.Context, actor domain.User, input InviteInput) (domain.Invitation, error) {
	if !domain.IsValidTeam(input.Team) {
		return domain.Invitation{}, domain.ValidationError{Field: "team", Detail: "unknown team"}
	}
	if input.Email == "" {
		return domain.Invitation{}, domain.ValidationError{Field: "email", Detail: "email is required"}
	}
	if err := uc.perm.Require(ctx, input.DocumentID, actor.ID, domain.LevelWrite); err != nil {
		return domain.Invitation{}, err
	}

	doc, err := uc.docs.Get(ctx, input.DocumentID)
	if err != nil {
		return domain.Invitation{}, err
	}

	pending, err := uc.invites.HasPending(ctx, doc.ID, input.Email)
	if err != nil {
		return domain.Invitation{}, err
	}
	if pending {
		return domain.Invitation{}, domain.ConflictError{Resource: "invitation"}
	}

	token, digest, err := newToken()
	if err != nil {
		return domain.Invitation{}, errors.Wrap(err, "token generation failed")
	}

	now := time.Now().UTC()
	inv := domain.Invitation{
		ID:           uuid.NewString(),
		DocumentID:   doc.ID,
		InvitedBy:    actor.ID,
		InvitedEmail: input.Email,
		TokenDigest:  digest,
		Team:         input.Team,
		Status:       domain.InvitationPending,
		Message:      input.Message,
		ExpiresAt:    now.Add(domain.DefaultInvitationTTL),
		SentAt:       now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// Resolve the invitee if they already have an account.
	if user, err := uc.identity.ResolveEmail(ctx, input.Email); err == nil {
		inv.InvitedUserID = &user.ID
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Invitation{}, err
	}

	if err := uc.invites.Create(ctx, inv); err != nil {
		return domain.Invitation{}, err
	}

	ev := domain.Event{
		Kind:       domain.EventInvitationSent,
		DocumentID: doc.ID,
		Actor:      actor.ID,
		Success:    true,
		At:         now,
		Invitation: &domain.InvitationDetail{InvitationID: inv.ID, Email: inv.InvitedEmail, Team: inv.Team},
	}
	uc.activity.Record(ctx, ev)
	uc.notifier.Dispatch(ctx, domain.Notification{Recipient: inv.InvitedEmail, Event: ev, Secret: token})

	return inv, nil
}

// Accept consumes the token and turns the invitation into a contributor
// membership. The acting user must match the invitee.
func (uc *InvitationUsecase) Accept(ctx context.Context, actor domain.User, token string) (domain.Invitation, error) {
	digest := TokenDigest(token)
	inv, err := uc.invites.GetByToken(ctx, digest)
	if err != nil {
		return domain.Invitation{}, err
	}
	if err := uc.checkInvitee(&inv, actor); err != nil {
		return domain.Invitation{}, err
	}

	now := time.Now().UTC()
	if !inv.Actionable(now) {
		return domain.Invitation{}, domain.InvitationNotActionableError{Status: inv.Status, Expired: inv.Expired(now)}
	}

	accepted, err := uc.invites.Accept(ctx, digest, actor, now)
	if err != nil {
		return domain.Invitation{}, err
	}

	ev := domain.Event{
		Kind:       domain.EventInvitationAccepted,
		DocumentID: accepted.DocumentID,
		Actor:      actor.ID,
		Success:    true,
		At:         now,
		Invitation: &domain.InvitationDetail{InvitationID: accepted.ID, Email: accepted.InvitedEmail, Team: accepted.Team},
	}
	uc.activity.Record(ctx, ev)
	uc.notifier.Dispatch(ctx, domain.Notification{Recipient: accepted.InvitedBy, Event: ev})

	return accepted, nil
}

// Decline consumes the token without creating a membership. A contributor
// row from an earlier invitation is untouched.
func (uc *InvitationUsecase) Decline(ctx context.Context, actor domain.User, token, reason string) (domain.Invitation, error) {
	digest := TokenDigest(token)
	inv, err := uc.invites.GetByToken(ctx, digest)
	if err != nil {
		return domain.Invitation{}, err
	}
	if err := uc.checkInvitee(&inv, actor); err != nil {
		return domain.Invitation{}, err
	}

	now := time.Now().UTC()
	if !inv.Actionable(now) {
		return domain.Invitation{}, domain.InvitationNotActionableError{Status: inv.Status, Expired: inv.Expired(now)}
	}

	declined, err := uc.invites.Decline(ctx, digest, reason, now)
	if err != nil {
		return domain.Invitation{}, err
	}

	ev := domain.Event{
		Kind:       domain.EventInvitationDeclined,
		DocumentID: declined.DocumentID,
		Actor:      actor.ID,
		Success:    true,
		At:         now,
		Invitation: &domain.InvitationDetail{InvitationID: declined.ID, Email: declined.InvitedEmail, Team: declined.Team, Reason: reason},
	}
	uc.activity.Record(ctx, ev)
	uc.notifier.Dispatch(ctx, domain.Notification{Recipient: declined.InvitedBy, Event: ev})

	return declined, nil
}

// Resend rotates the token of a pending invitation and dispatches it again.
// Requires write on the document.
func (uc *InvitationUsecase) Resend(ctx context.Context, actor domain.User, invitationID string) (domain.Invitation, error) {
	inv, err := uc.invites.Get(ctx, invitationID)
	if err != nil {
		return domain.Invitation{}, err
	}
	if err := uc.perm.Require(ctx, inv.DocumentID, actor.ID, domain.LevelWrite); err != nil {
		return domain.Invitation{}, err
	}
	if inv.Status != domain.InvitationPending {
		return domain.Invitation{}, domain.InvitationNotActionableError{Status: inv.Status}
	}

	token, digest, err := newToken()
	if err != nil {
		return domain.Invitation{}, errors.Wrap(err, "token generation failed")
	}

	now := time.Now().UTC()
	expires := now.Add(domain.DefaultInvitationTTL)
	if err := uc.invites.Refresh(ctx, inv.ID, digest, now, expires); err != nil {
		return domain.Invitation{}, err
	}
	inv.TokenDigest = digest
	inv.SentAt = now
	inv.ExpiresAt = expires

	ev := domain.Event{
		Kind:       domain.EventInvitationResent,
		DocumentID: inv.DocumentID,
		Actor:      actor.ID,
		Success:    true,
		At:         now,
		Invitation: &domain.InvitationDetail{InvitationID: inv.ID, Email: inv.InvitedEmail, Team: inv.Team},
	}
	uc.activity.Record(ctx, ev)
	uc.notifier.Dispatch(ctx, domain.Notification{Recipient: inv.InvitedEmail, Event: ev, Secret: token})

	return inv, nil
}

// Cancel takes a pending invitation out of circulation administratively.
// Distinct from decline: the actor is the inviter side, not the invitee.
func (uc *InvitationUsecase) Cancel(ctx context.Context, actor domain.User, invitationID string) (domain.Invitation, error) {
	inv, err := uc.invites.Get(ctx, invitationID)
	if err != nil {
		return domain.Invitation{}, err
	}
	if err := uc.perm.Require(ctx, inv.DocumentID, actor.ID, domain.LevelWrite); err != nil {
		return domain.Invitation{}, err
	}

	now := time.Now().UTC()
	cancelled, err := uc.invites.Cancel(ctx, inv.ID, now)
	if err != nil {
		return domain.Invitation{}, err
	}

	uc.activity.Record(ctx, domain.Event{
		Kind:       domain.EventInvitationCancelled,
		DocumentID: cancelled.DocumentID,
		Actor:      actor.ID,
		Success:    true,
		At:         now,
		Invitation: &domain.InvitationDetail{InvitationID: cancelled.ID, Email: cancelled.InvitedEmail, Team: cancelled.Team},
	})
	return cancelled, nil
}

// ListByDocument returns a document's invitations. Requires read.
func (uc *InvitationUsecase) ListByDocument(ctx context.Context, actor domain.User, documentID string) ([]domain.Invitation, error) {
	if err := uc.perm.Require(ctx, documentID, actor.ID, domain.LevelRead); err != nil {
		return nil, err
	}
	return uc.invites.ListByDocument(ctx, documentID)
}

// ExpireStale flips stale pending rows to expired. Query hygiene only;
// actionability is always evaluated against the clock.
func (uc *InvitationUsecase) ExpireStale(ctx context.Context) (int64, error) {
	return uc.invites.ExpireStale(ctx, time.Now().UTC())
}

func (uc *InvitationUsecase) checkInvitee(inv *domain.Invitation, actor domain.User) error {
	if inv.InvitedEmail == actor.Email {
		return nil
	}
	if inv.InvitedUserID != nil && *inv.InvitedUserID == actor.ID {
		return nil
	}
	return domain.PermissionDeniedError{}
}
