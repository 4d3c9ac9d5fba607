package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/opsdocs/signoff/internal/domain"
)

// PermissionUsecase resolves effective access levels and manages explicit
// grants.
type PermissionUsecase struct {
	perms    PermissionRepository
	docs     DocumentRepository
	notifier Notifier
	activity ActivitySink
}

func NewPermissionUsecase(
	perms PermissionRepository,
	docs DocumentRepository,
	notifier Notifier,
	activity ActivitySink,
) *PermissionUsecase {
	return &PermissionUsecase{
		perms:    perms,
		docs:     docs,
		notifier: notifier,
		activity: activity,
	}
}

// Resolve computes the effective level for a (document, user) pair: the
// maximum of the creator floor, any explicit grant, and the contributor
// membership floor. A contributor whose team is currently under review holds
// at least sign; any other contributor holds at least read.
func (uc *PermissionUsecase) Resolve(ctx context.Context, documentID, userID string) (domain.PermissionLevel, error) {
	doc, err := uc.docs.Get(ctx, documentID)
	if err != nil {
		return domain.LevelNone, err
	}
	return uc.resolveOn(ctx, &doc, userID)
}

func (uc *PermissionUsecase) resolveOn(ctx context.Context, doc *domain.Document, userID string) (domain.PermissionLevel, error) {
	level := domain.LevelNone
	if doc.CreatedBy == userID {
		level = domain.LevelAdmin
	}

	grant, err := uc.perms.Get(ctx, doc.ID, userID)
	if err == nil {
		level = domain.MaxLevel(level, grant.Level)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.LevelNone, err
	}

	memberships := doc.Memberships(userID)
	if len(memberships) > 0 {
		floor := domain.LevelRead
		if active, ok := domain.ActiveTeam(doc.Status); ok {
			for _, m := range memberships {
				if m.Team == active {
					floor = domain.LevelSign
					break
				}
			}
		}
		level = domain.MaxLevel(level, floor)
	}

	return level, nil
}

// Require fails with domain.PermissionDeniedError unless the user's effective
// level satisfies want.
func (uc *PermissionUsecase) Require(ctx context.Context, documentID, userID string, want domain.PermissionLevel) error {
	level, err := uc.Resolve(ctx, documentID, userID)
	if err != nil {
		return err
	}
	if !domain.Satisfies(level, want) {
		return domain.PermissionDeniedError{Required: want}
	}
	return nil
}

// Grant creates or replaces the explicit grant for a user. Grants never
// stack; the new level overwrites whatever was there.
func (uc *PermissionUsecase) Grant(ctx context.Context, actor domain.User, documentID, userID string, level domain.PermissionLevel) (domain.Permission, error) {
	if !domain.IsValidLevel(level) {
		return domain.Permission{}, domain.ValidationError{Field: "level", Detail: "unknown permission level"}
	}
	if err := uc.Require(ctx, documentID, actor.ID, domain.LevelAdmin); err != nil {
		return domain.Permission{}, err
	}

	now := time.Now().UTC()
	grant := domain.Permission{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		UserID:     userID,
		Level:      level,
		GrantedBy:  actor.ID,
		GrantedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.perms.Upsert(ctx, grant); err != nil {
		return domain.Permission{}, err
	}

	ev := domain.Event{
		Kind:       domain.EventPermissionGranted,
		DocumentID: documentID,
		Actor:      actor.ID,
		Success:    true,
		At:         now,
		Permission: &domain.PermissionDetail{UserID: userID, Level: level},
	}
	uc.activity.Record(ctx, ev)
	uc.notifier.Dispatch(ctx, domain.Notification{Recipient: userID, Event: ev})

	return grant, nil
}

// Revoke removes the explicit grant for a user. Membership floors are
// unaffected.
func (uc *PermissionUsecase) Revoke(ctx context.Context, actor domain.User, documentID, userID string) error {
	if err := uc.Require(ctx, documentID, actor.ID, domain.LevelAdmin); err != nil {
		return err
	}
	if err := uc.perms.Delete(ctx, documentID, userID); err != nil {
		return err
	}

	uc.activity.Record(ctx, domain.Event{
		Kind:       domain.EventPermissionRevoked,
		DocumentID: documentID,
		Actor:      actor.ID,
		Success:    true,
		At:         time.Now().UTC(),
		Permission: &domain.PermissionDetail{UserID: userID},
	})
	return nil
}

// List returns the explicit grants on a document.
func (uc *PermissionUsecase) List(ctx context.Context, actor domain.User, documentID string) ([]domain.Permission, error) {
	if err := uc.Require(ctx, documentID, actor.ID, domain.LevelAdmin); err != nil {
		return nil, err
	}
	return uc.perms.ListByDocument(ctx, documentID)
}
