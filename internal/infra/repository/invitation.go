package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsdocs/signoff/internal/domain"
	"github.com/opsdocs/signoff/internal/infra/database/models"
)

type InvitationRepository struct {
	db *gorm.DB
}

func NewInvitationRepository(db *gorm.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func (r *InvitationRepository) Create(ctx context.Context, inv domain.Invitation) error {
	record := invitationToModel(inv)
	err := r.db.WithContext(ctx).Create(&record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ConflictError{Resource: "invitation"}
	}
	return err
}

func (r *InvitationRepository) Get(ctx context.Context, id string) (domain.Invitation, error) {
	var record models.Invitation
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Invitation{}, domain.NotFoundError{}
		}
		return domain.Invitation{}, err
	}
	return invitationFromModel(record), nil
}

func (r *InvitationRepository) GetByToken(ctx context.Context, digest string) (domain.Invitation, error) {
	var record models.Invitation
	err := r.db.WithContext(ctx).First(&record, "token_digest = ?", digest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Invitation{}, domain.NotFoundError{}
		}
		return domain.Invitation{}, err
	}
	return invitationFromModel(record), nil
}

func (r *InvitationRepository) HasPending(ctx context.Context, documentID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("document_id = ? AND invited_email = ? AND status = ?", documentID, email, string(domain.InvitationPending)).
		Count(&count).Error
	return count > 0, err
}

func (r *InvitationRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Invitation, error) {
	var records []models.Invitation
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at desc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Invitation, 0, len(records))
	for _, rec := range records {
		out = append(out, invitationFromModel(rec))
	}
	return out, nil
}

// Accept consumes the token and creates the contributor row in one
// transaction. The consumption is a conditional update, so two concurrent
// accepts of the same token race on the row and exactly one wins.
func (r *InvitationRepository) Accept(ctx context.Context, digest string, user domain.User, now time.Time) (domain.Invitation, error) {
	var out domain.Invitation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := r.consume(tx, digest, now, map[string]interface{}{
			"status":          string(domain.InvitationAccepted),
			"accepted_at":     now,
			"invited_user_id": user.ID,
			"updated_at":      now,
		})
		if err != nil {
			return err
		}

		var record models.Document
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&record, "id = ?", inv.DocumentID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError{}
			}
			return err
		}
		if err := tx.Where("document_id = ?", inv.DocumentID).Find(&record.Contributors).Error; err != nil {
			return err
		}

		doc := documentFromModel(record)
		if err := domain.Join(&doc, user, inv.Team, inv.SentAt, now); err != nil {
			return err
		}
		doc.Revision++

		res := tx.Model(&models.Document{}).
			Where("id = ? AND revision = ?", doc.ID, record.Revision).
			Updates(map[string]interface{}{
				"revision":   doc.Revision,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ConflictError{Resource: "document"}
		}
		if err := syncContributors(tx, doc); err != nil {
			return err
		}

		out = inv
		return nil
	})
	if err != nil {
		return domain.Invitation{}, err
	}
	return out, nil
}

func (r *InvitationRepository) Decline(ctx context.Context, digest string, reason string, now time.Time) (domain.Invitation, error) {
	var out domain.Invitation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := r.consume(tx, digest, now, map[string]interface{}{
			"status":         string(domain.InvitationDeclined),
			"declined_at":    now,
			"decline_reason": reason,
			"updated_at":     now,
		})
		if err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return domain.Invitation{}, err
	}
	return out, nil
}

// consume is the single-use token gate: a conditional UPDATE that only
// matches a pending, unexpired row. Zero rows affected means the token was
// already spent, expired, or never existed; the follow-up read picks the
// precise error.
func (r *InvitationRepository) consume(tx *gorm.DB, digest string, now time.Time, updates map[string]interface{}) (domain.Invitation, error) {
	res := tx.Model(&models.Invitation{}).
		Where("token_digest = ? AND status = ? AND expires_at > ?", digest, string(domain.InvitationPending), now).
		Updates(updates)
	if res.Error != nil {
		return domain.Invitation{}, res.Error
	}
	if res.RowsAffected == 0 {
		var record models.Invitation
		err := tx.First(&record, "token_digest = ?", digest).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.Invitation{}, domain.NotFoundError{}
			}
			return domain.Invitation{}, err
		}
		inv := invitationFromModel(record)
		return domain.Invitation{}, domain.InvitationNotActionableError{Status: inv.Status, Expired: inv.Expired(now)}
	}

	var record models.Invitation
	if err := tx.First(&record, "token_digest = ?", digest).Error; err != nil {
		return domain.Invitation{}, err
	}
	return invitationFromModel(record), nil
}

func (r *InvitationRepository) Cancel(ctx context.Context, id string, now time.Time) (domain.Invitation, error) {
	res := r.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, string(domain.InvitationPending)).
		Updates(map[string]interface{}{
			"status":     string(domain.InvitationExpired),
			"updated_at": now,
		})
	if res.Error != nil {
		return domain.Invitation{}, res.Error
	}
	if res.RowsAffected == 0 {
		inv, err := r.Get(ctx, id)
		if err != nil {
			return domain.Invitation{}, err
		}
		return domain.Invitation{}, domain.InvitationNotActionableError{Status: inv.Status, Expired: inv.Expired(now)}
	}
	return r.Get(ctx, id)
}

func (r *InvitationRepository) Refresh(ctx context.Context, id string, newDigest string, sentAt, expiresAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, string(domain.InvitationPending)).
		Updates(map[string]interface{}{
			"token_digest": newDigest,
			"sent_at":      sentAt,
			"expires_at":   expiresAt,
			"updated_at":   sentAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError{}
	}
	return nil
}

func (r *InvitationRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("status = ? AND expires_at <= ?", string(domain.InvitationPending), now).
		Updates(map[string]interface{}{
			"status":     string(domain.InvitationExpired),
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func invitationToModel(inv domain.Invitation) models.Invitation {
	return models.Invitation{
		ID:            inv.ID,
		DocumentID:    inv.DocumentID,
		InvitedBy:     inv.InvitedBy,
		InvitedEmail:  inv.InvitedEmail,
		InvitedUserID: inv.InvitedUserID,
		TokenDigest:   inv.TokenDigest,
		Team:          string(inv.Team),
		Status:        string(inv.Status),
		Message:       inv.Message,
		ExpiresAt:     inv.ExpiresAt,
		SentAt:        inv.SentAt,
		AcceptedAt:    inv.AcceptedAt,
		DeclinedAt:    inv.DeclinedAt,
		DeclineReason: inv.DeclineReason,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
	}
}

func invitationFromModel(record models.Invitation) domain.Invitation {
	return domain.Invitation{
		ID:            record.ID,
		DocumentID:    record.DocumentID,
		InvitedBy:     record.InvitedBy,
		InvitedEmail:  record.InvitedEmail,
		InvitedUserID: record.InvitedUserID,
		TokenDigest:   record.TokenDigest,
		Team:          domain.Team(record.Team),
		Status:        domain.InvitationStatus(record.Status),
		Message:       record.Message,
		ExpiresAt:     record.ExpiresAt,
		SentAt:        record.SentAt,
		AcceptedAt:    record.AcceptedAt,
		DeclinedAt:    record.DeclinedAt,
		DeclineReason: record.DeclineReason,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}
