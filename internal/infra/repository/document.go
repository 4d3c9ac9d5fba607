package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsdocs/signoff/internal/domain"
	"github.com/opsdocs/signoff/internal/infra/database/models"
	"github.com/opsdocs/signoff/internal/usecase"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc domain.Document, changeNote string) error {
	record := documentToModel(doc)
	snapshot := models.DocumentVersion{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Version:    doc.Version,
		Data:       []byte(doc.Body),
		CreatedBy:  doc.CreatedBy,
		ChangeNote: changeNote,
		CreatedAt:  doc.CreatedAt,
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ConflictError{Resource: "document"}
			}
			return err
		}
		return tx.Create(&snapshot).Error
	})
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (domain.Document, error) {
	var record models.Document
	err := r.db.WithContext(ctx).
		Preload("Contributors").
		First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, domain.NotFoundError{}
		}
		return domain.Document{}, err
	}
	return documentFromModel(record), nil
}

// Update is the atomic mutation unit. The document row is locked for the
// duration of the transaction, so concurrent signs of the same document
// serialize and each apply sees the previous writer's result. The revision
// check is a second line of defense for lost updates through read replicas.
func (r *DocumentRepository) Update(ctx context.Context, id string, apply func(doc *domain.Document) (usecase.Effects, error)) (domain.Document, error) {
	var out domain.Document
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.Document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&record, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.NotFoundError{}
			}
			return err
		}
		if err := tx.Where("document_id = ?", id).Order("id asc").Find(&record.Contributors).Error; err != nil {
			return err
		}

		doc := documentFromModel(record)
		before := doc.Revision
		effects, err := apply(&doc)
		if err != nil {
			return err
		}
		doc.Revision = before + 1

		updated := documentToModel(doc)
		res := tx.Model(&models.Document{}).
			Where("id = ? AND revision = ?", id, before).
			Select("reference", "title", "version", "status", "body", "revision", "updated_at", "approved_at").
			Updates(map[string]interface{}{
				"reference":   updated.Reference,
				"title":       updated.Title,
				"version":     updated.Version,
				"status":      updated.Status,
				"body":        updated.Body,
				"revision":    updated.Revision,
				"updated_at":  updated.UpdatedAt,
				"approved_at": updated.ApprovedAt,
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

		if effects.Signature != nil {
			sig := signatureToModel(*effects.Signature)
			if err := tx.Create(&sig).Error; err != nil {
				return err
			}
		}
		if effects.Snapshot != nil {
			snapshot := models.DocumentVersion{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				Version:    doc.Version,
				Data:       []byte(doc.Body),
				CreatedBy:  effects.Snapshot.CreatedBy,
				ChangeNote: effects.Snapshot.ChangeNote,
				CreatedAt:  doc.UpdatedAt,
			}
			if err := tx.Create(&snapshot).Error; err != nil {
				return err
			}
		}

		out = doc
		return nil
	})
	if err != nil {
		return domain.Document{}, err
	}
	return out, nil
}

// syncContributors upserts every membership row. Rows are never removed by a
// document mutation; invitations and resets only change statuses.
func syncContributors(tx *gorm.DB, doc domain.Document) error {
	for _, c := range doc.Contributors {
		row := models.Contributor{
			DocumentID:   doc.ID,
			UserID:       c.UserID,
			Team:         string(c.Team),
			Name:         c.Name,
			Status:       string(c.Status),
			RejectReason: c.RejectReason,
			SignedAt:     c.SignedAt,
			InvitedAt:    c.InvitedAt,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}, {Name: "user_id"}, {Name: "team"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "status", "reject_reason", "signed_at"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *DocumentRepository) Versions(ctx context.Context, documentID string) ([]domain.DocumentVersion, error) {
	var records []models.DocumentVersion
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.DocumentVersion, 0, len(records))
	for _, rec := range records {
		out = append(out, domain.DocumentVersion{
			ID:         rec.ID,
			DocumentID: rec.DocumentID,
			Version:    rec.Version,
			Data:       json.RawMessage(rec.Data),
			CreatedBy:  rec.CreatedBy,
			ChangeNote: rec.ChangeNote,
			CreatedAt:  rec.CreatedAt,
		})
	}
	return out, nil
}

func (r *DocumentRepository) Signatures(ctx context.Context, documentID string) ([]domain.Signature, error) {
	var records []models.Signature
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("signed_at asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Signature, 0, len(records))
	for _, rec := range records {
		out = append(out, signatureFromModel(rec))
	}
	return out, nil
}

func documentToModel(doc domain.Document) models.Document {
	record := models.Document{
		ID:         doc.ID,
		Reference:  doc.Reference,
		Title:      doc.Title,
		Version:    doc.Version,
		Status:     string(doc.Status),
		CreatedBy:  doc.CreatedBy,
		Body:       []byte(doc.Body),
		Revision:   doc.Revision,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
		ApprovedAt: doc.ApprovedAt,
	}
	for _, c := range doc.Contributors {
		record.Contributors = append(record.Contributors, models.Contributor{
			DocumentID:   doc.ID,
			UserID:       c.UserID,
			Team:         string(c.Team),
			Name:         c.Name,
			Status:       string(c.Status),
			RejectReason: c.RejectReason,
			SignedAt:     c.SignedAt,
			InvitedAt:    c.InvitedAt,
		})
	}
	return record
}

func documentFromModel(record models.Document) domain.Document {
	doc := domain.Document{
		ID:         record.ID,
		Reference:  record.Reference,
		Title:      record.Title,
		Version:    record.Version,
		Status:     domain.DocumentStatus(record.Status),
		CreatedBy:  record.CreatedBy,
		Body:       json.RawMessage(record.Body),
		Revision:   record.Revision,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
		ApprovedAt: record.ApprovedAt,
	}
	for _, c := range record.Contributors {
		doc.Contributors = append(doc.Contributors, domain.Contributor{
			UserID:       c.UserID,
			Name:         c.Name,
			Team:         domain.Team(c.Team),
			Status:       domain.SignatureStatus(c.Status),
			RejectReason: c.RejectReason,
			SignedAt:     c.SignedAt,
			InvitedAt:    c.InvitedAt,
		})
	}
	return doc
}

func signatureToModel(sig domain.Signature) models.Signature {
	if sig.SignedAt.IsZero() {
		sig.SignedAt = time.Now().UTC()
	}
	return models.Signature{
		ID:         sig.ID,
		DocumentID: sig.DocumentID,
		UserID:     sig.UserID,
		Type:       string(sig.Type),
		Payload:    sig.Payload,
		IPAddress:  sig.IPAddress,
		UserAgent:  sig.UserAgent,
		SignedAt:   sig.SignedAt,
	}
}

func signatureFromModel(record models.Signature) domain.Signature {
	return domain.Signature{
		ID:         record.ID,
		DocumentID: record.DocumentID,
		UserID:     record.UserID,
		Type:       domain.SignatureType(record.Type),
		Payload:    record.Payload,
		IPAddress:  record.IPAddress,
		UserAgent:  record.UserAgent,
		SignedAt:   record.SignedAt,
	}
}
