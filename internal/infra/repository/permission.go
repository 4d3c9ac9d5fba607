package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/opsdocs/signoff/internal/domain"
	"github.com/opsdocs/signoff/internal/infra/database/models"
)

// Permission rows sit on the hot path of every request, so reads go through
// memcached. Grant and revoke invalidate; a miss falls through to postgres.
const permCacheTTL = 30

type PermissionRepository struct {
	db *gorm.DB
	mc *memcache.Client
}

func NewPermissionRepository(db *gorm.DB, mc *memcache.Client) *PermissionRepository {
	return &PermissionRepository{db: db, mc: mc}
}

func permCacheKey(documentID, userID string) string {
	return fmt.Sprintf("perm:%x", xxh3.HashString(documentID+"\x00"+userID))
}

func (r *PermissionRepository) Upsert(ctx context.Context, p domain.Permission) error {
	record := models.Permission{
		ID:         p.ID,
		DocumentID: p.DocumentID,
		UserID:     p.UserID,
		Level:      string(p.Level),
		GrantedBy:  p.GrantedBy,
		GrantedAt:  p.GrantedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"id", "level", "granted_by", "granted_at", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return err
	}
	r.mc.Delete(permCacheKey(p.DocumentID, p.UserID))
	return nil
}

func (r *PermissionRepository) Get(ctx context.Context, documentID, userID string) (domain.Permission, error) {
	key := permCacheKey(documentID, userID)
	if item, err := r.mc.Get(key); err == nil {
		var cached domain.Permission
		if json.Unmarshal(item.Value, &cached) == nil {
			if cached.ID == "" {
				return domain.Permission{}, domain.NotFoundError{}
			}
			return cached, nil
		}
	}

	var record models.Permission
	err := r.db.WithContext(ctx).
		First(&record, "document_id = ? AND user_id = ?", documentID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Cache the miss too; resolvers look this up on every request.
			r.cache(key, domain.Permission{})
			return domain.Permission{}, domain.NotFoundError{}
		}
		return domain.Permission{}, err
	}

	grant := domain.Permission{
		ID:         record.ID,
		DocumentID: record.DocumentID,
		UserID:     record.UserID,
		Level:      domain.PermissionLevel(record.Level),
		GrantedBy:  record.GrantedBy,
		GrantedAt:  record.GrantedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	r.cache(key, grant)
	return grant, nil
}

func (r *PermissionRepository) cache(key string, grant domain.Permission) {
	raw, err := json.Marshal(grant)
	if err != nil {
		return
	}
	r.mc.Set(&memcache.Item{Key: key, Value: raw, Expiration: permCacheTTL})
}

func (r *PermissionRepository) Delete(ctx context.Context, documentID, userID string) error {
	res := r.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", documentID, userID).
		Delete(&models.Permission{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError{}
	}
	r.mc.Delete(permCacheKey(documentID, userID))
	return nil
}

func (r *PermissionRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Permission, error) {
	var records []models.Permission
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("granted_at asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Permission, 0, len(records))
	for _, record := range records {
		out = append(out, domain.Permission{
			ID:         record.ID,
			DocumentID: record.DocumentID,
			UserID:     record.UserID,
			Level:      domain.PermissionLevel(record.Level),
			GrantedBy:  record.GrantedBy,
			GrantedAt:  record.GrantedAt,
			UpdatedAt:  record.UpdatedAt,
		})
	}
	return out, nil
}
