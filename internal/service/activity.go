package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/opsdocs/signoff/internal/domain"
	"github.com/opsdocs/signoff/internal/infra/database/models"
)

// ActivityService appends workflow events to the audit log. Writes happen on
// a separate goroutine with their own deadline so a slow insert never holds
// up the operation that produced the event.
type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

func (s *ActivityService) Record(_ context.Context, ev domain.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		detail, err := json.Marshal(ev)
		if err != nil {
			slog.Error("failed to marshal activity event", slog.String("error", err.Error()))
			return
		}

		row := models.ActivityLog{
			Kind:       string(ev.Kind),
			DocumentID: ev.DocumentID,
			Actor:      ev.Actor,
			Success:    ev.Success,
			Detail:     detail,
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			slog.Error("failed to record activity",
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
		}
	}()
}
