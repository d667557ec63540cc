package channel

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// RecordEvent stores a raw webhook delivery. created=false means the same
// (tenant, channel, external_event_id) was already delivered and the caller
// must treat the whole delivery as a no-op. Events without an external id are
// always recorded; no dedup is possible for them.
func (r *Repo) RecordEvent(ctx context.Context, tenant, ch, externalEventID string, payload map[string]any) (*WebhookEvent, bool, error) {
	event := &WebhookEvent{
		TenantID: tenant,
		Channel:  ch,
		Payload:  payload,
	}
	if externalEventID != "" {
		event.ExternalEventID = &externalEventID

		var count int64
		if err := r.db.WithContext(ctx).Model(&WebhookEvent{}).
			Where("tenant_id = ? AND channel = ? AND external_event_id = ?", tenant, ch, externalEventID).
			Count(&count).Error; err != nil {
			return nil, false, err
		}
		if count > 0 {
			return nil, false, nil
		}
	}

	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		if externalEventID != "" {
			var existing WebhookEvent
			if getErr := r.db.WithContext(ctx).
				Where("tenant_id = ? AND channel = ? AND external_event_id = ?", tenant, ch, externalEventID).
				First(&existing).Error; getErr == nil {
				return nil, false, nil
			}
		}
		return nil, false, err
	}
	return event, true, nil
}

func (r *Repo) MarkProcessed(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&WebhookEvent{}).
		Where("id = ?", id).
		Update("processed", true).Error
}
