package channel

import "time"

// WebhookEvent is the raw inbound payload; the unique (tenant, channel,
// external_event_id) index is the coarse dedup layer above per-message dedup.
type WebhookEvent struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID        string         `gorm:"type:varchar(64);not null;index:uniq_webhook_event,unique,priority:1" json:"-"`
	Channel         string         `gorm:"type:varchar(32);not null;index:uniq_webhook_event,unique,priority:2" json:"channel"`
	ExternalEventID *string        `gorm:"type:varchar(255);index:uniq_webhook_event,unique,priority:3" json:"external_event_id,omitempty"`
	Payload         map[string]any `gorm:"serializer:json" json:"payload"`
	Processed       bool           `gorm:"index" json:"processed"`
	ReceivedAt      time.Time      `gorm:"autoCreateTime" json:"received_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
