package audit

import "time"

// ToolCallLog records every tool invocation attempt, append-only.
type ToolCallLog struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID  string         `gorm:"type:varchar(64);index;not null" json:"-"`
	ToolName  string         `gorm:"type:varchar(128);index;not null" json:"tool_name"`
	Arguments map[string]any `gorm:"serializer:json" json:"arguments"`
	Result    map[string]any `gorm:"serializer:json" json:"result"`
	Success   bool           `json:"success"`
	MessageID *uint64        `gorm:"index" json:"message_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (ToolCallLog) TableName() string { return "tool_call_logs" }

// AuditLog records governed actions (prompt edits, rollbacks, mutating tool
// calls), append-only, payload redacted before storage.
type AuditLog struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID  string         `gorm:"type:varchar(64);index;not null" json:"-"`
	EventType string         `gorm:"type:varchar(128);index;not null" json:"event_type"`
	Actor     string         `gorm:"type:varchar(128)" json:"actor"`
	Target    string         `gorm:"type:varchar(128)" json:"target"`
	Payload   map[string]any `gorm:"serializer:json" json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
