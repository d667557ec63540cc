package audit

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

// RecordToolCall writes a tool invocation row using tx, which may be a
// transaction handle so the log lands with the domain mutation.
func RecordToolCall(ctx context.Context, tx *gorm.DB, entry *ToolCallLog) error {
	return tx.WithContext(ctx).Create(entry).Error
}

// RecordAudit redacts the payload and appends an audit row.
func RecordAudit(ctx context.Context, tx *gorm.DB, entry *AuditLog) error {
	entry.Payload = Redact(entry.Payload)
	return tx.WithContext(ctx).Create(entry).Error
}

func (r *Repo) RecordToolCall(ctx context.Context, entry *ToolCallLog) error {
	return RecordToolCall(ctx, r.db, entry)
}

func (r *Repo) RecordAudit(ctx context.Context, entry *AuditLog) error {
	return RecordAudit(ctx, r.db, entry)
}

func (r *Repo) ListToolCalls(ctx context.Context, tenant string, limit int) ([]ToolCallLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []ToolCallLog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenant).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *Repo) ListAudit(ctx context.Context, tenant string, limit int) ([]AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []AuditLog
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenant).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
