package agent

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

const (
	DefaultName = "Default Support Agent"
	DefaultSlug = "default-support-agent"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetByID(ctx context.Context, id uint64) (*AgentProfile, error) {
	var a AgentProfile
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListActive returns active profiles in creation order so routing is deterministic.
func (r *Repo) ListActive(ctx context.Context, tenant string) ([]AgentProfile, error) {
	var out []AgentProfile
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenant, true).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *Repo) ListAll(ctx context.Context, tenant string) ([]AgentProfile, error) {
	var out []AgentProfile
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenant).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (r *Repo) Create(ctx context.Context, a *AgentProfile) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// EnsureDefault returns the fallback profile, provisioning it on first use.
func (r *Repo) EnsureDefault(ctx context.Context, tenant, channel string) (*AgentProfile, error) {
	var a AgentProfile
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND slug = ?", tenant, DefaultSlug).
		First(&a).Error
	if err == nil {
		return &a, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	a = AgentProfile{
		TenantID:     tenant,
		Name:         DefaultName,
		Slug:         DefaultSlug,
		SystemPrompt: "You are a helpful customer support agent. Be concise and polite.",
		RoutingRules: RoutingRules{Channels: []string{channel}},
		ModelBackend: "ollama",
		ModelName:    "llama3.2:3b",
		Temperature:  0.2,
		MaxTokens:    256,
		IsActive:     true,
	}
	if createErr := r.db.WithContext(ctx).Create(&a).Error; createErr != nil {
		// another caller may have provisioned it first
		var existing AgentProfile
		if getErr := r.db.WithContext(ctx).
			Where("tenant_id = ? AND slug = ?", tenant, DefaultSlug).
			First(&existing).Error; getErr == nil {
			return &existing, nil
		}
		return nil, createErr
	}
	return &a, nil
}

func (r *Repo) UpdateSystemPrompt(ctx context.Context, agentID uint64, prompt string) error {
	return r.db.WithContext(ctx).Model(&AgentProfile{}).
		Where("id = ?", agentID).
		Update("system_prompt", prompt).Error
}

func (r *Repo) ListPromptVersions(ctx context.Context, agentID uint64) ([]AgentPromptVersion, error) {
	var out []AgentPromptVersion
	err := r.db.WithContext(ctx).
		Where("agent_id = ?", agentID).
		Order("version DESC").
		Find(&out).Error
	return out, err
}

func (r *Repo) GetPromptVersion(ctx context.Context, agentID uint64, version int) (*AgentPromptVersion, error) {
	var pv AgentPromptVersion
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND version = ?", agentID, version).
		First(&pv).Error
	if err != nil {
		return nil, err
	}
	return &pv, nil
}

// AppendPromptVersion assigns the next version number inside one transaction;
// the unique (agent_id, version) index backstops concurrent appends.
func (r *Repo) AppendPromptVersion(ctx context.Context, agentID uint64, prompt string, meta map[string]string) (*AgentPromptVersion, error) {
	var pv AgentPromptVersion
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest AgentPromptVersion
		next := 1
		if err := tx.Where("agent_id = ?", agentID).Order("version DESC").First(&latest).Error; err == nil {
			next = latest.Version + 1
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		pv = AgentPromptVersion{
			AgentID:      agentID,
			Version:      next,
			SystemPrompt: prompt,
			Metadata:     meta,
		}
		return tx.Create(&pv).Error
	})
	if err != nil {
		return nil, err
	}
	return &pv, nil
}
