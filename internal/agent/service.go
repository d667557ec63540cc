package agent

import (
	"context"
	"strconv"

	"github.com/nexusdesk/nexus-core/internal/audit"
)

// Service wraps profile administration with mandatory audit capture.
type Service struct {
	repo   *Repo
	audits *audit.Repo
	tenant string
}

func NewService(repo *Repo, audits *audit.Repo, tenant string) *Service {
	return &Service{repo: repo, audits: audits, tenant: tenant}
}

func (s *Service) List(ctx context.Context) ([]AgentProfile, error) {
	return s.repo.ListAll(ctx, s.tenant)
}

func (s *Service) Create(ctx context.Context, a *AgentProfile) error {
	a.TenantID = s.tenant
	return s.repo.Create(ctx, a)
}

func (s *Service) ListPromptVersions(ctx context.Context, agentID uint64) ([]AgentPromptVersion, error) {
	return s.repo.ListPromptVersions(ctx, agentID)
}

// CreatePromptVersion appends a prompt version, applies it to the profile and
// audits the edit.
func (s *Service) CreatePromptVersion(ctx context.Context, actor string, agentID uint64, prompt string) (*AgentPromptVersion, error) {
	if _, err := s.repo.GetByID(ctx, agentID); err != nil {
		return nil, err
	}
	pv, err := s.repo.AppendPromptVersion(ctx, agentID, prompt, nil)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSystemPrompt(ctx, agentID, prompt); err != nil {
		return nil, err
	}
	if err := s.audits.RecordAudit(ctx, &audit.AuditLog{
		TenantID:  s.tenant,
		EventType: "agent_prompt_version_created",
		Actor:     actor,
		Target:    strconv.FormatUint(agentID, 10),
		Payload:   map[string]any{"version": pv.Version},
	}); err != nil {
		return nil, err
	}
	return pv, nil
}

// RollbackPrompt restores the profile's system prompt to a recorded version.
// The version history itself is never rewritten.
func (s *Service) RollbackPrompt(ctx context.Context, actor string, agentID uint64, version int) error {
	pv, err := s.repo.GetPromptVersion(ctx, agentID, version)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateSystemPrompt(ctx, agentID, pv.SystemPrompt); err != nil {
		return err
	}
	return s.audits.RecordAudit(ctx, &audit.AuditLog{
		TenantID:  s.tenant,
		EventType: "agent_prompt_rollback",
		Actor:     actor,
		Target:    strconv.FormatUint(agentID, 10),
		Payload:   map[string]any{"version": version},
	})
}
