package agent

import "time"

// RoutingRules declares which conversations a profile volunteers for. Empty
// sets never match; routing falls through to the default profile.
type RoutingRules struct {
	Channels  []string `json:"channels,omitempty"`
	Languages []string `json:"languages,omitempty"`
}

// ToolSchema declares the profile's tool allow-list. A nil/empty list means
// every registered tool is permitted.
type ToolSchema struct {
	AllowedTools []string `json:"allowed_tools,omitempty"`
}

func (t ToolSchema) Allows(tool string) bool {
	if len(t.AllowedTools) == 0 {
		return true
	}
	for _, name := range t.AllowedTools {
		if name == tool {
			return true
		}
	}
	return false
}

type AgentProfile struct {
	ID           uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID     string            `gorm:"type:varchar(64);not null;index:uniq_agent_slug,unique,priority:1" json:"-"`
	Name         string            `gorm:"type:varchar(255);not null" json:"name"`
	Slug         string            `gorm:"type:varchar(255);not null;index:uniq_agent_slug,unique,priority:2" json:"slug"`
	Description  string            `gorm:"type:text" json:"description"`
	SystemPrompt string            `gorm:"type:text;not null" json:"system_prompt"`
	ToolSchema   ToolSchema        `gorm:"serializer:json" json:"tool_schema"`
	RoutingRules RoutingRules      `gorm:"serializer:json" json:"routing_rules"`
	ModelBackend string            `gorm:"type:varchar(32);not null" json:"model_backend"`
	ModelName    string            `gorm:"type:varchar(255);not null" json:"model_name"`
	Temperature  float64           `json:"temperature"`
	MaxTokens    int               `json:"max_tokens"`
	IsActive     bool              `gorm:"index" json:"is_active"`
	Metadata     map[string]string `gorm:"serializer:json" json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (AgentProfile) TableName() string { return "agent_profiles" }

// AgentPromptVersion is the append-only system-prompt history; version numbers
// increase monotonically per agent.
type AgentPromptVersion struct {
	ID           uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	AgentID      uint64            `gorm:"not null;index:uniq_prompt_version,unique,priority:1" json:"agent_id"`
	Version      int               `gorm:"not null;index:uniq_prompt_version,unique,priority:2" json:"version"`
	SystemPrompt string            `gorm:"type:text;not null" json:"system_prompt"`
	Metadata     map[string]string `gorm:"serializer:json" json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
}

func (AgentPromptVersion) TableName() string { return "agent_prompt_versions" }
