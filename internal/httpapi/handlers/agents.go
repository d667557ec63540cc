package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nexusdesk/nexus-core/internal/agent"
	"github.com/nexusdesk/nexus-core/internal/httpapi/middleware"
)

func actorFromContext(c *gin.Context) string {
	if v, okk := c.Get(middleware.ActorKey); okk {
		if s, okk := v.(string); okk {
			return s
		}
	}
	return "operator"
}

func agentIDParam(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("agent_id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, 10002, "invalid agent id")
		return 0, false
	}
	return id, true
}

func (h *Handler) ListAgents(c *gin.Context) {
	agents, err := h.AgentSvc.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, 50003, "failed to list agents")
		return
	}
	ok(c, gin.H{"agents": agents})
}

type createAgentReq struct {
	Name         string             `json:"name" binding:"required"`
	Slug         string             `json:"slug" binding:"required"`
	Description  string             `json:"description"`
	SystemPrompt string             `json:"system_prompt" binding:"required"`
	ToolSchema   agent.ToolSchema   `json:"tool_schema"`
	RoutingRules agent.RoutingRules `json:"routing_rules"`
	ModelBackend string             `json:"model_backend" binding:"required"`
	ModelName    string             `json:"model_name" binding:"required"`
	Temperature  float64            `json:"temperature"`
	MaxTokens    int                `json:"max_tokens"`
	IsActive     *bool              `json:"is_active"`
}

func (h *Handler) CreateAgent(c *gin.Context) {
	var req createAgentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	a := &agent.AgentProfile{
		Name:         req.Name,
		Slug:         req.Slug,
		Description:  req.Description,
		SystemPrompt: req.SystemPrompt,
		ToolSchema:   req.ToolSchema,
		RoutingRules: req.RoutingRules,
		ModelBackend: req.ModelBackend,
		ModelName:    req.ModelName,
		Temperature:  req.Temperature,
		MaxTokens:    maxTokens,
		IsActive:     active,
	}
	if err := h.AgentSvc.Create(c.Request.Context(), a); err != nil {
		fail(c, http.StatusInternalServerError, 50004, "failed to create agent")
		return
	}
	ok(c, gin.H{"agent": a})
}

func (h *Handler) ListPromptVersions(c *gin.Context) {
	agentID, okk := agentIDParam(c)
	if !okk {
		return
	}
	versions, err := h.AgentSvc.ListPromptVersions(c.Request.Context(), agentID)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50005, "failed to list prompt versions")
		return
	}
	ok(c, gin.H{"versions": versions})
}

type createPromptVersionReq struct {
	SystemPrompt string `json:"system_prompt" binding:"required"`
}

func (h *Handler) CreatePromptVersion(c *gin.Context) {
	agentID, okk := agentIDParam(c)
	if !okk {
		return
	}
	var req createPromptVersionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	pv, err := h.AgentSvc.CreatePromptVersion(c.Request.Context(), actorFromContext(c), agentID, req.SystemPrompt)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, 40401, "agent not found")
			return
		}
		fail(c, http.StatusInternalServerError, 50006, "failed to create prompt version")
		return
	}
	ok(c, gin.H{"version": pv.Version})
}

type rollbackReq struct {
	Version int `json:"version" binding:"required"`
}

func (h *Handler) RollbackPrompt(c *gin.Context) {
	agentID, okk := agentIDParam(c)
	if !okk {
		return
	}
	var req rollbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "version required")
		return
	}

	if err := h.AgentSvc.RollbackPrompt(c.Request.Context(), actorFromContext(c), agentID, req.Version); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fail(c, http.StatusNotFound, 40402, "version not found")
			return
		}
		fail(c, http.StatusInternalServerError, 50007, "failed to roll back prompt")
		return
	}
	ok(c, gin.H{"status": "rolled_back", "version": req.Version})
}
