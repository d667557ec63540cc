package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nexusdesk/nexus-core/internal/agent"
	"github.com/nexusdesk/nexus-core/internal/channel"
	"github.com/nexusdesk/nexus-core/internal/commerce"
	"github.com/nexusdesk/nexus-core/internal/config"
	"github.com/nexusdesk/nexus-core/internal/conversation"
	"github.com/nexusdesk/nexus-core/internal/store/redisstore"
)

type Handler struct {
	DB           *gorm.DB
	Cfg          config.Config
	Redis        *redisstore.Store
	Orchestrator *conversation.Orchestrator
	Webhooks     *channel.Repo
	AgentSvc     *agent.Service
	Commerce     *commerce.Ingestor
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, orch *conversation.Orchestrator, webhooks *channel.Repo, agents *agent.Service, ingest *commerce.Ingestor) *Handler {
	return &Handler{
		DB:           db,
		Cfg:          cfg,
		Redis:        rds,
		Orchestrator: orch,
		Webhooks:     webhooks,
		AgentSvc:     agents,
		Commerce:     ingest,
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

func (h *Handler) Ping(c *gin.Context) {
	ok(c, gin.H{"pong": true})
}
