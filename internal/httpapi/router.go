package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nexusdesk/nexus-core/internal/agent"
	"github.com/nexusdesk/nexus-core/internal/channel"
	"github.com/nexusdesk/nexus-core/internal/commerce"
	"github.com/nexusdesk/nexus-core/internal/common"
	"github.com/nexusdesk/nexus-core/internal/config"
	"github.com/nexusdesk/nexus-core/internal/conversation"
	"github.com/nexusdesk/nexus-core/internal/httpapi/handlers"
	"github.com/nexusdesk/nexus-core/internal/httpapi/middleware"
	"github.com/nexusdesk/nexus-core/internal/store/redisstore"
)

func NewRouter(
	db *gorm.DB,
	cfg config.Config,
	rds *redisstore.Store,
	orch *conversation.Orchestrator,
	webhooks *channel.Repo,
	agents *agent.Service,
	ingest *commerce.Ingestor,
) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, rds, orch, webhooks, agents, ingest)

	r.GET("/ping", h.Ping)

	// channel webhooks (signature verification happens upstream)
	r.GET("/webhooks/whatsapp", h.VerifyWhatsAppWebhook)
	r.POST("/webhooks/whatsapp", h.ReceiveWhatsAppWebhook)
	r.POST("/webhooks/shopify", h.ReceiveShopifyWebhook)
	r.POST("/webhooks/magento", h.ReceiveMagentoWebhook)

	// operator API (JWT required)
	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.POST("/messages/outbound", h.SendOutboundMessage)
	authGroup.GET("/agents", h.ListAgents)
	authGroup.POST("/agents", h.CreateAgent)
	authGroup.GET("/agents/:agent_id/prompt-versions", h.ListPromptVersions)
	authGroup.POST("/agents/:agent_id/prompt-versions", h.CreatePromptVersion)
	authGroup.POST("/agents/:agent_id/prompt-rollback", h.RollbackPrompt)
	return r
}
