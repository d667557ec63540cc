package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nexusdesk/nexus-core/internal/channel"
)

type outboundReq struct {
	To   string `json:"to" binding:"required"`
	Body string `json:"body" binding:"required"`
}

// SendOutboundMessage persists and delivers an operator-initiated message.
func (h *Handler) SendOutboundMessage(c *gin.Context) {
	var req outboundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "to and body are required")
		return
	}

	conv, msg, err := h.Orchestrator.SendOutbound(c.Request.Context(), channel.WhatsApp, req.To, req.Body)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50002, "failed to send message")
		return
	}

	sent := false
	if sr, okk := msg.RawPayload["send_result"].(map[string]any); okk {
		sent, _ = sr["sent"].(bool)
	}

	status := http.StatusOK
	if !sent {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{
		"sent":            sent,
		"conversation_id": conv.ID,
		"message_id":      msg.ID,
		"customer_id":     conv.CustomerID,
	})
}
