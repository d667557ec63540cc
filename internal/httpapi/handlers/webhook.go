package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nexusdesk/nexus-core/internal/channel"
)

// VerifyWhatsAppWebhook answers Meta's subscription handshake.
func (h *Handler) VerifyWhatsAppWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")
	if mode == "subscribe" && h.Cfg.WhatsAppVerifyToken != "" && token == h.Cfg.WhatsAppVerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	fail(c, http.StatusForbidden, 40301, "verification failed")
}

// webhookEventID extracts the delivery id: a top-level id (WhatsApp test
// events, Magento, Shopify's numeric order id) or the first entry id.
func webhookEventID(payload map[string]any) string {
	switch id := payload["id"].(type) {
	case string:
		if id != "" {
			return id
		}
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	if entries, okk := payload["entry"].([]any); okk && len(entries) > 0 {
		if entry, okk := entries[0].(map[string]any); okk {
			if id, okk := entry["id"].(string); okk {
				return id
			}
		}
	}
	return ""
}

// ReceiveWhatsAppWebhook ingests one webhook delivery. Transport signature
// verification happens upstream; this layer only dedups and dispatches.
func (h *Handler) ReceiveWhatsAppWebhook(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	eventID := webhookEventID(payload)
	event, created, err := h.Webhooks.RecordEvent(c.Request.Context(), h.Cfg.Tenant, channel.WhatsApp, eventID, payload)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "failed to record event")
		return
	}
	if !created {
		if h.Redis != nil {
			h.Redis.IncrWebhook(c.Request.Context(), channel.WhatsApp, "duplicate")
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "duplicate_skipped"})
		return
	}

	for _, n := range channel.NormalizeWhatsApp(payload, eventID) {
		if err := h.Orchestrator.HandleNormalized(c.Request.Context(), n); err != nil {
			log.Error().Err(err).Str("external_id", n.ExternalID).Msg("handle normalized message failed")
		}
	}
	if err := h.Webhooks.MarkProcessed(c.Request.Context(), event.ID); err != nil {
		log.Warn().Err(err).Uint64("event_id", event.ID).Msg("mark webhook processed failed")
	}

	if h.Redis != nil {
		h.Redis.IncrWebhook(c.Request.Context(), channel.WhatsApp, "accepted")
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
