package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/nexusdesk/nexus-core/internal/channel"
)

// ReceiveShopifyWebhook mirrors Shopify order webhooks into commerce rows.
func (h *Handler) ReceiveShopifyWebhook(c *gin.Context) {
	h.receiveStorefront(c, channel.Shopify, channel.NormalizeShopifyOrder)
}

// ReceiveMagentoWebhook mirrors Magento order webhooks into commerce rows.
func (h *Handler) ReceiveMagentoWebhook(c *gin.Context) {
	h.receiveStorefront(c, channel.Magento, channel.NormalizeMagentoOrder)
}

func (h *Handler) receiveStorefront(c *gin.Context, ch string, normalize func(map[string]any) channel.StorefrontOrder) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	eventID := webhookEventID(payload)
	event, created, err := h.Webhooks.RecordEvent(c.Request.Context(), h.Cfg.Tenant, ch, eventID, payload)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "failed to record event")
		return
	}
	if !created {
		if h.Redis != nil {
			h.Redis.IncrWebhook(c.Request.Context(), ch, "duplicate")
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "duplicate_skipped"})
		return
	}

	if _, err := h.Commerce.UpsertOrder(c.Request.Context(), normalize(payload)); err != nil {
		log.Error().Err(err).Str("channel", ch).Msg("storefront order upsert failed")
		fail(c, http.StatusInternalServerError, 50002, "failed to ingest order")
		return
	}
	if err := h.Webhooks.MarkProcessed(c.Request.Context(), event.ID); err != nil {
		log.Warn().Err(err).Uint64("event_id", event.ID).Msg("mark webhook processed failed")
	}

	if h.Redis != nil {
		h.Redis.IncrWebhook(c.Request.Context(), ch, "accepted")
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
