package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nexusdesk/nexus-core/internal/channel"
	"github.com/nexusdesk/nexus-core/internal/commerce"
	"github.com/nexusdesk/nexus-core/internal/customer"
)

const shopifyOrderPayload = `{
	"id": 450789469,
	"financial_status": "paid",
	"total_price": "129.90",
	"currency": "USD",
	"updated_at": "2026-08-30T10:00:00Z",
	"customer": {
		"id": 115310627,
		"email": "jane@example.com",
		"phone": "+15551234567"
	}
}`

func postJSON(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestReceiveShopifyWebhook_IngestsCustomerAndOrder(t *testing.T) {
	r, db, _ := newWebhookFixture(t)

	w := postJSON(t, r, "/webhooks/shopify", shopifyOrderPayload)
	if w.Code != http.StatusAccepted || !strings.Contains(w.Body.String(), "accepted") {
		t.Fatalf("expected 202 accepted, got %d: %s", w.Code, w.Body.String())
	}

	var ident customer.CustomerIdentity
	if err := db.Where("channel = ? AND external_id = ?", channel.Shopify, "115310627").First(&ident).Error; err != nil {
		t.Fatalf("identity not created: %v", err)
	}

	var order commerce.Order
	if err := db.Where("source = ? AND external_order_id = ?", channel.Shopify, "450789469").First(&order).Error; err != nil {
		t.Fatalf("order not created: %v", err)
	}
	if order.CustomerID != ident.CustomerID {
		t.Fatalf("order customer %d does not match identity customer %d", order.CustomerID, ident.CustomerID)
	}
	if order.Status != "paid" || order.Total != 129.90 || order.Currency != "USD" {
		t.Fatalf("unexpected order: %+v", order)
	}

	var cust customer.Customer
	if err := db.First(&cust, ident.CustomerID).Error; err != nil {
		t.Fatalf("load customer: %v", err)
	}
	if cust.PrimaryEmail != "jane@example.com" {
		t.Fatalf("contact details not recorded: %q", cust.PrimaryEmail)
	}
}

func TestReceiveShopifyWebhook_RedeliveryDedups(t *testing.T) {
	r, db, _ := newWebhookFixture(t)

	if w := postJSON(t, r, "/webhooks/shopify", shopifyOrderPayload); w.Code != http.StatusAccepted {
		t.Fatalf("first delivery: %d", w.Code)
	}
	w := postJSON(t, r, "/webhooks/shopify", shopifyOrderPayload)
	if w.Code != http.StatusAccepted || !strings.Contains(w.Body.String(), "duplicate_skipped") {
		t.Fatalf("expected duplicate_skipped, got %d: %s", w.Code, w.Body.String())
	}

	var n int64
	if err := db.Model(&commerce.Order{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 order row, got %d", n)
	}
}

func TestReceiveMagentoWebhook_IngestsOrderEnvelope(t *testing.T) {
	r, db, _ := newWebhookFixture(t)

	payload := `{
		"id": "magento-evt-1",
		"order": {
			"entity_id": 42,
			"status": "processing",
			"grand_total": 55.5,
			"order_currency_code": "EUR",
			"updated_at": "2026-08-30 10:00:00"
		},
		"customer": {"email": "omar@example.com", "telephone": "+201001234567"}
	}`
	w := postJSON(t, r, "/webhooks/magento", payload)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var order commerce.Order
	if err := db.Where("source = ? AND external_order_id = ?", channel.Magento, "42").First(&order).Error; err != nil {
		t.Fatalf("order not created: %v", err)
	}
	if order.Status != "processing" || order.Currency != "EUR" {
		t.Fatalf("unexpected order: %+v", order)
	}

	var ident customer.CustomerIdentity
	if err := db.Where("channel = ? AND external_id = ?", channel.Magento, "omar@example.com").First(&ident).Error; err != nil {
		t.Fatalf("identity not created: %v", err)
	}
}

func TestReceiveShopifyWebhook_BadJSON(t *testing.T) {
	r, _, _ := newWebhookFixture(t)

	w := postJSON(t, r, "/webhooks/shopify", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
