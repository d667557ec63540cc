package channel

import "strconv"

// StorefrontOrder is the channel-agnostic view of one commerce webhook:
// who the buyer is and the order state the storefront reported.
type StorefrontOrder struct {
	Channel            string
	CustomerExternalID string
	Email              string
	Phone              string
	ExternalOrderID    string
	Status             string
	Total              float64
	Currency           string
	UpdatedAt          string
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}

func asID(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func contactKey(id, email, phone string) string {
	if id != "" {
		return id
	}
	if email != "" {
		return email
	}
	return phone
}

// NormalizeShopifyOrder maps a Shopify order webhook onto StorefrontOrder.
// The identity key falls back from the numeric customer id to email to
// phone so repeat orders land on the same customer.
func NormalizeShopifyOrder(payload map[string]any) StorefrontOrder {
	cust := asMap(payload["customer"])
	email := asString(cust["email"])
	phone := asString(cust["phone"])
	return StorefrontOrder{
		Channel:            Shopify,
		CustomerExternalID: contactKey(asID(cust["id"]), email, phone),
		Email:              email,
		Phone:              phone,
		ExternalOrderID:    asID(payload["id"]),
		Status:             asString(payload["financial_status"]),
		Total:              asFloat(payload["total_price"]),
		Currency:           asString(payload["currency"]),
		UpdatedAt:          asString(payload["updated_at"]),
	}
}

// NormalizeMagentoOrder accepts both the flat shape and the {"order": {...}}
// envelope Magento integrations send. entity_id wins over increment_id as
// the order key.
func NormalizeMagentoOrder(payload map[string]any) StorefrontOrder {
	order := asMap(payload["order"])
	if order == nil {
		order = payload
	}
	cust := asMap(payload["customer"])
	email := asString(cust["email"])
	phone := asString(cust["telephone"])
	orderID := asID(order["entity_id"])
	if orderID == "" {
		orderID = asID(order["increment_id"])
	}
	return StorefrontOrder{
		Channel:            Magento,
		CustomerExternalID: contactKey(asID(cust["id"]), email, phone),
		Email:              email,
		Phone:              phone,
		ExternalOrderID:    orderID,
		Status:             asString(order["status"]),
		Total:              asFloat(order["grand_total"]),
		Currency:           asString(order["order_currency_code"]),
		UpdatedAt:          asString(order["updated_at"]),
	}
}
