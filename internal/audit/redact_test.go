package audit

import "testing"

func TestRedact_MasksSensitiveKeys(t *testing.T) {
	in := map[string]any{
		"order_id":      float64(5),
		"api_key":       "sk-123",
		"Authorization": "Bearer abc",
		"customer": map[string]any{
			"email":   "a@example.com",
			"phone":   "+15550001",
			"name":    "Alice",
			"card_no": "4111111111111111",
		},
	}

	out := Redact(in)

	if out["order_id"] != float64(5) {
		t.Fatalf("plain keys must survive: %v", out["order_id"])
	}
	if out["api_key"] != "***" || out["Authorization"] != "***" {
		t.Fatalf("top-level secrets not masked: %v", out)
	}
	nested, ok := out["customer"].(map[string]any)
	if !ok {
		t.Fatalf("nested map missing: %v", out["customer"])
	}
	if nested["email"] != "***" || nested["phone"] != "***" || nested["card_no"] != "***" {
		t.Fatalf("nested secrets not masked: %v", nested)
	}
	if nested["name"] != "Alice" {
		t.Fatalf("nested plain key must survive: %v", nested["name"])
	}

	// input untouched
	if in["api_key"] != "sk-123" {
		t.Fatalf("input mutated: %v", in["api_key"])
	}
	if in["customer"].(map[string]any)["email"] != "a@example.com" {
		t.Fatalf("nested input mutated")
	}
}

func TestRedact_Nil(t *testing.T) {
	if out := Redact(nil); out != nil {
		t.Fatalf("nil in, nil out, got %v", out)
	}
}
