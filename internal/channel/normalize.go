package channel

// Normalized is the channel-agnostic representation of one inbound event.
type Normalized struct {
	Channel           string
	ExternalID        string
	ExternalMessageID string
	ExternalEventID   string
	MessageType       string
	Text              string
	Attachments       []map[string]any
	RawPayload        map[string]any
}

var mediaFields = []string{"image", "audio", "video", "document", "voice", "sticker"}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func extractText(msg map[string]any) string {
	switch asString(msg["type"]) {
	case "text":
		return asString(asMap(msg["text"])["body"])
	case "interactive":
		interactive := asMap(msg["interactive"])
		if t := asString(asMap(interactive["button"])["text"]); t != "" {
			return t
		}
		return asString(asMap(interactive["list_reply"])["title"])
	}
	return ""
}

func extractAttachments(msg map[string]any) []map[string]any {
	var attachments []map[string]any
	for _, field := range mediaFields {
		media, ok := msg[field].(map[string]any)
		if !ok {
			continue
		}
		attachments = append(attachments, map[string]any{
			"type":      field,
			"id":        media["id"],
			"mime_type": media["mime_type"],
			"sha256":    media["sha256"],
			"filename":  media["filename"],
		})
	}
	return attachments
}

func normalizedType(whatsappType string) string {
	switch whatsappType {
	case "", "text":
		return "text"
	case "voice":
		return "voice"
	default:
		return whatsappType
	}
}

// NormalizeWhatsApp expands a WhatsApp Cloud API webhook payload into
// normalized messages. A payload carrying no messages still yields one
// structured_event record so nothing is silently dropped.
func NormalizeWhatsApp(payload map[string]any, eventID string) []Normalized {
	var out []Normalized
	for _, entryAny := range asSlice(payload["entry"]) {
		entry := asMap(entryAny)
		for _, changeAny := range asSlice(entry["changes"]) {
			value := asMap(asMap(changeAny)["value"])

			senderID := ""
			if contacts := asSlice(value["contacts"]); len(contacts) > 0 {
				senderID = asString(asMap(contacts[0])["wa_id"])
			}

			for _, msgAny := range asSlice(value["messages"]) {
				msg := asMap(msgAny)
				externalID := asString(msg["from"])
				if externalID == "" {
					externalID = senderID
				}
				if externalID == "" {
					externalID = "unknown"
				}
				out = append(out, Normalized{
					Channel:           WhatsApp,
					ExternalID:        externalID,
					ExternalMessageID: asString(msg["id"]),
					ExternalEventID:   eventID,
					MessageType:       normalizedType(asString(msg["type"])),
					Text:              extractText(msg),
					Attachments:       extractAttachments(msg),
					RawPayload:        msg,
				})
			}
		}
	}
	if len(out) == 0 && len(payload) > 0 {
		out = append(out, Normalized{
			Channel:         WhatsApp,
			ExternalID:      "unknown",
			ExternalEventID: eventID,
			MessageType:     "structured_event",
			RawPayload:      payload,
		})
	}
	return out
}
