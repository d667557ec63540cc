package conversation

import "time"

const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
	StatusClosed   = "closed"

	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	TypeText            = "text"
	TypeVoice           = "voice"
	TypeStructuredEvent = "structured_event"
)

// Conversation threads messages for one (customer, channel). OpenMarker is
// non-nil exactly while the conversation is open, so the unique index
// (customer_id, channel, open_marker) admits at most one open thread per pair
// while closed history rows (marker NULL) stay out of the constraint.
type Conversation struct {
	ID         uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID   string            `gorm:"type:varchar(64);index;not null" json:"-"`
	PublicID   string            `gorm:"type:varchar(26);uniqueIndex;not null" json:"public_id"`
	CustomerID uint64            `gorm:"not null;index:uniq_conv_open,unique,priority:1" json:"customer_id"`
	Channel    string            `gorm:"type:varchar(32);not null;index:uniq_conv_open,unique,priority:2" json:"channel"`
	AgentID    *uint64           `gorm:"index" json:"agent_id,omitempty"`
	Status     string            `gorm:"type:varchar(32);index;default:open" json:"status"`
	OpenMarker *string           `gorm:"type:varchar(8);index:uniq_conv_open,unique,priority:3" json:"-"`
	Metadata   map[string]string `gorm:"serializer:json" json:"metadata"`
	ClosedAt   *time.Time        `json:"closed_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

// Message ordering within a conversation is creation time (id as tiebreak);
// there is no separate sequence number.
type Message struct {
	ID                uint64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID    uint64           `gorm:"index:idx_msg_conv_created,priority:1;not null" json:"conversation_id"`
	ExternalMessageID *string          `gorm:"type:varchar(255);uniqueIndex" json:"external_message_id,omitempty"`
	Direction         string           `gorm:"type:varchar(16);not null" json:"direction"`
	MessageType       string           `gorm:"type:varchar(32);default:text" json:"message_type"`
	RawPayload        map[string]any   `gorm:"serializer:json" json:"raw_payload"`
	Text              string           `gorm:"type:text" json:"text"`
	Attachments       []map[string]any `gorm:"serializer:json" json:"attachments"`
	LLMMetadata       map[string]any   `gorm:"serializer:json" json:"llm_metadata"`
	CreatedAt         time.Time        `gorm:"index:idx_msg_conv_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "messages" }
