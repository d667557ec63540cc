package commerce

import "time"

const (
	PaymentInitiated = "initiated"
	PaymentSucceeded = "succeeded"

	FollowUpPending = "pending"

	TicketOpen = "open"
)

type Order struct {
	ID              uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID        string            `gorm:"type:varchar(64);index;not null" json:"-"`
	CustomerID      uint64            `gorm:"index;not null" json:"customer_id"`
	Source          string            `gorm:"type:varchar(32);default:custom" json:"source"`
	ExternalOrderID string            `gorm:"type:varchar(128);index" json:"external_order_id"`
	Status          string            `gorm:"type:varchar(64);default:pending" json:"status"`
	Total           float64           `json:"total"`
	Currency        string            `gorm:"type:varchar(8);default:USD" json:"currency"`
	Details         map[string]string `gorm:"serializer:json" json:"details"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

type PaymentIntent struct {
	ID                uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID          string            `gorm:"type:varchar(64);index;not null" json:"-"`
	CustomerID        uint64            `gorm:"index;not null" json:"customer_id"`
	OrderID           *uint64           `gorm:"index" json:"order_id,omitempty"`
	Amount            float64           `json:"amount"`
	Currency          string            `gorm:"type:varchar(8);default:USD" json:"currency"`
	Status            string            `gorm:"type:varchar(32);index;default:initiated" json:"status"`
	ProviderReference string            `gorm:"type:varchar(128)" json:"provider_reference"`
	Metadata          map[string]string `gorm:"serializer:json" json:"metadata"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (PaymentIntent) TableName() string { return "payment_intents" }

type Transaction struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID        string         `gorm:"type:varchar(64);index;not null" json:"-"`
	PaymentIntentID uint64         `gorm:"index;not null" json:"payment_intent_id"`
	TransactionType string         `gorm:"type:varchar(32);default:payment" json:"transaction_type"`
	Amount          float64        `json:"amount"`
	Currency        string         `gorm:"type:varchar(8);default:USD" json:"currency"`
	Status          string         `gorm:"type:varchar(32);default:initiated" json:"status"`
	RawResponse     map[string]any `gorm:"serializer:json" json:"raw_response"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }

type Ticket struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID       string     `gorm:"type:varchar(64);index;not null" json:"-"`
	CustomerID     uint64     `gorm:"index;not null" json:"customer_id"`
	ConversationID *uint64    `gorm:"index" json:"conversation_id,omitempty"`
	Type           string     `gorm:"type:varchar(32);default:support" json:"type"`
	Status         string     `gorm:"type:varchar(32);index;default:open" json:"status"`
	AssignedTo     string     `gorm:"type:varchar(128)" json:"assigned_to"`
	Summary        string     `gorm:"type:text" json:"summary"`
	Tags           []string   `gorm:"serializer:json" json:"tags"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (Ticket) TableName() string { return "tickets" }

type FollowUpTask struct {
	ID             uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID       string            `gorm:"type:varchar(64);index;not null" json:"-"`
	CustomerID     uint64            `gorm:"index;not null" json:"customer_id"`
	ConversationID *uint64           `gorm:"index" json:"conversation_id,omitempty"`
	Topic          string            `gorm:"type:varchar(255);not null" json:"topic"`
	ScheduledFor   time.Time         `gorm:"index" json:"scheduled_for"`
	Status         string            `gorm:"type:varchar(16);default:pending" json:"status"`
	Channel        string            `gorm:"type:varchar(32)" json:"channel"`
	Metadata       map[string]string `gorm:"serializer:json" json:"metadata"`
	CreatedAt      time.Time         `json:"created_at"`
}

func (FollowUpTask) TableName() string { return "follow_up_tasks" }
