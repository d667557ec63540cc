package customer

import "time"

type Customer struct {
	ID           uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID     string            `gorm:"type:varchar(64);index;not null" json:"-"`
	PrimaryEmail string            `gorm:"type:varchar(512)" json:"-"`
	PrimaryPhone string            `gorm:"type:varchar(512)" json:"-"`
	Attributes   map[string]string `gorm:"serializer:json" json:"attributes"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }

// CustomerIdentity maps a (tenant, channel, external_id) tuple to a Customer.
// The unique index is the authoritative dedup boundary for first contact.
type CustomerIdentity struct {
	ID         uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID   string            `gorm:"type:varchar(64);not null;index:uniq_identity,unique,priority:1" json:"-"`
	CustomerID uint64            `gorm:"index;not null" json:"customer_id"`
	Channel    string            `gorm:"type:varchar(32);not null;index:uniq_identity,unique,priority:2" json:"channel"`
	ExternalID string            `gorm:"type:varchar(128);not null;index:uniq_identity,unique,priority:3" json:"external_id"`
	Metadata   map[string]string `gorm:"serializer:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (CustomerIdentity) TableName() string { return "customer_identities" }
