package commerce

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/nexusdesk/nexus-core/internal/channel"
)

// CustomerDirectory resolves a storefront identity to a customer id and
// records the contact details carried on the event.
type CustomerDirectory interface {
	ResolveContact(ctx context.Context, tenant, ch, externalID, email, phone string) (uint64, error)
}

// Ingestor mirrors storefront order webhooks into the orders table.
type Ingestor struct {
	db        *gorm.DB
	tenant    string
	customers CustomerDirectory
}

func NewIngestor(db *gorm.DB, tenant string, customers CustomerDirectory) *Ingestor {
	return &Ingestor{db: db, tenant: tenant, customers: customers}
}

// UpsertOrder resolves (or creates) the customer behind the event, then
// creates or updates the order keyed on (tenant, source, external_order_id).
// A redelivery whose updated_at matches the stored row is skipped. Events
// without an order id still resolve the customer and return a nil order.
func (i *Ingestor) UpsertOrder(ctx context.Context, so channel.StorefrontOrder) (*Order, error) {
	externalID := so.CustomerExternalID
	if externalID == "" {
		externalID = "unknown"
	}
	customerID, err := i.customers.ResolveContact(ctx, i.tenant, so.Channel, externalID, so.Email, so.Phone)
	if err != nil {
		return nil, err
	}
	if so.ExternalOrderID == "" {
		return nil, nil
	}

	var existing Order
	err = i.db.WithContext(ctx).
		Where("tenant_id = ? AND source = ? AND external_order_id = ?", i.tenant, so.Channel, so.ExternalOrderID).
		First(&existing).Error
	if err == nil {
		if so.UpdatedAt != "" && existing.Details["updated_at"] == so.UpdatedAt {
			return &existing, nil
		}
		existing.CustomerID = customerID
		existing.Status = so.Status
		existing.Total = so.Total
		existing.Currency = so.Currency
		if existing.Details == nil {
			existing.Details = map[string]string{}
		}
		existing.Details["updated_at"] = so.UpdatedAt
		if err := i.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	order := Order{
		TenantID:        i.tenant,
		CustomerID:      customerID,
		Source:          so.Channel,
		ExternalOrderID: so.ExternalOrderID,
		Status:          so.Status,
		Total:           so.Total,
		Currency:        so.Currency,
		Details:         map[string]string{"updated_at": so.UpdatedAt},
	}
	if err := i.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}
	log.Info().
		Str("source", so.Channel).
		Str("external_order_id", so.ExternalOrderID).
		Uint64("customer_id", customerID).
		Msg("storefront order ingested")
	return &order, nil
}
