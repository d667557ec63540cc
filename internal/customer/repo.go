package customer

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetByID(ctx context.Context, id uint64) (*Customer, error) {
	var c Customer
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) getByIdentity(ctx context.Context, tenant, channel, externalID string) (*Customer, error) {
	var ident CustomerIdentity
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND channel = ? AND external_id = ?", tenant, channel, externalID).
		First(&ident).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, ident.CustomerID)
}

// ResolveOrCreate returns the customer behind (tenant, channel, external_id),
// creating the customer plus its identity row on first contact. Two concurrent
// first contacts race on the unique identity index; the loser re-fetches the
// winner's row instead of creating a duplicate customer.
func (r *Repo) ResolveOrCreate(ctx context.Context, tenant, channel, externalID string) (*Customer, error) {
	if c, err := r.getByIdentity(ctx, tenant, channel, externalID); err == nil {
		return c, nil
	}

	var created Customer
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created = Customer{TenantID: tenant, Attributes: map[string]string{}}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		ident := CustomerIdentity{
			TenantID:   tenant,
			CustomerID: created.ID,
			Channel:    channel,
			ExternalID: externalID,
			Metadata:   map[string]string{},
		}
		return tx.Create(&ident).Error
	})
	if err == nil {
		return &created, nil
	}

	// constraint violation means someone else won the race
	if c, getErr := r.getByIdentity(ctx, tenant, channel, externalID); getErr == nil {
		return c, nil
	}
	return nil, err
}

func (r *Repo) Save(ctx context.Context, c *Customer) error {
	return r.db.WithContext(ctx).Save(c).Error
}
