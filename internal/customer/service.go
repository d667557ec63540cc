package customer

import (
	"context"

	"github.com/nexusdesk/nexus-core/internal/secrets"
)

type Service struct {
	repo   *Repo
	sealer *secrets.Sealer
}

func NewService(repo *Repo, sealer *secrets.Sealer) *Service {
	return &Service{repo: repo, sealer: sealer}
}

func (s *Service) ResolveOrCreate(ctx context.Context, tenant, channel, externalID string) (*Customer, error) {
	return s.repo.ResolveOrCreate(ctx, tenant, channel, externalID)
}

func (s *Service) GetByID(ctx context.Context, id uint64) (*Customer, error) {
	return s.repo.GetByID(ctx, id)
}

// ResolveContact resolves the identity like ResolveOrCreate and seals any
// contact details the event carried onto the customer row.
func (s *Service) ResolveContact(ctx context.Context, tenant, channel, externalID, email, phone string) (uint64, error) {
	c, err := s.repo.ResolveOrCreate(ctx, tenant, channel, externalID)
	if err != nil {
		return 0, err
	}
	if email != "" || phone != "" {
		if err := s.SetContactInfo(ctx, c.ID, email, phone); err != nil {
			return 0, err
		}
	}
	return c.ID, nil
}

// SetContactInfo stores email/phone sealed at rest when encryption is configured.
func (s *Service) SetContactInfo(ctx context.Context, id uint64, email, phone string) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if email != "" {
		sealed, err := s.sealer.Encrypt(email)
		if err != nil {
			return err
		}
		c.PrimaryEmail = sealed
	}
	if phone != "" {
		sealed, err := s.sealer.Encrypt(phone)
		if err != nil {
			return err
		}
		c.PrimaryPhone = sealed
	}
	return s.repo.Save(ctx, c)
}

func (s *Service) ContactInfo(ctx context.Context, id uint64) (email, phone string, err error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", "", err
	}
	if email, err = s.sealer.Decrypt(c.PrimaryEmail); err != nil {
		return "", "", err
	}
	if phone, err = s.sealer.Decrypt(c.PrimaryPhone); err != nil {
		return "", "", err
	}
	return email, phone, nil
}
