package donor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/harborlight/donations/internal/models"
	"github.com/harborlight/donations/internal/platform/stripeapi"
	"github.com/harborlight/donations/pkg/logctx"
	"github.com/harborlight/donations/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// UpsertInput carries what a checkout completion or webhook knows about a
// donor. Email is the dedup key and is required.
type UpsertInput struct {
	Email            string
	Name             string
	StripeCustomerID string
	Address          *models.DonorAddress
}

// Upsert deduplicates donors by email. Existing rows keep their id; name,
// customer id and address are filled in when the new data has them. Insert
// races resolve by re-reading the winner.
func (s *Service) Upsert(ctx context.Context, in *UpsertInput) (*models.Donor, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, fmt.Errorf("donor email is required")
	}

	var existing models.Donor
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load donor: %w", err)
	}

	if err == nil {
		changed := false
		if in.Name != "" && in.Name != existing.Name {
			existing.Name = in.Name
			changed = true
		}
		if in.StripeCustomerID != "" && (existing.StripeCustomerID == nil || *existing.StripeCustomerID != in.StripeCustomerID) {
			existing.StripeCustomerID = &in.StripeCustomerID
			changed = true
		}
		if in.Address != nil {
			existing.Address = datatypes.NewJSONType(in.Address)
			changed = true
		}
		if changed {
			if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return nil, fmt.Errorf("failed to update donor: %w", err)
			}
		}
		return &existing, nil
	}

	row := &models.Donor{
		ID:    tool.GenerateUUIDV7(),
		Email: email,
		Name:  in.Name,
	}
	if in.StripeCustomerID != "" {
		row.StripeCustomerID = &in.StripeCustomerID
	}
	if in.Address != nil {
		row.Address = datatypes.NewJSONType(in.Address)
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Concurrent upsert won; return the winner.
			var winner models.Donor
			if rerr := s.db.WithContext(ctx).Where("email = ?", email).First(&winner).Error; rerr != nil {
				return nil, fmt.Errorf("failed to re-read donor after conflict: %w", rerr)
			}
			return &winner, nil
		}
		return nil, fmt.Errorf("failed to create donor: %w", err)
	}
	return row, nil
}

// GetByEmail returns nil, nil when no donor exists.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.Donor, error) {
	var row models.Donor
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load donor by email: %w", err)
	}
	return &row, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.Donor, error) {
	var row models.Donor
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to load donor %s: %w", id, err)
	}
	return &row, nil
}

// ResolveByCustomer links a Stripe customer id to a local donor: first by the
// cached mapping, then by the customer's email, finally by fetching the
// customer from the provider. A donation must always be attributable to a
// contactable donor, so an unresolvable customer is a hard error.
func (s *Service) ResolveByCustomer(ctx context.Context, api stripeapi.API, customerID string) (*models.Donor, error) {
	if customerID == "" {
		return nil, fmt.Errorf("stripe customer id is required")
	}

	var row models.Donor
	err := s.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up donor by customer: %w", err)
	}

	cust, err := api.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customer %s: %w", customerID, err)
	}
	if cust.Email == "" {
		return nil, fmt.Errorf("customer %s has no email", customerID)
	}

	logctx.FromCtx(ctx, s.log).Infow("donor_linked_from_customer", "customer_id", customerID, "email_hash", tool.HashIdentifier(cust.Email))
	return s.Upsert(ctx, &UpsertInput{
		Email:            cust.Email,
		Name:             cust.Name,
		StripeCustomerID: customerID,
	})
}

var Module = fx.Options(
	fx.Provide(New),
)
