package profiles

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

// Service stores billing details captured on the checkout page.
type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger, now func() time.Time) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, logg: logg, now: now}, nil
}

// SaveBillingDetails validates the form and stores it on the caller's profile.
func (s *Service) SaveBillingDetails(ctx context.Context, userID uuid.UUID, input BillingDetailsDTO) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if missing := input.missingFields(); len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "missing required billing fields").
			WithDetails(map[string]any{"fields": missing})
	}

	ctx = s.logg.WithUserID(ctx, userID.String())
	if err := s.repo.UpsertBillingDetails(ctx, userID, input.ToBillingAddress(), s.now().UTC()); err != nil {
		s.logg.Error(ctx, "save billing details failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save billing details")
	}
	s.logg.Info(ctx, "billing details saved")
	return nil
}
