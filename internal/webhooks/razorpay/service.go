package razorpaywebhook

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bizvistar/billing-backend/internal/subscriptions"
	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

// Outcomes reported for every delivery.
const (
	ResultProcessed = "processed"
	ResultIgnored   = "ignored"
)

type statusTransitioner interface {
	Transition(ctx context.Context, input subscriptions.TransitionInput) (*subscriptions.TransitionResult, error)
}

type websiteUnpublisher interface {
	UnpublishByUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

// ServiceParams groups dependencies for the webhook service.
type ServiceParams struct {
	Subscriptions statusTransitioner
	Websites      websiteUnpublisher
	Logger        *logger.Logger
	Now           func() time.Time
}

// Service applies gateway subscription events to local state.
type Service struct {
	subscriptions statusTransitioner
	websites      websiteUnpublisher
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	if params.Websites == nil {
		return nil, fmt.Errorf("website repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Service{
		subscriptions: params.Subscriptions,
		websites:      params.Websites,
		logg:          params.Logger,
		now:           params.Now,
	}, nil
}

// HandleEvent applies one verified event. Unknown events and subscriptions
// created elsewhere are acknowledged without changes.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (string, error) {
	if event == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "webhook event required")
	}
	ctx = s.logg.WithField(ctx, "event", event.Event)

	status, ok := StatusForEvent(event.Event)
	if !ok {
		s.logg.Info(ctx, "webhook event ignored")
		return ResultIgnored, nil
	}
	gatewayID := event.SubscriptionID()
	if gatewayID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing from webhook payload")
	}
	ctx = s.logg.WithSubscriptionID(ctx, gatewayID)

	res, err := s.subscriptions.Transition(ctx, subscriptions.TransitionInput{
		GatewaySubscriptionID: gatewayID,
		Status:                status,
		Source:                subscriptions.SourceWebhook,
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, "webhook for unknown subscription ignored")
			return ResultIgnored, nil
		}
		return "", err
	}

	if status == enums.SubscriptionStatusCanceled {
		unpublished, err := s.websites.UnpublishByUser(ctx, res.Subscription.UserID, s.now().UTC())
		if err != nil {
			s.logg.Error(ctx, "unpublish websites failed", err)
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unpublish websites")
		}
		s.logg.Info(s.logg.WithField(ctx, "unpublished", unpublished), "websites unpublished after cancellation")
	}
	return ResultProcessed, nil
}
