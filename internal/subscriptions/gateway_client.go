package subscriptions

import (
	"context"

	"github.com/bizvistar/billing-backend/pkg/enums"
	"github.com/bizvistar/billing-backend/pkg/razorpay"
)

// GatewaySubscription is the gateway's view of a subscription.
type GatewaySubscription struct {
	ID      string
	PlanID  string
	Status  string
	OfferID string
}

// GatewayClient is the billing gateway surface checkout depends on.
type GatewayClient interface {
	CreateSubscription(ctx context.Context, req GatewaySubscriptionRequest) (*GatewaySubscription, error)
	FetchSubscription(ctx context.Context, gatewaySubscriptionID string) (*GatewaySubscription, error)
	KeyID() string
	Mode() enums.GatewayMode
}

type razorpayGateway struct {
	client *razorpay.Client
}

// NewRazorpayGateway adapts the Razorpay client to GatewayClient.
func NewRazorpayGateway(client *razorpay.Client) GatewayClient {
	return &razorpayGateway{client: client}
}

func (g *razorpayGateway) CreateSubscription(ctx context.Context, req GatewaySubscriptionRequest) (*GatewaySubscription, error) {
	sub, err := g.client.CreateSubscription(ctx, razorpay.SubscriptionCreateParams{
		PlanID:         req.PlanID,
		TotalCount:     req.TotalCount,
		CustomerNotify: req.CustomerNotify,
		OfferID:        req.OfferID,
		StartAt:        req.StartAt,
		Notes:          req.Notes.Map(),
	})
	if err != nil {
		return nil, err
	}
	return fromRazorpay(sub), nil
}

func (g *razorpayGateway) FetchSubscription(ctx context.Context, gatewaySubscriptionID string) (*GatewaySubscription, error) {
	sub, err := g.client.FetchSubscription(ctx, gatewaySubscriptionID)
	if err != nil {
		return nil, err
	}
	return fromRazorpay(sub), nil
}

func (g *razorpayGateway) KeyID() string {
	return g.client.KeyID()
}

func (g *razorpayGateway) Mode() enums.GatewayMode {
	return enums.GatewayMode(g.client.Mode())
}

func fromRazorpay(sub *razorpay.Subscription) *GatewaySubscription {
	return &GatewaySubscription{
		ID:      sub.ID,
		PlanID:  sub.PlanID,
		Status:  sub.Status,
		OfferID: sub.OfferID,
	}
}
