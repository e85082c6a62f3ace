package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/bizvistar/billing-backend/api/responses"
	razorpaywebhook "github.com/bizvistar/billing-backend/internal/webhooks/razorpay"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/metrics"
	"github.com/bizvistar/billing-backend/pkg/razorpay"
)

const (
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"
	maxWebhookBytes = 1 << 20
)

type RazorpayWebhookService interface {
	HandleEvent(ctx context.Context, event *razorpaywebhook.Event) (string, error)
}

type razorpayWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type webhookSecretSource interface {
	WebhookSecret() string
}

// RazorpayWebhook handles gateway subscription lifecycle events.
func RazorpayWebhook(svc RazorpayWebhookService, secrets webhookSecretSource, guard razorpayWebhookGuard, m *metrics.CheckoutMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if secrets == nil || secrets.WebhookSecret() == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		if !razorpay.ValidSignature(secrets.WebhookSecret(), payload, r.Header.Get(signatureHeader)) {
			m.WebhookEvent("unknown", "invalid_signature")
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch"))
			return
		}

		event, err := razorpaywebhook.ParseEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eventID := webhookEventID(r, payload)
		if logg != nil {
			ctx = logg.WithEventID(logg.WithField(ctx, "event", event.Event), eventID)
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			m.WebhookEvent(event.Event, "duplicate")
			responses.WriteSuccess(w, map[string]string{"status": "duplicate"})
			return
		}

		result, err := svc.HandleEvent(ctx, event)
		if err != nil {
			if delErr := guard.Delete(ctx, eventID); delErr != nil && logg != nil {
				logg.Warn(ctx, "release webhook marker failed: "+delErr.Error())
			}
			m.WebhookEvent(event.Event, "failed")
			responses.WriteError(ctx, logg, w, err)
			return
		}

		m.WebhookEvent(event.Event, result)
		if logg != nil {
			logg.Info(ctx, "razorpay event "+result)
		}
		responses.WriteSuccess(w, map[string]string{"status": result})
	}
}

// webhookEventID prefers the delivery id header. Bodies without one are keyed
// by content so identical redeliveries still collapse.
func webhookEventID(r *http.Request, payload []byte) string {
	if id := strings.TrimSpace(r.Header.Get(eventIDHeader)); id != "" && len(id) <= 200 && !strings.ContainsAny(id, " \t") {
		return id
	}
	sum := sha256.Sum256(payload)
	return "body-" + hex.EncodeToString(sum[:])
}
