package subscriptions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to enums.SubscriptionStatus
		want     bool
	}{
		{enums.SubscriptionStatusCreated, enums.SubscriptionStatusActive, true},
		{enums.SubscriptionStatusCreated, enums.SubscriptionStatusCanceled, true},
		{enums.SubscriptionStatusActive, enums.SubscriptionStatusPastDue, true},
		{enums.SubscriptionStatusPastDue, enums.SubscriptionStatusActive, true},
		{enums.SubscriptionStatusActive, enums.SubscriptionStatusActive, false},
		{enums.SubscriptionStatusActive, enums.SubscriptionStatusCreated, false},
		{enums.SubscriptionStatusCanceled, enums.SubscriptionStatusActive, false},
		{enums.SubscriptionStatusCreated, enums.SubscriptionStatus("paused"), false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestTransitionActivatesAndQueuesEvents(t *testing.T) {
	f := newServiceFixture(t)
	owner := uuid.New()
	seedSubscription(t, f.repo, owner, "sub_T1", "none", enums.SubscriptionStatusCreated, f.now)

	res, err := f.svc.Transition(context.Background(), TransitionInput{
		GatewaySubscriptionID: "sub_T1",
		Status:                enums.SubscriptionStatusActive,
		Source:                SourcePaymentVerify,
		OwnerID:               owner,
		PaymentID:             "pay_29QQoUBi66xm2f",
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, enums.SubscriptionStatusCreated, res.PreviousStatus)
	assert.Equal(t, enums.SubscriptionStatusActive, res.Subscription.Status)

	stored, err := f.repo.FindByGatewayID(context.Background(), "sub_T1")
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, stored.Status)
	require.NotNil(t, stored.ActivatedAt)

	assert.ElementsMatch(t, []enums.OutboxEventType{
		enums.EventSubscriptionActivated,
		enums.EventPaymentVerified,
	}, f.outboxTypes(t))
}

func TestTransitionRepeatedStatusIsNoop(t *testing.T) {
	f := newServiceFixture(t)
	seedSubscription(t, f.repo, uuid.New(), "sub_T2", "none", enums.SubscriptionStatusActive, f.now)

	res, err := f.svc.Transition(context.Background(), TransitionInput{
		GatewaySubscriptionID: "sub_T2",
		Status:                enums.SubscriptionStatusActive,
		Source:                SourceWebhook,
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, f.outboxTypes(t))
}

func TestTransitionCanceledIsTerminal(t *testing.T) {
	f := newServiceFixture(t)
	seedSubscription(t, f.repo, uuid.New(), "sub_T3", "none", enums.SubscriptionStatusCanceled, f.now)

	res, err := f.svc.Transition(context.Background(), TransitionInput{
		GatewaySubscriptionID: "sub_T3",
		Status:                enums.SubscriptionStatusActive,
		Source:                SourceReconcile,
	})
	require.NoError(t, err)
	assert.False(t, res.Changed)

	stored, err := f.repo.FindByGatewayID(context.Background(), "sub_T3")
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusCanceled, stored.Status)
}

func TestTransitionOwnerMismatch(t *testing.T) {
	f := newServiceFixture(t)
	seedSubscription(t, f.repo, uuid.New(), "sub_T4", "none", enums.SubscriptionStatusCreated, f.now)

	_, err := f.svc.Transition(context.Background(), TransitionInput{
		GatewaySubscriptionID: "sub_T4",
		Status:                enums.SubscriptionStatusActive,
		Source:                SourcePaymentVerify,
		OwnerID:               uuid.New(),
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	stored, err := f.repo.FindByGatewayID(context.Background(), "sub_T4")
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusCreated, stored.Status)
	assert.Empty(t, f.outboxTypes(t))
}

func TestTransitionUnknownSubscription(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Transition(context.Background(), TransitionInput{GatewaySubscriptionID: "sub_nope", Status: enums.SubscriptionStatusActive})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Transition(context.Background(), TransitionInput{Status: enums.SubscriptionStatusActive})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
