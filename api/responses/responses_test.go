package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/types"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"subscriptionId": "sub_1"})

	if got := w.Code; got != http.StatusCreated {
		t.Fatalf("expected status 201 but got %d", got)
	}
	var body types.SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["subscriptionId"] != "sub_1" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		status      int
		message     string
		wantDetails bool
	}{
		{
			name:        "validation keeps message and details",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "plan is required").WithDetails(map[string]any{"field": "planName"}),
			status:      http.StatusBadRequest,
			message:     "plan is required",
			wantDetails: true,
		},
		{
			name:        "ineligible coupon carries reason",
			err:         pkgerrors.New(pkgerrors.CodeIneligible, "Coupon Expired").WithDetails(map[string]any{"reason": "expired"}),
			status:      http.StatusUnprocessableEntity,
			message:     "Coupon Expired",
			wantDetails: true,
		},
		{
			name:    "rate limit uses public message",
			err:     pkgerrors.New(pkgerrors.CodeRateLimit, "user 123 blocked"),
			status:  http.StatusTooManyRequests,
			message: "too many subscription attempts, please try again later",
		},
		{
			name:    "dependency hides cause",
			err:     pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp: timeout"), "create gateway subscription"),
			status:  http.StatusServiceUnavailable,
			message: "payment provider unavailable, please try again",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), logger.Nop(), w, tc.err)

			if w.Code != tc.status {
				t.Fatalf("expected status %d but got %d", tc.status, w.Code)
			}
			var body types.ErrorEnvelope
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error envelope: %v", err)
			}
			if body.Error.Message != tc.message {
				t.Fatalf("expected message %q got %q", tc.message, body.Error.Message)
			}
			if (body.Error.Details != nil) != tc.wantDetails {
				t.Fatalf("unexpected details %v", body.Error.Details)
			}
		})
	}
}

func TestWriteErrorDefaultsToInternalForUntypedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}
	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
}

func TestWriteErrorEchoesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(RequestIDHeader, "req-42")
	WriteError(context.Background(), logger.Nop(), w, pkgerrors.New(pkgerrors.CodeDependency, "razorpay timeout"))

	var body types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.RequestID != "req-42" {
		t.Fatalf("expected request id in error body, got %q", body.Error.RequestID)
	}
	if body.Error.Message == "razorpay timeout" {
		t.Fatalf("dependency details must not leak")
	}
}

func TestWriteSuccessUnencodablePayload(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]any{"ch": make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var env types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("unexpected fallback body %s", rec.Body.String())
	}
}
