package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bizvistar/billing-backend/api/middleware"
	"github.com/bizvistar/billing-backend/internal/catalog"
	checkoutsvc "github.com/bizvistar/billing-backend/internal/checkout"
	"github.com/bizvistar/billing-backend/internal/eligibility"
	"github.com/bizvistar/billing-backend/internal/payments"
	"github.com/bizvistar/billing-backend/internal/pricing"
	subsvc "github.com/bizvistar/billing-backend/internal/subscriptions"
	"github.com/bizvistar/billing-backend/pkg/db/models"
	"github.com/bizvistar/billing-backend/pkg/enums"
	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/pagination"
)

type stubCheckoutService struct {
	details    pricing.CheckoutDetails
	validation *checkoutsvc.CouponValidation
	err        error
	gotPlan    string
	gotCycle   string
	gotCoupon  checkoutsvc.ValidateCouponInput
	gotUserID  uuid.UUID
}

func (s *stubCheckoutService) Details(_ context.Context, plan, cycle string) (pricing.CheckoutDetails, error) {
	s.gotPlan, s.gotCycle = plan, cycle
	return s.details, s.err
}

func (s *stubCheckoutService) ValidateCoupon(_ context.Context, userID uuid.UUID, input checkoutsvc.ValidateCouponInput) (*checkoutsvc.CouponValidation, error) {
	s.gotUserID = userID
	s.gotCoupon = input
	return s.validation, s.err
}

type stubSubscriptionService struct {
	result   *subsvc.CreateResult
	sub      *models.Subscription
	page     *subsvc.ListResult
	params   pagination.Params
	err      error
	gotIP    string
	gotInput subsvc.CreateInput
	gotID    string
}

func (s *stubSubscriptionService) Create(_ context.Context, _ uuid.UUID, ip string, input subsvc.CreateInput) (*subsvc.CreateResult, error) {
	s.gotIP = ip
	s.gotInput = input
	return s.result, s.err
}

func (s *stubSubscriptionService) Get(_ context.Context, _ uuid.UUID, id string) (*models.Subscription, error) {
	s.gotID = id
	return s.sub, s.err
}

func (s *stubSubscriptionService) List(_ context.Context, _ uuid.UUID, params pagination.Params) (*subsvc.ListResult, error) {
	s.params = params
	return s.page, s.err
}

type stubPaymentService struct {
	result *payments.VerifyResult
	err    error
	got    payments.VerifyInput
}

func (s *stubPaymentService) VerifyPayment(_ context.Context, _ uuid.UUID, input payments.VerifyInput) (*payments.VerifyResult, error) {
	s.got = input
	return s.result, s.err
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return envelope.Data
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error: %v (%s)", err, rec.Body.String())
	}
	return envelope.Error.Code
}

func TestCheckoutDetails(t *testing.T) {
	svc := &stubCheckoutService{details: pricing.CheckoutDetails{
		PlanName:         "Pro",
		BillingCycle:     enums.BillingCycleMonthly,
		PlanLabel:        "Monthly plan",
		BasePrice:        decimal.NewFromInt(799),
		FreeItems:        []catalog.FreeItem{{Name: "Domain", OriginalPrice: decimal.NewFromInt(999)}},
		FreeItemsValue:   decimal.NewFromInt(999),
		TotalStruckPrice: decimal.NewFromInt(1798),
		RenewalDate:      time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Currency:         "INR",
	}}
	handler := CheckoutDetails(svc, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/details?plan=pro&billing=monthly", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.gotPlan != "pro" || svc.gotCycle != "monthly" {
		t.Fatalf("unexpected service args %q %q", svc.gotPlan, svc.gotCycle)
	}
	data := decodeData(t, rec)
	if data["basePrice"] != "799.00" || data["freeItemsValue"] != "999.00" || data["totalStruckPrice"] != "1798.00" {
		t.Fatalf("unexpected prices %v", data)
	}
	if items, ok := data["freeItems"].([]any); !ok || len(items) != 1 {
		t.Fatalf("expected one free item, got %v", data["freeItems"])
	}

	missing := httptest.NewRecorder()
	handler.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/api/v1/checkout/details?plan=pro", nil))
	if missing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing billing, got %d", missing.Code)
	}
}

func TestValidateCoupon(t *testing.T) {
	percent := decimal.NewFromInt(20)
	svc := &stubCheckoutService{validation: &checkoutsvc.CouponValidation{
		Valid:      true,
		Code:       "WELCOME20",
		Type:       enums.CouponTypePercentDiscount,
		PercentOff: &percent,
	}}
	handler := ValidateCoupon(svc, logger.Nop())

	body := bytes.NewBufferString(`{"code":"welcome20","planName":"Pro","billingCycle":"monthly"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/api/v1/checkout/coupons/validate", body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.gotCoupon.Code != "welcome20" || svc.gotCoupon.PlanName != "Pro" || svc.gotUserID == uuid.Nil {
		t.Fatalf("unexpected service input %+v", svc.gotCoupon)
	}
	data := decodeData(t, rec)
	if data["valid"] != true || data["type"] != "percent_discount" || data["percentOff"] != "20" {
		t.Fatalf("unexpected response %v", data)
	}
	if _, ok := data["displayPrice"]; ok {
		t.Fatalf("display price must be omitted when absent")
	}
}

func TestValidateCouponRoundsFractionalPrices(t *testing.T) {
	percent := decimal.RequireFromString("33.3333")
	display := decimal.NewFromInt(799).Mul(decimal.NewFromInt(1).Sub(percent.Div(decimal.NewFromInt(100))))
	struck := decimal.NewFromInt(799)
	capped := decimal.RequireFromString("266.3334")
	svc := &stubCheckoutService{validation: &checkoutsvc.CouponValidation{
		Valid:        true,
		Code:         "THIRDOFF",
		Type:         enums.CouponTypePercentDiscount,
		PercentOff:   &percent,
		MaxDiscount:  &capped,
		DisplayPrice: &display,
		StruckPrice:  &struck,
	}}

	rec := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"code":"THIRDOFF","planName":"Pro","billingCycle":"monthly"}`)))
	ValidateCoupon(svc, logger.Nop()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	if data["displayPrice"] != "532.67" {
		t.Fatalf("expected display price rounded to 532.67, got %v", data["displayPrice"])
	}
	if data["struckPrice"] != "799.00" || data["maxDiscount"] != "266.33" {
		t.Fatalf("expected two-decimal prices, got %v", data)
	}
}

func TestValidateCouponRejectionIsOK(t *testing.T) {
	svc := &stubCheckoutService{validation: &checkoutsvc.CouponValidation{
		Code:    "DIWALI25",
		Reason:  eligibility.ReasonExpired,
		Message: "Coupon Expired",
	}}
	rec := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"code":"DIWALI25"}`)))
	ValidateCoupon(svc, logger.Nop()).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	data := decodeData(t, rec)
	if data["valid"] != false || data["message"] != "Coupon Expired" {
		t.Fatalf("unexpected response %v", data)
	}
}

func TestValidateCouponRequiresAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"code":"X"}`))
	ValidateCoupon(&stubCheckoutService{}, logger.Nop()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestCreateSubscription(t *testing.T) {
	svc := &stubSubscriptionService{result: &subsvc.CreateResult{
		SubscriptionID: "sub_00000000000001",
		KeyID:          "rzp_test_key",
		PlanID:         "plan_test_pro_monthly",
		PlanName:       "Pro",
		BillingCycle:   enums.BillingCycleMonthly,
		CouponUsed:     "none",
		DisplayPrice:   decimal.NewFromInt(799),
		StruckPrice:    decimal.NewFromInt(799),
		TotalCount:     subsvc.DefaultTotalCount,
		Currency:       "INR",
	}}
	handler := CreateSubscription(svc, logger.Nop())

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/checkout/subscriptions", bytes.NewBufferString(`{"planName":"Pro","billingCycle":"monthly"}`)))
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.gotIP != "203.0.113.7" {
		t.Fatalf("expected client ip passed through, got %q", svc.gotIP)
	}
	data := decodeData(t, rec)
	if data["subscriptionId"] != "sub_00000000000001" || data["keyId"] != "rzp_test_key" {
		t.Fatalf("unexpected response %v", data)
	}
	if _, ok := data["offerId"]; ok {
		t.Fatalf("offer id must be omitted without an offer")
	}
	if data["displayPrice"] != "799.00" || data["struckPrice"] != "799.00" {
		t.Fatalf("expected two-decimal prices, got %v", data)
	}
}

func TestCreateSubscriptionErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{name: "bad cycle", body: `{"planName":"Pro","billingCycle":"weekly"}`, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "client price rejected", body: `{"planName":"Pro","billingCycle":"monthly","amount":1}`, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "rate limited", body: `{"planName":"Pro","billingCycle":"monthly"}`, err: pkgerrors.New(pkgerrors.CodeRateLimit, "too many"), status: http.StatusTooManyRequests, code: "RATE_LIMIT_EXCEEDED"},
		{name: "ineligible", body: `{"planName":"Pro","billingCycle":"monthly","couponCode":"DIWALI25"}`, err: pkgerrors.New(pkgerrors.CodeIneligible, "Coupon Expired"), status: http.StatusUnprocessableEntity, code: "COUPON_INELIGIBLE"},
		{name: "gateway down", body: `{"planName":"Pro","billingCycle":"monthly"}`, err: pkgerrors.New(pkgerrors.CodeDependency, "gateway"), status: http.StatusServiceUnavailable, code: "DEPENDENCY_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubSubscriptionService{err: tc.err}
			rec := httptest.NewRecorder()
			req := authed(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(tc.body)))
			CreateSubscription(svc, logger.Nop()).ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
			if code := decodeErrorCode(t, rec); code != tc.code {
				t.Fatalf("expected %s got %s", tc.code, code)
			}
		})
	}
}

func TestGetSubscription(t *testing.T) {
	svc := &stubSubscriptionService{sub: &models.Subscription{
		GatewaySubscriptionID: "sub_00000000000002",
		Status:                enums.SubscriptionStatusActive,
		PlanName:              "Pro",
		BillingCycle:          enums.BillingCycleYearly,
		CouponUsed:            "none",
	}}
	r := chi.NewRouter()
	r.Get("/api/v1/checkout/subscriptions/{subscriptionId}", GetSubscription(svc, logger.Nop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/checkout/subscriptions/sub_00000000000002", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.gotID != "sub_00000000000002" {
		t.Fatalf("unexpected id %q", svc.gotID)
	}
	if data := decodeData(t, rec); data["status"] != "active" {
		t.Fatalf("unexpected response %v", data)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/checkout/subscriptions/sub_other", nil)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestListSubscriptions(t *testing.T) {
	svc := &stubSubscriptionService{page: &subsvc.ListResult{
		Subscriptions: []models.Subscription{
			{GatewaySubscriptionID: "sub_2", Status: enums.SubscriptionStatusActive},
			{GatewaySubscriptionID: "sub_1", Status: enums.SubscriptionStatusCanceled},
		},
		NextCursor: "next-page",
	}}
	handler := ListSubscriptions(svc, logger.Nop())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/checkout/subscriptions?limit=2&cursor=abc", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.params.Limit != 2 || svc.params.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", svc.params)
	}
	data := decodeData(t, rec)
	if items, ok := data["subscriptions"].([]any); !ok || len(items) != 2 {
		t.Fatalf("expected two subscriptions, got %v", data["subscriptions"])
	}
	if data["nextCursor"] != "next-page" {
		t.Fatalf("expected next cursor, got %v", data["nextCursor"])
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/v1/checkout/subscriptions?limit=zero", nil)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestVerifyPayment(t *testing.T) {
	svc := &stubPaymentService{result: &payments.VerifyResult{Success: true, Status: enums.SubscriptionStatusActive}}
	body := `{"razorpay_payment_id":"pay_29QQoUBi66xm2f","razorpay_subscription_id":"sub_00000000000001","razorpay_signature":"abc"}`

	rec := httptest.NewRecorder()
	VerifyPayment(svc, logger.Nop()).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.got.PaymentID != "pay_29QQoUBi66xm2f" || svc.got.SubscriptionID != "sub_00000000000001" || svc.got.Signature != "abc" {
		t.Fatalf("unexpected input %+v", svc.got)
	}
	if data := decodeData(t, rec); data["success"] != true || data["status"] != "active" {
		t.Fatalf("unexpected response %v", data)
	}

	svc.result = &payments.VerifyResult{Success: false}
	rec = httptest.NewRecorder()
	VerifyPayment(svc, logger.Nop()).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))))
	if data := decodeData(t, rec); data["success"] != false {
		t.Fatalf("expected success=false, got %v", data)
	}

	for _, bad := range []string{
		`{"razorpay_payment_id":"pay_29QQoUBi66xm2f"}`,
		`{"razorpay_payment_id":"sub_29QQoUBi66xm2f","razorpay_subscription_id":"sub_00000000000001","razorpay_signature":"abc"}`,
	} {
		rec = httptest.NewRecorder()
		VerifyPayment(svc, logger.Nop()).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(bad))))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", bad, rec.Code)
		}
	}
}

func TestNilServices(t *testing.T) {
	handlers := []http.HandlerFunc{
		CheckoutDetails(nil, logger.Nop()),
		ValidateCoupon(nil, logger.Nop()),
		CreateSubscription(nil, logger.Nop()),
		GetSubscription(nil, logger.Nop()),
		ListSubscriptions(nil, logger.Nop()),
		VerifyPayment(nil, logger.Nop()),
	}
	for i, h := range handlers {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("handler %d: expected 500 got %d", i, rec.Code)
		}
	}
}
