package controllers

import (
	"net/http"

	"github.com/bizvistar/billing-backend/api/middleware"
	"github.com/bizvistar/billing-backend/api/responses"
)

type pingResponse struct {
	Scope  string `json:"scope"`
	Status string `json:"status"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
}

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, pingResponse{Scope: "public", Status: "ok"})
	}
}

// PrivatePing lets the checkout page confirm its bearer token before it
// starts a payment.
func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := middleware.CallerFromContext(r.Context())
		responses.WriteSuccess(w, pingResponse{Scope: "private", Status: "ok", UserID: caller.UserID, Email: caller.Email})
	}
}
