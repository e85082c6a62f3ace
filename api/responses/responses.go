package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "github.com/bizvistar/billing-backend/pkg/errors"
	"github.com/bizvistar/billing-backend/pkg/logger"
	"github.com/bizvistar/billing-backend/pkg/types"
)

// RequestIDHeader is set by the request id middleware before any handler runs.
const RequestIDHeader = "X-Request-Id"

// encodeFailureBody is sent when a payload cannot be marshalled.
const encodeFailureBody = `{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`

// WriteSuccess writes a 200 data envelope.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError is the single place errors become HTTP responses. Untyped errors
// are treated as internal and never leak their text.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	logError(ctx, logg, err, typed, meta)
	writeJSON(w, meta.HTTPStatus, types.ErrorEnvelope{Error: apiError(typed, meta, w.Header().Get(RequestIDHeader))})
}

func apiError(typed *pkgerrors.Error, meta pkgerrors.Metadata, requestID string) types.APIError {
	out := types.APIError{
		Code:      string(typed.Code()),
		Message:   meta.PublicMessage,
		RequestID: requestID,
	}
	if meta.ExposeMessage && typed.Message() != "" {
		out.Message = typed.Message()
	}
	if meta.DetailsAllowed {
		out.Details = typed.Details()
	}
	return out
}

// logError warns on client mistakes and errors on faults.
func logError(ctx context.Context, logg *logger.Logger, err error, typed *pkgerrors.Error, meta pkgerrors.Metadata) {
	if logg == nil {
		return
	}
	fields := pkgerrors.Fields(err)
	if details, ok := typed.Details().(map[string]any); ok {
		if reason, ok := details["reason"]; ok {
			fields["reason"] = reason
		}
	}
	ctx = logg.WithFields(ctx, fields)
	if meta.HTTPStatus >= http.StatusInternalServerError {
		logg.Error(ctx, "request.error", err)
		return
	}
	logg.Warn(ctx, "request.rejected")
}

// writeJSON marshals before touching the response so an encoding failure can
// still produce a clean 500.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(encodeFailureBody)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
