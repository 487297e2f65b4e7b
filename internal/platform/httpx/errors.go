// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/stoklink/stoklink/internal/accurate"
	"github.com/stoklink/stoklink/internal/credentials"
	"github.com/stoklink/stoklink/internal/syncjobs"
)

// Sentinel errors handlers may wrap for generic outcomes.
var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("forbidden")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Auth-expired credentials surface as "reconnect your account"; ERP
// payload rejections are the upstream's business errors, so they pass
// through as unprocessable rather than a generic 500.
func RespondError(w http.ResponseWriter, err error) {
	var (
		logicErr *accurate.LogicError
		httpErr  *accurate.HTTPError
	)
	switch {
	case errors.Is(err, credentials.ErrSessionExpired):
		Problem(w, http.StatusUnauthorized, "Session Expired", "The Accurate session has expired. Reconnect the account.")
	case errors.Is(err, credentials.ErrNotFound), errors.Is(err, syncjobs.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, credentials.ErrDuplicateLabel):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, accurate.ErrHostNotResolved):
		Problem(w, http.StatusConflict, "Host Not Resolved", "The credential has no resolved host. Refresh its session first.")
	case errors.Is(err, accurate.ErrHostResolution),
		errors.Is(err, accurate.ErrTokenRefresh),
		errors.Is(err, accurate.ErrSessionRefresh):
		Problem(w, http.StatusBadGateway, "Account Service Error", err.Error())
	case errors.As(err, &logicErr):
		Problem(w, http.StatusUnprocessableEntity, "Rejected By Accurate", logicErr.Message)
	case errors.As(err, &httpErr):
		Problem(w, http.StatusBadGateway, "Accurate API Error", httpErr.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
