package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"papertrader/src/auth"
	"papertrader/src/engine"
	"papertrader/src/risk"
	"papertrader/src/store"

	logger "github.com/sirupsen/logrus"
)

var errPriceUnavailable = errors.New("current price unavailable")

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidRequest),
		errors.Is(err, engine.ErrLimitWrongSide),
		errors.Is(err, engine.ErrLevelsMisordered),
		errors.Is(err, engine.ErrSizeTooSmall),
		errors.Is(err, risk.ErrNonPositivePrice),
		errors.Is(err, store.ErrEmptyUser):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrOrderNotFound),
		errors.Is(err, engine.ErrPositionNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateExposure),
		errors.Is(err, engine.ErrPendingCapReached),
		errors.Is(err, engine.ErrPositionCapReached):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInsufficientFunds),
		errors.Is(err, errPriceUnavailable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		http.Error(w, "Internal Server Error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func decode(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// userFrom returns the authenticated user or writes 401.
func userFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		logger.Warn("user not found in request context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return user, ok
}
