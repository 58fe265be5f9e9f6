package handler

import (
	"net/http"

	"papertrader/src/engine"
	"papertrader/src/model"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"
)

type positionService interface {
	OpenPosition(userID string, req engine.OpenPositionRequest) (model.Position, error)
	ClosePosition(userID, positionID string) (model.Position, error)
}

// OpenPositionHandler opens a position immediately, at the body price or the
// oracle price when none is given.
func OpenPositionHandler(svc positionService, oracle priceLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r)
		if !ok {
			return
		}

		var req engine.OpenPositionRequest
		if err := decode(r, &req); err != nil {
			logger.WithError(err).Warn("invalid position payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if !req.Price.IsPositive() {
			price, err := resolvePrice(r.Context(), oracle, req.Symbol)
			if err != nil {
				writeError(w, r, err)
				return
			}
			req.Price = price
		}

		pos, err := svc.OpenPosition(user, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, pos)
	}
}

func ClosePositionHandler(svc positionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r)
		if !ok {
			return
		}

		pos, err := svc.ClosePosition(user, chi.URLParam(r, "positionID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pos)
	}
}
