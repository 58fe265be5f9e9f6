package handler

import (
	"context"
	"net/http"

	"papertrader/src/model"
	"papertrader/src/scheduler"

	logger "github.com/sirupsen/logrus"
)

type portfolioService interface {
	GetPortfolio(userID string) (model.Portfolio, error)
	ResetPortfolio(userID string) (model.Portfolio, error)
}

type refresher interface {
	Refresh(ctx context.Context, userID string) (scheduler.Cycle, error)
}

type refreshResponse struct {
	Portfolio model.Portfolio `json:"portfolio"`
	Logs      []string        `json:"logs"`
}

func GetPortfolioHandler(svc portfolioService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r)
		if !ok {
			return
		}

		p, err := svc.GetPortfolio(user)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func ResetPortfolioHandler(svc portfolioService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r)
		if !ok {
			return
		}

		p, err := svc.ResetPortfolio(user)
		if err != nil {
			writeError(w, r, err)
			return
		}
		logger.WithField("user_id", user).Info("portfolio reset requested")
		writeJSON(w, http.StatusOK, p)
	}
}

// RefreshPortfolioHandler fills, expires and marks the portfolio against
// fresh prices, then returns it together with the cycle log.
func RefreshPortfolioHandler(svc portfolioService, rec refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r)
		if !ok {
			return
		}

		cycle, err := rec.Refresh(r.Context(), user)
		if err != nil {
			writeError(w, r, err)
			return
		}

		p, err := svc.GetPortfolio(user)
		if err != nil {
			writeError(w, r, err)
			return
		}

		logs := cycle.Lines
		if logs == nil {
			logs = []string{}
		}
		writeJSON(w, http.StatusOK, refreshResponse{Portfolio: p, Logs: logs})
	}
}
