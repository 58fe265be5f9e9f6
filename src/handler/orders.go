package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"papertrader/src/engine"
	"papertrader/src/model"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const priceLookupTimeout = 10 * time.Second

type orderService interface {
	PlaceLimitOrder(userID string, req engine.LimitOrderRequest) (model.LimitOrder, error)
	CancelOrder(userID, orderID string) (model.LimitOrder, error)
}

type priceLookup interface {
	LookupPrices(ctx context.Context, symbols []string) (model.Prices, error)
}

// resolvePrice returns the latest oracle price for symbol.
func resolvePrice(ctx context.Context, oracle priceLookup, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.Zero, fmt.Errorf("%w: symbol is required", engine.ErrInvalidRequest)
	}
	if oracle == nil {
		return decimal.Zero, fmt.Errorf("%w for %s", errPriceUnavailable, symbol)
	}

	ctx, cancel := context.WithTimeout(ctx, priceLookupTimeout)
	defer cancel()

	prices, err := oracle.LookupPrices(ctx, []string{symbol})
	if err != nil {
		logger.WithError(err).WithField("symbol", symbol).Warn("price lookup failed")
	}
	price, ok := prices.Get(symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w for %s", errPriceUnavailable, symbol)
	}
	return price, nil
}

// PlaceOrderHandler places a limit order. A missing observed_price is taken
// from the price oracle.
func PlaceOrderHandler(svc orderService, oracle priceLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r)
		if !ok {
			return
		}

		var req engine.LimitOrderRequest
		if err := decode(r, &req); err != nil {
			logger.WithError(err).Warn("invalid order payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if !req.ObservedPrice.IsPositive() {
			price, err := resolvePrice(r.Context(), oracle, req.Symbol)
			if err != nil {
				writeError(w, r, err)
				return
			}
			req.ObservedPrice = price
		}

		order, err := svc.PlaceLimitOrder(user, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	}
}

func CancelOrderHandler(svc orderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r)
		if !ok {
			return
		}

		order, err := svc.CancelOrder(user, chi.URLParam(r, "orderID"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, order)
	}
}
