package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"papertrader/src/model"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 250 * time.Millisecond
	defaultRetryMaxBackoff = 2 * time.Second

	tickerPricePath = "/api/v3/ticker/price"
)

var ErrNoPrices = errors.New("no prices resolved")

// Oracle resolves the latest known price of each symbol. Unknown symbols are
// omitted from the result instead of failing the whole lookup.
type Oracle interface {
	LookupPrices(ctx context.Context, symbols []string) (model.Prices, error)
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// BinanceOracle reads spot prices from the Binance public ticker endpoint.
type BinanceOracle struct {
	http   *resty.Client
	quote  string
	logger *logrus.Entry
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == http.StatusTooManyRequests {
		return true
	}
	if code == http.StatusRequestTimeout {
		return true
	}
	return false
}

func NewBinanceOracle(baseURL, quote string, logger *logrus.Entry) *BinanceOracle {
	if baseURL == "" {
		baseURL = "https://api.binance.com"
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return newBinanceOracle(httpClient, quote, logger)
}

func newBinanceOracle(httpClient *resty.Client, quote string, logger *logrus.Entry) *BinanceOracle {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &BinanceOracle{
		http:   httpClient,
		quote:  quote,
		logger: logger.WithField("component", "binance_oracle"),
	}
}

// LookupPrices asks for every symbol in one request and falls back to one
// request per symbol when the batch is refused, which Binance does as soon as
// a single symbol is unknown.
func (o *BinanceOracle) LookupPrices(ctx context.Context, symbols []string) (model.Prices, error) {
	order, aliases := group(symbols, o.quote)
	prices := make(model.Prices, len(symbols))
	if len(order) == 0 {
		return prices, nil
	}

	batch, err := o.fetchBatch(ctx, order)
	if err == nil {
		for _, tp := range batch {
			o.store(prices, aliases, tp)
		}
		return prices, nil
	}
	o.logger.WithError(err).WithField("symbols", order).Debug("batch price lookup failed, falling back per symbol")

	var lastErr error
	for _, sym := range order {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		tp, err := o.fetchOne(ctx, sym)
		if err != nil {
			lastErr = err
			o.logger.WithError(err).WithField("symbol", sym).Warn("price lookup failed")
			continue
		}
		o.store(prices, aliases, tp)
	}

	if len(prices) == 0 && lastErr != nil {
		return prices, fmt.Errorf("%w: %v", ErrNoPrices, lastErr)
	}
	return prices, nil
}

func (o *BinanceOracle) store(prices model.Prices, aliases map[string][]string, tp tickerPrice) {
	price, err := decimal.NewFromString(tp.Price)
	if err != nil || !price.IsPositive() {
		o.logger.WithField("symbol", tp.Symbol).WithField("price", tp.Price).Warn("ignoring unusable price")
		return
	}
	for _, alias := range aliases[tp.Symbol] {
		prices[alias] = price
	}
}

func (o *BinanceOracle) fetchBatch(ctx context.Context, symbols []string) ([]tickerPrice, error) {
	encoded, err := json.Marshal(symbols)
	if err != nil {
		return nil, err
	}

	var out []tickerPrice
	resp, err := o.http.R().
		SetContext(ctx).
		SetQueryParam("symbols", string(encoded)).
		SetResult(&out).
		ForceContentType("application/json").
		Get(tickerPricePath)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return out, nil
}

func (o *BinanceOracle) fetchOne(ctx context.Context, symbol string) (tickerPrice, error) {
	var out tickerPrice
	resp, err := o.http.R().
		SetContext(ctx).
		SetQueryParam("symbol", symbol).
		SetResult(&out).
		ForceContentType("application/json").
		Get(tickerPricePath)
	if err != nil {
		return tickerPrice{}, err
	}
	if resp.StatusCode() != http.StatusOK {
		return tickerPrice{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	if out.Symbol == "" {
		out.Symbol = symbol
	}
	return out, nil
}
