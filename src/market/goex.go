package market

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"papertrader/src/model"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type tickerAPI interface {
	GetTicker(currency goex.CurrencyPair) (*goex.Ticker, error)
}

type klineAPI interface {
	GetKlineRecords(currency goex.CurrencyPair, period goex.KlinePeriod, size int, optional ...goex.OptionalParameter) ([]goex.Kline, error)
}

func newBinanceInstance(baseURL string, httpClient *http.Client) *binance.Binance {
	if baseURL == "" {
		baseURL = binance.GLOBAL_API_BASE_URL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	apiConfig := &goex.APIConfig{
		HttpClient: httpClient,
		Endpoint:   baseURL,
	}
	return binance.NewWithConfig(apiConfig)
}

func pairOf(symbol, quote string) (goex.CurrencyPair, error) {
	base, q, ok := Split(Normalize(symbol, quote), quote)
	if !ok {
		return goex.CurrencyPair{}, fmt.Errorf("symbol %q is not quoted in %s", symbol, quote)
	}
	return goex.NewCurrencyPair(goex.Currency{Symbol: base}, goex.Currency{Symbol: q}), nil
}

// callWithContext runs a blocking exchange call and gives up when ctx ends.
// The call itself keeps running in the background until it returns.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

// GoexOracle resolves prices one ticker at a time through the goex exchange client.
type GoexOracle struct {
	exchange tickerAPI
	quote    string
	logger   *logrus.Entry
}

func NewGoexOracle(baseURL, quote string, httpClient *http.Client, logger *logrus.Entry) *GoexOracle {
	return newGoexOracle(newBinanceInstance(baseURL, httpClient), quote, logger)
}

func newGoexOracle(exchange tickerAPI, quote string, logger *logrus.Entry) *GoexOracle {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &GoexOracle{
		exchange: exchange,
		quote:    quote,
		logger:   logger.WithField("component", "goex_oracle"),
	}
}

func (o *GoexOracle) LookupPrices(ctx context.Context, symbols []string) (model.Prices, error) {
	order, aliases := group(symbols, o.quote)
	prices := make(model.Prices, len(symbols))

	var lastErr error
	for _, sym := range order {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		pair, err := pairOf(sym, o.quote)
		if err != nil {
			o.logger.WithError(err).Debug("skipping symbol")
			continue
		}

		ticker, err := callWithContext(ctx, func() (*goex.Ticker, error) {
			return o.exchange.GetTicker(pair)
		})
		if err != nil {
			lastErr = err
			o.logger.WithError(err).WithField("symbol", sym).Warn("ticker lookup failed")
			continue
		}
		if ticker == nil || ticker.Last <= 0 {
			continue
		}

		price := decimal.NewFromFloat(ticker.Last)
		for _, alias := range aliases[sym] {
			prices[alias] = price
		}
	}

	if len(prices) == 0 && lastErr != nil {
		return prices, fmt.Errorf("%w: %v", ErrNoPrices, lastErr)
	}
	return prices, nil
}

// KlineSource loads recent candles used as market context by signal providers.
type KlineSource struct {
	exchange klineAPI
	quote    string
	limit    int
	period   goex.KlinePeriod
}

func NewKlineSource(cfg Config, httpClient *http.Client) (*KlineSource, error) {
	period, err := parseInterval(cfg.KlineInterval)
	if err != nil {
		return nil, err
	}
	return &KlineSource{
		exchange: newBinanceInstance(cfg.BaseURL, httpClient),
		quote:    cfg.QuoteAsset,
		limit:    cfg.KlineLimit,
		period:   period,
	}, nil
}

// Candles returns up to limit candles for symbol, oldest first.
func (k *KlineSource) Candles(ctx context.Context, symbol string) ([]model.Candle, error) {
	pair, err := pairOf(symbol, k.quote)
	if err != nil {
		return nil, err
	}

	klines, err := callWithContext(ctx, func() ([]goex.Kline, error) {
		return k.exchange.GetKlineRecords(pair, k.period, k.limit)
	})
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}

	out := make([]model.Candle, 0, len(klines))
	for i := range klines {
		kl := klines[i]
		out = append(out, model.Candle{
			Symbol:   strings.ToUpper(strings.TrimSpace(symbol)),
			Datetime: time.Unix(kl.Timestamp, 0).UTC(),
			Open:     decimal.NewFromFloat(kl.Open),
			High:     decimal.NewFromFloat(kl.High),
			Low:      decimal.NewFromFloat(kl.Low),
			Close:    decimal.NewFromFloat(kl.Close),
			Volume:   decimal.NewFromFloat(kl.Vol),
		})
	}
	return out, nil
}

func parseInterval(interval string) (goex.KlinePeriod, error) {
	switch interval {
	case "1m":
		return goex.KLINE_PERIOD_1MIN, nil
	case "1h", "":
		return goex.KLINE_PERIOD_1H, nil
	case "4h":
		return goex.KLINE_PERIOD_4H, nil
	case "1d":
		return goex.KLINE_PERIOD_1DAY, nil
	default:
		return 0, fmt.Errorf("unsupported kline interval %q", interval)
	}
}

// NewOracle builds the price oracle selected by cfg.PriceSource.
func NewOracle(cfg Config, logger *logrus.Entry) (Oracle, error) {
	switch cfg.PriceSource {
	case SourceBinance, "":
		return NewBinanceOracle(cfg.BaseURL, cfg.QuoteAsset, logger), nil
	case SourceGoex:
		return NewGoexOracle(cfg.BaseURL, cfg.QuoteAsset, nil, logger), nil
	default:
		return nil, fmt.Errorf("unknown price source %q", cfg.PriceSource)
	}
}
