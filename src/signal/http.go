package signal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

type proposeRequest struct {
	Symbol  string        `json:"symbol"`
	Context MarketContext `json:"context"`
}

// HTTPProvider delegates the decision to an external service that answers
// POST requests with a Signal document.
type HTTPProvider struct {
	url    string
	http   *resty.Client
	logger *logrus.Entry
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return r == nil || r.RawResponse == nil
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == http.StatusTooManyRequests
}

func NewHTTPProvider(url string, timeout time.Duration, logger *logrus.Entry) *HTTPProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(isRetryableResp)
	return newHTTPProvider(url, client, logger)
}

func newHTTPProvider(url string, client *resty.Client, logger *logrus.Entry) *HTTPProvider {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &HTTPProvider{url: url, http: client, logger: logger.WithField("component", "signal_http")}
}

func (p *HTTPProvider) Propose(ctx context.Context, symbol string, mc MarketContext) (Signal, error) {
	var out Signal
	resp, err := p.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(proposeRequest{Symbol: symbol, Context: mc}).
		SetResult(&out).
		ForceContentType("application/json").
		Post(p.url)
	if err != nil {
		return Signal{}, fmt.Errorf("signal request for %s: %w", symbol, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Signal{}, fmt.Errorf("signal request for %s: HTTP %d: %s", symbol, resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}

	if out.Confidence < 0 || out.Confidence > 10 {
		return Signal{}, fmt.Errorf("signal for %s: %w: %v", symbol, ErrConfidenceRange, out.Confidence)
	}

	out.Action = Action(strings.ToUpper(string(out.Action)))
	out.Direction = normalizeDirection(string(out.Direction))
	if out.Action != ActionOpen && out.Action != ActionSkip {
		p.logger.WithField("symbol", symbol).WithField("action", out.Action).Warn("unknown signal action, treating as skip")
		out.Action = ActionSkip
	}
	return out, nil
}
