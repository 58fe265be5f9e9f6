package news

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const eventsPath = "/events"

// Client reads the TradingView economic calendar.
type Client struct {
	http   *resty.Client
	logger *logrus.Entry
}

func NewClient(baseURL string, logger *logrus.Entry) *Client {
	if baseURL == "" {
		baseURL = "https://economic-calendar.tradingview.com"
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15*time.Second).
		SetHeader("accept", "application/json").
		SetHeader("accept-language", "en-GB,en;q=0.9").
		SetHeader("origin", "https://www.tradingview.com").
		SetHeader("referer", "https://www.tradingview.com/")

	return &Client{http: httpClient, logger: logger.WithField("component", "news")}
}

// FetchImportantEvents returns the importance=1 events between fromUTC and toUTC.
func (c *Client) FetchImportantEvents(ctx context.Context, fromUTC, toUTC time.Time, countries []string) ([]Event, error) {
	var decoded EventsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"from":      fromUTC.UTC().Format("2006-01-02T15:04:05.000Z"),
			"to":        toUTC.UTC().Format("2006-01-02T15:04:05.000Z"),
			"countries": strings.Join(countries, ","),
		}).
		SetResult(&decoded).
		ForceContentType("application/json").
		Get(eventsPath)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		body := resp.Body()
		if len(body) > 64*1024 {
			body = body[:64*1024]
		}
		return nil, fmt.Errorf("unexpected status %d. body: %s", resp.StatusCode(), string(body))
	}
	if decoded.Status != "ok" && decoded.Status != "" {
		return nil, fmt.Errorf("unexpected status field: %q", decoded.Status)
	}

	out := make([]Event, 0, len(decoded.Result))
	for _, ev := range decoded.Result {
		if ev.Importance == 1 {
			out = append(out, ev)
		}
	}

	c.logger.WithField("fetched", len(decoded.Result)).WithField("important", len(out)).Debug("calendar events fetched")
	return out, nil
}
