package news

import (
	"fmt"
	"strconv"
	"time"
)

type EventsResponse struct {
	Status string  `json:"status"`
	Result []Event `json:"result"`
}

type Event struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Country    string   `json:"country"`
	Indicator  string   `json:"indicator"`
	Category   string   `json:"category"`
	Source     string   `json:"source"`
	Actual     *float64 `json:"actual"`
	Previous   *float64 `json:"previous"`
	Forecast   *float64 `json:"forecast"`
	Currency   string   `json:"currency"`
	Importance int      `json:"importance"`
	Date       TVTime   `json:"date"`
}

// TVTime handles TradingView timestamps like:
// - "2025-12-08T16:00:00.000Z"
// - "2025-11-30T00:00:00Z"
type TVTime struct {
	time.Time
}

func (t *TVTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}

	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("TVTime: invalid json string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	layouts := []string{
		"2006-01-02T15:04:05.000Z",
		time.RFC3339,
		"2006-01-02T15:04:05Z",
	}

	var lastErr error
	for _, layout := range layouts {
		tt, e := time.Parse(layout, s)
		if e == nil {
			t.Time = tt
			return nil
		}
		lastErr = e
	}
	return fmt.Errorf("TVTime: parse %q: %w", s, lastErr)
}
