package news

import (
	"context"
	"sort"
	"sync"
	"time"
)

type WindowConfig struct {
	BlockBefore time.Duration
	BlockAfter  time.Duration
}

type Decision struct {
	Allowed         bool
	Reason          string
	NowUTC          time.Time
	BlockingEvent   *Event
	BlockWindowFrom time.Time
	BlockWindowTo   time.Time
	NextAllowedUTC  time.Time
}

// CanEnterTradeAt blocks entries when nowUTC falls within
// [eventTime-BlockBefore, eventTime+BlockAfter] of any event.
func CanEnterTradeAt(nowUTC time.Time, events []Event, cfg WindowConfig) Decision {
	type window struct {
		ev    Event
		start time.Time
		end   time.Time
	}

	var active []window

	for _, ev := range events {
		evTime := ev.Date.Time.UTC()
		if evTime.IsZero() {
			continue
		}

		start := evTime.Add(-cfg.BlockBefore)
		end := evTime.Add(cfg.BlockAfter)

		if !nowUTC.Before(start) && !nowUTC.After(end) {
			active = append(active, window{ev: ev, start: start, end: end})
		}
	}

	if len(active) == 0 {
		return Decision{Allowed: true, Reason: "allowed", NowUTC: nowUTC}
	}

	// Overlapping windows: wait for the latest end.
	sort.Slice(active, func(i, j int) bool {
		return active[i].end.Before(active[j].end)
	})
	block := active[len(active)-1]

	return Decision{
		Allowed:         false,
		Reason:          "blocked_by_news_window",
		NowUTC:          nowUTC,
		BlockingEvent:   &block.ev,
		BlockWindowFrom: block.start,
		BlockWindowTo:   block.end,
		NextAllowedUTC:  block.end,
	}
}

type eventFetcher interface {
	FetchImportantEvents(ctx context.Context, fromUTC, toUTC time.Time, countries []string) ([]Event, error)
}

// Gate caches calendar events and answers whether new entries are allowed now.
// When the calendar cannot be read the last cached events are used, and with
// nothing cached entries are allowed.
type Gate struct {
	fetcher   eventFetcher
	window    WindowConfig
	countries []string
	refresh   time.Duration
	now       func() time.Time

	mu        sync.Mutex
	events    []Event
	fetchedAt time.Time
}

func NewGate(cfg Config, fetcher eventFetcher) *Gate {
	refresh := cfg.Refresh
	if refresh <= 0 {
		refresh = time.Hour
	}
	return &Gate{
		fetcher:   fetcher,
		window:    WindowConfig{BlockBefore: cfg.BlockBefore, BlockAfter: cfg.BlockAfter},
		countries: cfg.Countries,
		refresh:   refresh,
		now:       time.Now,
	}
}

func (g *Gate) Check(ctx context.Context) Decision {
	now := g.now().UTC()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fetchedAt.IsZero() || now.Sub(g.fetchedAt) >= g.refresh {
		events, err := g.fetcher.FetchImportantEvents(ctx, now.Add(-24*time.Hour), now.Add(24*time.Hour), g.countries)
		if err != nil {
			if g.fetchedAt.IsZero() {
				return Decision{Allowed: true, Reason: "news calendar unavailable: " + err.Error(), NowUTC: now}
			}
		} else {
			g.events = events
			g.fetchedAt = now
		}
	}

	return CanEnterTradeAt(now, g.events, g.window)
}
