package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"papertrader/src/app"
	"papertrader/src/engine"
	"papertrader/src/market"
	"papertrader/src/scheduler"
	"papertrader/src/signal"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockBinanceServer() *httptest.Server {
	handler := http.NewServeMux()
	handler.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"symbol":"ETHUSDT","price":"2000"}]`))
	})
	handler.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			[1499040000000,"2100","2110","2040","2050","10",1499043599999,"0",1,"0","0","0"],
			[1499043600000,"2050","2060","2020","2030","10",1499047199999,"0",1,"0","0","0"],
			[1499047200000,"2030","2040","1990","2000","10",1499050799999,"0",1,"0","0","0"]
		]`))
	})
	return httptest.NewServer(handler)
}

func TestReconcileRun(t *testing.T) {
	server := setupMockBinanceServer()
	defer server.Close()

	log, _ := test.NewNullLogger()
	out := &bytes.Buffer{}
	r := &Reconcile{
		Log: logrus.NewEntry(log),
		Configs: &app.Configs{
			Engine: engine.Config{InitialBalance: 5000, MinOrderSize: 10, DefaultRiskPercent: 2},
			Scheduler: scheduler.Config{
				LoopPeriod:    time.Hour,
				WatchList:     []string{"ETHUSDT"},
				MinConfidence: 7,
				MinRewardRisk: 1.5,
				RiskPercent:   2,
				PriceTimeout:  time.Second,
				SignalTimeout: time.Second,
			},
			Market: market.Config{PriceSource: market.SourceBinance, BaseURL: server.URL, QuoteAsset: "USDT", KlineLimit: 10, KlineInterval: "1h"},
			Signal: signal.Config{Provider: signal.ProviderRule, Lookback: 10, PullbackPct: 0.5, MinRiskPct: 1},
		},
		Config: &Config{Users: []string{"alice", "bob"}, Cycles: 2, Interval: time.Millisecond},
		Out:    out,
	}

	require.NoError(t, r.Run(context.Background()))

	dec := json.NewDecoder(out)
	var got []summary
	for dec.More() {
		var s summary
		require.NoError(t, dec.Decode(&s))
		got = append(got, s)
	}
	require.Len(t, got, 4)

	first := got[0]
	assert.Equal(t, "alice", first.UserID)
	assert.Equal(t, 1, first.Cycle)
	assert.Equal(t, 1, first.PendingOrders)
	assert.Equal(t, "5000.00", first.Balance)
	assert.Equal(t, "100.00", first.Reserved)
	assert.Contains(t, first.Lines[0], "PLACED SELL_LIMIT ETHUSDT")

	// the second cycle keeps the order pending and does not duplicate it
	assert.Equal(t, 2, got[2].Cycle)
	assert.Equal(t, 1, got[2].PendingOrders)
}

func TestReconcileRequiresUsers(t *testing.T) {
	r := &Reconcile{Config: &Config{}, Configs: &app.Configs{}}
	require.Error(t, r.Run(context.Background()))
}
