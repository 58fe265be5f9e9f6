package engine

import (
	"fmt"
	"testing"
	"time"

	"papertrader/src/model"
	"papertrader/src/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const user = "alice"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(dur time.Duration) { c.t = c.t.Add(dur) }

func newTestEngine(t *testing.T) (*Engine, *testClock, *logrustest.Hook) {
	t.Helper()
	clock := &testClock{t: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)}
	log, hook := logrustest.NewNullLogger()

	st := store.New(d("10000"), clock.Now)
	e := NewEngine(st, Config{InitialBalance: 10000, MinOrderSize: 10, DefaultRiskPercent: 2}, logrus.NewEntry(log))
	e.now = clock.Now
	return e, clock, hook
}

func buyLimit(symbol string) LimitOrderRequest {
	return LimitOrderRequest{
		Symbol:        symbol,
		Direction:     model.DirectionBuyLimit,
		ObservedPrice: d("100"),
		LimitPrice:    d("95"),
		TP1:           d("105"),
		TP2:           d("110"),
		TP3:           d("120"),
		SL:            d("90"),
		Confidence:    8,
		Reason:        "pullback",
		RiskPercent:   d("1"),
	}
}

func openLong(symbol string) OpenPositionRequest {
	return OpenPositionRequest{
		Symbol:      symbol,
		Side:        model.SideLong,
		Price:       d("100"),
		TP1:         d("110"),
		TP2:         d("120"),
		TP3:         d("130"),
		SL:          d("95"),
		RiskPercent: d("1"),
	}
}

func requireInvariants(t *testing.T, p model.Portfolio) {
	t.Helper()

	sum := decimal.Zero
	for _, o := range p.PendingOrders {
		sum = sum.Add(o.Size)
	}
	require.True(t, p.ReservedBalance.Equal(sum), "reserved %s != pending sum %s", p.ReservedBalance, sum)
	require.False(t, p.Balance.IsNegative(), "balance negative: %s", p.Balance)
	require.False(t, p.ReservedBalance.IsNegative(), "reserved negative: %s", p.ReservedBalance)
	require.LessOrEqual(t, len(p.Positions), MaxOpenPositions)
	require.LessOrEqual(t, len(p.PendingOrders), MaxPendingOrders)

	seen := map[string]bool{}
	for _, o := range p.PendingOrders {
		require.False(t, seen[o.Symbol], "duplicate exposure on %s", o.Symbol)
		seen[o.Symbol] = true
	}
	for _, pos := range p.Positions {
		require.False(t, seen[pos.Symbol], "duplicate exposure on %s", pos.Symbol)
		seen[pos.Symbol] = true
	}
}

func TestGetPortfolioCreatesLazily(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	p, err := e.GetPortfolio(user)
	require.NoError(t, err)
	assert.True(t, p.Balance.Equal(d("10000")))
	assert.True(t, p.InitialBalance.Equal(d("10000")))
	assert.Empty(t, p.Positions)
	assert.Empty(t, p.PendingOrders)
	require.Len(t, p.PnlHistory, 1)
	assert.Equal(t, clock.Now(), p.PnlHistory[0].Timestamp)

	_, err = e.GetPortfolio("")
	require.ErrorIs(t, err, store.ErrEmptyUser)
}

func TestPlaceLimitOrderReservesSize(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	order, err := e.PlaceLimitOrder(user, buyLimit("btcusdt"))
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", order.Symbol)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.True(t, order.Size.Equal(d("100")))
	assert.Equal(t, clock.Now().Add(72*time.Hour), order.ExpiresAt)

	p, _ := e.GetPortfolio(user)
	assert.True(t, p.ReservedBalance.Equal(d("100")))
	assert.True(t, p.Balance.Equal(d("10000")))
	require.Len(t, p.PendingOrders, 1)
	requireInvariants(t, p)
}

func TestPlaceLimitOrderUsesDefaultRisk(t *testing.T) {
	e, _, _ := newTestEngine(t)

	req := buyLimit("BTCUSDT")
	req.RiskPercent = decimal.Zero
	order, err := e.PlaceLimitOrder(user, req)
	require.NoError(t, err)
	assert.True(t, order.Size.Equal(d("200")), "expected 2%% of 10000, got %s", order.Size)
}

func TestPlaceLimitOrderRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *LimitOrderRequest)
		wantErr error
	}{
		{name: "empty symbol", mutate: func(r *LimitOrderRequest) { r.Symbol = " " }, wantErr: ErrInvalidRequest},
		{name: "bad direction", mutate: func(r *LimitOrderRequest) { r.Direction = "MARKET" }, wantErr: ErrInvalidRequest},
		{name: "zero observed price", mutate: func(r *LimitOrderRequest) { r.ObservedPrice = decimal.Zero }, wantErr: ErrInvalidRequest},
		{name: "buy limit above price", mutate: func(r *LimitOrderRequest) { r.LimitPrice = d("101") }, wantErr: ErrLimitWrongSide},
		{name: "buy limit at price", mutate: func(r *LimitOrderRequest) { r.LimitPrice = d("100"); r.SL = d("90"); r.TP1 = d("105") }, wantErr: ErrLimitWrongSide},
		{
			name: "sell limit below price",
			mutate: func(r *LimitOrderRequest) {
				r.Direction = model.DirectionSellLimit
				r.LimitPrice = d("99")
			},
			wantErr: ErrLimitWrongSide,
		},
		{name: "long sl above limit", mutate: func(r *LimitOrderRequest) { r.SL = d("96") }, wantErr: ErrLevelsMisordered},
		{name: "long tp1 below limit", mutate: func(r *LimitOrderRequest) { r.TP1 = d("94") }, wantErr: ErrLevelsMisordered},
		{
			name: "short levels given as long",
			mutate: func(r *LimitOrderRequest) {
				r.Direction = model.DirectionSellLimit
				r.LimitPrice = d("105")
			},
			wantErr: ErrLevelsMisordered,
		},
		{name: "size below minimum", mutate: func(r *LimitOrderRequest) { r.RiskPercent = d("0.05") }, wantErr: ErrSizeTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			before, _ := e.GetPortfolio(user)

			req := buyLimit("BTCUSDT")
			tt.mutate(&req)
			_, err := e.PlaceLimitOrder(user, req)
			require.ErrorIs(t, err, tt.wantErr)

			after, _ := e.GetPortfolio(user)
			assert.Equal(t, before, after, "rejected order must not mutate the portfolio")
		})
	}
}

func TestPlaceSellLimitOrder(t *testing.T) {
	e, _, _ := newTestEngine(t)

	order, err := e.PlaceLimitOrder(user, LimitOrderRequest{
		Symbol:        "ETHUSDT",
		Direction:     model.DirectionSellLimit,
		ObservedPrice: d("100"),
		LimitPrice:    d("105"),
		TP1:           d("100"),
		TP2:           d("95"),
		TP3:           d("90"),
		SL:            d("110"),
		RiskPercent:   d("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.SideShort, order.Direction.Side())
}

func TestInsufficientFunds(t *testing.T) {
	e, _, _ := newTestEngine(t)

	// 60% then another 60% of the balance: the second exceeds balance - reserved.
	req := buyLimit("BTCUSDT")
	req.RiskPercent = d("60")
	_, err := e.PlaceLimitOrder(user, req)
	require.NoError(t, err)

	req = buyLimit("ETHUSDT")
	req.RiskPercent = d("60")
	_, err = e.PlaceLimitOrder(user, req)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	p, _ := e.GetPortfolio(user)
	require.Len(t, p.PendingOrders, 1)
	requireInvariants(t, p)
}

func TestPendingOrderCap(t *testing.T) {
	e, _, _ := newTestEngine(t)

	for i := 0; i < MaxPendingOrders; i++ {
		_, err := e.PlaceLimitOrder(user, buyLimit(fmt.Sprintf("SYM%dUSDT", i)))
		require.NoError(t, err)
	}

	_, err := e.PlaceLimitOrder(user, buyLimit("EXTRAUSDT"))
	require.ErrorIs(t, err, ErrPendingCapReached)

	p, _ := e.GetPortfolio(user)
	require.Len(t, p.PendingOrders, MaxPendingOrders)
	requireInvariants(t, p)
}

func TestDuplicateExposureRejected(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.PlaceLimitOrder(user, buyLimit("BTCUSDT"))
	require.NoError(t, err)
	before, _ := e.GetPortfolio(user)

	_, err = e.PlaceLimitOrder(user, buyLimit("BTCUSDT"))
	require.ErrorIs(t, err, ErrDuplicateExposure)

	after, _ := e.GetPortfolio(user)
	assert.Equal(t, before, after)

	_, err = e.OpenPosition(user, openLong("BTCUSDT"))
	require.ErrorIs(t, err, ErrDuplicateExposure)
}

func TestDuplicateExposureAgainstOpenPosition(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.OpenPosition(user, openLong("BTCUSDT"))
	require.NoError(t, err)

	_, err = e.PlaceLimitOrder(user, buyLimit("BTCUSDT"))
	require.ErrorIs(t, err, ErrDuplicateExposure)
}

func TestCancelOrder(t *testing.T) {
	e, _, _ := newTestEngine(t)

	order, err := e.PlaceLimitOrder(user, buyLimit("BTCUSDT"))
	require.NoError(t, err)

	cancelled, err := e.CancelOrder(user, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	p, _ := e.GetPortfolio(user)
	assert.Empty(t, p.PendingOrders)
	assert.True(t, p.ReservedBalance.IsZero())
	require.Len(t, p.CancelledOrders, 1)
	assert.Equal(t, order.ID, p.CancelledOrders[0].ID)
	requireInvariants(t, p)

	_, err = e.CancelOrder(user, order.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestFillAtLimitPrice(t *testing.T) {
	e, _, _ := newTestEngine(t)

	order, err := e.PlaceLimitOrder(user, buyLimit("BTCUSDT"))
	require.NoError(t, err)

	report, err := e.CheckAndFillOrders(user, model.Prices{"BTCUSDT": d("94")})
	require.NoError(t, err)
	require.Len(t, report.Filled, 1)
	require.Len(t, report.Opened, 1)
	assert.Equal(t, model.OrderStatusFilled, report.Filled[0].Status)

	pos := report.Opened[0]
	assert.Equal(t, model.SideLong, pos.Side)
	assert.True(t, pos.EntryPrice.Equal(d("95")), "entry must be the limit price, got %s", pos.EntryPrice)
	assert.True(t, pos.Quantity.Round(4).Equal(d("1.0526")), "quantity %s", pos.Quantity)
	assert.Equal(t, order.ID, pos.OrderID)

	p, _ := e.GetPortfolio(user)
	assert.Empty(t, p.PendingOrders)
	require.Len(t, p.Positions, 1)
	assert.True(t, p.ReservedBalance.IsZero())
	assert.True(t, p.Balance.Equal(d("9900")))
	requireInvariants(t, p)
}

func TestSellLimitFillsWhenPriceRises(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.PlaceLimitOrder(user, LimitOrderRequest{
		Symbol: "ETHUSDT", Direction: model.DirectionSellLimit,
		ObservedPrice: d("100"), LimitPrice: d("105"),
		TP1: d("100"), TP2: d("95"), TP3: d("90"), SL: d("110"),
		RiskPercent: d("1"),
	})
	require.NoError(t, err)

	report, err := e.CheckAndFillOrders(user, model.Prices{"ETHUSDT": d("104.99")})
	require.NoError(t, err)
	assert.Empty(t, report.Filled)

	report, err = e.CheckAndFillOrders(user, model.Prices{"ETHUSDT": d("105")})
	require.NoError(t, err)
	require.Len(t, report.Opened, 1)
	assert.Equal(t, model.SideShort, report.Opened[0].Side)
	assert.True(t, report.Opened[0].EntryPrice.Equal(d("105")))
}

func TestUnknownPriceLeavesOrderPending(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	_, err := e.PlaceLimitOrder(user, buyLimit("BTCUSDT"))
	require.NoError(t, err)
	clock.Advance(100 * time.Hour)

	report, err := e.CheckAndFillOrders(user, model.Prices{"ETHUSDT": d("1")})
	require.NoError(t, err)
	assert.Empty(t, report.Filled)
	assert.Empty(t, report.Expired)

	p, _ := e.GetPortfolio(user)
	require.Len(t, p.PendingOrders, 1)
}

func TestOrderExpiry(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	order, err := e.PlaceLimitOrder(user, buyLimit("BTCUSDT"))
	require.NoError(t, err)

	clock.Advance(72*time.Hour - time.Second)
	report, err := e.CheckAndFillOrders(user, model.Prices{"BTCUSDT": d("99")})
	require.NoError(t, err)
	assert.Empty(t, report.Expired)

	clock.Advance(time.Second)
	report, err = e.CheckAndFillOrders(user, model.Prices{"BTCUSDT": d("99")})
	require.NoError(t, err)
	require.Len(t, report.Expired, 1)
	assert.Equal(t, order.ID, report.Expired[0].ID)
	assert.Equal(t, model.OrderStatusExpired, report.Expired[0].Status)

	p, _ := e.GetPortfolio(user)
	assert.Empty(t, p.PendingOrders)
	assert.True(t, p.ReservedBalance.IsZero())
	assert.True(t, p.Balance.Equal(d("10000")))
	require.Len(t, p.CancelledOrders, 1)

	// The reservation is released exactly once.
	report, err = e.CheckAndFillOrders(user, model.Prices{"BTCUSDT": d("90")})
	require.NoError(t, err)
	assert.Empty(t, report.Expired)
	p, _ = e.GetPortfolio(user)
	assert.True(t, p.ReservedBalance.IsZero())
	require.Len(t, p.CancelledOrders, 1)
}

func TestExpiredOrderDoesNotFillEvenIfCrossed(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	_, err := e.PlaceLimitOrder(user, buyLimit("BTCUSDT"))
	require.NoError(t, err)
	clock.Advance(73 * time.Hour)

	report, err := e.CheckAndFillOrders(user, model.Prices{"BTCUSDT": d("90")})
	require.NoError(t, err)
	assert.Empty(t, report.Filled)
	assert.Len(t, report.Expired, 1)
}

func TestFillBlockedByPositionCap(t *testing.T) {
	e, _, _ := newTestEngine(t)

	for _, s := range []string{"AUSDT", "BUSDT", "CUSDT"} {
		_, err := e.OpenPosition(user, openLong(s))
		require.NoError(t, err)
	}
	_, err := e.PlaceLimitOrder(user, buyLimit("BTCUSDT"))
	require.NoError(t, err)

	report, err := e.CheckAndFillOrders(user, model.Prices{"BTCUSDT": d("94")})
	require.NoError(t, err)
	assert.Empty(t, report.Filled)
	assert.Equal(t, 1, report.Blocked)

	p, _ := e.GetPortfolio(user)
	require.Len(t, p.PendingOrders, 1)
	assert.Equal(t, model.OrderStatusPending, p.PendingOrders[0].Status)
	requireInvariants(t, p)

	// Free a slot and the order fills on the next check.
	_, err = e.ClosePosition(user, p.Positions[0].ID)
	require.NoError(t, err)

	report, err = e.CheckAndFillOrders(user, model.Prices{"BTCUSDT": d("94")})
	require.NoError(t, err)
	require.Len(t, report.Filled, 1)

	p, _ = e.GetPortfolio(user)
	require.Len(t, p.Positions, 3)
	requireInvariants(t, p)
}

func TestFillsStopAtCapacityWithinOneCheck(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.OpenPosition(user, openLong("AUSDT"))
	require.NoError(t, err)
	for _, s := range []string{"BUSDT", "CUSDT", "DUSDT"} {
		_, err := e.PlaceLimitOrder(user, buyLimit(s))
		require.NoError(t, err)
	}

	report, err := e.CheckAndFillOrders(user, model.Prices{"BUSDT": d("90"), "CUSDT": d("90"), "DUSDT": d("90")})
	require.NoError(t, err)
	assert.Len(t, report.Filled, 2)
	assert.Equal(t, 1, report.Blocked)

	p, _ := e.GetPortfolio(user)
	requireInvariants(t, p)
	require.Len(t, p.PendingOrders, 1)
	assert.Equal(t, "DUSDT", p.PendingOrders[0].Symbol)
}

func TestStopLossClose(t *testing.T) {
	e, _, _ := newTestEngine(t)

	pos, err := e.OpenPosition(user, openLong("BTCUSDT"))
	require.NoError(t, err)
	require.True(t, pos.Quantity.Equal(d("1")))

	before, _ := e.GetPortfolio(user)

	report, err := e.UpdatePositions(user, model.Prices{"BTCUSDT": d("94")})
	require.NoError(t, err)
	require.Len(t, report.Closed, 1)
	assert.Empty(t, report.Open)

	closed := report.Closed[0]
	assert.Equal(t, model.CloseReasonSL, closed.CloseReason)
	assert.Equal(t, model.PositionStatusClosed, closed.Status)
	assert.True(t, closed.Pnl.Equal(d("-6")), "pnl %s", closed.Pnl)
	assert.True(t, closed.PnlPercent.Equal(d("-6")))

	after, _ := e.GetPortfolio(user)
	assert.True(t, after.Balance.Equal(before.Balance.Add(d("94"))))
	assert.Equal(t, before.TotalTrades+1, after.TotalTrades)
	assert.Equal(t, 1, after.Losses)
	assert.True(t, after.TotalPnl.Equal(d("-6")))
	assert.True(t, after.WinRate.IsZero())
	require.Len(t, after.ClosedTrades, 1)
	assert.Empty(t, after.Positions)
	requireInvariants(t, after)
}

func TestClosePriorityOrder(t *testing.T) {
	tests := []struct {
		name  string
		side  model.PositionSide
		price string
		want  model.CloseReason
	}{
		{name: "long below sl", side: model.SideLong, price: "95", want: model.CloseReasonSL},
		{name: "long jumped past every tp", side: model.SideLong, price: "140", want: model.CloseReasonTP3},
		{name: "long between tp2 and tp3", side: model.SideLong, price: "125", want: model.CloseReasonTP2},
		{name: "long between tp1 and tp2", side: model.SideLong, price: "110", want: model.CloseReasonTP1},
		{name: "long inside range", side: model.SideLong, price: "109.99", want: ""},
		{name: "short above sl", side: model.SideShort, price: "105", want: model.CloseReasonSL},
		{name: "short jumped past every tp", side: model.SideShort, price: "60", want: model.CloseReasonTP3},
		{name: "short between tp2 and tp3", side: model.SideShort, price: "75", want: model.CloseReasonTP2},
		{name: "short at tp1", side: model.SideShort, price: "90", want: model.CloseReasonTP1},
		{name: "short inside range", side: model.SideShort, price: "95", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t)

			req := openLong("BTCUSDT")
			if tt.side == model.SideShort {
				req = OpenPositionRequest{
					Symbol: "BTCUSDT", Side: model.SideShort, Price: d("100"),
					TP1: d("90"), TP2: d("80"), TP3: d("70"), SL: d("105"),
					RiskPercent: d("1"),
				}
			}
			_, err := e.OpenPosition(user, req)
			require.NoError(t, err)

			report, err := e.UpdatePositions(user, model.Prices{"BTCUSDT": d(tt.price)})
			require.NoError(t, err)

			if tt.want == "" {
				assert.Empty(t, report.Closed)
				assert.Len(t, report.Open, 1)
				return
			}
			require.Len(t, report.Closed, 1)
			assert.Equal(t, tt.want, report.Closed[0].CloseReason)
		})
	}
}

func TestShortProfitClose(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.OpenPosition(user, OpenPositionRequest{
		Symbol: "ETHUSDT", Side: model.SideShort, Price: d("100"),
		TP1: d("90"), TP2: d("80"), TP3: d("70"), SL: d("105"),
		RiskPercent: d("1"),
	})
	require.NoError(t, err)

	report, err := e.UpdatePositions(user, model.Prices{"ETHUSDT": d("88")})
	require.NoError(t, err)
	require.Len(t, report.Closed, 1)
	assert.Equal(t, model.CloseReasonTP1, report.Closed[0].CloseReason)
	assert.True(t, report.Closed[0].Pnl.Equal(d("12")))

	p, _ := e.GetPortfolio(user)
	assert.True(t, p.Balance.Equal(d("10012")))
	assert.Equal(t, 1, p.Wins)
	assert.True(t, p.WinRate.Equal(d("100")))
	assert.True(t, p.TotalPnlPercent.Equal(d("0.12")))
}

func TestShortLossCappedAtSize(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.OpenPosition(user, OpenPositionRequest{
		Symbol: "ETHUSDT", Side: model.SideShort, Price: d("100"),
		TP1: d("90"), TP2: d("80"), TP3: d("70"), SL: d("500"),
		RiskPercent: d("1"),
	})
	require.NoError(t, err)

	report, err := e.UpdatePositions(user, model.Prices{"ETHUSDT": d("350")})
	require.NoError(t, err)
	require.Empty(t, report.Closed)
	assert.True(t, report.Open[0].Pnl.Equal(d("-100")))

	report, err = e.UpdatePositions(user, model.Prices{"ETHUSDT": d("600")})
	require.NoError(t, err)
	require.Len(t, report.Closed, 1)

	p, _ := e.GetPortfolio(user)
	assert.True(t, p.Balance.Equal(d("9900")))
	requireInvariants(t, p)
}

func TestUpdatePositionsRetainsPriceWhenUnknown(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.OpenPosition(user, openLong("BTCUSDT"))
	require.NoError(t, err)

	_, err = e.UpdatePositions(user, model.Prices{"BTCUSDT": d("104")})
	require.NoError(t, err)

	report, err := e.UpdatePositions(user, model.Prices{"BTCUSDT": decimal.Zero})
	require.NoError(t, err)
	require.Len(t, report.Open, 1)
	assert.True(t, report.Open[0].CurrentPrice.Equal(d("104")))
	assert.True(t, report.Open[0].Pnl.Equal(d("4")))
}

func TestUpdatePositionsIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.OpenPosition(user, openLong("BTCUSDT"))
	require.NoError(t, err)
	_, err = e.OpenPosition(user, openLong("ETHUSDT"))
	require.NoError(t, err)

	prices := model.Prices{"BTCUSDT": d("103"), "ETHUSDT": d("94")}

	first, err := e.UpdatePositions(user, prices)
	require.NoError(t, err)
	p1, _ := e.GetPortfolio(user)

	second, err := e.UpdatePositions(user, prices)
	require.NoError(t, err)
	p2, _ := e.GetPortfolio(user)

	require.Len(t, first.Closed, 1)
	assert.Empty(t, second.Closed)
	require.Len(t, second.Open, 1)
	assert.True(t, first.Open[0].Pnl.Equal(second.Open[0].Pnl))
	assert.True(t, first.Open[0].PnlPercent.Equal(second.Open[0].PnlPercent))
	assert.Len(t, p2.ClosedTrades, len(p1.ClosedTrades))
	assert.Equal(t, p1.TotalTrades, p2.TotalTrades)
	assert.True(t, p1.Balance.Equal(p2.Balance))
	assert.Len(t, p2.PnlHistory, len(p1.PnlHistory)+1)
}

func TestPnlSampleTotalValue(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.OpenPosition(user, openLong("BTCUSDT"))
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(user, buyLimit("ETHUSDT"))
	require.NoError(t, err)

	_, err = e.UpdatePositions(user, model.Prices{"BTCUSDT": d("105")})
	require.NoError(t, err)

	p, _ := e.GetPortfolio(user)
	last := p.PnlHistory[len(p.PnlHistory)-1]
	// 9900 balance + 99 reserved + (100 size + 5 pnl)
	assert.True(t, last.TotalValue.Equal(d("10104")), "total value %s", last.TotalValue)
}

func TestPnlHistoryCapped(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	for i := 0; i < PnlHistoryCap+20; i++ {
		clock.Advance(time.Minute)
		_, err := e.UpdatePositions(user, nil)
		require.NoError(t, err)
	}

	p, _ := e.GetPortfolio(user)
	require.Len(t, p.PnlHistory, PnlHistoryCap)
	assert.Equal(t, clock.Now(), p.PnlHistory[PnlHistoryCap-1].Timestamp)
}

func TestClosedTradesCappedMostRecentFirst(t *testing.T) {
	e, _, _ := newTestEngine(t)

	var lastID string
	for i := 0; i < ClosedTradesCap+5; i++ {
		pos, err := e.OpenPosition(user, openLong("BTCUSDT"))
		require.NoError(t, err)
		_, err = e.ClosePosition(user, pos.ID)
		require.NoError(t, err)
		lastID = pos.ID
	}

	p, _ := e.GetPortfolio(user)
	require.Len(t, p.ClosedTrades, ClosedTradesCap)
	assert.Equal(t, lastID, p.ClosedTrades[0].ID)
	assert.Equal(t, ClosedTradesCap+5, p.TotalTrades)
}

func TestManualClose(t *testing.T) {
	e, _, _ := newTestEngine(t)

	pos, err := e.OpenPosition(user, openLong("BTCUSDT"))
	require.NoError(t, err)
	_, err = e.UpdatePositions(user, model.Prices{"BTCUSDT": d("107")})
	require.NoError(t, err)

	closed, err := e.ClosePosition(user, pos.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CloseReasonManual, closed.CloseReason)
	assert.True(t, closed.Pnl.Equal(d("7")))

	p, _ := e.GetPortfolio(user)
	assert.True(t, p.Balance.Equal(d("10007")))
	assert.Equal(t, 1, p.Wins)

	_, err = e.ClosePosition(user, pos.ID)
	require.ErrorIs(t, err, ErrPositionNotFound)
}

func TestOpenPositionCap(t *testing.T) {
	e, _, _ := newTestEngine(t)

	for _, s := range []string{"AUSDT", "BUSDT", "CUSDT"} {
		_, err := e.OpenPosition(user, openLong(s))
		require.NoError(t, err)
	}
	_, err := e.OpenPosition(user, openLong("DUSDT"))
	require.ErrorIs(t, err, ErrPositionCapReached)
}

func TestResetPortfolio(t *testing.T) {
	e, clock, _ := newTestEngine(t)

	_, err := e.OpenPosition(user, openLong("BTCUSDT"))
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(user, buyLimit("ETHUSDT"))
	require.NoError(t, err)
	_, err = e.UpdatePositions(user, model.Prices{"BTCUSDT": d("90")})
	require.NoError(t, err)
	_, err = e.OpenPosition(user, openLong("SOLUSDT"))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	p, err := e.ResetPortfolio(user)
	require.NoError(t, err)

	assert.True(t, p.Balance.Equal(d("10000")))
	assert.True(t, p.ReservedBalance.IsZero())
	assert.Empty(t, p.Positions)
	assert.Empty(t, p.PendingOrders)
	assert.Empty(t, p.ClosedTrades)
	assert.Empty(t, p.CancelledOrders)
	assert.Zero(t, p.TotalTrades)
	assert.True(t, p.TotalPnl.IsZero())
	require.Len(t, p.PnlHistory, 1)
	assert.Equal(t, clock.Now(), p.PnlHistory[0].Timestamp)
	assert.True(t, p.PnlHistory[0].TotalValue.Equal(d("10000")))
}

func TestInvariantsOverMixedSequence(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	symbols := []string{"AUSDT", "BUSDT", "CUSDT", "DUSDT", "EUSDT", "FUSDT"}
	prices := []string{"96", "94", "100", "89", "121", "104"}

	for step := 0; step < 60; step++ {
		sym := symbols[step%len(symbols)]
		switch step % 4 {
		case 0:
			_, _ = e.PlaceLimitOrder(user, buyLimit(sym))
		case 1:
			_, _ = e.OpenPosition(user, openLong(sym))
		case 2:
			p, _ := e.GetPortfolio(user)
			if len(p.PendingOrders) > 0 {
				_, err := e.CancelOrder(user, p.PendingOrders[0].ID)
				require.NoError(t, err)
			}
		}

		pm := model.Prices{}
		for i, s := range symbols {
			pm[s] = d(prices[(i+step)%len(prices)])
		}
		_, err := e.CheckAndFillOrders(user, pm)
		require.NoError(t, err)
		_, err = e.UpdatePositions(user, pm)
		require.NoError(t, err)

		clock.Advance(7 * time.Hour)
		p, _ := e.GetPortfolio(user)
		requireInvariants(t, p)
	}
}

func TestRejectionIsLogged(t *testing.T) {
	e, _, hook := newTestEngine(t)

	_, err := e.PlaceLimitOrder(user, buyLimit("BTCUSDT"))
	require.NoError(t, err)
	_, err = e.PlaceLimitOrder(user, buyLimit("BTCUSDT"))
	require.Error(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "limit order rejected", entry.Message)
}
