package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrader/src/app"

	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
)

// Reconcile runs a fixed number of reconciliation cycles in the foreground
// and prints each user's cycle log and resulting portfolio. Portfolios live
// only for the duration of the run.
type Reconcile struct {
	Log     *logger.Entry
	Configs *app.Configs
	Config  *Config
	Out     io.Writer
}

type summary struct {
	UserID        string   `json:"user_id"`
	Cycle         int      `json:"cycle"`
	Lines         []string `json:"lines"`
	Balance       string   `json:"balance"`
	Reserved      string   `json:"reserved"`
	TotalValue    string   `json:"total_value"`
	OpenPositions int      `json:"open_positions"`
	PendingOrders int      `json:"pending_orders"`
}

func (r *Reconcile) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Run(ctx)
}

func (r *Reconcile) Run(ctx context.Context) error {
	if r.Config == nil {
		r.Config = GetConfig()
	}
	if r.Configs == nil {
		cfgs := app.LoadConfigs()
		r.Configs = &cfgs
	}
	if r.Log == nil {
		r.Log = logger.WithField("cmd", "reconcile")
	}
	if r.Out == nil {
		r.Out = os.Stdout
	}
	if len(r.Config.Users) == 0 {
		return fmt.Errorf("no users to reconcile")
	}

	a, err := app.New(*r.Configs, prometheus.NewRegistry(), r.Log)
	if err != nil {
		return err
	}
	defer a.Close()

	enc := json.NewEncoder(r.Out)
	enc.SetIndent("", "  ")

	for n := 1; n <= r.Config.Cycles; n++ {
		for _, user := range r.Config.Users {
			c, err := a.Reconciler.Run(ctx, user)
			if err != nil {
				r.Log.WithError(err).WithField("user_id", user).Error("reconcile cycle failed")
				return err
			}

			p, err := a.Engine.GetPortfolio(user)
			if err != nil {
				return err
			}
			lines := c.Lines
			if lines == nil {
				lines = []string{}
			}
			if err := enc.Encode(summary{
				UserID:        user,
				Cycle:         n,
				Lines:         lines,
				Balance:       p.Balance.StringFixed(2),
				Reserved:      p.ReservedBalance.StringFixed(2),
				TotalValue:    p.TotalValue().StringFixed(2),
				OpenPositions: len(p.Positions),
				PendingOrders: len(p.PendingOrders),
			}); err != nil {
				return err
			}
		}

		if n == r.Config.Cycles {
			break
		}
		select {
		case <-ctx.Done():
			r.Log.Info("reconcile interrupted")
			return nil
		case <-time.After(r.Config.Interval):
		}
	}
	return nil
}
