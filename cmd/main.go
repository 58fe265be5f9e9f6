package main

import (
	"fmt"
	"os"
	"strings"

	"papertrader/cmd/reconcile"
	"papertrader/cmd/serve"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	SetupLogger()

	app := cli.NewApp()
	app.Name = "papertrader"
	app.Usage = "Paper trading engine and reconciliation scheduler"
	app.Version = Version

	app.Commands = []cli.Command{
		serveCMD,
		reconcileCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the HTTP API",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve the portfolio, order and scheduler API`,
	}
	reconcileCMD = cli.Command{
		Name:      "reconcile",
		Usage:     "run reconciliation cycles in the foreground",
		Action:    reconcileAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringSliceFlag{
				Name:  "user, u",
				Usage: "user to reconcile, repeatable (default RECONCILE_USERS)",
			},
			cli.IntFlag{
				Name:  "cycles, n",
				Usage: "number of cycles (default RECONCILE_CYCLES)",
			},
		},
		Description: `Run reconciliation cycles against live prices and print the resulting portfolios`,
	}
)

func SetupLogger() {
	level, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func serveAction(_ *cli.Context) error {
	logrus.Info("Starting serve CMD")

	s := &serve.Serve{Log: logrus.WithField("cmd", "serve")}
	if err := s.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func reconcileAction(c *cli.Context) error {
	logrus.Info("Starting reconcile CMD")

	cfg := reconcile.GetConfig()
	if users := c.StringSlice("user"); len(users) > 0 {
		cfg.Users = users
	}
	if n := c.Int("cycles"); n > 0 {
		cfg.Cycles = n
	}

	r := &reconcile.Reconcile{
		Log:    logrus.WithField("cmd", "reconcile"),
		Config: cfg,
	}
	if err := r.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}
