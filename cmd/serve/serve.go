package serve

import (
	"papertrader/src/app"
	"papertrader/src/server"

	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
)

// Serve runs the HTTP API with the scheduler registry until SIGINT or SIGTERM.
type Serve struct {
	Log *logger.Entry
}

func (s *Serve) Start() error {
	if s.Log == nil {
		s.Log = logger.WithField("cmd", "serve")
	}

	a, err := app.New(app.LoadConfigs(), prometheus.DefaultRegisterer, s.Log)
	if err != nil {
		s.Log.WithError(err).Error("Failed to wire services")
		return err
	}
	// in-flight cycles finish before the process exits
	defer a.Close()

	return server.StartServer(server.GetConfig(), server.Dependencies{
		Engine:     a.Engine,
		Reconciler: a.Reconciler,
		Scheduler:  a.Scheduler,
		Oracle:     a.Oracle,
		Gatherer:   prometheus.DefaultGatherer,
	})
}
