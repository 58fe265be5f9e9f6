package handler

import (
	"net/http"
	"time"

	"papertrader/src/scheduler"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

type schedulerControl interface {
	Start(userID string) scheduler.Result
	Stop(userID string) scheduler.Result
	Status(userID string) scheduler.Status
}

func StartSchedulerHandler(sched schedulerControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, sched.Start(user))
	}
}

// StopSchedulerHandler returns once the in-flight cycle, if any, has finished.
func StopSchedulerHandler(sched schedulerControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, sched.Stop(user))
	}
}

func SchedulerStatusHandler(sched schedulerControl) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, sched.Status(user))
	}
}

// SchedulerStreamHandler upgrades to a websocket and pushes the user's
// scheduler status every interval until the client goes away.
func SchedulerStreamHandler(sched schedulerControl, upgrader websocket.Upgrader, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := userFrom(w, r)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.WithError(err).WithField("user_id", user).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		log := logger.WithField("user_id", user)
		log.Debug("status stream opened")

		// the read loop only exists to notice the client closing
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(sched.Status(user)); err != nil {
				log.WithError(err).Debug("status stream write failed")
				return
			}

			select {
			case <-closed:
				log.Debug("status stream closed by client")
				return
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}
		}
	}
}
