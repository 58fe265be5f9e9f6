package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"papertrader/src/metrics"
	"papertrader/src/repository"

	"github.com/sirupsen/logrus"
)

type cycleRunner interface {
	Run(ctx context.Context, userID string) (Cycle, error)
}

// Result is returned by the task control operations.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Status struct {
	UserID              string     `json:"user_id"`
	Running             bool       `json:"running"`
	CycleCount          int        `json:"cycle_count"`
	RecentLogs          []string   `json:"recent_logs"`
	Uptime              float64    `json:"uptime_seconds"`
	Degraded            bool       `json:"degraded"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastCycleAt         *time.Time `json:"last_cycle_at,omitempty"`
}

type task struct {
	userID    string
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time

	mu          sync.Mutex
	cycles      int
	failures    int
	lastCycleAt *time.Time
	logs        *logRing
}

// Scheduler runs one reconciliation loop per user. Ticks of the same user
// never overlap, and stopping a user waits for its in-flight tick.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*task

	runner        cycleRunner
	period        time.Duration
	bufferSize    int
	degradedAfter int
	exceptions    exceptionSink
	metrics       *metrics.Metrics
	logger        *logrus.Entry
	now           func() time.Time
}

func New(cfg Config, runner cycleRunner, exceptions exceptionSink, m *metrics.Metrics, logger *logrus.Entry) *Scheduler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.LoopPeriod <= 0 {
		cfg.LoopPeriod = 5 * time.Minute
	}
	if cfg.LogBufferSize <= 0 {
		cfg.LogBufferSize = 50
	}
	if cfg.DegradedAfter <= 0 {
		cfg.DegradedAfter = 3
	}

	return &Scheduler{
		tasks:         make(map[string]*task),
		runner:        runner,
		period:        cfg.LoopPeriod,
		bufferSize:    cfg.LogBufferSize,
		degradedAfter: cfg.DegradedAfter,
		exceptions:    exceptions,
		metrics:       m,
		logger:        logger.WithField("component", "scheduler"),
		now:           time.Now,
	}
}

// Start launches the user's loop. The first tick runs immediately.
func (s *Scheduler) Start(userID string) Result {
	if userID == "" {
		return Result{Success: false, Message: "user id is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[userID]; ok {
		return Result{Success: false, Message: "scheduler already running"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{
		userID:    userID,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: s.now(),
		logs:      newLogRing(s.bufferSize),
	}
	s.tasks[userID] = t
	s.metrics.SchedulerStarted()

	go s.loop(ctx, t)

	s.logger.WithFields(logrus.Fields{"user_id": userID, "period": s.period.String()}).Info("scheduler started")
	return Result{Success: true, Message: fmt.Sprintf("scheduler started, running every %s", s.period)}
}

// Stop cancels the user's loop and blocks until an in-flight tick finishes.
func (s *Scheduler) Stop(userID string) Result {
	s.mu.Lock()
	t, ok := s.tasks[userID]
	if ok {
		delete(s.tasks, userID)
	}
	s.mu.Unlock()

	if !ok {
		return Result{Success: false, Message: "scheduler not running"}
	}

	t.cancel()
	<-t.done
	s.metrics.SchedulerStopped()

	s.logger.WithField("user_id", userID).Info("scheduler stopped")
	return Result{Success: true, Message: "scheduler stopped"}
}

// StopAll stops every running loop and returns the affected users.
func (s *Scheduler) StopAll() []string {
	s.mu.Lock()
	users := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		users = append(users, id)
	}
	s.mu.Unlock()

	sort.Strings(users)
	var wg sync.WaitGroup
	for _, id := range users {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.Stop(id)
		}(id)
	}
	wg.Wait()
	return users
}

func (s *Scheduler) Status(userID string) Status {
	s.mu.Lock()
	t, ok := s.tasks[userID]
	s.mu.Unlock()

	if !ok {
		return Status{UserID: userID, RecentLogs: []string{}}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st := Status{
		UserID:              userID,
		Running:             true,
		CycleCount:          t.cycles,
		RecentLogs:          t.logs.Items(),
		Uptime:              s.now().Sub(t.startedAt).Seconds(),
		Degraded:            t.failures >= s.degradedAfter,
		ConsecutiveFailures: t.failures,
	}
	if t.lastCycleAt != nil {
		at := *t.lastCycleAt
		st.LastCycleAt = &at
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	defer close(t.done)

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	// ticks never see the stop signal; Stop waits for them instead
	tickCtx := context.WithoutCancel(ctx)

	s.tick(tickCtx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.tick(tickCtx, t)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, t *task) {
	started := s.now()
	cycle, err := s.runSafe(ctx, t.userID)
	finished := s.now()

	t.mu.Lock()
	t.cycles++
	n := t.cycles
	t.lastCycleAt = &finished
	stamp := finished.UTC().Format("15:04:05")
	t.logs.Add(fmt.Sprintf("[%s] cycle #%d", stamp, n))
	for _, line := range cycle.Lines {
		t.logs.Add(fmt.Sprintf("[%s] %s", stamp, line))
	}
	if err != nil {
		t.failures++
		t.logs.Add(fmt.Sprintf("[%s] cycle failed: %v", stamp, err))
	} else {
		t.failures = 0
	}
	failures := t.failures
	t.mu.Unlock()

	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	s.metrics.CycleFinished(outcome, finished.Sub(started).Seconds())

	fields := logrus.Fields{
		"user_id": t.userID,
		"cycle":   n,
		"filled":  cycle.Filled,
		"expired": cycle.Expired,
		"closed":  cycle.Closed,
		"placed":  cycle.Placed,
	}
	if err == nil {
		s.logger.WithFields(fields).Info("cycle finished")
		return
	}

	repository.Capture(ctx, s.exceptions, "papertrader", "scheduler", "tick", t.userID, "error", err, map[string]interface{}{
		"cycle":                n,
		"consecutive_failures": failures,
	})
	if failures >= s.degradedAfter {
		s.logger.WithFields(fields).WithField("consecutive_failures", failures).Warn("scheduler degraded")
	}
}

// runSafe turns a panic inside a cycle into an error.
func (s *Scheduler) runSafe(ctx context.Context, userID string) (c Cycle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return s.runner.Run(ctx, userID)
}
