package engage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenhan/heybuddy/internal/bus"
)

const (
	minCheckInterval = 5 * time.Minute
	maxCheckInterval = 30 * time.Minute
)

// DeliverFunc receives a proactive message decided by the endpoint. Delivery
// runs on the scheduler goroutine; implementations should hand off quickly.
type DeliverFunc func(ctx context.Context, message string)

// Scheduler periodically asks the decision endpoint whether the companion
// should reach out unprompted, and delivers the message when it says yes.
type Scheduler struct {
	checker  Checker
	eventBus *bus.EventBus
	deliver  DeliverFunc
	logger   zerolog.Logger

	userID   string
	interval time.Duration

	mu         sync.Mutex
	enabled    bool
	notBefore  time.Time // endpoint cooldown; checks before this are skipped
	cancel     context.CancelFunc
	done       chan struct{}
	lastResult *CheckResult
	checkNowCh chan struct{}
}

// NewScheduler creates a scheduler. The interval is clamped to [5m, 30m].
func NewScheduler(checker Checker, eventBus *bus.EventBus, userID string, interval time.Duration, deliver DeliverFunc, logger zerolog.Logger) *Scheduler {
	if interval < minCheckInterval {
		interval = minCheckInterval
	}
	if interval > maxCheckInterval {
		interval = maxCheckInterval
	}
	return &Scheduler{
		checker:    checker,
		eventBus:   eventBus,
		deliver:    deliver,
		logger:     logger.With().Str("component", "engage").Logger(),
		userID:     userID,
		interval:   interval,
		enabled:    true,
		checkNowCh: make(chan struct{}, 1),
	}
}

// SetEnabled toggles proactive checks. Takes effect on the next cycle; it
// cannot interrupt a check already in flight.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	s.logger.Info().Bool("enabled", enabled).Msg("Proactive engagement toggled")
}

// Enabled reports whether proactive checks are currently on.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// LastResult returns the most recent endpoint decision, or nil.
func (s *Scheduler) LastResult() *CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastResult
}

// CheckNow requests an out-of-band check. The endpoint cooldown still applies.
func (s *Scheduler) CheckNow() {
	select {
	case s.checkNowCh <- struct{}{}:
	default:
	}
}

// Start launches the polling loop. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.logger.Info().Dur("interval", s.interval).Msg("Proactive engagement scheduler started")
	go s.run(loopCtx, done)
}

// Stop halts the polling loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info().Msg("Proactive engagement scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cycle(ctx)
		case <-s.checkNowCh:
			s.cycle(ctx)
		}
	}
}

func (s *Scheduler) cycle(ctx context.Context) {
	s.mu.Lock()
	enabled := s.enabled
	notBefore := s.notBefore
	s.mu.Unlock()

	if !enabled {
		return
	}
	if now := time.Now(); now.Before(notBefore) {
		s.logger.Debug().Time("not_before", notBefore).Msg("Check skipped, endpoint cooldown active")
		return
	}

	result, err := s.checker.Check(ctx, s.userID)
	if err != nil {
		// A failed check is a skipped cycle, not a reason to retry early.
		s.logger.Warn().Err(err).Msg("Proactive check failed")
		return
	}

	s.mu.Lock()
	s.lastResult = result
	if result.NextCheckAfter > 0 {
		s.notBefore = result.CheckedAt.Add(result.NextCheckAfter)
	}
	s.mu.Unlock()

	if !result.ShouldSend || result.Message == "" {
		return
	}

	s.logger.Info().Msg("Delivering proactive message")
	s.eventBus.Publish(bus.Event{
		Type: bus.EventTypeProactiveMessage,
		Data: map[string]any{
			"message":    result.Message,
			"checked_at": result.CheckedAt,
		},
	})
	if s.deliver != nil {
		s.deliver(ctx, result.Message)
	}
}
