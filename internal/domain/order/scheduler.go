package order

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Band is one step of the adaptive polling schedule: poll every Interval
// while elapsed time is below Until.
type Band struct {
	Until    time.Duration
	Interval time.Duration
}

// Schedule is an ordered set of bands. Past the last band the last interval
// keeps applying; the hard deadline is enforced separately.
type Schedule []Band

// DefaultSchedule polls aggressively early in an order's life and backs off
// as the window ages, bounding request volume per order.
var DefaultSchedule = Schedule{
	{Until: 60 * time.Second, Interval: 2 * time.Second},
	{Until: 180 * time.Second, Interval: 3 * time.Second},
	{Until: 300 * time.Second, Interval: 5 * time.Second},
	{Until: 600 * time.Second, Interval: 10 * time.Second},
}

// IntervalAt returns the polling interval for a given elapsed time.
func (s Schedule) IntervalAt(elapsed time.Duration) time.Duration {
	for _, band := range s {
		if elapsed < band.Until {
			return band.Interval
		}
	}
	if len(s) == 0 {
		return 10 * time.Second
	}
	return s[len(s)-1].Interval
}

// Scheduler runs one independently cancellable polling task per active
// order. It holds the order-id -> task mapping explicitly; there are no
// ambient timers.
type Scheduler struct {
	svc      *Service
	provider ProviderClient

	schedule     Schedule
	maxTransient int

	mu    sync.Mutex
	tasks map[uuid.UUID]*pollTask
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(svc *Service, provider ProviderClient, schedule Schedule, maxTransient int) *Scheduler {
	if len(schedule) == 0 {
		schedule = DefaultSchedule
	}
	if maxTransient <= 0 {
		maxTransient = 5
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		svc:          svc,
		provider:     provider,
		schedule:     schedule,
		maxTransient: maxTransient,
		tasks:        make(map[uuid.UUID]*pollTask),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// pollTask identifies one spawned polling goroutine. The entry in the task
// map points at the current task, so a superseded task cleaning up after
// itself cannot remove its replacement.
type pollTask struct {
	cancel context.CancelFunc
}

// Watch spawns the polling task for an order. A second Watch for the same
// order replaces the previous task.
func (s *Scheduler) Watch(o *Order) {
	taskCtx, taskCancel := context.WithCancel(s.ctx)
	t := &pollTask{cancel: taskCancel}

	s.mu.Lock()
	if prev, ok := s.tasks[o.ID]; ok {
		prev.cancel()
	}
	s.tasks[o.ID] = t
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.remove(o.ID, t)
		s.run(taskCtx, o)
	}()

	log.Debug().Str("order_id", o.ID.String()).Msg("polling task started")
}

// CancelTask requests cooperative cancellation: the task observes it within
// one polling interval, never mid-flight.
func (s *Scheduler) CancelTask(orderID uuid.UUID) {
	s.mu.Lock()
	t, ok := s.tasks[orderID]
	s.mu.Unlock()
	if ok {
		t.cancel()
	}
}

// Shutdown stops every task and waits for them to drain.
func (s *Scheduler) Shutdown() {
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("polling scheduler stopped")
}

// ActiveTasks reports how many polling tasks are currently running.
func (s *Scheduler) ActiveTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// SweepPending resumes polling for live pending orders, settles the ones
// whose window already elapsed exactly as if the timeout had fired live, and
// replays settlements that a crash interrupted between the terminal status
// and the refund. Called once at startup; ledger idempotency makes every
// replay safe.
func (s *Scheduler) SweepPending(ctx context.Context) error {
	pending, err := s.svc.repo.ListPending(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	resumed, swept := 0, 0
	for i := range pending {
		o := pending[i]
		if now.After(o.ExpiresAt) {
			if err := s.svc.Settle(ctx, &o, StatusTimeout, "sms timeout"); err != nil {
				log.Error().Err(err).Str("order_id", o.ID.String()).Msg("Failed to settle expired order during sweep")
				continue
			}
			swept++
			continue
		}
		s.Watch(&o)
		resumed++
	}

	unsettled, err := s.svc.repo.ListUnsettled(ctx)
	if err != nil {
		return err
	}

	replayed := 0
	for i := range unsettled {
		o := unsettled[i]
		if err := s.svc.Settle(ctx, &o, o.Status, "settlement replay"); err != nil {
			log.Error().Err(err).Str("order_id", o.ID.String()).Msg("Failed to replay interrupted settlement")
			continue
		}
		replayed++
	}

	if resumed > 0 || swept > 0 || replayed > 0 {
		log.Info().Int("resumed", resumed).Int("swept", swept).Int("replayed", replayed).Msg("pending order sweep finished")
	}
	return nil
}

// remove drops the map entry only when it still belongs to the finishing
// task; a replacement registered under the same order id stays.
func (s *Scheduler) remove(orderID uuid.UUID, t *pollTask) {
	s.mu.Lock()
	if cur, ok := s.tasks[orderID]; ok && cur == t {
		delete(s.tasks, orderID)
	}
	s.mu.Unlock()
	t.cancel()
}

// run is the polling loop for one order. It sleeps on the adaptive interval,
// polls, and reacts to the interpreted status. Transient provider failures
// retry in place up to maxTransient before settling as error; they never
// extend the deadline.
func (s *Scheduler) run(ctx context.Context, o *Order) {
	deadline := o.ExpiresAt
	transient := 0

	for {
		now := time.Now()
		if !now.Before(deadline) {
			s.settle(o, StatusTimeout, "sms timeout")
			return
		}

		interval := s.schedule.IntervalAt(now.Sub(o.CreatedAt))
		if remaining := deadline.Sub(now); interval > remaining {
			interval = remaining
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			// Cancellation or shutdown; any required settlement is
			// driven by the canceller or the restart sweep.
			return
		case <-timer.C:
		}

		result, err := s.provider.Poll(ctx, o.ProviderRef)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			transient++
			log.Warn().Err(err).
				Str("order_id", o.ID.String()).
				Int("failures", transient).
				Msg("provider poll failed")
			if transient >= s.maxTransient {
				s.settle(o, StatusError, "provider unreachable")
				return
			}
			continue
		}
		transient = 0

		status := MapStatusCode(result.Code)
		switch status {
		case ProviderSuccess:
			if err := s.svc.Complete(context.Background(), o, result.SMS); err != nil {
				log.Error().Err(err).Str("order_id", o.ID.String()).Msg("Failed to complete order")
			}
			return

		case ProviderPending, ProviderProcessing:
			// Non-terminal. processing only moves the last-seen marker.
			if err := s.svc.repo.TouchPoll(context.Background(), o.ID, status); err != nil {
				log.Warn().Err(err).Str("order_id", o.ID.String()).Msg("Failed to record poll marker")
			}

		default:
			if terminal, ok := terminalStatusFor(status); ok {
				reason := "provider reported " + string(status)
				s.settle(o, terminal, reason)
				return
			}
		}
	}
}

// settle runs on a fresh context: the task may be finishing precisely
// because its own context is done.
func (s *Scheduler) settle(o *Order, to Status, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.svc.Settle(ctx, o, to, reason); err != nil {
		log.Error().Err(err).
			Str("order_id", o.ID.String()).
			Str("status", string(to)).
			Msg("Failed to settle order")
	}
}
