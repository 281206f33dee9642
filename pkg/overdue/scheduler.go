package overdue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"librarysys/pkg/circuitbreaker"
	"librarysys/pkg/circulation"
	"librarysys/pkg/models"
	"librarysys/pkg/queue"
)

const (
	maxRetryAttempts = 5
	retryBackoff     = time.Minute
)

// Sweeper flags overdue borrow records. circulation.Service implements it.
type Sweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
	Refresh(ctx context.Context, recordUid string) (*models.BorrowRecord, error)
}

// Scheduler runs a Sweeper on a cron schedule. Overdue detection still
// happens whenever a record is saved or read; the schedule only catches
// records nobody has touched since they fell due.
//
// Records a sweep could not update are retried on later runs. Sweeps that
// fail outright trip a breaker and are skipped for a while.
type Scheduler struct {
	sweeper  Sweeper
	schedule string
	log      *zap.Logger
	breaker  *circuitbreaker.CircuitBreaker
	retries  *queue.Queue
	now      func() time.Time

	cron       *cron.Cron
	mu         sync.Mutex
	running    bool
	ctx        context.Context
	cancelFunc context.CancelFunc
}

func NewScheduler(sweeper Sweeper, schedule string, log *zap.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		schedule: schedule,
		log:      log,
		breaker:  circuitbreaker.New(3, 10*time.Minute, time.Hour),
		retries:  queue.NewQueue(),
		now:      time.Now,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.ctx, s.cancelFunc = context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.schedule, s.RunOnce); err != nil {
		s.cancelFunc()
		return fmt.Errorf("invalid overdue sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true
	s.log.Info("Overdue sweep scheduler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop waits for a sweep in progress to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.log.Warn("Overdue sweep did not finish before shutdown")
	}
	s.cancelFunc()
	s.running = false
	s.log.Info("Overdue sweep scheduler stopped")
}

// RunOnce performs a single sweep now.
func (s *Scheduler) RunOnce() {
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	err := s.breaker.Execute(func() error {
		s.retryFailed(ctx)

		flagged, err := s.sweeper.SweepOverdue(ctx)
		var sweepErr *circulation.SweepError
		if errors.As(err, &sweepErr) {
			for _, uid := range sweepErr.Failed {
				s.retries.Enqueue(uid, retryBackoff, s.now())
			}
			s.log.Warn("Overdue sweep left records for retry",
				zap.Int("flagged", flagged),
				zap.Strings("failed", sweepErr.Failed),
				zap.Error(sweepErr.Err))
			return nil
		}
		if err != nil {
			return err
		}
		s.log.Debug("Overdue sweep completed", zap.Int("flagged", flagged))
		return nil
	})

	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		s.log.Warn("Overdue sweep skipped while the database keeps failing")
	case err != nil:
		s.log.Error("Overdue sweep failed", zap.Error(err), zap.String("breaker", s.breaker.State().String()))
	}
}

func (s *Scheduler) retryFailed(ctx context.Context) {
	for _, r := range s.retries.Due(s.now()) {
		if _, err := s.sweeper.Refresh(ctx, r.RecordUid); err != nil {
			if r.Attempts >= maxRetryAttempts {
				s.log.Error("Giving up overdue check",
					zap.String("record", r.RecordUid),
					zap.Int("attempts", r.Attempts),
					zap.Error(err))
				continue
			}
			s.retries.Requeue(r, retryBackoff*time.Duration(r.Attempts+1), s.now())
		}
	}
}
