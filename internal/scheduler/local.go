package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type alertEntry struct {
	handle    string
	userID    string
	fireAt    time.Time
	cancelled bool
}

type alertQueue []*alertEntry

func (q alertQueue) Len() int            { return len(q) }
func (q alertQueue) Less(i, j int) bool  { return q[i].fireAt.Before(q[j].fireAt) }
func (q alertQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *alertQueue) Push(x any)         { *q = append(*q, x.(*alertEntry)) }
func (q *alertQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[0 : n-1]
	return item
}

// LocalScheduler fires alerts in-process from a timer loop over a min-heap.
// It backs development setups and tests; production deployments select the
// Temporal driver instead. Cancelled entries stay on the heap and are
// skipped when they surface, so Cancel never reshuffles the queue.
type LocalScheduler struct {
	perms   PermissionSource
	deliver DeliveryFunc
	logger  zerolog.Logger

	mu      sync.Mutex
	queue   alertQueue
	live    map[string]*alertEntry
	byUser  map[string]map[string]struct{}
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
}

func NewLocalScheduler(perms PermissionSource, deliver DeliveryFunc, logger zerolog.Logger) *LocalScheduler {
	return &LocalScheduler{
		perms:   perms,
		deliver: deliver,
		logger:  logger.With().Str("component", "local_scheduler").Logger(),
		queue:   make(alertQueue, 0),
		live:    make(map[string]*alertEntry),
		byUser:  make(map[string]map[string]struct{}),
		wakeup:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func (s *LocalScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	heap.Init(&s.queue)
	go s.loop()
}

func (s *LocalScheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()
	<-s.doneCh
}

func (s *LocalScheduler) Schedule(ctx context.Context, req AlertRequest) (string, error) {
	granted, err := s.perms.PermissionGranted(ctx, req.UserID)
	if err != nil {
		return "", ErrSchedulerUnavailable
	}
	if !granted {
		return "", ErrPermissionDenied
	}
	if !req.FireAt.After(time.Now()) {
		return "", ErrInvalidTime
	}

	entry := &alertEntry{
		handle: uuid.NewString(),
		userID: req.UserID,
		fireAt: req.FireAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return "", ErrSchedulerUnavailable
	}
	heap.Push(&s.queue, entry)
	s.live[entry.handle] = entry
	if s.byUser[entry.userID] == nil {
		s.byUser[entry.userID] = make(map[string]struct{})
	}
	s.byUser[entry.userID][entry.handle] = struct{}{}
	s.signalWakeup()
	return entry.handle, nil
}

// Cancel drops a live entry. Unknown, fired or already-cancelled handles are
// a no-op.
func (s *LocalScheduler) Cancel(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(handle)
	return nil
}

func (s *LocalScheduler) CancelAll(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for handle := range s.byUser[userID] {
		s.remove(handle)
	}
	return nil
}

// remove must be called with s.mu held.
func (s *LocalScheduler) remove(handle string) {
	entry, ok := s.live[handle]
	if !ok {
		return
	}
	entry.cancelled = true
	delete(s.live, handle)
	if handles, ok := s.byUser[entry.userID]; ok {
		delete(handles, handle)
		if len(handles) == 0 {
			delete(s.byUser, entry.userID)
		}
	}
}

func (s *LocalScheduler) loop() {
	defer close(s.doneCh)

	var timer *time.Timer
	for {
		next, hasNext := s.peek()
		if !hasNext {
			select {
			case <-s.wakeup:
				continue
			case <-s.stopCh:
				return
			}
		}

		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			for _, handle := range s.popDue(time.Now()) {
				s.logger.Debug().Str("handle", handle).Msg("alert fired")
				go s.deliver(context.Background(), handle)
			}
		case <-s.wakeup:
			continue
		case <-s.stopCh:
			if timer != nil {
				stopTimer(timer)
			}
			return
		}
	}
}

func (s *LocalScheduler) signalWakeup() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

func (s *LocalScheduler) peek() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 && s.queue[0].cancelled {
		heap.Pop(&s.queue)
	}
	if len(s.queue) == 0 {
		return time.Time{}, false
	}
	return s.queue[0].fireAt, true
}

func (s *LocalScheduler) popDue(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []string
	for len(s.queue) > 0 {
		next := s.queue[0]
		if next.cancelled {
			heap.Pop(&s.queue)
			continue
		}
		if next.fireAt.After(now) {
			break
		}
		heap.Pop(&s.queue)
		s.remove(next.handle)
		due = append(due, next.handle)
	}
	return due
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
