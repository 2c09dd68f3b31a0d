package room

import (
	"sort"
	"sync"
	"time"
)

// CancelFunc stops a scheduled callback. It is safe to call more than once.
type CancelFunc func()

// Scheduler drives a room's tick loop and its one-shot timers. Callbacks run
// on the scheduler's goroutines; a callback already in flight when cancel is
// called may still run, so rooms guard callbacks with a generation token.
type Scheduler interface {
	Every(d time.Duration, fn func()) CancelFunc
	After(d time.Duration, fn func()) CancelFunc
}

// TimerScheduler is the production scheduler backed by time.Ticker and
// time.AfterFunc.
type TimerScheduler struct{}

func (TimerScheduler) Every(d time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(d)
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return func() { once.Do(func() { close(stop) }) }
}

func (TimerScheduler) After(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

type manualTask struct {
	id       int
	due      time.Time
	interval time.Duration // zero for one-shot timers
	fn       func()
}

// ManualScheduler records tickers and timers and fires them only when the
// test (or tool) advances it. It moves the paired ManualClock as it goes so
// callbacks observe the time they were due at.
type ManualScheduler struct {
	clock *ManualClock

	mu     sync.Mutex
	nextID int
	tasks  map[int]*manualTask
}

func NewManualScheduler(clock *ManualClock) *ManualScheduler {
	return &ManualScheduler{clock: clock, tasks: make(map[int]*manualTask)}
}

func (s *ManualScheduler) Every(d time.Duration, fn func()) CancelFunc {
	return s.add(d, d, fn)
}

func (s *ManualScheduler) After(d time.Duration, fn func()) CancelFunc {
	return s.add(d, 0, fn)
}

func (s *ManualScheduler) add(delay, interval time.Duration, fn func()) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.tasks[id] = &manualTask{id: id, due: s.clock.Now().Add(delay), interval: interval, fn: fn}
	return func() {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
	}
}

// Advance moves the clock forward by d, firing every task that falls due in
// order of its deadline. Repeating tasks are rescheduled after each fire.
func (s *ManualScheduler) Advance(d time.Duration) {
	target := s.clock.Now().Add(d)
	for {
		task, ok := s.nextDue(target)
		if !ok {
			break
		}
		if task.due.After(s.clock.Now()) {
			s.clock.Set(task.due)
		}
		task.fn()
	}
	s.clock.Set(target)
}

// nextDue pops the earliest task due at or before target, rescheduling it if
// it repeats.
func (s *ManualScheduler) nextDue(target time.Time) (manualTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*manualTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		if !t.due.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return manualTask{}, false
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})

	t := due[0]
	fired := *t
	if t.interval > 0 {
		t.due = t.due.Add(t.interval)
	} else {
		delete(s.tasks, t.id)
	}
	return fired, true
}

// Pending counts registered tickers and timers.
func (s *ManualScheduler) Pending() (tickers, timers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.interval > 0 {
			tickers++
		} else {
			timers++
		}
	}
	return tickers, timers
}
