package room

import (
	"testing"
	"time"
)

func TestManualSchedulerOrdersByDeadline(t *testing.T) {
	clock := NewManualClock(t0)
	s := NewManualScheduler(clock)

	var fired []string
	s.Every(100*time.Millisecond, func() { fired = append(fired, "tick@"+clock.Now().Sub(t0).String()) })
	s.After(250*time.Millisecond, func() { fired = append(fired, "timer@"+clock.Now().Sub(t0).String()) })

	s.Advance(300 * time.Millisecond)
	want := []string{"tick@100ms", "tick@200ms", "timer@250ms", "tick@300ms"}
	if len(fired) != len(want) {
		t.Fatalf("fired %v want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired %v want %v", fired, want)
		}
	}
	if !clock.Now().Equal(t0.Add(300 * time.Millisecond)) {
		t.Fatalf("clock = %v", clock.Now())
	}
	if tickers, timers := s.Pending(); tickers != 1 || timers != 0 {
		t.Fatalf("pending %d/%d", tickers, timers)
	}
}

func TestManualSchedulerCancel(t *testing.T) {
	clock := NewManualClock(t0)
	s := NewManualScheduler(clock)

	n := 0
	var cancel CancelFunc
	cancel = s.Every(10*time.Millisecond, func() {
		n++
		if n == 3 {
			cancel()
		}
	})
	stopTimer := s.After(5*time.Millisecond, func() { t.Fatalf("cancelled timer fired") })
	stopTimer()
	stopTimer()

	s.Advance(time.Second)
	if n != 3 {
		t.Fatalf("ticker fired %d times after cancelling itself on the third", n)
	}
}

func TestTimerSchedulerEvery(t *testing.T) {
	fired := make(chan struct{}, 16)
	cancel := TimerScheduler{}.Every(2*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	defer cancel()

	deadline := time.After(2 * time.Second)
	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-deadline:
			t.Fatalf("ticker fired only %d times", i)
		}
	}
	cancel()
	cancel()
}

func TestTimerSchedulerAfterCancel(t *testing.T) {
	fired := make(chan struct{}, 1)
	cancel := TimerScheduler{}.After(50*time.Millisecond, func() { fired <- struct{}{} })
	cancel()

	select {
	case <-fired:
		t.Fatalf("cancelled timer fired")
	case <-time.After(150 * time.Millisecond):
	}
}
