package retry

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

var errTransient = errors.New("429 resource exhausted")
var errPermanent = errors.New("400 bad request")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

type sleepRecorder struct{ delays []time.Duration }

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func policy(s *sleepRecorder) Policy {
	return Policy{MaxAttempts: 3, InitialDelay: time.Second, Retryable: isTransient, Sleep: s.sleep}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	s := &sleepRecorder{}
	calls := 0
	got, attempts, err := Do(context.Background(), policy(s), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || attempts != 3 {
		t.Errorf("got %q after %d attempts", got, attempts)
	}
	if want := []time.Duration{time.Second, 2 * time.Second}; !reflect.DeepEqual(s.delays, want) {
		t.Errorf("delays = %v, want %v", s.delays, want)
	}
}

func TestDo_PermanentErrorIsNotRetried(t *testing.T) {
	s := &sleepRecorder{}
	calls := 0
	_, attempts, err := Do(context.Background(), policy(s), func(context.Context) (int, error) {
		calls++
		return 0, errPermanent
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 || attempts != 1 || len(s.delays) != 0 {
		t.Errorf("calls=%d attempts=%d delays=%v", calls, attempts, s.delays)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	s := &sleepRecorder{}
	calls := 0
	_, attempts, err := Do(context.Background(), policy(s), func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v", err)
	}
	if calls != 3 || attempts != 3 {
		t.Errorf("calls=%d attempts=%d", calls, attempts)
	}
	if len(s.delays) != 2 {
		t.Errorf("delays = %v", s.delays)
	}
}

func TestDo_OnRetry(t *testing.T) {
	s := &sleepRecorder{}
	p := policy(s)
	var seen []int
	p.OnRetry = func(attempt int, _ time.Duration, _ error) { seen = append(seen, attempt) }
	Do(context.Background(), p, func(context.Context) (int, error) { return 0, errTransient })
	if !reflect.DeepEqual(seen, []int{1, 2}) {
		t.Errorf("OnRetry attempts = %v", seen)
	}
}

func TestDo_CancelledContextStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{MaxAttempts: 3, InitialDelay: time.Hour, Retryable: isTransient}

	calls := 0
	start := time.Now()
	_, _, err := Do(ctx, p, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("Do waited despite cancelled context")
	}
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{InitialDelay: 1000 * time.Millisecond}
	for attempt, want := range map[int]time.Duration{0: time.Second, 1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second} {
		if got := p.Delay(attempt); got != want {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, want)
		}
	}
}
