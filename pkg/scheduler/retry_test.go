package scheduler

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestBackoff_Delay(t *testing.T) {
	b := Backoff{
		DefaultRetryAfter: 2 * time.Second,
		TransportBackoff:  time.Second,
		Multiplier:        2,
		Max:               5 * time.Second,
	}

	tests := []struct {
		name     string
		attempt  int
		result   Result
		expected time.Duration
	}{
		{
			name:     "provider hint wins",
			attempt:  1,
			result:   Rejected(nil, 7*time.Second),
			expected: 7 * time.Second,
		},
		{
			name:     "provider hint is not capped",
			attempt:  3,
			result:   Rejected(nil, time.Minute),
			expected: time.Minute,
		},
		{
			name:     "rejection without hint uses default",
			attempt:  1,
			result:   Rejected(nil, 0),
			expected: 2 * time.Second,
		},
		{
			name:     "rejection grows per attempt",
			attempt:  2,
			result:   Rejected(nil, 0),
			expected: 4 * time.Second,
		},
		{
			name:     "rejection capped at max",
			attempt:  3,
			result:   Rejected(nil, 0),
			expected: 5 * time.Second,
		},
		{
			name:     "transport uses transport backoff",
			attempt:  1,
			result:   TransportFailure(errors.New("dial")),
			expected: time.Second,
		},
		{
			name:     "transport second attempt",
			attempt:  2,
			result:   TransportFailure(errors.New("dial")),
			expected: 2 * time.Second,
		},
		{
			name:     "attempt below one treated as first",
			attempt:  0,
			result:   TransportFailure(nil),
			expected: time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Delay(tt.attempt, tt.result)
			if got != tt.expected {
				t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestBackoff_FixedByDefault(t *testing.T) {
	b := DefaultConfig("test").backoff()

	got := b.Schedule(KindRejected, 4)
	for i, d := range got {
		if d != 2*time.Second {
			t.Errorf("delay %d = %v, want fixed 2s", i, d)
		}
	}

	got = b.Schedule(KindTransport, 3)
	if len(got) != 3 {
		t.Fatalf("Schedule returned %d delays, want 3", len(got))
	}
	for i, d := range got {
		if d != 2*time.Second {
			t.Errorf("transport delay %d = %v, want fixed 2s", i, d)
		}
	}
}

func TestBackoff_ScheduleAccumulates(t *testing.T) {
	b := Backoff{DefaultRetryAfter: time.Second, Multiplier: 3, Max: 20 * time.Second, Jitter: 0.5}

	want := []time.Duration{time.Second, 3 * time.Second, 9 * time.Second, 20 * time.Second}
	got := b.Schedule(KindRejected, len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Schedule()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBackoff_JitterBounds(t *testing.T) {
	b := Backoff{DefaultRetryAfter: time.Second, Multiplier: 1, Jitter: 0.2}

	for i := 0; i < 100; i++ {
		d := b.Delay(1, Rejected(nil, 0))
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±20%% of 1s", d)
		}
	}
}

func TestBackoff_UncappedGrowthSaturates(t *testing.T) {
	b := Backoff{DefaultRetryAfter: 2 * time.Second, TransportBackoff: 2 * time.Second, Multiplier: 2}

	prev := time.Duration(0)
	for _, attempt := range []int{1, 33, 34, 40, 64, 100, 5000} {
		d := b.Delay(attempt, TransportFailure(nil))
		if d <= 0 {
			t.Fatalf("Delay(%d) = %v, want positive", attempt, d)
		}
		if d < prev {
			t.Errorf("Delay(%d) = %v, shrank from %v", attempt, d, prev)
		}
		prev = d
	}
	if got := b.Delay(64, TransportFailure(nil)); got != time.Duration(math.MaxInt64) {
		t.Errorf("Delay(64) = %v, want saturation at max duration", got)
	}

	zero := Backoff{Multiplier: 2}
	if got := zero.Delay(5000, Rejected(nil, 0)); got != 0 {
		t.Errorf("Delay with zero base = %v, want 0", got)
	}

	for i, d := range b.Schedule(KindTransport, 70) {
		if d <= 0 {
			t.Fatalf("Schedule()[%d] = %v, want positive", i, d)
		}
	}
}

func TestBackoff_JitterRespectsMax(t *testing.T) {
	b := Backoff{DefaultRetryAfter: time.Second, Multiplier: 1, Max: time.Second, Jitter: 0.5}

	for i := 0; i < 1000; i++ {
		if d := b.Delay(1, Rejected(nil, 0)); d > time.Second {
			t.Fatalf("jittered delay %v exceeds max 1s", d)
		}
	}
}

func TestSleep(t *testing.T) {
	if err := sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleep() = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleep() = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("sleep() did not return promptly on a cancelled context")
	}

	if err := sleep(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("sleep(0) on cancelled context = %v, want context.Canceled", err)
	}
}
