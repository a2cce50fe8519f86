package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyDo(t *testing.T) {
	attempts := 0
	targetAttempts := 3

	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 0}
	err := p.Do(context.Background(), nil, func() error {
		attempts++
		if attempts < targetAttempts {
			return errors.New("transient error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do returned unexpected error: %v", err)
	}
	if attempts != targetAttempts {
		t.Errorf("Do called fn %d times, want %d", attempts, targetAttempts)
	}
}

func TestRetryPolicyAllFail(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	p := RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: 0}
	err := p.Do(context.Background(), nil, func() error {
		attempts++
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("Do should return error when all attempts fail")
	}
	if attempts != maxAttempts {
		t.Errorf("Do called fn %d times, want %d", attempts, maxAttempts)
	}
}

func TestRetryPolicyFatalStops(t *testing.T) {
	fatal := errors.New("fatal")
	attempts := 0

	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 0}
	err := p.Do(context.Background(), func(err error) bool { return !errors.Is(err, fatal) }, func() error {
		attempts++
		return fatal
	})

	if !errors.Is(err, fatal) {
		t.Fatalf("Do returned %v, want fatal error", err)
	}
	if attempts != 1 {
		t.Errorf("Do called fn %d times, want 1 (no retry on fatal)", attempts)
	}
}

func TestRetryPolicyBackoffSchedule(t *testing.T) {
	var slept []time.Duration
	p := RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		MaxDelay:    3 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	_ = p.Do(context.Background(), nil, func() error { return errors.New("always") })

	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %d times, want %d", len(slept), len(want))
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestPacerFirstCallImmediate(t *testing.T) {
	p := NewPacer(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("first Wait should not block: %v", err)
	}
}

func TestPacerEnforcesInterval(t *testing.T) {
	now := time.Unix(1000, 0)
	var slept time.Duration

	p := NewPacer(300 * time.Millisecond)
	p.now = func() time.Time { return now }
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		now = now.Add(d)
		return nil
	}

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	p.Done()

	// 100ms of work elapses after the call completes.
	now = now.Add(100 * time.Millisecond)

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if slept != 200*time.Millisecond {
		t.Errorf("second Wait slept %v, want 200ms (interval minus elapsed)", slept)
	}
}

func TestNextDay(t *testing.T) {
	cases := []struct{ in, want string }{
		{"2025-10-30", "2025-10-31"},
		{"2024-02-28", "2024-02-29"},
		{"2024-12-31", "2025-01-01"},
	}
	for _, c := range cases {
		if got := NextDay(c.in); got != c.want {
			t.Errorf("NextDay(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidDate(t *testing.T) {
	if !ValidDate("2025-10-31") {
		t.Error("ValidDate(2025-10-31) = false, want true")
	}
	if ValidDate("20251031") {
		t.Error("ValidDate(20251031) = true, want false")
	}
	if ValidDate("") {
		t.Error("ValidDate(empty) = true, want false")
	}
}
