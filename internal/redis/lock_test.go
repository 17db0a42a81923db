package redisclient

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLockKey(t *testing.T) {
	id := uuid.MustParse("7d4f3a5e-0c1b-4c61-9f0e-1a2b3c4d5e6f")
	if got := lockKey(id); got != "lock:doctor:7d4f3a5e-0c1b-4c61-9f0e-1a2b3c4d5e6f" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestLocalLocker_SerializesSameDoctor(t *testing.T) {
	l := NewLocalLocker()
	doctor := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.WithDoctorLock(context.Background(), doctor, func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most one holder at a time, saw %d", maxInside)
	}
}

func TestLocalLocker_DifferentDoctorsDoNotBlock(t *testing.T) {
	l := NewLocalLocker()
	a, b := uuid.New(), uuid.New()

	err := l.WithDoctorLock(context.Background(), a, func(ctx context.Context) error {
		return l.WithDoctorLock(ctx, b, func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLocalLocker_HonoursContext(t *testing.T) {
	l := NewLocalLocker()
	doctor := uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.WithDoctorLock(context.Background(), doctor, func(context.Context) error {
		return l.WithDoctorLock(ctx, doctor, func(context.Context) error { return nil })
	})
	if err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
