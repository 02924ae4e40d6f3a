package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/vietddude/ecosetu/internal/infra/storage"
)

func TestKeyedLocker_SerializesPerKey(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewKeyedLocker()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "T1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("expected at most one holder, saw %d", maxSeen)
	}
	if l.held() != 0 {
		t.Errorf("expected keys to be released, %d left", l.held())
	}
}

func TestKeyedLocker_IndependentKeys(t *testing.T) {
	l := NewKeyedLocker()
	unlockA, err := l.Lock(context.Background(), "A")
	if err != nil {
		t.Fatalf("lock A: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, "B")
	if err != nil {
		t.Fatalf("lock B blocked by A: %v", err)
	}
	unlockB()
}

func TestKeyedLocker_ContextCancel(t *testing.T) {
	l := NewKeyedLocker()
	unlock, _ := l.Lock(context.Background(), "T1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "T1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	unlock()
	unlock() // second call is a no-op
	if l.held() != 0 {
		t.Errorf("expected keys to be released, %d left", l.held())
	}
}

func TestBackoff(t *testing.T) {
	b := Backoff{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, MaxAttempts: 3}

	delays := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for attempt, want := range delays {
		if got := b.GetDelay(attempt); got != want {
			t.Errorf("GetDelay(%d) = %v, want %v", attempt, got, want)
		}
	}

	conflict := errVersionConflictForTest()
	if !b.ShouldRetry(conflict, 0) || !b.ShouldRetry(conflict, 1) {
		t.Error("expected retries before the last attempt")
	}
	if b.ShouldRetry(conflict, 2) {
		t.Error("expected no retry after the last attempt")
	}
	if b.ShouldRetry(errors.New("disk full"), 0) {
		t.Error("expected only version conflicts to be retried")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled wait, got %v", err)
	}
}

func errVersionConflictForTest() error {
	return fmt.Errorf("append: %w", storage.ErrVersionConflict)
}
