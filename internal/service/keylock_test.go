package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestKeyLockerSerializesSameKey(t *testing.T) {
	l := NewKeyLocker()
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
			unlock := l.Lock("class:1", "user:2")
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
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
		t.Fatalf("expected exclusive access, saw %d holders at once", maxSeen)
	}
	if n := l.size(); n != 0 {
		t.Fatalf("expected entries to be released, %d left", n)
	}
}

func TestKeyLockerDisjointKeysDoNotBlock(t *testing.T) {
	l := NewKeyLocker()
	unlockA := l.Lock("class:1")
	done := make(chan struct{})
	go func() {
		unlock := l.Lock("class:2", "class:2")
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different key blocked")
	}
	unlockA()
}

func TestKindMapsErrors(t *testing.T) {
	cases := map[error]string{
		ErrNotFound:            "not_found",
		ErrClassFull:           "class_full",
		ErrInsufficientFunds:   "insufficient_funds",
		ErrProviderUnavailable: "provider_unavailable",
	}
	for err, want := range cases {
		if got := Kind(wrap(err)); got != want {
			t.Fatalf("Kind(%v) = %s, want %s", err, got, want)
		}
	}
	if got := Kind(errTest); got != "internal" {
		t.Fatalf("unknown error kind %s", got)
	}
}

var errTest = errors.New("boom")

func wrap(err error) error { return fmt.Errorf("outer: %w", err) }
