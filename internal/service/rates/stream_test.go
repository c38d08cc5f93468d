package rates

import (
	"context"
	"sync"
	"testing"
	"time"

	"FxPilot/pkg/logger"
)

func newTestStream(t *testing.T) *Stream {
	t.Helper()
	qs := New("key", "wss://example.invalid", []string{"OANDA:USD_CNY"},
		time.Second, time.Second, logger.NewNop())
	s, ok := qs.(*Stream)
	if !ok {
		t.Fatalf("New returned %T", qs)
	}
	return s
}

func TestStreamConnectionStateIsConcurrencySafe(t *testing.T) {
	s := newTestStream(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.IsConnected()
				_ = s.current()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Close()
			}
		}()
	}
	wg.Wait()

	if s.IsConnected() {
		t.Fatal("stream should report disconnected after close")
	}
}

func TestStreamSubscribeRequiresConnection(t *testing.T) {
	s := newTestStream(t)
	if err := s.Subscribe(context.Background()); err == nil {
		t.Fatal("expected error when subscribing without a connection")
	}
}
