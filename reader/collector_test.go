package reader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type stubSource struct {
	name  string
	data  []byte
	err   error
	delay time.Duration

	inFlight *int32
	peak     *int32
	calls    int32
}

func (s *stubSource) Name() string   { return s.name }
func (s *stubSource) Format() string { return "coinbase" }
func (s *stubSource) Symbol() string { return "BTC-USD" }

func (s *stubSource) Fetch(ctx context.Context) ([]byte, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.inFlight != nil {
		n := atomic.AddInt32(s.inFlight, 1)
		defer atomic.AddInt32(s.inFlight, -1)
		for {
			p := atomic.LoadInt32(s.peak)
			if n <= p || atomic.CompareAndSwapInt32(s.peak, p, n) {
				break
			}
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.data, s.err
}

func TestCollectBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	var sources []Source
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		sources = append(sources, &stubSource{
			name:     name,
			data:     []byte(`{}`),
			delay:    20 * time.Millisecond,
			inFlight: &inFlight,
			peak:     &peak,
		})
	}

	snaps := NewCollector(sources, nil, 2).Collect(context.Background())
	if len(snaps) != len(sources) {
		t.Fatalf("got %d snapshots, want %d", len(snaps), len(sources))
	}
	for i, snap := range snaps {
		if snap.Source != sources[i].Name() || snap.Failed() {
			t.Fatalf("snapshot %d = %+v", i, snap)
		}
	}
	if p := atomic.LoadInt32(&peak); p > 2 || p < 1 {
		t.Fatalf("peak concurrency = %d, want at most 2", p)
	}
}

func TestCollectIsolatesFailures(t *testing.T) {
	boom := errors.New("connection reset")
	sources := []Source{
		&stubSource{name: "coinbase", data: []byte(`{"bids":[],"asks":[]}`)},
		&stubSource{name: "gemini", err: boom},
		&stubSource{name: "kraken", data: []byte(`{}`)},
	}

	snaps := NewCollector(sources, nil, 2).Collect(context.Background())
	if snaps[0].Failed() || snaps[2].Failed() {
		t.Fatalf("healthy sources failed: %+v", snaps)
	}
	if !errors.Is(snaps[1].Err, boom) {
		t.Fatalf("gemini error = %v", snaps[1].Err)
	}
	if string(snaps[0].Data) != `{"bids":[],"asks":[]}` {
		t.Fatalf("data not carried: %s", snaps[0].Data)
	}
}

func TestCollectThrottledSourceFails(t *testing.T) {
	th, _ := newTestThrottle(time.Minute)
	src := &stubSource{name: "coinbase", data: []byte(`{}`)}
	c := NewCollector([]Source{src}, th, 2)

	if snaps := c.Collect(context.Background()); snaps[0].Failed() {
		t.Fatalf("first cycle failed: %v", snaps[0].Err)
	}
	snaps := c.Collect(context.Background())
	var limitErr *RateLimitExceededError
	if !errors.As(snaps[0].Err, &limitErr) {
		t.Fatalf("expected throttle error, got %v", snaps[0].Err)
	}
	if atomic.LoadInt32(&src.calls) != 1 {
		t.Fatalf("throttled source was fetched %d times", src.calls)
	}
}

func TestCollectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sources := []Source{
		&stubSource{name: "coinbase", data: []byte(`{}`)},
		&stubSource{name: "gemini", data: []byte(`{}`)},
	}
	snaps := NewCollector(sources, nil, 2).Collect(ctx)
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots", len(snaps))
	}
	for _, snap := range snaps {
		if !errors.Is(snap.Err, context.Canceled) {
			t.Fatalf("%s: expected context.Canceled, got %v", snap.Source, snap.Err)
		}
	}
}

func TestCollectConcurrentCallers(t *testing.T) {
	sources := []Source{&stubSource{name: "a", data: []byte(`{}`)}, &stubSource{name: "b", data: []byte(`{}`)}}
	c := NewCollector(sources, nil, 2)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, snap := range c.Collect(context.Background()) {
				if snap.Failed() {
					t.Errorf("%s failed: %v", snap.Source, snap.Err)
				}
			}
		}()
	}
	wg.Wait()
}
