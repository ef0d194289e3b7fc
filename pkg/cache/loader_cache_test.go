package cache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func identity(s string) string { return s }

func TestNew_rejects_non_positive_size(t *testing.T) {
	if _, err := New[string, int](0, 0, identity); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("err = %v, want ErrInvalidSize", err)
	}
}

func TestLoad_miss_then_hit(t *testing.T) {
	var loads atomic.Int32

	c, err := New[string, string](10, 0, identity)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	v, outcome, err := c.Load(ctx, "a", load)
	if err != nil {
		t.Fatal(err)
	}

	if outcome != Loaded || v != "v-a" {
		t.Fatalf("first load: got (%q, %s)", v, outcome)
	}

	v, outcome, err = c.Load(ctx, "a", load)
	if err != nil {
		t.Fatal(err)
	}

	if outcome != Hit || v != "v-a" {
		t.Fatalf("second load: got (%q, %s)", v, outcome)
	}

	if loads.Load() != 1 {
		t.Errorf("loader ran %d times, want 1", loads.Load())
	}

	if s := c.Stats(); s.Hits != 1 || s.Loads != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestLoad_errors_are_not_cached(t *testing.T) {
	c, err := New[string, int](10, 0, identity)
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	calls := 0
	load := func(context.Context, string) (int, error) {
		calls++
		if calls == 1 {
			return 0, boom
		}

		return 7, nil
	}

	if _, _, err := c.Load(context.Background(), "k", load); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	if c.Len() != 0 {
		t.Fatalf("failed load was cached")
	}

	v, outcome, err := c.Load(context.Background(), "k", load)
	if err != nil || v != 7 || outcome != Loaded {
		t.Fatalf("retry: got (%d, %s, %v)", v, outcome, err)
	}

	if c.Stats().Errors != 1 {
		t.Errorf("errors = %d, want 1", c.Stats().Errors)
	}
}

func TestLoad_coalesces_concurrent_misses(t *testing.T) {
	c, err := New[int, string](10, 0, strconv.Itoa)
	if err != nil {
		t.Fatal(err)
	}

	var loads atomic.Int32

	release := make(chan struct{})
	load := func(_ context.Context, k int) (string, error) {
		loads.Add(1)
		<-release

		return strconv.Itoa(k * 2), nil
	}

	const callers = 8

	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		results [callers]string
	)

	started.Add(callers)

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			started.Done()

			v, _, err := c.Load(context.Background(), 21, load)
			if err != nil {
				t.Error(err)
			}

			results[i] = v
		}()
	}

	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := loads.Load(); n < 1 || n > callers {
		t.Fatalf("loads = %d", n)
	}

	for i, v := range results {
		if v != "42" {
			t.Errorf("caller %d got %q", i, v)
		}
	}

	if v, outcome, _ := c.Load(context.Background(), 21, load); outcome != Hit || v != "42" {
		t.Errorf("after flight got (%q, %s), want (42, hit)", v, outcome)
	}
}

func TestCache_evicts_least_recent(t *testing.T) {
	c, err := New[string, int](2, 0, identity)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, k string) (int, error) { return len(k), nil }

	_, _, _ = c.Load(ctx, "a", load)
	_, _, _ = c.Load(ctx, "bb", load)
	_, _, _ = c.Load(ctx, "a", load)
	_, _, _ = c.Load(ctx, "ccc", load)

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}

	if _, outcome, _ := c.Load(ctx, "a", load); outcome != Hit {
		t.Errorf("a: outcome %s, want hit", outcome)
	}

	if _, outcome, _ := c.Load(ctx, "bb", load); outcome != Loaded {
		t.Errorf("bb: outcome %s, want loaded after eviction", outcome)
	}
}

func TestCache_expires_entries(t *testing.T) {
	c, err := New[string, int](4, 30*time.Millisecond, identity)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	var loads atomic.Int32

	load := func(context.Context, string) (int, error) {
		return int(loads.Add(1)), nil
	}

	_, _, _ = c.Load(ctx, "k", load)

	time.Sleep(80 * time.Millisecond)

	v, outcome, err := c.Load(ctx, "k", load)
	if err != nil {
		t.Fatal(err)
	}

	if outcome != Loaded || v != 2 {
		t.Errorf("after expiry got (%d, %s), want (2, loaded)", v, outcome)
	}
}

func TestLoad_caller_cancel_does_not_fail_waiters(t *testing.T) {
	c, err := New[string, string](4, 0, identity)
	if err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	release := make(chan struct{})

	var loadErr atomic.Value

	load := func(ctx context.Context, k string) (string, error) {
		close(started)
		<-release

		if ctx.Err() != nil {
			loadErr.Store(ctx.Err())
		}

		return "v-" + k, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)

	go func() {
		_, _, err := c.Load(firstCtx, "k", load)
		firstErr <- err
	}()

	<-started

	type result struct {
		v       string
		outcome Outcome
		err     error
	}

	second := make(chan result, 1)

	go func() {
		v, outcome, err := c.Load(context.Background(), "k", load)
		second <- result{v, outcome, err}
	}()

	// Let the second caller join the flight before the first gives up.
	time.Sleep(20 * time.Millisecond)
	cancelFirst()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("first caller err = %v, want context.Canceled", err)
	}

	close(release)

	got := <-second
	if got.err != nil || got.v != "v-k" || got.outcome != Shared {
		t.Fatalf("second caller got (%q, %s, %v), want (v-k, shared, nil)", got.v, got.outcome, got.err)
	}

	if v := loadErr.Load(); v != nil {
		t.Errorf("load context was cancelled: %v", v)
	}

	if _, outcome, _ := c.Load(context.Background(), "k", load); outcome != Hit {
		t.Errorf("value not cached, outcome %s", outcome)
	}
}

func TestLoad_timeout_bounds_load(t *testing.T) {
	c, err := New[string, int](4, 0, identity, WithLoadTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	load := func(ctx context.Context, _ string) (int, error) {
		<-ctx.Done()

		return 0, ctx.Err()
	}

	if _, _, err := c.Load(context.Background(), "slow", load); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestOutcome_String(t *testing.T) {
	for o, want := range map[Outcome]string{Hit: "hit", Loaded: "loaded", Shared: "shared", Outcome(9): "unknown"} {
		if o.String() != want {
			t.Errorf("%d.String() = %q, want %q", o, o.String(), want)
		}
	}
}

func TestStats_LogValue(t *testing.T) {
	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("cache", "stats", Stats{Hits: 3, Loads: 2, Shared: 1})

	out := buf.String()
	for _, want := range []string{"stats.hits=3", "stats.loads=2", "stats.shared=1", "stats.errors=0"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %q", out, want)
		}
	}
}
