package sequence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestRedisGeneratorStartsAtOne(t *testing.T) {
	mr, rdb := newTestRedis(t)
	gen := NewRedisGenerator(rdb, "")

	for want := int64(1); want <= 3; want++ {
		got, err := gen.Next(context.Background(), "registrationId")
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}

	raw, err := mr.Get("seq:registrationId")
	if err != nil {
		t.Fatalf("miniredis get: %v", err)
	}
	if raw != "3" {
		t.Fatalf("expected stored value 3, got %q", raw)
	}
}

func TestRedisGeneratorCountersAreIndependent(t *testing.T) {
	_, rdb := newTestRedis(t)
	gen := NewRedisGenerator(rdb, "test")
	ctx := context.Background()

	if _, err := gen.Next(ctx, "a"); err != nil {
		t.Fatalf("Next(a) error: %v", err)
	}
	if _, err := gen.Next(ctx, "a"); err != nil {
		t.Fatalf("Next(a) error: %v", err)
	}
	got, err := gen.Next(ctx, "b")
	if err != nil {
		t.Fatalf("Next(b) error: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected independent counter to start at 1, got %d", got)
	}

	current, err := gen.Current(ctx, "a")
	if err != nil {
		t.Fatalf("Current error: %v", err)
	}
	if current != 2 {
		t.Fatalf("expected current 2, got %d", current)
	}
	current, err = gen.Current(ctx, "never-used")
	if err != nil || current != 0 {
		t.Fatalf("expected 0 for unused counter, got %d err=%v", current, err)
	}
}

func TestRedisGeneratorConcurrentCallsAreContiguous(t *testing.T) {
	_, rdb := newTestRedis(t)
	gen := NewRedisGenerator(rdb, "")
	ctx := context.Background()

	const start = 7
	for i := 0; i < start; i++ {
		if _, err := gen.Next(ctx, "registrationId"); err != nil {
			t.Fatalf("warmup error: %v", err)
		}
	}

	const n = 200
	values := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := gen.Next(ctx, "registrationId")
			if err != nil {
				t.Errorf("Next error: %v", err)
				return
			}
			values[i] = v
		}(i)
	}
	wg.Wait()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		if v != int64(start+i+1) {
			t.Fatalf("expected contiguous set starting at %d, position %d has %d", start+1, i, v)
		}
	}
}

func TestRedisGeneratorStoreUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	gen := NewRedisGenerator(rdb, "")
	mr.Close()

	if _, err := gen.Next(context.Background(), "registrationId"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRedisGeneratorRejectsBadNames(t *testing.T) {
	_, rdb := newTestRedis(t)
	gen := NewRedisGenerator(rdb, "")

	for _, name := range []string{"", "has space", "semi;colon"} {
		if _, err := gen.Next(context.Background(), name); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
}
