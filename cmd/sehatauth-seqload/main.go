package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sehatbridge/sehatauth/sequence"
)

func main() {
	var (
		allocations = flag.Int("n", 100000, "number of identifiers to allocate")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		reads       = flag.Int("reads", 50000, "Current calls in the read phase")
		name        = flag.String("name", "registrationId", "sequence name")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "seq", "sequence key prefix")
	)
	flag.Parse()

	if *allocations <= 0 || *concurrency <= 0 || *reads < 0 {
		fmt.Fprintln(os.Stderr, "n and concurrency must be > 0, reads must be >= 0")
		os.Exit(2)
	}
	if err := sequence.ValidateName(*name); err != nil {
		fmt.Fprintf(os.Stderr, "invalid sequence name: %v\n", err)
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	gen := sequence.NewRedisGenerator(client, *prefix)

	base, err := gen.Current(ctx, *name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read starting value failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("sequence %q starts at %d\n", *name, base)

	values, allocStats := runAllocatePhase(ctx, gen, *name, *allocations, *concurrency)
	readStats := runReadPhase(ctx, gen, *name, *reads, *concurrency)

	fmt.Println("---- results ----")
	printStats("next", allocStats)
	if *reads > 0 {
		printStats("current", readStats)
	}

	if err := checkContiguous(values, base); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ok: %d identifiers, exactly %d..%d\n", len(values), base+1, base+int64(len(values)))
}

// checkContiguous verifies values is exactly {base+1 .. base+len(values)}.
func checkContiguous(values []int64, base int64) error {
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, v := range sorted {
		want := base + int64(i) + 1
		if v != want {
			if i > 0 && v == sorted[i-1] {
				return fmt.Errorf("value %d allocated twice", v)
			}
			return fmt.Errorf("expected %d at position %d, got %d", want, i, v)
		}
	}
	return nil
}

func runAllocatePhase(ctx context.Context, gen sequence.Generator, name string, ops, concurrency int) ([]int64, phaseStats) {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		values    = make([]int64, 0, ops)
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				v, err := gen.Next(ctx, name)
				d := time.Since(t0)
				mu.Lock()
				if err != nil {
					failures++
				} else {
					values = append(values, v)
				}
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return values, computeStats(total, latencies, failures)
}

func runReadPhase(ctx context.Context, gen sequence.Generator, name string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := gen.Current(ctx, name)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
