package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"slotdb"
)

// BenchCommand runs random point operations from several goroutines. Each
// operation toggles a key: a find followed by a delete when the key exists,
// by an insert otherwise. The record lock of the key is held throughout.
type BenchCommand struct {
	Meta
}

func (c *BenchCommand) Help() string {
	helpText := `
Usage: slotdb bench [options]

Options:
` + sharedOptions + `
	-workers=4	Concurrent workers
	-ops=100000	Total operations
	-keys=10000	Key space
	-size=100	Value size in bytes
`
	return strings.TrimSpace(helpText)
}

func (c *BenchCommand) Synopsis() string {
	return "Runs a concurrent point operation benchmark"
}

type benchCounts struct {
	finds, inserts, deletes atomic.Uint64
}

func (c *BenchCommand) Run(args []string) int {
	var workers, ops, size int
	var keys int64
	cmdFlags := c.flagSet("bench")
	cmdFlags.IntVar(&workers, "workers", 4, "workers")
	cmdFlags.IntVar(&ops, "ops", 100000, "operations")
	cmdFlags.Int64Var(&keys, "keys", 10000, "key space")
	cmdFlags.IntVar(&size, "size", 100, "value size")
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}
	if workers < 1 || keys < 1 {
		return c.errorf("-workers and -keys must be positive")
	}
	if size < slotdb.MinValueSize || size > slotdb.MaxValueSize {
		return c.errorf("-size must be %d..%d", slotdb.MinValueSize, slotdb.MaxValueSize)
	}

	s, err := c.open()
	if err != nil {
		return c.errorf("%s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.ShutdownCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		counts benchCounts
		wg     sync.WaitGroup
		errMu  sync.Mutex
		first  error
	)
	began := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(int64(w) + 1))
			for i := w; i < ops; i += workers {
				if err := c.toggle(ctx, s, r.Int63n(keys), size, &counts); err != nil {
					if !errors.Is(err, context.Canceled) {
						errMu.Lock()
						if first == nil {
							first = err
						}
						errMu.Unlock()
					}
					cancel()
					return
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(began)

	pool := s.db.PoolStats()
	err = first
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return c.errorf("%s", err)
	}

	// Every operation starts with a find.
	total := counts.finds.Load()
	out := c.stdout()
	_, _ = fmt.Fprintf(out, "operations  %s in %s (%s ops/s)\n", humanize.Comma(int64(total)),
		elapsed.Round(time.Millisecond), humanize.Comma(int64(float64(total)/elapsed.Seconds())))
	_, _ = fmt.Fprintf(out, "finds       %s\n", humanize.Comma(int64(counts.finds.Load())))
	_, _ = fmt.Fprintf(out, "inserts     %s\n", humanize.Comma(int64(counts.inserts.Load())))
	_, _ = fmt.Fprintf(out, "deletes     %s\n", humanize.Comma(int64(counts.deletes.Load())))
	_, _ = fmt.Fprintf(out, "pool        %s hits, %s misses, %s evictions\n",
		humanize.Comma(int64(pool.Hits)), humanize.Comma(int64(pool.Misses)), humanize.Comma(int64(pool.Evictions)))
	return 0
}

func (c *BenchCommand) toggle(ctx context.Context, s *session, key int64, size int, counts *benchCounts) error {
	l, err := s.db.Locks().Acquire(ctx, s.table, key)
	if err != nil {
		return err
	}
	defer s.db.Locks().Release(l)

	_, err = s.db.Find(s.table, key)
	counts.finds.Add(1)
	switch {
	case err == nil:
		if err := s.db.Delete(s.table, key); err != nil {
			return err
		}
		counts.deletes.Add(1)
	case errors.Is(err, slotdb.ErrKeyNotFound):
		if err := s.db.Insert(s.table, key, generate(key, size)); err != nil {
			return err
		}
		counts.inserts.Add(1)
	default:
		return err
	}
	return nil
}
