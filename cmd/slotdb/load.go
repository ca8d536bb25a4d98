package main

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"slotdb"
)

// LoadCommand inserts generated records.
type LoadCommand struct {
	Meta
}

func (c *LoadCommand) Help() string {
	helpText := `
Usage: slotdb load [options]

  Inserts -n records with keys starting at -start. Keys that already exist
  are skipped.

Options:
` + sharedOptions + `
	-n=10000	Number of records
	-start=0	First key
	-size=100	Value size in bytes
	-random	Insert keys in random order
	-seed=1	Random seed
`
	return strings.TrimSpace(helpText)
}

func (c *LoadCommand) Synopsis() string {
	return "Inserts generated records"
}

// generate fills a value of size bytes derived from key.
func generate(key int64, size int) []byte {
	v := make([]byte, size)
	r := rand.New(rand.NewSource(key))
	_, _ = r.Read(v)
	return v
}

func (c *LoadCommand) Run(args []string) int {
	var (
		n, size     int
		start, seed int64
		random      bool
	)
	cmdFlags := c.flagSet("load")
	cmdFlags.IntVar(&n, "n", 10000, "records")
	cmdFlags.Int64Var(&start, "start", 0, "first key")
	cmdFlags.IntVar(&size, "size", 100, "value size")
	cmdFlags.BoolVar(&random, "random", false, "random order")
	cmdFlags.Int64Var(&seed, "seed", 1, "seed")
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}
	if size < slotdb.MinValueSize || size > slotdb.MaxValueSize {
		return c.errorf("-size must be %d..%d", slotdb.MinValueSize, slotdb.MaxValueSize)
	}

	keys := make([]int64, n)
	for i := range keys {
		keys[i] = start + int64(i)
	}
	if random {
		rand.New(rand.NewSource(seed)).Shuffle(n, func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	}

	s, err := c.open()
	if err != nil {
		return c.errorf("%s", err)
	}

	began := time.Now()
	var inserted, skipped int
loop:
	for _, k := range keys {
		select {
		case <-c.ShutdownCh:
			break loop
		default:
		}
		err = s.db.Insert(s.table, k, generate(k, size))
		if errors.Is(err, slotdb.ErrDuplicateKey) {
			skipped++
			err = nil
			continue
		}
		if err != nil {
			break
		}
		inserted++
	}
	elapsed := time.Since(began)

	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return c.errorf("%s", err)
	}

	_, _ = fmt.Fprintf(c.stdout(), "inserted %s records (%s skipped) in %s\n",
		humanize.Comma(int64(inserted)), humanize.Comma(int64(skipped)), elapsed.Round(time.Millisecond))
	return 0
}
