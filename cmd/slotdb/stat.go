package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"slotdb"
)

// StatCommand prints the size and shape of a table.
type StatCommand struct {
	Meta
}

func (c *StatCommand) Help() string {
	helpText := `
Usage: slotdb stat [options]

Options:
` + sharedOptions
	return strings.TrimSpace(helpText)
}

func (c *StatCommand) Synopsis() string {
	return "Prints table statistics"
}

func (c *StatCommand) Run(args []string) int {
	cmdFlags := c.flagSet("stat")
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}

	s, err := c.open()
	if err != nil {
		return c.errorf("%s", err)
	}
	pages, free, err := s.db.FileStats(s.table)
	var tree slotdb.TreeStats
	if err == nil {
		tree, err = s.db.TreeStats(s.table)
	}
	disk := s.db.DiskStats()
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return c.errorf("%s", err)
	}

	used := pages - 1 - free
	fill := 0.0
	if tree.LeafPages > 0 {
		fill = 100 * float64(tree.UsedBytes) / float64(tree.LeafPages*slotdb.LeafCapacity)
	}

	out := c.stdout()
	_, _ = fmt.Fprintf(out, "file        %s (%s pages)\n", humanize.IBytes(pages*slotdb.PageSize), humanize.Comma(int64(pages)))
	_, _ = fmt.Fprintf(out, "used        %s pages, %s free\n", humanize.Comma(int64(used)), humanize.Comma(int64(free)))
	_, _ = fmt.Fprintf(out, "records     %s\n", humanize.Comma(int64(tree.Records)))
	_, _ = fmt.Fprintf(out, "height      %d\n", tree.Height)
	_, _ = fmt.Fprintf(out, "leaves      %s (%.1f%% full)\n", humanize.Comma(int64(tree.LeafPages)), fill)
	_, _ = fmt.Fprintf(out, "internal    %s\n", humanize.Comma(int64(tree.InternalPages)))
	_, _ = fmt.Fprintf(out, "read        %s\n", humanize.IBytes(disk.Read))
	return 0
}
