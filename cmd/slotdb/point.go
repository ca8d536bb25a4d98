package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// InsertCommand stores one record.
type InsertCommand struct {
	Meta
}

func (c *InsertCommand) Help() string {
	helpText := `
Usage: slotdb insert [options] KEY VALUE

  Stores VALUE under the integer KEY. VALUE is taken verbatim, or as hex
  when -hex is given.

Options:
` + sharedOptions + `
	-hex	Decode VALUE from hex
`
	return strings.TrimSpace(helpText)
}

func (c *InsertCommand) Synopsis() string {
	return "Inserts a record"
}

func (c *InsertCommand) Run(args []string) int {
	var isHex bool
	cmdFlags := c.flagSet("insert")
	cmdFlags.BoolVar(&isHex, "hex", false, "hex value")
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}
	if cmdFlags.NArg() != 2 {
		return c.errorf("insert takes KEY and VALUE")
	}
	key, err := strconv.ParseInt(cmdFlags.Arg(0), 10, 64)
	if err != nil {
		return c.errorf("bad key: %s", err)
	}
	value := []byte(cmdFlags.Arg(1))
	if isHex {
		if value, err = hex.DecodeString(cmdFlags.Arg(1)); err != nil {
			return c.errorf("bad value: %s", err)
		}
	}

	s, err := c.open()
	if err != nil {
		return c.errorf("%s", err)
	}
	err = s.db.Insert(s.table, key, value)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return c.errorf("%s", err)
	}
	return 0
}

// FindCommand prints one record.
type FindCommand struct {
	Meta
}

func (c *FindCommand) Help() string {
	helpText := `
Usage: slotdb find [options] KEY

  Prints the value stored under KEY.

Options:
` + sharedOptions + `
	-hex	Print the value as hex
`
	return strings.TrimSpace(helpText)
}

func (c *FindCommand) Synopsis() string {
	return "Looks up a record"
}

func (c *FindCommand) Run(args []string) int {
	var isHex bool
	cmdFlags := c.flagSet("find")
	cmdFlags.BoolVar(&isHex, "hex", false, "hex value")
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}
	if cmdFlags.NArg() != 1 {
		return c.errorf("find takes KEY")
	}
	key, err := strconv.ParseInt(cmdFlags.Arg(0), 10, 64)
	if err != nil {
		return c.errorf("bad key: %s", err)
	}

	s, err := c.open()
	if err != nil {
		return c.errorf("%s", err)
	}
	value, err := s.db.Find(s.table, key)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return c.errorf("%s", err)
	}

	if isHex {
		_, _ = fmt.Fprintln(c.stdout(), hex.EncodeToString(value))
	} else {
		_, _ = fmt.Fprintf(c.stdout(), "%s\n", value)
	}
	return 0
}

// DeleteCommand removes one record.
type DeleteCommand struct {
	Meta
}

func (c *DeleteCommand) Help() string {
	helpText := `
Usage: slotdb delete [options] KEY

Options:
` + sharedOptions
	return strings.TrimSpace(helpText)
}

func (c *DeleteCommand) Synopsis() string {
	return "Deletes a record"
}

func (c *DeleteCommand) Run(args []string) int {
	cmdFlags := c.flagSet("delete")
	if err := cmdFlags.Parse(args); err != nil {
		return 1
	}
	if cmdFlags.NArg() != 1 {
		return c.errorf("delete takes KEY")
	}
	key, err := strconv.ParseInt(cmdFlags.Arg(0), 10, 64)
	if err != nil {
		return c.errorf("bad key: %s", err)
	}

	s, err := c.open()
	if err != nil {
		return c.errorf("%s", err)
	}
	err = s.db.Delete(s.table, key)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return c.errorf("%s", err)
	}
	return 0
}
