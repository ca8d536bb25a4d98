package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"slotdb"
)

// Meta holds what every command shares: flags, config and the open table.
type Meta struct {
	ShutdownCh <-chan struct{}

	// Out and Err default to the process streams.
	Out io.Writer
	Err io.Writer

	configPath string
	tablePath  string
}

func (m *Meta) stdout() io.Writer {
	if m.Out != nil {
		return m.Out
	}
	return os.Stdout
}

func (m *Meta) stderr() io.Writer {
	if m.Err != nil {
		return m.Err
	}
	return os.Stderr
}

func (m *Meta) errorf(format string, args ...any) int {
	_, _ = fmt.Fprintf(m.stderr(), "Error: "+format+"\n", args...)
	return 1
}

// flagSet returns a flag set with the shared flags registered.
func (m *Meta) flagSet(name string) *flag.FlagSet {
	cmdFlags := flag.NewFlagSet(name, flag.ContinueOnError)
	cmdFlags.SetOutput(m.stderr())
	cmdFlags.StringVar(&m.configPath, "config", "", "config file")
	cmdFlags.StringVar(&m.tablePath, "table", "", "table file")
	return cmdFlags
}

// session is an open database with the requested table.
type session struct {
	db    *slotdb.DB
	table slotdb.TableID
	flush func()
}

func (s *session) Close() error {
	err := s.db.Close()
	s.flush()
	return err
}

func (m *Meta) open() (*session, error) {
	if m.tablePath == "" {
		return nil, fmt.Errorf("-table is required")
	}
	config, err := loadConfig(m.configPath)
	if err != nil {
		return nil, err
	}

	log, flush := config.Logger(m.stderr(), "table", m.tablePath)
	db, err := slotdb.Open(config.Options(log)...)
	if err != nil {
		flush()
		return nil, err
	}
	tid, err := db.OpenTable(m.tablePath)
	if err != nil {
		_ = db.Close()
		flush()
		return nil, err
	}
	return &session{db: db, table: tid, flush: flush}, nil
}

const sharedOptions = `
	-config=""	Database configuration file (YAML)
	-table=""	Table file, created when missing
`
