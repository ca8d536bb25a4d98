package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/mitchellh/cli"
)

func main() {
	args := os.Args[1:]

	shutdownCh := makeShutdownCh()
	meta := Meta{ShutdownCh: shutdownCh}

	commands := map[string]cli.CommandFactory{
		"insert": func() (cli.Command, error) { return &InsertCommand{Meta: meta}, nil },
		"find":   func() (cli.Command, error) { return &FindCommand{Meta: meta}, nil },
		"delete": func() (cli.Command, error) { return &DeleteCommand{Meta: meta}, nil },
		"load":   func() (cli.Command, error) { return &LoadCommand{Meta: meta}, nil },
		"bench":  func() (cli.Command, error) { return &BenchCommand{Meta: meta}, nil },
		"check":  func() (cli.Command, error) { return &CheckCommand{Meta: meta}, nil },
		"stat":   func() (cli.Command, error) { return &StatCommand{Meta: meta}, nil },
	}

	slotCLI := &cli.CLI{
		Args:     args,
		Commands: commands,
		HelpFunc: cli.BasicHelpFunc("slotdb"),
	}

	exitCode, err := slotCLI.Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}

	os.Exit(exitCode)
}

func makeShutdownCh() <-chan struct{} {
	shutdownCh := make(chan struct{})
	signalCh := make(chan os.Signal, 1)

	signal.Notify(signalCh, os.Interrupt)

	go func() {
		defer close(shutdownCh)
		<-signalCh
	}()

	return shutdownCh
}
