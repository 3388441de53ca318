// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Command fswatch exposes the fswatch operations (subscribe, scan,
// write-snapshot, get-events-since) as a CLI, one process per invocation
// for the one-shot commands and a long-lived supervised service for
// subscribe.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	_ "github.com/taratatach/parcel-watcher/lib/automaxprocs"
	"github.com/taratatach/parcel-watcher/lib/fswatch"
	"github.com/taratatach/parcel-watcher/lib/logger"
	"github.com/taratatach/parcel-watcher/lib/suturewrap"
)

var l = logger.DefaultLogger.NewFacility("fswatch/cmd", "Command line frontend")

type CLI struct {
	Backend string   `help:"Backend to use: auto, fs-events, inotify, windows, brute-force." default:"auto"`
	Ignore  []string `help:"Absolute paths to ignore (repeatable)."`

	Subscribe subscribeCommand `cmd:"" help:"Watch a directory and print coalesced event batches as they occur."`
	Scan      scanCommand      `cmd:"" help:"Recursively scan a directory and print one create event per entry."`
	Snapshot  snapshotCommand  `cmd:"" help:"Write a snapshot of a directory's current state to a file."`
	Diff      diffCommand      `cmd:"" help:"Compare a directory against a prior snapshot and print the reconciling events."`
}

type cliContext struct {
	opts fswatch.Options
}

func (cli CLI) AfterApply(kongCtx *kong.Context) error {
	kind, err := fswatch.ParseBackendKind(cli.Backend)
	if err != nil {
		return err
	}
	kongCtx.Bind(cliContext{opts: fswatch.Options{Backend: kind, Ignore: cli.Ignore}})
	return nil
}

type subscribeCommand struct {
	Dir string `arg:"" help:"Directory to watch."`
}

func (c *subscribeCommand) Run(cliCtx cliContext) error {
	runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	sup := suturewrap.New("fswatch-subscribe")

	sup.Add(suturewrap.AsService(func(ctx context.Context) error {
		sub, err := fswatch.Subscribe(c.Dir, func(events []fswatch.Event) {
			for _, e := range fswatch.PublicEvents(events) {
				if encErr := enc.Encode(e); encErr != nil {
					l.Warnf("Encoding event: %v", encErr)
				}
			}
		}, func(err error) {
			l.Warnf("Subscription on %s ended: %v", c.Dir, err)
		}, cliCtx.opts)
		if err != nil {
			return &suturewrap.FatalErr{Err: err}
		}

		<-ctx.Done()
		return fswatch.Unsubscribe(sub)
	}))

	return sup.Serve(runCtx)
}

type scanCommand struct {
	Dir string `arg:"" help:"Directory to scan."`
}

func (c *scanCommand) Run(ctx cliContext) error {
	events, err := fswatch.Scan(c.Dir, ctx.opts)
	if err != nil {
		return err
	}
	return printEvents(events)
}

type snapshotCommand struct {
	Dir  string `arg:"" help:"Directory to snapshot."`
	Path string `arg:"" help:"Output snapshot file path."`
}

func (c *snapshotCommand) Run(ctx cliContext) error {
	return fswatch.WriteSnapshot(c.Dir, c.Path, ctx.opts)
}

type diffCommand struct {
	Dir  string `arg:"" help:"Directory to compare."`
	Path string `arg:"" help:"Snapshot file to compare against."`
}

func (c *diffCommand) Run(ctx cliContext) error {
	events, err := fswatch.GetEventsSince(c.Dir, c.Path, ctx.opts)
	if err != nil {
		return err
	}
	return printEvents(events)
}

func printEvents(events []fswatch.Event) error {
	enc := json.NewEncoder(os.Stdout)
	for _, e := range fswatch.PublicEvents(events) {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	var cli CLI
	parser := kong.Must(&cli, kong.Name("fswatch"), kong.Description("Cross-platform recursive filesystem change notifications."))
	kongCtx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := kongCtx.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "fswatch:", err)
		os.Exit(1)
	}
}
