// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command irc-xmpp-bridge relays chat between one IRC channel and the XMPP
// contacts subscribed to a bridge account.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aiku/irc-xmpp-bridge/pkg/connector"
	flag "maunium.net/go/mauflag"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const name = "irc-xmpp-bridge"

var (
	configPath     = flag.MakeFull("c", "config", "The path to the config file.", "config.yaml").String()
	generateConfig = flag.MakeFull("e", "generate-example-config", "Print the example config and exit.", "false").Bool()
	version        = flag.MakeFull("v", "version", "Print the version and exit.", "false").Bool()
	wantHelp, _    = flag.MakeHelpFlag()
)

func main() {
	flag.SetHelpTitles(
		name+" - An IRC-XMPP chat bridge.",
		name+" [-hev] [-c <path>]",
	)
	if err := flag.Parse(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		flag.PrintHelp()
		os.Exit(1)
	} else if *wantHelp {
		flag.PrintHelp()
		os.Exit(0)
	} else if *version {
		fmt.Printf("%s %s (commit %s, built %s)\n", name, Tag, Commit, BuildTime)
		os.Exit(0)
	} else if *generateConfig {
		fmt.Print(connector.ExampleConfig)
		os.Exit(0)
	}

	cfg, err := connector.LoadConfig(*configPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(10)
	}
	log, err := cfg.Logger()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(11)
	}
	log.Info().Str("version", Tag).Str("commit", Commit).Msg("Starting " + name)

	b, err := connector.NewBridge(cfg, *log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize bridge")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err = b.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Bridge exited with error")
		stop()
		os.Exit(1)
	}
}
