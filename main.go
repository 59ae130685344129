// healthchat - a terminal chat client for health information.
//
// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	"github.com/healthchat/healthchat/internal/cli"
	"github.com/healthchat/healthchat/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args, err := cli.ParseArgs(os.Args[1:])
	if err != nil {
		if err == cli.ErrShowUsage {
			fmt.Print(cli.Usage())
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "healthchat: %v\n", err)
		fmt.Fprint(os.Stderr, cli.Usage())
		os.Exit(2)
	}

	if args.ShowVersion {
		fmt.Printf("healthchat %s (%s, built %s)\n", Version, GitCommit, BuildDate)
		os.Exit(0)
	}

	var cfg *config.Config
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "healthchat: %v\n", err)
			os.Exit(1)
		}
		config.SetGlobal(cfg)
	} else {
		cfg = config.Global()
	}

	// Pick up config edits (a newly added API key, say) without a restart.
	// An explicit --config path is pinned, so nothing watches it.
	if args.ConfigPath == "" {
		if watcher, err := config.NewWatcher(nil); err == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			}
		}
	}

	if err := cli.Run(cfg, args); err != nil {
		fmt.Fprintf(os.Stderr, "healthchat: %v\n", err)
		os.Exit(1)
	}
}
