// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


//go:build linux && amd64
// +build linux,amd64

// Package cli is the main entrypoint for msrctl.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"

	"github.com/google/subcommands"
	"golang.org/x/sys/unix"
	"gvisor.dev/x86msr/cmd/msrctl/cmd"
	"gvisor.dev/x86msr/pkg/log"
)

var (
	debug     = flag.Bool("debug", false, "enable debug logging.")
	logFormat = flag.String("log-format", "text", "log format: text (default) or json.")
	logFile   = flag.String("log", "", "file path where logs are also written, in addition to stderr.")
)

// Main is the main entrypoint.
func Main() {
	forEachCmd(subcommands.Register)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	var e log.Emitter = newEmitter(*logFormat, os.Stderr)
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			cmd.Fatalf("error opening log file %q: %v", *logFile, err)
		}
		e = &log.MultiEmitter{e, newEmitter(*logFormat, f)}
	}
	log.SetTarget(e)
	if *debug {
		log.SetLevel(log.Debug)
	}
	log.Debugf("Args: %s", os.Args)

	// Cancellation only interrupts -wait; register accesses are not
	// interruptible.
	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	code := subcommands.Execute(ctx)
	if code != subcommands.ExitSuccess {
		log.Debugf("Exiting with status: %v", code)
	}
	stop()
	os.Exit(int(code))
}

// forEachCmd invokes the passed callback for each command supported by msrctl.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")

	cb(new(cmd.Dump), "")
	cb(new(cmd.Star), "")
	cb(new(cmd.EFER), "")
	cb(new(cmd.Apply), "")

	const rawGroup = "raw access"
	cb(new(cmd.Read), rawGroup)
	cb(new(cmd.Write), rawGroup)
}

func newEmitter(format string, w io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{Writer: &log.Writer{Next: w}}
	case "json":
		return log.JSONEmitter{Writer: &log.Writer{Next: w}}
	}
	cmd.Fatalf("invalid log format %q, must be 'text' or 'json'", format)
	panic("unreachable")
}
