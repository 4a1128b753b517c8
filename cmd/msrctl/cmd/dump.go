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

package cmd

import (
	"context"
	"flag"
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/x86msr/pkg/msr"
	"gvisor.dev/x86msr/pkg/syscallsetup"
)

// Dump implements subcommands.Command for the "dump" command.
type Dump struct {
	targetFlags
}

// Name implements subcommands.Command.Name.
func (*Dump) Name() string {
	return "dump"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Dump) Synopsis() string {
	return "print the fast system call configuration"
}

// Usage implements subcommands.Command.Usage.
func (*Dump) Usage() string {
	return "dump [flags]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (d *Dump) SetFlags(f *flag.FlagSet) {
	d.setFlags(f)
}

// Execute implements subcommands.Command.Execute.
func (d *Dump) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	results, err := d.forEach(ctx, func(acc msr.Accessor) (string, error) {
		s, err := syscallsetup.Snapshot(acc)
		if err != nil {
			return "", err
		}
		return indent(s.String()), nil
	})
	printResults(results)
	if err != nil {
		return Errorf("dump failed: %v", err)
	}
	return subcommands.ExitSuccess
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = "  " + l
		}
	}
	return strings.Join(lines, "")
}
