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
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/x86msr/pkg/msr"
)

// Read implements subcommands.Command for the "read" command.
type Read struct {
	targetFlags
}

// Name implements subcommands.Command.Name.
func (*Read) Name() string {
	return "read"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Read) Synopsis() string {
	return "read raw MSR values"
}

// Usage implements subcommands.Command.Usage.
func (*Read) Usage() string {
	return `read [flags] <register>...

Registers are given by name (EFER, STAR, LSTAR, ...) or address (0xc0000080).
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Read) SetFlags(f *flag.FlagSet) {
	r.setFlags(f)
}

// Execute implements subcommands.Command.Execute.
func (r *Read) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	regs, err := parseRegisters(f.Args())
	if err != nil {
		return Errorf("%v", err)
	}

	results, err := r.forEach(ctx, func(acc msr.Accessor) (string, error) {
		var b strings.Builder
		for _, reg := range regs {
			v, err := msr.NewHandle(acc, reg).UnsafeRead()
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "  %v = %#016x\n", reg, v)
		}
		return b.String(), nil
	})
	printResults(results)
	if err != nil {
		return Errorf("read failed: %v", err)
	}
	return subcommands.ExitSuccess
}

func parseRegisters(args []string) ([]msr.Register, error) {
	regs := make([]msr.Register, 0, len(args))
	for _, arg := range args {
		reg, err := msr.ParseRegister(arg)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, nil
}
