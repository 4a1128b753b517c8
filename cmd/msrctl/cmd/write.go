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
	"strconv"

	"github.com/google/subcommands"
	"gvisor.dev/x86msr/pkg/log"
	"gvisor.dev/x86msr/pkg/msr"
)

// Write implements subcommands.Command for the "write" command.
type Write struct {
	targetFlags
}

// Name implements subcommands.Command.Name.
func (*Write) Name() string {
	return "write"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Write) Synopsis() string {
	return "write a raw MSR value, bypassing all validation"
}

// Usage implements subcommands.Command.Usage.
func (*Write) Usage() string {
	return `write [flags] <register> <value>

The value is written as is. Writing a bad value to a live register can crash
the host; prefer the star, efer and apply commands, and try -dryrun first.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (w *Write) SetFlags(f *flag.FlagSet) {
	w.setFlags(f)
}

// Execute implements subcommands.Command.Execute.
func (w *Write) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 2 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	reg, err := msr.ParseRegister(f.Arg(0))
	if err != nil {
		return Errorf("%v", err)
	}
	value, err := strconv.ParseUint(f.Arg(1), 0, 64)
	if err != nil {
		return Errorf("invalid value %q: %v", f.Arg(1), err)
	}

	unlock, err := w.lockForWrite()
	if err != nil {
		return Errorf("%v", err)
	}
	defer unlock()

	log.Infof("Writing %v = %#x", reg, value)
	results, err := w.forEach(ctx, func(acc msr.Accessor) (string, error) {
		h := msr.NewHandle(acc, reg)
		if err := h.UnsafeWrite(value); err != nil {
			return "", err
		}
		got, err := h.UnsafeRead()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("  %v = %#016x\n", reg, got), nil
	})
	printResults(results)
	if err != nil {
		return Errorf("write failed: %v", err)
	}
	return subcommands.ExitSuccess
}
