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
	"gvisor.dev/x86msr/pkg/log"
	"gvisor.dev/x86msr/pkg/msr"
)

// EFER implements subcommands.Command for the "efer" command.
type EFER struct {
	targetFlags

	set   string
	clear string
}

// Name implements subcommands.Command.Name.
func (*EFER) Name() string {
	return "efer"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*EFER) Synopsis() string {
	return "show or update the extended feature enable register"
}

// Usage implements subcommands.Command.Usage.
func (*EFER) Usage() string {
	return `efer [flags]

Prints the EFER flags. -set and -clear take comma separated flag names (SCE,
NXE, ...) and update the register, leaving reserved bits untouched. Clearing
LME or LMA on a running 64-bit system will crash it.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (e *EFER) SetFlags(f *flag.FlagSet) {
	e.setFlags(f)
	f.StringVar(&e.set, "set", "", "comma separated EFER flags to set.")
	f.StringVar(&e.clear, "clear", "", "comma separated EFER flags to clear.")
}

// Execute implements subcommands.Command.Execute.
func (e *EFER) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	set, err := parseEFERFlags(e.set)
	if err != nil {
		return Errorf("%v", err)
	}
	unset, err := parseEFERFlags(e.clear)
	if err != nil {
		return Errorf("%v", err)
	}
	if set&unset != 0 {
		return Errorf("flags %v both set and cleared", set&unset)
	}
	update := set != 0 || unset != 0
	if update {
		log.Infof("Updating EFER: set %v, clear %v", set, unset)
		unlock, err := e.lockForWrite()
		if err != nil {
			return Errorf("%v", err)
		}
		defer unlock()
	}

	results, err := e.forEach(ctx, func(acc msr.Accessor) (string, error) {
		efer := msr.NewEFER(acc)
		if update {
			if err := efer.UnsafeUpdate(func(flags *msr.EFERFlags) {
				*flags = *flags&^unset | set
			}); err != nil {
				return "", err
			}
		}
		raw, err := efer.ReadRaw()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("  %#016x %v\n", raw, msr.EFERFromBits(raw)), nil
	})
	printResults(results)
	if err != nil {
		return Errorf("efer failed: %v", err)
	}
	return subcommands.ExitSuccess
}

func parseEFERFlags(s string) (msr.EFERFlags, error) {
	var flags msr.EFERFlags
	if s == "" {
		return 0, nil
	}
	for _, name := range strings.Split(s, ",") {
		f, err := msr.ParseEFERFlag(strings.TrimSpace(name))
		if err != nil {
			return 0, err
		}
		flags |= f
	}
	return flags, nil
}
