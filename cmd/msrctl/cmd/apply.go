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

	"github.com/google/subcommands"
	"gvisor.dev/x86msr/pkg/log"
	"gvisor.dev/x86msr/pkg/msr"
	"gvisor.dev/x86msr/pkg/syscallsetup"
)

// Apply implements subcommands.Command for the "apply" command.
type Apply struct {
	targetFlags

	profile string
	verify  bool
}

// Name implements subcommands.Command.Name.
func (*Apply) Name() string {
	return "apply"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Apply) Synopsis() string {
	return "program the fast system call registers from a profile"
}

// Usage implements subcommands.Command.Usage.
func (*Apply) Usage() string {
	return `apply -profile <file.toml> [flags]

Programs STAR, LSTAR, CSTAR and SFMASK from the profile, then sets the EFER
bits it enables. The profile is validated before any register is written.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (a *Apply) SetFlags(f *flag.FlagSet) {
	a.setFlags(f)
	f.StringVar(&a.profile, "profile", "", "path to the TOML profile.")
	f.BoolVar(&a.verify, "verify", true, "read the registers back and compare against the profile.")
}

// Execute implements subcommands.Command.Execute.
func (a *Apply) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 || a.profile == "" {
		f.Usage()
		return subcommands.ExitUsageError
	}
	p, err := syscallsetup.LoadProfile(a.profile)
	if err != nil {
		return Errorf("%v", err)
	}
	if err := p.Validate(); err != nil {
		return Errorf("invalid profile %q: %v", a.profile, err)
	}
	unlock, err := a.lockForWrite()
	if err != nil {
		return Errorf("%v", err)
	}
	defer unlock()

	log.Infof("Applying profile %q", a.profile)

	results, err := a.forEach(ctx, func(acc msr.Accessor) (string, error) {
		if err := syscallsetup.Apply(acc, p); err != nil {
			return "", err
		}
		if a.verify {
			if err := syscallsetup.Verify(acc, p); err != nil {
				return "", err
			}
			return "  applied and verified\n", nil
		}
		return "  applied\n", nil
	})
	printResults(results)
	if err != nil {
		return Errorf("apply failed: %v", err)
	}
	return subcommands.ExitSuccess
}
