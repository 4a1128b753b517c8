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
	"strings"

	"github.com/google/subcommands"
	"gvisor.dev/x86msr/pkg/log"
	"gvisor.dev/x86msr/pkg/msr"
	"gvisor.dev/x86msr/pkg/x86"
)

// Star implements subcommands.Command for the "star" command.
type Star struct {
	targetFlags

	// set holds the selectors to program, if any.
	set string
}

// Name implements subcommands.Command.Name.
func (*Star) Name() string {
	return "star"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Star) Synopsis() string {
	return "show or program the syscall/sysret segment selectors"
}

// Usage implements subcommands.Command.Usage.
func (*Star) Usage() string {
	return `star [flags]

Without -set, prints the raw STAR bases and the selectors derived from them.

With -set SYSRET_CS,SYSRET_SS,SYSCALL_CS,SYSCALL_SS, validates the four
selectors and programs the corresponding bases, e.g. -set 0x33,0x2b,0x10,0x18.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Star) SetFlags(f *flag.FlagSet) {
	s.setFlags(f)
	f.StringVar(&s.set, "set", "", "selectors to program: sysret CS, sysret SS, syscall CS, syscall SS.")
}

// Execute implements subcommands.Command.Execute.
func (s *Star) Execute(ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	var sel *msr.StarSelectors
	if s.set != "" {
		parsed, err := parseStarSelectors(s.set)
		if err != nil {
			return Errorf("%v", err)
		}
		// Reject bad selectors before touching any CPU.
		if err := parsed.Validate(); err != nil {
			return Errorf("invalid selectors %v: %v", parsed, err)
		}
		log.Infof("Programming STAR: %v", parsed)
		sel = &parsed

		unlock, err := s.lockForWrite()
		if err != nil {
			return Errorf("%v", err)
		}
		defer unlock()
	}

	results, err := s.forEach(ctx, func(acc msr.Accessor) (string, error) {
		star := msr.NewStar(acc)
		if sel != nil {
			if err := star.Write(*sel); err != nil {
				return "", err
			}
		}
		sysretBase, syscallBase, err := star.ReadRaw()
		if err != nil {
			return "", err
		}
		return formatStar(sysretBase, syscallBase), nil
	})
	printResults(results)
	if err != nil {
		return Errorf("star failed: %v", err)
	}
	return subcommands.ExitSuccess
}

func formatStar(sysretBase, syscallBase uint16) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  bases:     sysret=%#x syscall=%#x\n", sysretBase, syscallBase)
	if !msr.StarBasesDerivable(sysretBase, syscallBase) {
		b.WriteString("  selectors: (bases overflow selector space)\n")
		return b.String()
	}
	sel := msr.StarSelectorsFromBases(sysretBase, syscallBase)
	fmt.Fprintf(&b, "  selectors: %v\n", sel)
	if err := sel.Validate(); err != nil {
		fmt.Fprintf(&b, "  invalid:   %v\n", err)
	}
	return b.String()
}

func parseStarSelectors(s string) (msr.StarSelectors, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return msr.StarSelectors{}, fmt.Errorf("want 4 comma separated selectors, got %q", s)
	}
	var v [4]x86.Selector
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 0, 16)
		if err != nil {
			return msr.StarSelectors{}, fmt.Errorf("invalid selector %q: %w", p, err)
		}
		v[i] = x86.Selector(n)
	}
	return msr.StarSelectors{
		SysretCS:  v[0],
		SysretSS:  v[1],
		SyscallCS: v[2],
		SyscallSS: v[3],
	}, nil
}
