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

// Package syscallsetup programs the fast system call registers of a CPU from
// a Profile, and reads them back.
package syscallsetup

import (
	"fmt"
	"strings"

	"gvisor.dev/x86msr/pkg/hostarch"
	"gvisor.dev/x86msr/pkg/log"
	"gvisor.dev/x86msr/pkg/msr"
	"gvisor.dev/x86msr/pkg/x86"
)

// Apply programs the CPU behind acc according to p.
//
// STAR, LSTAR, CSTAR and SFMASK are written before EFER.SCE is set, so
// syscall is never enabled with a half-configured entry path. EFER bits are
// only ever set, never cleared, and reserved EFER bits are preserved.
//
// Precondition: the GDT of the target CPU matches p's selectors and the entry
// points are mapped executable. Neither can be checked here.
func Apply(acc msr.Accessor, p *Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	mask, err := p.Mask()
	if err != nil {
		return err
	}
	b := msr.NewBank(acc)

	sel := p.Selectors()
	log.Debugf("Setting STAR: %v", sel)
	if err := b.Star.Write(sel); err != nil {
		return err
	}

	log.Debugf("Setting LSTAR: %v", hostarch.Addr(p.Entry))
	if err := b.LStar.Write(hostarch.Addr(p.Entry)); err != nil {
		return err
	}

	if p.CompatEntry != 0 {
		log.Debugf("Setting CSTAR: %v", hostarch.Addr(p.CompatEntry))
		if err := b.CStar.Write(hostarch.Addr(p.CompatEntry)); err != nil {
			return err
		}
	}

	log.Debugf("Setting SFMASK: %v", mask)
	if err := b.SFMask.Write(mask); err != nil {
		return err
	}

	if set := p.eferSet(); set != 0 {
		log.Debugf("Setting EFER bits: %v", set)
		if err := b.EFER.UnsafeUpdate(func(f *msr.EFERFlags) {
			*f |= set
		}); err != nil {
			return err
		}
	}
	return nil
}

// State is the fast system call configuration of one CPU.
type State struct {
	EFERRaw      uint64
	EFER         msr.EFERFlags
	SysretBase   uint16
	SyscallBase  uint16
	LStar        hostarch.Addr
	CStar        hostarch.Addr
	SFMask       x86.RFlags
	FSBase       hostarch.Addr
	GSBase       hostarch.Addr
	KernelGSBase hostarch.Addr
}

// Selectors returns the derived STAR selectors, or false if the raw bases are
// too large to derive from.
func (s *State) Selectors() (msr.StarSelectors, bool) {
	if !msr.StarBasesDerivable(s.SysretBase, s.SyscallBase) {
		return msr.StarSelectors{}, false
	}
	return msr.StarSelectorsFromBases(s.SysretBase, s.SyscallBase), true
}

// String implements fmt.Stringer.String.
func (s *State) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "efer:           %#x (%v)\n", s.EFERRaw, s.EFER)
	fmt.Fprintf(&b, "star:           sysret=%#x syscall=%#x\n", s.SysretBase, s.SyscallBase)
	if sel, ok := s.Selectors(); ok {
		fmt.Fprintf(&b, "                %v\n", sel)
	} else {
		fmt.Fprintf(&b, "                (bases overflow selector space)\n")
	}
	fmt.Fprintf(&b, "lstar:          %v\n", s.LStar)
	fmt.Fprintf(&b, "cstar:          %v\n", s.CStar)
	fmt.Fprintf(&b, "sfmask:         %#x (%v)\n", s.SFMask.Bits(), s.SFMask)
	fmt.Fprintf(&b, "fs_base:        %v\n", s.FSBase)
	fmt.Fprintf(&b, "gs_base:        %v\n", s.GSBase)
	fmt.Fprintf(&b, "kernel_gs_base: %v\n", s.KernelGSBase)
	return b.String()
}

// Snapshot reads the fast system call configuration through acc.
func Snapshot(acc msr.Accessor) (*State, error) {
	b := msr.NewBank(acc)
	var (
		s   State
		err error
	)
	if s.EFERRaw, err = b.EFER.ReadRaw(); err != nil {
		return nil, err
	}
	s.EFER = msr.EFERFromBits(s.EFERRaw)
	if s.SysretBase, s.SyscallBase, err = b.Star.ReadRaw(); err != nil {
		return nil, err
	}
	for _, r := range []struct {
		dst *hostarch.Addr
		fn  func() (hostarch.Addr, error)
	}{
		{&s.LStar, b.LStar.Read},
		{&s.CStar, b.CStar.Read},
		{&s.FSBase, b.FSBase.Read},
		{&s.GSBase, b.GSBase.Read},
		{&s.KernelGSBase, b.KernelGSBase.Read},
	} {
		if *r.dst, err = r.fn(); err != nil {
			return nil, err
		}
	}
	if s.SFMask, err = b.SFMask.Read(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Verify checks that the CPU behind acc is configured as p describes. All
// mismatches are reported together.
func Verify(acc msr.Accessor, p *Profile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	s, err := Snapshot(acc)
	if err != nil {
		return err
	}
	mask, err := p.Mask()
	if err != nil {
		return err
	}

	var diffs []string
	if s.SysretBase != p.UserCode32 || s.SyscallBase != p.KernelCode {
		diffs = append(diffs, fmt.Sprintf("star: got (%#x, %#x), want (%#x, %#x)", s.SysretBase, s.SyscallBase, p.UserCode32, p.KernelCode))
	}
	if s.LStar != hostarch.Addr(p.Entry) {
		diffs = append(diffs, fmt.Sprintf("lstar: got %v, want %v", s.LStar, hostarch.Addr(p.Entry)))
	}
	if p.CompatEntry != 0 && s.CStar != hostarch.Addr(p.CompatEntry) {
		diffs = append(diffs, fmt.Sprintf("cstar: got %v, want %v", s.CStar, hostarch.Addr(p.CompatEntry)))
	}
	if s.SFMask != mask {
		diffs = append(diffs, fmt.Sprintf("sfmask: got %v, want %v", s.SFMask, mask))
	}
	if want := p.eferSet(); !s.EFER.Contains(want) {
		diffs = append(diffs, fmt.Sprintf("efer: got %v, want at least %v", s.EFER, want))
	}
	if len(diffs) > 0 {
		return fmt.Errorf("configuration mismatch: %s", strings.Join(diffs, "; "))
	}
	return nil
}
