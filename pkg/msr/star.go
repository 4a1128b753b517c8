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

package msr

import (
	"errors"
	"fmt"
	"math"

	"gvisor.dev/x86msr/pkg/bits"
	"gvisor.dev/x86msr/pkg/x86"
)

// STAR layout. Bits 31:0 hold the legacy-mode sysret EIP, which is unused
// in long mode and always written as zero.
const (
	starSyscallLo = 32
	starSyscallHi = 48
	starSysretLo  = 48
	starSysretHi  = 64
)

// Selector offsets applied by the processor to the STAR bases. These are
// fixed by the architecture: sysret loads CS from base+16 and SS from base+8
// (the 64-bit user segments follow the 32-bit one), syscall loads CS from the
// base and SS from base+8.
const (
	sysretCSOffset  = 16
	sysretSSOffset  = 8
	syscallCSOffset = 0
	syscallSSOffset = 8
)

// Errors returned by StarSelectors.Validate, in the order checked.
var (
	ErrSysretOffset  = errors.New("sysret CS and SS selectors are not offset by 8")
	ErrSyscallOffset = errors.New("syscall CS and SS selectors are not offset by 8")
	ErrSysretRing    = errors.New("sysret SS selector must be a ring 3 selector")
	ErrSyscallRing   = errors.New("syscall SS selector must be a ring 0 selector")
)

// StarSelectors are the four selectors loaded by syscall and sysret.
type StarSelectors struct {
	// SysretCS is loaded into CS by a 64-bit sysret.
	SysretCS x86.Selector
	// SysretSS is loaded into SS by sysret.
	SysretSS x86.Selector
	// SyscallCS is loaded into CS by syscall.
	SyscallCS x86.Selector
	// SyscallSS is loaded into SS by syscall.
	SyscallSS x86.Selector
}

// String implements fmt.Stringer.String.
func (s StarSelectors) String() string {
	return fmt.Sprintf("sysret cs=%v ss=%v, syscall cs=%v ss=%v", s.SysretCS, s.SysretSS, s.SyscallCS, s.SyscallSS)
}

// deriveSelector returns base+offset.
//
// A base this close to the top of the selector space cannot name a real
// descriptor. Rather than wrap silently, this panics.
func deriveSelector(base uint16, offset uint32) x86.Selector {
	v := uint32(base) + offset
	if v > math.MaxUint16 {
		panic(fmt.Sprintf("STAR selector base %#x + %d overflows 16 bits", base, offset))
	}
	return x86.Selector(v)
}

// StarSelectorsFromBases derives the four selectors the processor uses from
// the raw STAR bases.
//
// Precondition: sysretBase <= 0xffef and syscallBase <= 0xfff7; larger
// values panic.
func StarSelectorsFromBases(sysretBase, syscallBase uint16) StarSelectors {
	return StarSelectors{
		SysretCS:  deriveSelector(sysretBase, sysretCSOffset),
		SysretSS:  deriveSelector(sysretBase, sysretSSOffset),
		SyscallCS: deriveSelector(syscallBase, syscallCSOffset),
		SyscallSS: deriveSelector(syscallBase, syscallSSOffset),
	}
}

// StarBasesDerivable reports whether StarSelectorsFromBases can derive
// selectors from the given bases without overflowing.
func StarBasesDerivable(sysretBase, syscallBase uint16) bool {
	return uint32(sysretBase)+sysretCSOffset <= math.MaxUint16 &&
		uint32(syscallBase)+syscallSSOffset <= math.MaxUint16
}

// Validate checks that the selectors can be expressed as STAR bases and carry
// the privilege levels the processor forces on syscall and sysret.
//
// Checks run in a fixed order and the first failure is returned:
// ErrSysretOffset, ErrSyscallOffset, ErrSysretRing, ErrSyscallRing.
func (s StarSelectors) Validate() error {
	// Differences are taken in int so that a selector below its offset
	// fails the check instead of wrapping into agreement.
	sysretCS, sysretSS := int(s.SysretCS), int(s.SysretSS)
	if sysretSS < sysretSSOffset || sysretCS-sysretCSOffset != sysretSS-sysretSSOffset {
		return ErrSysretOffset
	}
	syscallCS, syscallSS := int(s.SyscallCS), int(s.SyscallSS)
	if syscallCS-syscallCSOffset != syscallSS-syscallSSOffset {
		return ErrSyscallOffset
	}
	if s.SysretSS.RPL() != x86.Ring3 {
		return ErrSysretRing
	}
	if s.SyscallSS.RPL() != x86.Ring0 {
		return ErrSyscallRing
	}
	return nil
}

// Bases returns the raw STAR fields for s.
//
// Precondition: s.Validate() == nil.
func (s StarSelectors) Bases() (sysretBase, syscallBase uint16) {
	return uint16(s.SysretSS) - sysretSSOffset, uint16(s.SyscallCS) - syscallCSOffset
}

// StarRegister configures the segment selectors used by syscall and sysret.
type StarRegister struct {
	h Handle
}

// NewStar returns the STAR register reachable through acc.
func NewStar(acc Accessor) StarRegister {
	return StarRegister{h: NewHandle(acc, STAR)}
}

// ReadRaw returns the sysret base (bits 63:48) and the syscall base (bits
// 47:32). The legacy EIP field in bits 31:0 is ignored.
func (s StarRegister) ReadRaw() (sysretBase, syscallBase uint16, err error) {
	v, err := s.h.UnsafeRead()
	if err != nil {
		return 0, 0, err
	}
	sysretBase = uint16(bits.Field64(v, starSysretLo, starSysretHi))
	syscallBase = uint16(bits.Field64(v, starSyscallLo, starSyscallHi))
	return sysretBase, syscallBase, nil
}

// UnsafeWriteRaw stores the two bases. Bits 31:0 are written as zero.
//
// Precondition: the GDT holds, at the derived selectors, descriptors matching
// what syscall and sysret will load. This cannot be checked here; a wrong
// layout corrupts CS/SS on the next system call or return.
func (s StarRegister) UnsafeWriteRaw(sysretBase, syscallBase uint16) error {
	var v uint64
	v = bits.SetField64(v, starSysretLo, starSysretHi, uint64(sysretBase))
	v = bits.SetField64(v, starSyscallLo, starSyscallHi, uint64(syscallBase))
	return s.h.UnsafeWrite(v)
}

// Read returns the selectors derived from the register contents.
//
// This panics if a stored base is so large that a derived selector overflows
// 16 bits (see StarSelectorsFromBases).
func (s StarRegister) Read() (StarSelectors, error) {
	sysretBase, syscallBase, err := s.ReadRaw()
	if err != nil {
		return StarSelectors{}, err
	}
	return StarSelectorsFromBases(sysretBase, syscallBase), nil
}

// Write validates sel and stores the corresponding bases. Nothing is written
// if validation fails.
func (s StarRegister) Write(sel StarSelectors) error {
	if err := sel.Validate(); err != nil {
		return fmt.Errorf("invalid STAR selectors (%v): %w", sel, err)
	}
	sysretBase, syscallBase := sel.Bases()
	return s.UnsafeWriteRaw(sysretBase, syscallBase)
}
