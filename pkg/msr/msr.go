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

// Package msr provides typed access to the x86-64 model-specific registers
// that configure long mode and the fast system call mechanism.
//
// All register traffic goes through an Accessor, which is the privileged
// channel (rdmsr/wrmsr, /dev/cpu/N/msr, a KVM vCPU, or a simulated store in
// tests). MSRs are per-core state: an Accessor is bound to exactly one CPU.
//
// Operations prefixed with Unsafe cannot check their own preconditions.
// Misusing them (e.g. clearing EFER.LME while executing 64-bit code) corrupts
// system state rather than returning an error. All other operations either
// succeed or return a descriptive, recoverable error.
//
// Nothing in this package locks. Read-modify-write sequences (the EFER update
// path) require the caller to ensure no other context on the same core writes
// the register between the read and the write.
package msr

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnsupported is wrapped by every Accessor when the target does not
// implement the requested register.
var ErrUnsupported = errors.New("msr not supported")

// Register is the address of a model-specific register.
type Register uint32

// Architectural MSR addresses.
const (
	EFER         Register = 0xc0000080
	STAR         Register = 0xc0000081
	LSTAR        Register = 0xc0000082
	CSTAR        Register = 0xc0000083
	SFMASK       Register = 0xc0000084
	FSBase       Register = 0xc0000100
	GSBase       Register = 0xc0000101
	KernelGSBase Register = 0xc0000102
)

var registerNames = map[Register]string{
	EFER:         "efer",
	STAR:         "star",
	LSTAR:        "lstar",
	CSTAR:        "cstar",
	SFMASK:       "sfmask",
	FSBase:       "fs_base",
	GSBase:       "gs_base",
	KernelGSBase: "kernel_gs_base",
}

// String implements fmt.Stringer.String.
func (r Register) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}
	return fmt.Sprintf("msr(%#x)", uint32(r))
}

// ParseRegister accepts either a register name as printed by String, or a
// numeric address (e.g. "0xc0000080").
func ParseRegister(s string) (Register, error) {
	name := strings.ToLower(s)
	for r, n := range registerNames {
		if n == name {
			return r, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("unknown register %q", s)
	}
	return Register(v), nil
}

// KnownRegisters returns all named registers in address order.
func KnownRegisters() []Register {
	rs := make([]Register, 0, len(registerNames))
	for r := range registerNames {
		rs = append(rs, r)
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i] < rs[j] })
	return rs
}

// Accessor is a privileged channel to the MSRs of a single CPU.
//
// Implementations perform the access and nothing more. Errors describe a
// failure of the channel itself (e.g. the device refused the access); the
// value is never interpreted.
type Accessor interface {
	// ReadMSR returns the current 64-bit value of reg.
	ReadMSR(reg Register) (uint64, error)

	// WriteMSR stores value into reg.
	WriteMSR(reg Register, value uint64) error
}

// Handle is a single register on a given channel.
type Handle struct {
	reg Register
	acc Accessor
}

// NewHandle returns a handle for reg on acc.
func NewHandle(acc Accessor, reg Register) Handle {
	return Handle{reg: reg, acc: acc}
}

// Register returns the register address.
func (h Handle) Register() Register {
	return h.reg
}

// UnsafeRead reads the raw register value.
//
// Precondition: the register exists on the target CPU and may be read from
// the current context. Violations fault in hardware and are not reported.
func (h Handle) UnsafeRead() (uint64, error) {
	v, err := h.acc.ReadMSR(h.reg)
	if err != nil {
		return 0, fmt.Errorf("reading %v: %w", h.reg, err)
	}
	return v, nil
}

// UnsafeWrite writes the raw register value, bit for bit.
//
// Precondition: the register exists on the target CPU and value is
// acceptable to it. No validation of any kind is performed.
func (h Handle) UnsafeWrite(value uint64) error {
	if err := h.acc.WriteMSR(h.reg, value); err != nil {
		return fmt.Errorf("writing %#x to %v: %w", value, h.reg, err)
	}
	return nil
}

// Bank groups the typed registers for one CPU.
type Bank struct {
	EFER         EFERRegister
	Star         StarRegister
	LStar        TargetRegister
	CStar        TargetRegister
	SFMask       SFMaskRegister
	FSBase       BaseRegister
	GSBase       BaseRegister
	KernelGSBase BaseRegister
}

// NewBank returns the typed registers reachable through acc.
func NewBank(acc Accessor) *Bank {
	return &Bank{
		EFER:         NewEFER(acc),
		Star:         NewStar(acc),
		LStar:        NewLStar(acc),
		CStar:        NewCStar(acc),
		SFMask:       NewSFMask(acc),
		FSBase:       NewFSBase(acc),
		GSBase:       NewGSBase(acc),
		KernelGSBase: NewKernelGSBase(acc),
	}
}
