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
	"gvisor.dev/x86msr/pkg/hostarch"
)

// addrRegister holds a virtual address. Values are not validated in either
// direction; a non-canonical address is stored and returned as is.
type addrRegister struct {
	h Handle
}

func (a addrRegister) read() (hostarch.Addr, error) {
	v, err := a.h.UnsafeRead()
	if err != nil {
		return 0, err
	}
	return hostarch.Addr(v), nil
}

func (a addrRegister) write(addr hostarch.Addr) error {
	return a.h.UnsafeWrite(uint64(addr))
}

// BaseRegister is a segment base pointer: FS.base, GS.base or the
// KernelGSBase value exchanged by swapgs.
type BaseRegister struct {
	addrRegister
}

// NewFSBase returns the FS.base register reachable through acc.
func NewFSBase(acc Accessor) BaseRegister {
	return BaseRegister{addrRegister{NewHandle(acc, FSBase)}}
}

// NewGSBase returns the GS.base register reachable through acc.
func NewGSBase(acc Accessor) BaseRegister {
	return BaseRegister{addrRegister{NewHandle(acc, GSBase)}}
}

// NewKernelGSBase returns the KernelGSBase register reachable through acc.
func NewKernelGSBase(acc Accessor) BaseRegister {
	return BaseRegister{addrRegister{NewHandle(acc, KernelGSBase)}}
}

// Register returns the underlying register address.
func (b BaseRegister) Register() Register {
	return b.h.Register()
}

// Read returns the base address.
func (b BaseRegister) Read() (hostarch.Addr, error) {
	return b.read()
}

// Write sets the base address.
func (b BaseRegister) Write(addr hostarch.Addr) error {
	return b.write(addr)
}

// TargetRegister holds the instruction pointer loaded by syscall: LSTAR for
// 64-bit callers, CSTAR for compatibility mode callers.
type TargetRegister struct {
	addrRegister
}

// NewLStar returns the LSTAR register reachable through acc.
func NewLStar(acc Accessor) TargetRegister {
	return TargetRegister{addrRegister{NewHandle(acc, LSTAR)}}
}

// NewCStar returns the CSTAR register reachable through acc.
func NewCStar(acc Accessor) TargetRegister {
	return TargetRegister{addrRegister{NewHandle(acc, CSTAR)}}
}

// Register returns the underlying register address.
func (t TargetRegister) Register() Register {
	return t.h.Register()
}

// Read returns the syscall entry point.
func (t TargetRegister) Read() (hostarch.Addr, error) {
	return t.read()
}

// Write sets the syscall entry point.
func (t TargetRegister) Write(addr hostarch.Addr) error {
	return t.write(addr)
}
