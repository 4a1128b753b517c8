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

// Package kvmmsr accesses the MSRs of a KVM guest vCPU.
//
// A vCPU is the natural place to program the syscall registers of a guest
// kernel from the host: the values take effect the next time the vCPU runs.
package kvmmsr

import (
	"fmt"

	"gvisor.dev/x86msr/pkg/msr"
)

// KVM ioctls, from linux/kvm.h.
const (
	_KVM_GET_MSRS = 0xc008ae88 // _IOWR(KVMIO, 0x88, struct kvm_msrs)
	_KVM_SET_MSRS = 0x4008ae89 // _IOW(KVMIO, 0x89, struct kvm_msrs)
)

// ErrUnsupported is returned when KVM does not handle the requested MSR.
var ErrUnsupported = fmt.Errorf("kvm: %w", msr.ErrUnsupported)

// modelControlRegister is an MSR entry.
//
// This mirrors kvm_msr_entry.
type modelControlRegister struct {
	index uint32
	_     uint32
	data  uint64
}

// modelControlRegisters is a single-entry MSR transfer.
//
// This mirrors kvm_msrs followed by one kvm_msr_entry.
type modelControlRegisters struct {
	nmsrs   uint32
	_       uint32
	entries [1]modelControlRegister
}

// VCPU is a KVM vCPU file descriptor. It implements msr.Accessor.
//
// The caller owns FD; VCPU never closes it.
type VCPU struct {
	FD int
}

// ReadMSR implements msr.Accessor.ReadMSR.
func (v VCPU) ReadMSR(reg msr.Register) (uint64, error) {
	regs := modelControlRegisters{nmsrs: 1}
	regs.entries[0].index = uint32(reg)
	n, err := v.ioctlMSRs(_KVM_GET_MSRS, &regs)
	if err != nil {
		return 0, fmt.Errorf("KVM_GET_MSRS %v: %w", reg, err)
	}
	if n != 1 {
		return 0, fmt.Errorf("KVM_GET_MSRS %v: %w", reg, ErrUnsupported)
	}
	return regs.entries[0].data, nil
}

// WriteMSR implements msr.Accessor.WriteMSR.
func (v VCPU) WriteMSR(reg msr.Register, value uint64) error {
	regs := modelControlRegisters{nmsrs: 1}
	regs.entries[0].index = uint32(reg)
	regs.entries[0].data = value
	n, err := v.ioctlMSRs(_KVM_SET_MSRS, &regs)
	if err != nil {
		return fmt.Errorf("KVM_SET_MSRS %v=%#x: %w", reg, value, err)
	}
	if n != 1 {
		return fmt.Errorf("KVM_SET_MSRS %v=%#x: %w", reg, value, ErrUnsupported)
	}
	return nil
}
