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

package kvmmsr

import (
	"errors"
	"os"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
	"gvisor.dev/x86msr/pkg/msr"
)

// ioc computes an ioctl number the way linux/ioctl.h does.
func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | typ<<8 | nr
}

func TestABI(t *testing.T) {
	if got := unsafe.Sizeof(modelControlRegister{}); got != 16 {
		t.Errorf("sizeof(kvm_msr_entry): got %d, want 16", got)
	}
	if got := unsafe.Offsetof(modelControlRegisters{}.entries); got != 8 {
		t.Errorf("offsetof(kvm_msrs.entries): got %d, want 8", got)
	}

	const (
		iocWrite = 1
		iocRead  = 2
		kvmio    = 0xae
		header   = 8 // sizeof(struct kvm_msrs)
	)
	if got, want := uintptr(_KVM_GET_MSRS), ioc(iocRead|iocWrite, kvmio, 0x88, header); got != want {
		t.Errorf("KVM_GET_MSRS: got %#x, want %#x", got, want)
	}
	if got, want := uintptr(_KVM_SET_MSRS), ioc(iocWrite, kvmio, 0x89, header); got != want {
		t.Errorf("KVM_SET_MSRS: got %#x, want %#x", got, want)
	}
}

// TestNotAVCPU checks that a non-KVM descriptor is reported as a channel
// error rather than as a value.
func TestNotAVCPU(t *testing.T) {
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	v := VCPU{FD: int(f.Fd())}
	if _, err := v.ReadMSR(msr.EFER); !errors.Is(err, unix.ENOTTY) {
		t.Errorf("ReadMSR: got %v, want ENOTTY", err)
	}
	if err := v.WriteMSR(msr.EFER, 0); !errors.Is(err, unix.ENOTTY) {
		t.Errorf("WriteMSR: got %v, want ENOTTY", err)
	}
}

func TestErrUnsupported(t *testing.T) {
	if !errors.Is(ErrUnsupported, msr.ErrUnsupported) {
		t.Errorf("%v does not wrap %v", ErrUnsupported, msr.ErrUnsupported)
	}
}
