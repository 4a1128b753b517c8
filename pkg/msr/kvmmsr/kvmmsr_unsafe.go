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
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctlMSRs issues an MSR transfer ioctl and returns the number of entries
// processed.
func (v VCPU) ioctlMSRs(req uintptr, regs *modelControlRegisters) (int, error) {
	n, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		uintptr(v.FD),
		req,
		uintptr(unsafe.Pointer(regs)))
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}
