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
	"fmt"

	"gvisor.dev/x86msr/pkg/x86"
)

// SFMaskRegister selects the RFLAGS bits cleared on syscall. A set bit in the
// mask clears the corresponding RFLAGS bit; a clear bit leaves it unchanged.
type SFMaskRegister struct {
	h Handle
}

// NewSFMask returns the SFMASK register reachable through acc.
func NewSFMask(acc Accessor) SFMaskRegister {
	return SFMaskRegister{h: NewHandle(acc, SFMASK)}
}

// Read returns the mask.
//
// Unlike EFER, undefined bits are not dropped: they change the flags cleared
// on every subsequent syscall, so a value containing them is reported as an
// error wrapping x86.ErrUnknownFlags.
func (s SFMaskRegister) Read() (x86.RFlags, error) {
	v, err := s.h.UnsafeRead()
	if err != nil {
		return 0, err
	}
	f, err := x86.RFlagsFromBits(v)
	if err != nil {
		return 0, fmt.Errorf("decoding %v value %#x: %w", SFMASK, v, err)
	}
	return f, nil
}

// Write sets the mask.
func (s SFMaskRegister) Write(mask x86.RFlags) error {
	return s.h.UnsafeWrite(mask.Bits())
}
