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
	"strings"

	"gvisor.dev/x86msr/pkg/bits"
)

// EFERFlags are the named bits of the Extended Feature Enable Register.
type EFERFlags uint64

// EFER bits.
const (
	// EFERSCE enables the syscall and sysret instructions.
	EFERSCE EFERFlags = 1 << 0
	// EFERLME enables long mode. Requires paging.
	EFERLME EFERFlags = 1 << 8
	// EFERLMA indicates long mode is active. Set by the processor.
	EFERLMA EFERFlags = 1 << 10
	// EFERNXE enables the no-execute page protection bit.
	EFERNXE EFERFlags = 1 << 11
	// EFERSVME enables SVM extensions.
	EFERSVME EFERFlags = 1 << 12
	// EFERLMSLE enables segment limit checks in 64-bit mode.
	EFERLMSLE EFERFlags = 1 << 13
	// EFERFFXSR enables fast fxsave/fxrstor in 64-bit mode.
	EFERFFXSR EFERFlags = 1 << 14
	// EFERTCE changes invlpg handling of upper-level TLB entries.
	EFERTCE EFERFlags = 1 << 15

	// EFERAll is every named bit. The complement is reserved.
	EFERAll = EFERSCE | EFERLME | EFERLMA | EFERNXE | EFERSVME | EFERLMSLE | EFERFFXSR | EFERTCE
)

var eferNames = []struct {
	flag EFERFlags
	name string
}{
	{EFERSCE, "SCE"},
	{EFERLME, "LME"},
	{EFERLMA, "LMA"},
	{EFERNXE, "NXE"},
	{EFERSVME, "SVME"},
	{EFERLMSLE, "LMSLE"},
	{EFERFFXSR, "FFXSR"},
	{EFERTCE, "TCE"},
}

// EFERFromBits returns the named bits of v. Reserved bits are dropped, so
// this never fails on bits added by newer processors.
func EFERFromBits(v uint64) EFERFlags {
	return EFERFlags(v) & EFERAll
}

// ParseEFERFlag returns the flag with the given name, as printed by String.
func ParseEFERFlag(name string) (EFERFlags, error) {
	for _, n := range eferNames {
		if strings.EqualFold(n.name, name) {
			return n.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown efer bit %q", name)
}

// Bits returns the raw value.
func (f EFERFlags) Bits() uint64 {
	return uint64(f)
}

// Contains returns true if all of other is set in f.
func (f EFERFlags) Contains(other EFERFlags) bool {
	return bits.IsOn64(uint64(f), uint64(other))
}

// String implements fmt.Stringer.String.
//
// Reserved bits are printed by position, e.g. "SCE|bit20".
func (f EFERFlags) String() string {
	var parts []string
	bits.ForEachSetBit64(uint64(f), func(i int) {
		flag := EFERFlags(bits.MaskOf64(i))
		for _, n := range eferNames {
			if n.flag == flag {
				parts = append(parts, n.name)
				return
			}
		}
		parts = append(parts, fmt.Sprintf("bit%d", i))
	})
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}

// EFERRegister is the Extended Feature Enable Register.
type EFERRegister struct {
	h Handle
}

// NewEFER returns the EFER reachable through acc.
func NewEFER(acc Accessor) EFERRegister {
	return EFERRegister{h: NewHandle(acc, EFER)}
}

// ReadRaw returns the full register value, reserved bits included.
func (e EFERRegister) ReadRaw() (uint64, error) {
	return e.h.UnsafeRead()
}

// Read returns the named flags. Reserved bits are silently dropped.
func (e EFERRegister) Read() (EFERFlags, error) {
	v, err := e.ReadRaw()
	if err != nil {
		return 0, err
	}
	return EFERFromBits(v), nil
}

// UnsafeWriteRaw stores v unchanged, reserved bits included.
//
// Precondition: v keeps the processor in a mode compatible with the code that
// is executing. Clearing LME or NXE under a running 64-bit kernel is not
// detectable here and is not recoverable.
func (e EFERRegister) UnsafeWriteRaw(v uint64) error {
	return e.h.UnsafeWrite(v)
}

// UnsafeWrite stores flags while preserving the reserved bits currently in
// the register. Bits of flags outside EFERAll are ignored.
//
// Precondition: as for UnsafeWriteRaw. In addition, nothing else may write
// EFER on this CPU between the read and the write.
func (e EFERRegister) UnsafeWrite(flags EFERFlags) error {
	old, err := e.ReadRaw()
	if err != nil {
		return err
	}
	reserved := old &^ uint64(EFERAll)
	return e.UnsafeWriteRaw(reserved | uint64(flags&EFERAll))
}

// UnsafeUpdate reads the current flags, passes them to fn for modification and
// writes the result back with UnsafeWrite. This is the only mutation path
// that keeps reserved bits set by firmware or earlier boot stages intact.
//
// Precondition: as for UnsafeWrite.
func (e EFERRegister) UnsafeUpdate(fn func(*EFERFlags)) error {
	flags, err := e.Read()
	if err != nil {
		return err
	}
	fn(&flags)
	return e.UnsafeWrite(flags)
}
