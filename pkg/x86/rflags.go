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

package x86

import (
	"errors"
	"fmt"
	"strings"

	"gvisor.dev/x86msr/pkg/bits"
)

// RFlags is a set of RFLAGS bits.
type RFlags uint64

// RFLAGS bits.
const (
	RFlagsCF   RFlags = 1 << 0
	RFlagsPF   RFlags = 1 << 2
	RFlagsAF   RFlags = 1 << 4
	RFlagsZF   RFlags = 1 << 6
	RFlagsSF   RFlags = 1 << 7
	RFlagsTF   RFlags = 1 << 8
	RFlagsIF   RFlags = 1 << 9
	RFlagsDF   RFlags = 1 << 10
	RFlagsOF   RFlags = 1 << 11
	RFlagsIOPL RFlags = 3 << 12
	RFlagsNT   RFlags = 1 << 14
	RFlagsRF   RFlags = 1 << 16
	RFlagsVM   RFlags = 1 << 17
	RFlagsAC   RFlags = 1 << 18
	RFlagsVIF  RFlags = 1 << 19
	RFlagsVIP  RFlags = 1 << 20
	RFlagsID   RFlags = 1 << 21

	// RFlagsAll is every defined bit. Bit 1 reads as one in RFLAGS but
	// is not a flag and is not part of the set.
	RFlagsAll = RFlagsCF | RFlagsPF | RFlagsAF | RFlagsZF | RFlagsSF |
		RFlagsTF | RFlagsIF | RFlagsDF | RFlagsOF | RFlagsIOPL | RFlagsNT |
		RFlagsRF | RFlagsVM | RFlagsAC | RFlagsVIF | RFlagsVIP | RFlagsID
)

// ErrUnknownFlags is returned when a value contains undefined RFLAGS bits.
var ErrUnknownFlags = errors.New("undefined rflags bits set")

var rflagsNames = []struct {
	flag RFlags
	name string
}{
	{RFlagsCF, "CF"},
	{RFlagsPF, "PF"},
	{RFlagsAF, "AF"},
	{RFlagsZF, "ZF"},
	{RFlagsSF, "SF"},
	{RFlagsTF, "TF"},
	{RFlagsIF, "IF"},
	{RFlagsDF, "DF"},
	{RFlagsOF, "OF"},
	{RFlagsIOPL, "IOPL"},
	{RFlagsNT, "NT"},
	{RFlagsRF, "RF"},
	{RFlagsVM, "VM"},
	{RFlagsAC, "AC"},
	{RFlagsVIF, "VIF"},
	{RFlagsVIP, "VIP"},
	{RFlagsID, "ID"},
}

// RFlagsFromBits converts a raw value to RFlags. Unlike a truncating
// conversion, it fails if v has any bit outside RFlagsAll.
func RFlagsFromBits(v uint64) (RFlags, error) {
	if extra := v &^ uint64(RFlagsAll); extra != 0 {
		return 0, fmt.Errorf("%w: %#x", ErrUnknownFlags, extra)
	}
	return RFlags(v), nil
}

// ParseRFlags returns the flag with the given name, as printed by String.
func ParseRFlags(name string) (RFlags, error) {
	for _, n := range rflagsNames {
		if strings.EqualFold(n.name, name) {
			return n.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown rflags bit %q", name)
}

// Bits returns the raw value.
func (f RFlags) Bits() uint64 {
	return uint64(f)
}

// Contains returns true if all of other is set in f.
func (f RFlags) Contains(other RFlags) bool {
	return bits.IsOn64(uint64(f), uint64(other))
}

// IOPL returns the I/O privilege level field.
func (f RFlags) IOPL() PrivilegeLevel {
	return PrivilegeLevel(bits.Field64(uint64(f), 12, 14))
}

// String implements fmt.Stringer.String.
func (f RFlags) String() string {
	var parts []string
	for _, n := range rflagsNames {
		if bits.IsAnyOn64(uint64(f), uint64(n.flag)) {
			parts = append(parts, n.name)
		}
	}
	if extra := f &^ RFlagsAll; extra != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint64(extra)))
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, "|")
}
