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

// Package x86 provides architectural x86-64 value types: privilege levels,
// segment selectors and the RFLAGS register.
package x86

import (
	"fmt"
)

// PrivilegeLevel is a CPU protection ring.
type PrivilegeLevel uint8

// Privilege levels. Ring0 is the most privileged.
const (
	Ring0 PrivilegeLevel = 0
	Ring1 PrivilegeLevel = 1
	Ring2 PrivilegeLevel = 2
	Ring3 PrivilegeLevel = 3
)

// String implements fmt.Stringer.String.
func (p PrivilegeLevel) String() string {
	switch p {
	case Ring0, Ring1, Ring2, Ring3:
		return fmt.Sprintf("ring%d", uint8(p))
	default:
		return fmt.Sprintf("PrivilegeLevel(%d)", uint8(p))
	}
}

const (
	selectorRPLMask  = 0x3
	selectorTable    = 1 << 2
	selectorIndexPos = 3
)

// Selector is a segment selector.
//
// Bits 1:0 hold the requested privilege level, bit 2 selects the LDT and
// bits 15:3 are the descriptor index.
type Selector uint16

// NewSelector returns the GDT selector for the given descriptor index and
// requested privilege level.
func NewSelector(index uint16, rpl PrivilegeLevel) Selector {
	return Selector(index<<selectorIndexPos | uint16(rpl)&selectorRPLMask)
}

// RPL returns the requested privilege level.
func (s Selector) RPL() PrivilegeLevel {
	return PrivilegeLevel(s & selectorRPLMask)
}

// Index returns the descriptor index.
func (s Selector) Index() uint16 {
	return uint16(s) >> selectorIndexPos
}

// LDT indicates whether the selector references the local descriptor table.
func (s Selector) LDT() bool {
	return s&selectorTable != 0
}

// String implements fmt.Stringer.String.
func (s Selector) String() string {
	table := "gdt"
	if s.LDT() {
		table = "ldt"
	}
	return fmt.Sprintf("%#x(%s[%d] %v)", uint16(s), table, s.Index(), s.RPL())
}
