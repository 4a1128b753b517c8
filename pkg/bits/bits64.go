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

// Package bits includes non-atomic bit operations on 64-bit register values.
package bits

import (
	mathbits "math/bits"
)

// IsOn64 returns true if *all* bits set in 'bits' are set in 'mask'.
func IsOn64(mask, bits uint64) bool {
	return mask&bits == bits
}

// IsAnyOn64 returns true if *any* bit set in 'bits' is set in 'mask'.
func IsAnyOn64(mask, bits uint64) bool {
	return mask&bits != 0
}

// Mask64 returns a uint64 with all of the given bits set.
func Mask64(is ...int) uint64 {
	ret := uint64(0)
	for _, i := range is {
		ret |= MaskOf64(i)
	}
	return ret
}

// MaskOf64 is like Mask64, but sets only a single bit (more efficiently).
func MaskOf64(i int) uint64 {
	return uint64(1) << uint64(i)
}

// FieldMask64 returns a mask covering bits [lo, hi).
//
// Precondition: 0 <= lo < hi <= 64.
func FieldMask64(lo, hi int) uint64 {
	width := uint(hi - lo)
	if width >= 64 {
		return ^uint64(0)
	}
	return ((uint64(1) << width) - 1) << uint(lo)
}

// Field64 extracts bits [lo, hi) of v, shifted down to bit 0.
//
// Precondition: 0 <= lo < hi <= 64.
func Field64(v uint64, lo, hi int) uint64 {
	return (v & FieldMask64(lo, hi)) >> uint(lo)
}

// SetField64 returns v with bits [lo, hi) replaced by the low bits of x. Bits
// of x that do not fit in the field are discarded.
//
// Precondition: 0 <= lo < hi <= 64.
func SetField64(v uint64, lo, hi int, x uint64) uint64 {
	m := FieldMask64(lo, hi)
	return (v &^ m) | ((x << uint(lo)) & m)
}

// ForEachSetBit64 calls f for each set bit in x, in ascending order.
func ForEachSetBit64(x uint64, f func(i int)) {
	for x != 0 {
		i := mathbits.TrailingZeros64(x)
		f(i)
		x &^= MaskOf64(i)
	}
}
