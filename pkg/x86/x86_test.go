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
	"testing"
)

func TestSelector(t *testing.T) {
	for _, tc := range []struct {
		sel   Selector
		index uint16
		rpl   PrivilegeLevel
		ldt   bool
	}{
		{NewSelector(1, Ring0), 1, Ring0, false},
		{NewSelector(3, Ring3), 3, Ring3, false},
		{Selector(0x23), 4, Ring3, false},
		{Selector(0x2b), 5, Ring3, false},
		{Selector(0x0f), 1, Ring3, true},
	} {
		if got := tc.sel.Index(); got != tc.index {
			t.Errorf("%v.Index(): got %d, wanted %d", tc.sel, got, tc.index)
		}
		if got := tc.sel.RPL(); got != tc.rpl {
			t.Errorf("%v.RPL(): got %v, wanted %v", tc.sel, got, tc.rpl)
		}
		if got := tc.sel.LDT(); got != tc.ldt {
			t.Errorf("%v.LDT(): got %t, wanted %t", tc.sel, got, tc.ldt)
		}
	}
}

func TestNewSelectorMasksRPL(t *testing.T) {
	if got, want := NewSelector(2, PrivilegeLevel(7)), Selector(0x13); got != want {
		t.Errorf("NewSelector(2, 7): got %#x, wanted %#x", uint16(got), uint16(want))
	}
}

func TestRFlagsFromBits(t *testing.T) {
	for _, v := range []uint64{
		0,
		uint64(RFlagsIF),
		uint64(RFlagsIF | RFlagsDF | RFlagsTF | RFlagsAC | RFlagsNT | RFlagsIOPL),
		uint64(RFlagsAll),
	} {
		got, err := RFlagsFromBits(v)
		if err != nil {
			t.Errorf("RFlagsFromBits(%#x): unexpected error %v", v, err)
			continue
		}
		if got.Bits() != v {
			t.Errorf("RFlagsFromBits(%#x): got %#x", v, got.Bits())
		}
	}

	for _, v := range []uint64{
		1 << 1,
		1 << 3,
		1 << 22,
		1 << 63,
		uint64(RFlagsIF) | 1<<40,
	} {
		if _, err := RFlagsFromBits(v); !errors.Is(err, ErrUnknownFlags) {
			t.Errorf("RFlagsFromBits(%#x): got err %v, wanted %v", v, err, ErrUnknownFlags)
		}
	}
}

func TestRFlagsString(t *testing.T) {
	for _, tc := range []struct {
		f    RFlags
		want string
	}{
		{0, "0"},
		{RFlagsIF, "IF"},
		{RFlagsTF | RFlagsIF | RFlagsDF, "TF|IF|DF"},
		{RFlagsIF | 1<<40, "IF|0x10000000000"},
	} {
		if got := tc.f.String(); got != tc.want {
			t.Errorf("String(%#x): got %q, wanted %q", uint64(tc.f), got, tc.want)
		}
	}
}

func TestParseRFlags(t *testing.T) {
	f, err := ParseRFlags("iopl")
	if err != nil {
		t.Fatalf("ParseRFlags(iopl): %v", err)
	}
	if f != RFlagsIOPL {
		t.Errorf("ParseRFlags(iopl): got %v, wanted %v", f, RFlagsIOPL)
	}
	if got := (RFlagsIOPL).IOPL(); got != Ring3 {
		t.Errorf("IOPL(): got %v, wanted %v", got, Ring3)
	}
	if _, err := ParseRFlags("bogus"); err == nil {
		t.Errorf("ParseRFlags(bogus): got nil error")
	}
}
