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

package msr_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/x86msr/pkg/msr"
	"gvisor.dev/x86msr/pkg/msr/msrtest"
	"gvisor.dev/x86msr/pkg/x86"
)

func TestStarRawRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		sysret, syscall uint16
		derivable       bool
	}{
		{0, 0, true},
		{27, 8, true},
		{0x1b, 0x08, true},
		{0xffff, 0, false},
		{0, 0xffff, false},
		{0xffff, 0xffff, false},
		{0x1234, 0xabcd, true},
		{0xffef, 0xfff7, true},
		{0xfff0, 0xfff7, false},
		{0xffef, 0xfff8, false},
	} {
		if got := msr.StarBasesDerivable(tc.sysret, tc.syscall); got != tc.derivable {
			t.Errorf("StarBasesDerivable(%#x, %#x): got %t, want %t", tc.sysret, tc.syscall, got, tc.derivable)
		}
		s := msrtest.NewStore(nil)
		star := msr.NewStar(s)
		if err := star.UnsafeWriteRaw(tc.sysret, tc.syscall); err != nil {
			t.Fatalf("UnsafeWriteRaw(%#x, %#x): %v", tc.sysret, tc.syscall, err)
		}
		sysret, syscall, err := star.ReadRaw()
		if err != nil {
			t.Fatalf("ReadRaw: %v", err)
		}
		if sysret != tc.sysret || syscall != tc.syscall {
			t.Errorf("ReadRaw after UnsafeWriteRaw(%#x, %#x): got (%#x, %#x)", tc.sysret, tc.syscall, sysret, syscall)
		}
		if got := s.Value(msr.STAR) & 0xffffffff; got != 0 {
			t.Errorf("UnsafeWriteRaw(%#x, %#x): low 32 bits = %#x, want 0", tc.sysret, tc.syscall, got)
		}
	}
}

func TestStarRawLayout(t *testing.T) {
	s := msrtest.NewStore(map[msr.Register]uint64{
		msr.STAR: 0x001b0008deadbeef,
	})
	sysret, syscall, err := msr.NewStar(s).ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if sysret != 0x1b || syscall != 0x08 {
		t.Errorf("ReadRaw: got (%#x, %#x), want (0x1b, 0x8)", sysret, syscall)
	}
}

func TestStarWrite(t *testing.T) {
	s := msrtest.NewStore(nil)
	star := msr.NewStar(s)
	want := msr.StarSelectors{
		SysretCS:  43,
		SysretSS:  35,
		SyscallCS: 8,
		SyscallSS: 16,
	}
	if err := star.Write(want); err != nil {
		t.Fatalf("Write(%v): %v", want, err)
	}

	sysret, syscall, err := star.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if sysret != 27 || syscall != 8 {
		t.Errorf("ReadRaw: got (%d, %d), want (27, 8)", sysret, syscall)
	}

	got, err := star.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Read mismatch (-want +got):\n%s", diff)
	}

	if got, want := s.Value(msr.STAR), uint64(27)<<48|uint64(8)<<32; got != want {
		t.Errorf("raw STAR: got %#x, want %#x", got, want)
	}
}

// TestStarWriteRoundTrip covers every valid quadruple reachable from the
// usual GDT layouts.
func TestStarWriteRoundTrip(t *testing.T) {
	for kernelIndex := uint16(1); kernelIndex < 16; kernelIndex++ {
		for userIndex := uint16(1); userIndex < 16; userIndex++ {
			kcode := x86.NewSelector(kernelIndex, x86.Ring0)
			ucode32 := x86.NewSelector(userIndex, x86.Ring3)
			want := msr.StarSelectors{
				SysretCS:  ucode32 + 16,
				SysretSS:  ucode32 + 8,
				SyscallCS: kcode,
				SyscallSS: kcode + 8,
			}
			star := msr.NewStar(msrtest.NewStore(nil))
			if err := star.Write(want); err != nil {
				t.Fatalf("Write(%v): %v", want, err)
			}
			got, err := star.Read()
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got != want {
				t.Errorf("Read after Write(%v): got %v", want, got)
			}
		}
	}
}

func TestStarValidateOrder(t *testing.T) {
	for _, tc := range []struct {
		name string
		sel  msr.StarSelectors
		want error
	}{
		{
			name: "valid",
			sel:  msr.StarSelectors{SysretCS: 43, SysretSS: 35, SyscallCS: 8, SyscallSS: 16},
			want: nil,
		},
		{
			// Ring checks would also fail, but the offset is checked first.
			name: "sysret offset before rings",
			sel:  msr.StarSelectors{SysretCS: 40, SysretSS: 33, SyscallCS: 8, SyscallSS: 16},
			want: msr.ErrSysretOffset,
		},
		{
			name: "sysret offset only",
			sel:  msr.StarSelectors{SysretCS: 51, SysretSS: 35, SyscallCS: 8, SyscallSS: 16},
			want: msr.ErrSysretOffset,
		},
		{
			name: "sysret offset underflow",
			sel:  msr.StarSelectors{SysretCS: 8, SysretSS: 0, SyscallCS: 8, SyscallSS: 16},
			want: msr.ErrSysretOffset,
		},
		{
			name: "syscall offset",
			sel:  msr.StarSelectors{SysretCS: 43, SysretSS: 35, SyscallCS: 8, SyscallSS: 24},
			want: msr.ErrSyscallOffset,
		},
		{
			name: "syscall offset before rings",
			sel:  msr.StarSelectors{SysretCS: 40, SysretSS: 32, SyscallCS: 11, SyscallSS: 16},
			want: msr.ErrSyscallOffset,
		},
		{
			name: "syscall offset underflow",
			sel:  msr.StarSelectors{SysretCS: 43, SysretSS: 35, SyscallCS: 0, SyscallSS: 0},
			want: msr.ErrSyscallOffset,
		},
		{
			name: "sysret ring",
			sel:  msr.StarSelectors{SysretCS: 40, SysretSS: 32, SyscallCS: 8, SyscallSS: 16},
			want: msr.ErrSysretRing,
		},
		{
			name: "sysret ring before syscall ring",
			sel:  msr.StarSelectors{SysretCS: 41, SysretSS: 33, SyscallCS: 11, SyscallSS: 19},
			want: msr.ErrSysretRing,
		},
		{
			name: "syscall ring",
			sel:  msr.StarSelectors{SysretCS: 43, SysretSS: 35, SyscallCS: 11, SyscallSS: 19},
			want: msr.ErrSyscallRing,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.sel.Validate(); err != tc.want {
				t.Errorf("Validate(%v): got %v, want %v", tc.sel, err, tc.want)
			}

			s := msrtest.NewStore(nil)
			err := msr.NewStar(s).Write(tc.sel)
			if !errors.Is(err, tc.want) || (tc.want == nil) != (err == nil) {
				t.Errorf("Write(%v): got %v, want %v", tc.sel, err, tc.want)
			}
			if tc.want != nil && len(s.Writes()) != 0 {
				t.Errorf("Write(%v) failed but wrote %v", tc.sel, s.Writes())
			}
		})
	}
}

func TestStarReadOverflowPanics(t *testing.T) {
	for _, tc := range []struct {
		sysret, syscall uint16
	}{
		{0xfff0, 0},
		{0xffff, 0},
		{0, 0xfff8},
	} {
		if msr.StarBasesDerivable(tc.sysret, tc.syscall) {
			t.Errorf("StarBasesDerivable(%#x, %#x): got true", tc.sysret, tc.syscall)
		}
		s := msrtest.NewStore(nil)
		star := msr.NewStar(s)
		if err := star.UnsafeWriteRaw(tc.sysret, tc.syscall); err != nil {
			t.Fatalf("UnsafeWriteRaw: %v", err)
		}
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Read with bases (%#x, %#x) did not panic", tc.sysret, tc.syscall)
				}
			}()
			star.Read()
		}()
	}

	// The largest bases that still fit.
	if !msr.StarBasesDerivable(0xffef, 0xfff7) {
		t.Errorf("StarBasesDerivable(0xffef, 0xfff7): got false")
	}
	got := msr.StarSelectorsFromBases(0xffef, 0xfff7)
	want := msr.StarSelectors{SysretCS: 0xffff, SysretSS: 0xfff7, SyscallCS: 0xfff7, SyscallSS: 0xffff}
	if got != want {
		t.Errorf("StarSelectorsFromBases(0xffef, 0xfff7): got %v, want %v", got, want)
	}
}

func TestStarChannelError(t *testing.T) {
	s := msrtest.NewStore(nil)
	s.SetUnsupported(msr.STAR)
	star := msr.NewStar(s)
	if _, _, err := star.ReadRaw(); !errors.Is(err, msrtest.ErrUnsupported) {
		t.Errorf("ReadRaw: got %v, want %v", err, msrtest.ErrUnsupported)
	}
	if _, err := star.Read(); !errors.Is(err, msrtest.ErrUnsupported) {
		t.Errorf("Read: got %v, want %v", err, msrtest.ErrUnsupported)
	}
	sel := msr.StarSelectors{SysretCS: 43, SysretSS: 35, SyscallCS: 8, SyscallSS: 16}
	if err := star.Write(sel); !errors.Is(err, msrtest.ErrUnsupported) {
		t.Errorf("Write: got %v, want %v", err, msrtest.ErrUnsupported)
	}
}
