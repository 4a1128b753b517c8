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


package msrtest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/x86msr/pkg/msr"
)

func TestStore(t *testing.T) {
	initial := map[msr.Register]uint64{msr.EFER: 0x500}
	s := NewStore(initial)
	initial[msr.EFER] = 0

	if v, err := s.ReadMSR(msr.EFER); err != nil || v != 0x500 {
		t.Errorf("ReadMSR(EFER): got (%#x, %v), want (0x500, nil)", v, err)
	}
	if v, err := s.ReadMSR(msr.LSTAR); err != nil || v != 0 {
		t.Errorf("ReadMSR(LSTAR): got (%#x, %v), want (0, nil)", v, err)
	}

	if err := s.WriteMSR(msr.LSTAR, 0xffffffff81a00000); err != nil {
		t.Fatalf("WriteMSR: %v", err)
	}
	s.SetUnsupported(msr.CSTAR)
	if err := s.WriteMSR(msr.CSTAR, 1); !errors.Is(err, ErrUnsupported) {
		t.Errorf("WriteMSR(CSTAR): got %v, want %v", err, ErrUnsupported)
	}
	if _, err := s.ReadMSR(msr.CSTAR); !errors.Is(err, msr.ErrUnsupported) {
		t.Errorf("ReadMSR(CSTAR): got %v, want %v", err, msr.ErrUnsupported)
	}
	if _, err := s.ReadMSR(msr.CSTAR); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ReadMSR(CSTAR): got %v, want %v", err, ErrUnsupported)
	}

	wantWrites := []Write{{Reg: msr.LSTAR, Value: 0xffffffff81a00000}}
	if diff := cmp.Diff(wantWrites, s.Writes()); diff != "" {
		t.Errorf("Writes mismatch (-want +got):\n%s", diff)
	}
	wantValues := map[msr.Register]uint64{
		msr.EFER:  0x500,
		msr.LSTAR: 0xffffffff81a00000,
	}
	if diff := cmp.Diff(wantValues, s.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
	if got, want := wantWrites[0].String(), "lstar=0xffffffff81a00000"; got != want {
		t.Errorf("String: got %q, want %q", got, want)
	}
}
