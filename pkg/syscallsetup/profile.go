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

package syscallsetup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
	"gvisor.dev/x86msr/pkg/hostarch"
	"gvisor.dev/x86msr/pkg/msr"
	"gvisor.dev/x86msr/pkg/x86"
)

// Address is a virtual address written as a string in profiles, since TOML
// integers cannot hold upper-half kernel addresses.
type Address hostarch.Addr

// UnmarshalText implements encoding.TextUnmarshaler.UnmarshalText.
func (a *Address) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(string(b), 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", b, err)
	}
	*a = Address(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.UnmarshalYAML. YAML resolves an
// unquoted hex literal to an integer, so the raw scalar text is parsed.
func (a *Address) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return a.UnmarshalText([]byte(s))
}

// MarshalText implements encoding.TextMarshaler.MarshalText.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(hostarch.Addr(a).String()), nil
}

// Profile describes how the fast system call mechanism should be set up.
//
// The selector fields follow the GDT layout syscall and sysret expect:
// kernel data follows kernel code, and user data then 64-bit user code follow
// the 32-bit user code segment.
type Profile struct {
	// KernelCode is the ring 0 code selector loaded by syscall. SS is
	// loaded from the next descriptor.
	KernelCode uint16 `toml:"kernel_code" yaml:"kernel_code"`

	// UserCode32 is the ring 3 compatibility mode code selector. sysret
	// loads SS from the next descriptor and the 64-bit CS from the one
	// after.
	UserCode32 uint16 `toml:"user_code32" yaml:"user_code32"`

	// Entry is the 64-bit syscall entry point (LSTAR).
	Entry Address `toml:"entry" yaml:"entry"`

	// CompatEntry is the compatibility mode syscall entry point (CSTAR).
	// Zero leaves CSTAR untouched.
	CompatEntry Address `toml:"compat_entry" yaml:"compat_entry"`

	// FlagsClear names the RFLAGS bits cleared on entry (SFMASK).
	FlagsClear []string `toml:"flags_clear" yaml:"flags_clear"`

	// EnableSCE sets EFER.SCE once everything else is in place.
	EnableSCE bool `toml:"enable_sce" yaml:"enable_sce"`

	// EnableNXE sets EFER.NXE.
	EnableNXE bool `toml:"enable_nxe" yaml:"enable_nxe"`
}

// DefaultProfile returns a profile for the Linux GDT layout (kernel code at
// 0x10, 32-bit user code at 0x23) with the given entry point.
func DefaultProfile(entry hostarch.Addr) *Profile {
	return &Profile{
		KernelCode: 0x10,
		UserCode32: 0x23,
		Entry:      Address(entry),
		FlagsClear: []string{"TF", "IF", "DF", "IOPL", "AC", "NT"},
		EnableSCE:  true,
		EnableNXE:  true,
	}
}

// LoadProfile reads a profile from a file. Files ending in .yaml or .yml are
// parsed as YAML, anything else as TOML.
func LoadProfile(path string) (*Profile, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAMLProfile(path)
	}
	var p Profile
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return nil, fmt.Errorf("loading profile %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("loading profile %q: unknown keys %v", path, undecoded)
	}
	return &p, nil
}

// DecodeProfile parses a profile from TOML text.
func DecodeProfile(data string) (*Profile, error) {
	var p Profile
	md, err := toml.Decode(data, &p)
	if err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decoding profile: unknown keys %v", undecoded)
	}
	return &p, nil
}

func loadYAMLProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading profile %q: %w", path, err)
	}
	defer f.Close()
	var p Profile
	dec := yaml.NewDecoder(f)
	dec.SetStrict(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("loading profile %q: %w", path, err)
	}
	return &p, nil
}

// DecodeProfileYAML parses a profile from YAML text. Unknown keys are
// rejected.
func DecodeProfileYAML(data string) (*Profile, error) {
	var p Profile
	if err := yaml.UnmarshalStrict([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &p, nil
}

// Selectors returns the STAR selectors implied by the profile.
//
// Precondition: p.Validate() == nil.
func (p *Profile) Selectors() msr.StarSelectors {
	return msr.StarSelectorsFromBases(p.UserCode32, p.KernelCode)
}

// Mask returns the SFMASK value.
func (p *Profile) Mask() (x86.RFlags, error) {
	var mask x86.RFlags
	for _, name := range p.FlagsClear {
		f, err := x86.ParseRFlags(name)
		if err != nil {
			return 0, err
		}
		mask |= f
	}
	return mask, nil
}

// Validate checks the profile without touching any register.
func (p *Profile) Validate() error {
	if p.UserCode32 > 0xffff-16 {
		return fmt.Errorf("user_code32 %#x leaves no room for the 64-bit user segments", p.UserCode32)
	}
	if p.KernelCode > 0xffff-8 {
		return fmt.Errorf("kernel_code %#x leaves no room for the kernel data segment", p.KernelCode)
	}
	if err := p.Selectors().Validate(); err != nil {
		return err
	}
	if p.Entry == 0 || !hostarch.Addr(p.Entry).IsCanonical() {
		return fmt.Errorf("entry %v is not a canonical address", hostarch.Addr(p.Entry))
	}
	if p.CompatEntry != 0 && !hostarch.Addr(p.CompatEntry).IsCanonical() {
		return fmt.Errorf("compat_entry %v is not a canonical address", hostarch.Addr(p.CompatEntry))
	}
	if _, err := p.Mask(); err != nil {
		return err
	}
	return nil
}

// eferSet returns the EFER bits the profile turns on.
func (p *Profile) eferSet() msr.EFERFlags {
	var f msr.EFERFlags
	if p.EnableSCE {
		f |= msr.EFERSCE
	}
	if p.EnableNXE {
		f |= msr.EFERNXE
	}
	return f
}
