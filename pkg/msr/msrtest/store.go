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

// Package msrtest provides a software MSR backing store.
package msrtest

import (
	"fmt"
	"sync"

	"gvisor.dev/x86msr/pkg/msr"
)

// ErrUnsupported is returned for registers marked unsupported.
var ErrUnsupported = fmt.Errorf("simulated: %w", msr.ErrUnsupported)

// Write records a single WriteMSR call.
type Write struct {
	Reg   msr.Register
	Value uint64
}

// String implements fmt.Stringer.String.
func (w Write) String() string {
	return fmt.Sprintf("%v=%#x", w.Reg, w.Value)
}

// Store is an in-memory msr.Accessor. Unwritten registers read as zero.
//
// Store is safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	values      map[msr.Register]uint64
	unsupported map[msr.Register]struct{}
	writes      []Write
}

// NewStore returns a store preloaded with initial.
func NewStore(initial map[msr.Register]uint64) *Store {
	s := &Store{
		values:      make(map[msr.Register]uint64, len(initial)),
		unsupported: make(map[msr.Register]struct{}),
	}
	for r, v := range initial {
		s.values[r] = v
	}
	return s
}

// SetUnsupported makes every access to reg fail with ErrUnsupported.
func (s *Store) SetUnsupported(reg msr.Register) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsupported[reg] = struct{}{}
}

// ReadMSR implements msr.Accessor.ReadMSR.
func (s *Store) ReadMSR(reg msr.Register) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.unsupported[reg]; ok {
		return 0, ErrUnsupported
	}
	return s.values[reg], nil
}

// WriteMSR implements msr.Accessor.WriteMSR.
func (s *Store) WriteMSR(reg msr.Register, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.unsupported[reg]; ok {
		return ErrUnsupported
	}
	s.values[reg] = value
	s.writes = append(s.writes, Write{Reg: reg, Value: value})
	return nil
}

// Value returns the stored value of reg without going through ReadMSR.
func (s *Store) Value(reg msr.Register) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[reg]
}

// Writes returns all successful writes in order.
func (s *Store) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// Snapshot returns a copy of all stored values.
func (s *Store) Snapshot() map[msr.Register]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := make(map[msr.Register]uint64, len(s.values))
	for r, v := range s.values {
		m[r] = v
	}
	return m
}
