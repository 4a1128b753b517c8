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

// Package hostcpu provides utilities for working with CPU information provided
// by a host Linux kernel.
package hostcpu

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// OnlinePath lists the CPUs currently online.
var OnlinePath = "/sys/devices/system/cpu/online"

// Online returns the online CPUs in ascending order.
func Online() ([]int, error) {
	data, err := os.ReadFile(OnlinePath)
	if err != nil {
		return nil, err
	}
	cpus, err := ParseCPUList(string(data))
	if err != nil {
		return nil, fmt.Errorf("invalid %s (%q): %w", OnlinePath, data, err)
	}
	return cpus, nil
}

// ParseCPUList parses a string emitted by Linux's
// lib/bitmap.c:bitmap_print_to_pagebuf(list=true), e.g. "0-3,8,10-11".
// The result is sorted and free of duplicates.
func ParseCPUList(str string) ([]int, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return nil, fmt.Errorf("empty cpu list")
	}
	seen := make(map[int]struct{})
	for _, part := range strings.Split(str, ",") {
		lo, hi := part, part
		if i := strings.IndexByte(part, '-'); i >= 0 {
			lo, hi = part[:i], part[i+1:]
		}
		first, err := strconv.ParseUint(lo, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("bad cpu range %q: %w", part, err)
		}
		last, err := strconv.ParseUint(hi, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("bad cpu range %q: %w", part, err)
		}
		if last < first {
			return nil, fmt.Errorf("bad cpu range %q: end before start", part)
		}
		for c := first; c <= last; c++ {
			seen[int(c)] = struct{}{}
		}
	}
	cpus := make([]int, 0, len(seen))
	for c := range seen {
		cpus = append(cpus, c)
	}
	sort.Ints(cpus)
	return cpus, nil
}
