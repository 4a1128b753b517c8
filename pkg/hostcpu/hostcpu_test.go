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

package hostcpu

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseCPUList(t *testing.T) {
	for _, test := range []struct {
		str  string
		want []int
	}{
		{"0", []int{0}},
		{"0\n", []int{0}},
		{"0,2", []int{0, 2}},
		{"0-3", []int{0, 1, 2, 3}},
		{"0-1,8-9", []int{0, 1, 8, 9}},
		{"4,0-2,1", []int{0, 1, 2, 4}},
	} {
		t.Run(fmt.Sprintf("%q", test.str), func(t *testing.T) {
			got, err := ParseCPUList(test.str)
			if err != nil {
				t.Fatalf("ParseCPUList: %v", err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("ParseCPUList mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCPUListErrors(t *testing.T) {
	for _, str := range []string{"", "\n", "a", "1-", "-1", "3-1", "0,,1"} {
		t.Run(fmt.Sprintf("%q", str), func(t *testing.T) {
			got, err := ParseCPUList(str)
			if err == nil {
				t.Errorf("ParseCPUList: got (%v, nil), wanted (_, error)", got)
			}
			t.Log(err)
		})
	}
}

func TestOnline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "online")
	if err := os.WriteFile(path, []byte("0-2\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	old := OnlinePath
	OnlinePath = path
	defer func() { OnlinePath = old }()

	got, err := Online()
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	if diff := cmp.Diff([]int{0, 1, 2}, got); diff != "" {
		t.Errorf("Online mismatch (-want +got):\n%s", diff)
	}
}
