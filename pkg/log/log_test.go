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

package log

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	expected := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if len(tw.lines) != len(expected) {
		t.Fatalf("Writer should have logged %d lines, got: %q, expected: %q", len(expected), tw.lines, expected)
	}
	for i, l := range tw.lines {
		if l != expected[i] {
			t.Errorf("line %d doesn't match, got: %q, expected: %q", i, l, expected[i])
		}
	}
}

func TestLevels(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warningf("warning %d", 3)

	want := []string{"info 2\n", "warning 3\n"}
	if got := strings.Join(tw.lines, ""); got != strings.Join(want, "") {
		t.Errorf("got %q, want %q", got, want)
	}

	l.SetLevel(Debug)
	if !l.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false after SetLevel(Debug)")
	}
}

func TestGoogleEmitter(t *testing.T) {
	tw := &testWriter{}
	e := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2026, time.May, 4, 13, 2, 1, 5000, time.UTC)
	e.Emit(0, Warning, ts, "value %#x", 0xc0000081)

	line := strings.Join(tw.lines, "")
	if !strings.HasPrefix(line, "W0504 13:02:01.000005 ") {
		t.Errorf("unexpected header: %q", line)
	}
	if !strings.HasSuffix(line, "] value 0xc0000081\n") {
		t.Errorf("unexpected message: %q", line)
	}
}

func TestRateLimitedLogger(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Debug, Emitter: &Writer{Next: tw}}
	rl := BurstRateLimitedLogger(l, time.Hour, 2)
	for i := 0; i < 5; i++ {
		rl.Warningf("cpu %d", i)
	}
	if got, want := strings.Count(strings.Join(tw.lines, ""), "cpu "), 2; got != want {
		t.Errorf("got %d messages, want %d: %q", got, want, tw.lines)
	}
}

func TestMultiEmitter(t *testing.T) {
	a, b := &testWriter{}, &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &MultiEmitter{&Writer{Next: a}, &Writer{Next: b}}}
	l.Infof("wrote %s on cpu %d", "lstar", 3)

	want := "wrote lstar on cpu 3\n"
	for i, tw := range []*testWriter{a, b} {
		if got := strings.Join(tw.lines, ""); got != want {
			t.Errorf("emitter %d: got %q, want %q", i, got, want)
		}
	}
}

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Logf(format string, v ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

func TestTestEmitter(t *testing.T) {
	r := &recordingLogger{}
	l := &BasicLogger{Level: Info, Emitter: &TestEmitter{TestLogger: r}}
	l.Debugf("hidden")
	l.Warningf("efer %#x", 0xd01)

	if len(r.lines) != 1 || r.lines[0] != "efer 0xd01" {
		t.Errorf("got %q, want [\"efer 0xd01\"]", r.lines)
	}
}
