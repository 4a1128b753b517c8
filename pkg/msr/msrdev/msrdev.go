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

//go:build linux
// +build linux

// Package msrdev accesses host MSRs through the Linux msr driver, which
// exposes each CPU as /dev/cpu/<n>/msr. The file offset selects the register
// and every transfer is exactly 8 bytes.
package msrdev

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sys/unix"
	"gvisor.dev/x86msr/pkg/log"
	"gvisor.dev/x86msr/pkg/msr"
)

// DevRoot is the directory holding the per-CPU device directories.
var DevRoot = "/dev/cpu"

// ErrUnsupported is returned when the CPU faults on the access, which the
// driver reports as EIO.
var ErrUnsupported = fmt.Errorf("cpu fault: %w", msr.ErrUnsupported)

// Device is an open msr device for a single CPU. It implements msr.Accessor.
type Device struct {
	cpu  int
	path string
	fd   int
}

// Path returns the device path for cpu.
func Path(cpu int) string {
	return filepath.Join(DevRoot, strconv.Itoa(cpu), "msr")
}

// Open opens the msr device for cpu.
func Open(cpu int) (*Device, error) {
	d, err := OpenPath(Path(cpu))
	if err != nil {
		return nil, err
	}
	d.cpu = cpu
	return d, nil
}

// OpenPath opens an msr device at an explicit path. CPU() reports -1.
func OpenPath(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Device{cpu: -1, path: path, fd: fd}, nil
}

// OpenWait is like Open, but retries every interval while the device node
// does not exist yet. Nodes are created asynchronously after the msr module
// is loaded.
func OpenWait(ctx context.Context, cpu int, interval time.Duration) (*Device, error) {
	var d *Device
	op := func() error {
		var err error
		d, err = Open(cpu)
		if err == nil {
			return nil
		}
		if errors.Is(err, unix.ENOENT) {
			log.Debugf("Waiting for %s: %v", Path(cpu), err)
			return err
		}
		return backoff.Permanent(err)
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return d, nil
}

// CPU returns the CPU this device addresses.
func (d *Device) CPU() int {
	return d.cpu
}

// String implements fmt.Stringer.String.
func (d *Device) String() string {
	return d.path
}

// Close closes the device.
func (d *Device) Close() error {
	return unix.Close(d.fd)
}

func (d *Device) mapErr(err error) error {
	if errors.Is(err, unix.EIO) {
		return fmt.Errorf("%s: %w (%v)", d.path, ErrUnsupported, err)
	}
	return fmt.Errorf("%s: %w", d.path, err)
}

// ReadMSR implements msr.Accessor.ReadMSR.
func (d *Device) ReadMSR(reg msr.Register) (uint64, error) {
	var buf [8]byte
	n, err := unix.Pread(d.fd, buf[:], int64(reg))
	if err != nil {
		return 0, d.mapErr(err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("%s: short read of %v: %d bytes", d.path, reg, n)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteMSR implements msr.Accessor.WriteMSR.
func (d *Device) WriteMSR(reg msr.Register, value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	n, err := unix.Pwrite(d.fd, buf[:], int64(reg))
	if err != nil {
		return d.mapErr(err)
	}
	if n != len(buf) {
		return fmt.Errorf("%s: short write of %v: %d bytes", d.path, reg, n)
	}
	return nil
}
