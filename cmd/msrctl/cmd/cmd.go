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


//go:build linux && amd64
// +build linux,amd64

// Package cmd holds implementations of the msrctl commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"gvisor.dev/x86msr/pkg/hostcpu"
	"gvisor.dev/x86msr/pkg/log"
	"gvisor.dev/x86msr/pkg/msr"
	"gvisor.dev/x86msr/pkg/msr/kvmmsr"
	"gvisor.dev/x86msr/pkg/msr/msrdev"
	"gvisor.dev/x86msr/pkg/msr/msrtest"
)

// maxParallel bounds the number of msr devices open at once.
const maxParallel = 32

var (
	// lockPath serializes writers across msrctl processes.
	lockPath = "/run/msrctl.lock"

	// stdout receives command output.
	stdout io.Writer = os.Stdout

	// stderr receives user facing errors.
	stderr io.Writer = os.Stderr

	// onlineCPUs lists the CPUs addressed when -cpu is not given.
	onlineCPUs = hostcpu.Online

	// openCPU opens the accessor for a host CPU. A zero wait does not retry.
	openCPU = func(ctx context.Context, cpu int, wait time.Duration) (msr.Accessor, func() error, error) {
		var (
			d   *msrdev.Device
			err error
		)
		if wait > 0 {
			d, err = msrdev.OpenWait(ctx, cpu, wait)
		} else {
			d, err = msrdev.Open(cpu)
		}
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	}
)

// Errorf logs to stderr and returns subcommands.ExitFailure.
func Errorf(format string, args ...any) subcommands.ExitStatus {
	log.Warningf(format, args...)
	fmt.Fprintf(stderr, format+"\n", args...)
	return subcommands.ExitFailure
}

// Fatalf logs to stderr and exits with a failure status code.
func Fatalf(format string, args ...any) {
	Errorf(format, args...)
	os.Exit(128)
}

// target is a single CPU or vCPU to operate on.
type target struct {
	name string
	open func(ctx context.Context) (msr.Accessor, func() error, error)
}

// result is the output of a command for one target.
type result struct {
	name string
	out  string
}

// targetFlags selects the CPUs a command operates on. It is embedded by every
// command that touches registers.
type targetFlags struct {
	cpus   string
	vcpuFD int
	dryRun bool
	wait   time.Duration
}

func (t *targetFlags) setFlags(f *flag.FlagSet) {
	f.StringVar(&t.cpus, "cpu", "", "CPUs to operate on, e.g. 0-3,8. Defaults to all online CPUs.")
	f.IntVar(&t.vcpuFD, "vcpu-fd", -1, "operate on the KVM vCPU behind this inherited file descriptor instead of host CPUs.")
	f.BoolVar(&t.dryRun, "dryrun", false, "log writes instead of performing them.")
	f.DurationVar(&t.wait, "wait", 0, "retry at this interval until msr devices appear.")
}

func (t *targetFlags) targets() ([]target, error) {
	if t.vcpuFD >= 0 {
		vcpu := kvmmsr.VCPU{FD: t.vcpuFD}
		return []target{{
			name: fmt.Sprintf("vcpu(fd %d)", t.vcpuFD),
			open: func(context.Context) (msr.Accessor, func() error, error) {
				return vcpu, func() error { return nil }, nil
			},
		}}, nil
	}

	var (
		cpus []int
		err  error
	)
	if t.cpus == "" {
		cpus, err = onlineCPUs()
	} else {
		cpus, err = hostcpu.ParseCPUList(t.cpus)
	}
	if err != nil {
		return nil, fmt.Errorf("listing cpus: %w", err)
	}
	targets := make([]target, 0, len(cpus))
	for _, cpu := range cpus {
		cpu := cpu
		targets = append(targets, target{
			name: fmt.Sprintf("cpu%d", cpu),
			open: func(ctx context.Context) (msr.Accessor, func() error, error) {
				return openCPU(ctx, cpu, t.wait)
			},
		})
	}
	return targets, nil
}

// lockForWrite takes the writer lock unless this is a dry run. The returned
// function releases it.
func (t *targetFlags) lockForWrite() (func() error, error) {
	if t.dryRun {
		return func() error { return nil }, nil
	}
	l := flock.NewFlock(lockPath)
	if err := l.Lock(); err != nil {
		return nil, fmt.Errorf("acquiring lock %q: %w", lockPath, err)
	}
	return l.Unlock, nil
}

// forEach runs fn against every selected target concurrently. A failure on
// one target does not stop the others. Successful results are returned in
// target order, and the error joins the failure of every failed target, also
// in target order.
func (t *targetFlags) forEach(ctx context.Context, fn func(acc msr.Accessor) (string, error)) ([]result, error) {
	targets, err := t.targets()
	if err != nil {
		return nil, err
	}
	if t.dryRun {
		log.Infof("Running with DryRun. No registers will be changed.")
	}

	// Per-CPU failures tend to repeat on every CPU.
	warn := log.BurstRateLimitedLogger(log.Log(), time.Second, 4)

	results := make([]result, len(targets))
	errs := make([]error, len(targets))
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, tg := range targets {
		i, tg := i, tg
		g.Go(func() error {
			out, err := t.runOne(ctx, tg, fn)
			if err != nil {
				warn.Warningf("%s: %v", tg.name, err)
				errs[i] = fmt.Errorf("%s: %w", tg.name, err)
				return nil
			}
			results[i] = result{name: tg.name, out: out}
			return nil
		})
	}
	g.Wait()

	done := results[:0]
	for _, r := range results {
		if r.name != "" {
			done = append(done, r)
		}
	}
	return done, errors.Join(errs...)
}

func (t *targetFlags) runOne(ctx context.Context, tg target, fn func(acc msr.Accessor) (string, error)) (string, error) {
	acc, closeFn, err := tg.open(ctx)
	if err != nil {
		return "", err
	}
	defer closeFn()
	if t.dryRun {
		acc = newDryRun(tg.name, acc)
	}
	return fn(acc)
}

// printResults writes one block per target.
func printResults(results []result) {
	for _, r := range results {
		fmt.Fprintf(stdout, "%s:\n%s", r.name, r.out)
	}
}

// dryRun forwards reads to the real accessor and keeps writes in memory, so
// read-modify-write sequences observe their own writes.
type dryRun struct {
	name    string
	next    msr.Accessor
	written map[msr.Register]struct{}
	overlay *msrtest.Store
}

func newDryRun(name string, next msr.Accessor) *dryRun {
	return &dryRun{
		name:    name,
		next:    next,
		written: make(map[msr.Register]struct{}),
		overlay: msrtest.NewStore(nil),
	}
}

// ReadMSR implements msr.Accessor.ReadMSR.
func (d *dryRun) ReadMSR(reg msr.Register) (uint64, error) {
	if _, ok := d.written[reg]; ok {
		return d.overlay.ReadMSR(reg)
	}
	return d.next.ReadMSR(reg)
}

// WriteMSR implements msr.Accessor.WriteMSR.
func (d *dryRun) WriteMSR(reg msr.Register, value uint64) error {
	log.Infof("%s: would write %v = %#x", d.name, reg, value)
	d.written[reg] = struct{}{}
	return d.overlay.WriteMSR(reg, value)
}
