// EdPro Tools
// Copyright (c) 2026 The EdPro Tools Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of EdPro Tools.
//
// EdPro Tools is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// EdPro Tools is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with EdPro Tools.  If not, see <http://www.gnu.org/licenses/>.

// Package scenario runs hardware test scenarios against EdPro devices and
// bench instruments.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amperia/edpro-tools/pkg/console"
	"github.com/amperia/edpro-tools/pkg/device"
	"github.com/amperia/edpro-tools/pkg/helpers/syncutil"
	"github.com/amperia/edpro-tools/pkg/instruments"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

var (
	ErrCheckFailed  = errors.New("check failed")
	ErrChecksFailed = errors.New("measurement checks failed")
	ErrNoPort       = errors.New("instrument port not configured")
)

// InstrumentPorts are the serial paths of the bench instruments.
type InstrumentPorts struct {
	Meter     string
	Power     string
	Generator string
}

// DeviceFunc returns an unconnected connection for a device kind.
type DeviceFunc func(kind device.Kind) *device.Conn

// InstrumentFunc opens a bench instrument on path.
type InstrumentFunc func(tag, path string, opts ...instruments.Option) (instruments.Instrument, error)

// EnvConfig wires an Env to its devices and instruments.
type EnvConfig struct {
	NewDevice      DeviceFunc
	OpenInstrument InstrumentFunc
	Printer        *console.Printer
	Clock          clockwork.Clock
	Fs             afero.Fs
	Log            zerolog.Logger
	Ports          InstrumentPorts
	// ReportDir receives a CSV file per run. Empty disables export.
	ReportDir string
}

// deviceEntry is one device bring-up. done is closed once conn has either
// passed its identity check or failed with err.
type deviceEntry struct {
	conn *device.Conn
	err  error
	done chan struct{}
}

// Env holds everything a scenario touches. Devices and instruments are
// opened on first use and released by Dispose.
type Env struct {
	cfg       EnvConfig
	devices   map[string]*deviceEntry
	meter     *instruments.Meter
	power     *instruments.PowerSupply
	generator *instruments.Generator
	closers   []func() error
	reporters []*Reporter
	mu        syncutil.Mutex
}

//nolint:gocritic // config struct copied for immutability
func NewEnv(cfg EnvConfig) *Env {
	if cfg.Printer == nil {
		cfg.Printer = console.Discard()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	return &Env{
		cfg:     cfg,
		devices: make(map[string]*deviceEntry),
	}
}

// Printer returns the console the scenario reports to.
func (e *Env) Printer() *console.Printer {
	return e.cfg.Printer
}

// Reporter starts a new result collector that counts towards the run.
func (e *Env) Reporter(tag string) *Reporter {
	r := NewReporter(tag, e.cfg.Printer)
	e.mu.Lock()
	e.reporters = append(e.reporters, r)
	e.mu.Unlock()
	return r
}

func (e *Env) results() (ok bool, ms []Measurement) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ok = true
	for _, r := range e.reporters {
		ok = ok && r.Success()
		ms = append(ms, r.Measurements()...)
	}
	return ok, ms
}

func (e *Env) track(closer func() error) {
	e.mu.Lock()
	e.closers = append(e.closers, closer)
	e.mu.Unlock()
}

// Device returns the connection for kind, rebooting it, waiting for boot,
// enabling dev mode and checking its identity the first time it is asked
// for. Concurrent callers share one bring-up and see its result. A failed
// bring-up is closed and forgotten, so the next call starts over.
func (e *Env) Device(ctx context.Context, kind device.Kind) (*device.Conn, error) {
	e.mu.Lock()
	ent, ok := e.devices[kind.Tag]
	if !ok {
		ent = &deviceEntry{
			conn: e.cfg.NewDevice(kind),
			done: make(chan struct{}),
		}
		e.devices[kind.Tag] = ent
	}
	e.mu.Unlock()

	if ok {
		select {
		case <-ent.done:
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s: %w", kind.Tag, ctx.Err())
		}
		if ent.err != nil {
			return nil, ent.err
		}
		return ent.conn, nil
	}

	err := e.bringUp(ctx, kind, ent.conn)
	e.mu.Lock()
	if err != nil {
		if e.devices[kind.Tag] == ent {
			delete(e.devices, kind.Tag)
		}
	} else {
		e.closers = append(e.closers, ent.conn.Close)
	}
	e.mu.Unlock()

	if err != nil {
		if cerr := ent.conn.Close(); cerr != nil {
			e.cfg.Log.Warn().Err(cerr).Str("device", kind.Tag).Msg("failed to close device after bring-up error")
		}
		ent.err = err
		close(ent.done)
		return nil, err
	}
	close(ent.done)
	return ent.conn, nil
}

func (e *Env) bringUp(ctx context.Context, kind device.Kind, conn *device.Conn) error {
	if err := conn.Connect(ctx, true); err != nil {
		return fmt.Errorf("connect %s: %w", kind.Tag, err)
	}
	if err := conn.WaitBoot(ctx); err != nil {
		return fmt.Errorf("boot %s: %w", kind.Tag, err)
	}
	if err := conn.SetDevMode(ctx); err != nil {
		return fmt.Errorf("devmode %s: %w", kind.Tag, err)
	}
	info, err := conn.Info(ctx)
	if err != nil {
		return fmt.Errorf("identify %s: %w", kind.Tag, err)
	}
	return e.CheckStr(info.Name, kind.Name, "Invalid device name!")
}

// Devices brings up several devices at once.
func (e *Env) Devices(ctx context.Context, kinds ...device.Kind) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range kinds {
		g.Go(func() error {
			_, err := e.Device(ctx, kind)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to bring up devices: %w", err)
	}
	return nil
}

func (e *Env) openInstrument(ctx context.Context, tag, path string, opts ...instruments.Option) (instruments.Instrument, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoPort, tag)
	}
	inst, err := e.cfg.OpenInstrument(tag, path, opts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", tag, err)
	}
	e.track(inst.Close)

	id, err := instruments.Identify(ctx, inst)
	if err != nil {
		return nil, fmt.Errorf("identify %s: %w", tag, err)
	}
	e.cfg.Log.Info().Str("instrument", tag).Str("id", id).Msg("instrument ready")
	return inst, nil
}

// Meter returns the bench multimeter.
func (e *Env) Meter(ctx context.Context) (*instruments.Meter, error) {
	if e.meter != nil {
		return e.meter, nil
	}
	inst, err := e.openInstrument(ctx, "meter", e.cfg.Ports.Meter)
	if err != nil {
		return nil, err
	}
	e.meter = instruments.NewMeter(inst)
	return e.meter, nil
}

// Power returns the bench power supply.
func (e *Env) Power(ctx context.Context) (*instruments.PowerSupply, error) {
	if e.power != nil {
		return e.power, nil
	}
	inst, err := e.openInstrument(ctx, "power", e.cfg.Ports.Power)
	if err != nil {
		return nil, err
	}
	e.power = instruments.NewPowerSupply(inst)
	return e.power, nil
}

// Generator returns the bench signal generator.
func (e *Env) Generator(ctx context.Context) (*instruments.Generator, error) {
	if e.generator != nil {
		return e.generator, nil
	}
	inst, err := e.openInstrument(ctx, "generator", e.cfg.Ports.Generator,
		instruments.WithPrompt(instruments.GeneratorPrompt))
	if err != nil {
		return nil, err
	}
	e.generator = instruments.NewGenerator(inst)
	return e.generator, nil
}

// Wait pauses the scenario, typically to let a source settle.
func (e *Env) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := e.cfg.Clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.Chan():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait: %w", ctx.Err())
	}
}

// Check fails with msg unless ok.
func (e *Env) Check(ok bool, msg string) error {
	if ok {
		return nil
	}
	e.cfg.Printer.Tagged("check", console.LightRed, msg)
	return fmt.Errorf("%w: %s", ErrCheckFailed, msg)
}

// CheckStr fails with msg unless actual equals expected.
func (e *Env) CheckStr(actual, expected, msg string) error {
	if actual == expected {
		return nil
	}
	text := fmt.Sprintf("%s\n    expected : %q\n    actual   : %q", msg, expected, actual)
	e.cfg.Printer.Tagged("check", console.LightRed, text)
	return fmt.Errorf("%w: %s: expected %q, got %q", ErrCheckFailed, msg, expected, actual)
}

// Dispose closes everything that was opened, newest first.
func (e *Env) Dispose() {
	e.mu.Lock()
	closers := e.closers
	e.closers = nil
	e.devices = make(map[string]*deviceEntry)
	e.mu.Unlock()

	e.meter, e.power, e.generator = nil, nil, nil
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			e.cfg.Log.Warn().Err(err).Msg("failed to release scenario resource")
		}
	}
}
