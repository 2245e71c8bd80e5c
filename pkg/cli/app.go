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

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/amperia/edpro-tools/pkg/config"
	"github.com/amperia/edpro-tools/pkg/console"
	"github.com/amperia/edpro-tools/pkg/device"
	"github.com/amperia/edpro-tools/pkg/flash"
	"github.com/amperia/edpro-tools/pkg/helpers"
	"github.com/amperia/edpro-tools/pkg/helpers/command"
	"github.com/amperia/edpro-tools/pkg/instruments"
	"github.com/amperia/edpro-tools/pkg/scenario"
	"github.com/amperia/edpro-tools/pkg/serialport"
	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var (
	ErrNoImageDir = errors.New("no firmware image directory")
	ErrNoScenario = errors.New("no test scenario for device kind")
)

// App carries what the flag actions need. Zero-valued fields fall back to
// the real serial ports, processes and filesystem.
type App struct {
	Cfg      *config.Instance
	Printer  *console.Printer
	Factory  serialport.Factory
	Lister   serialport.PortLister
	Exec     command.Executor
	Fs       afero.Fs
	ToolOut  io.Writer
	Readline *readline.Config
}

func (a *App) defaults() {
	if a.Printer == nil {
		a.Printer = console.Discard()
	}
	if a.Factory == nil {
		a.Factory = serialport.DefaultFactory
	}
	if a.Lister == nil {
		a.Lister = serialport.DefaultPortLister
	}
	if a.Exec == nil {
		a.Exec = &command.RealExecutor{}
	}
	if a.Fs == nil {
		a.Fs = afero.NewOsFs()
	}
}

// Post runs the action selected by the parsed flags.
func (a *App) Post(ctx context.Context, f *Flags) error {
	a.defaults()

	kind, err := device.KindByTag(*f.Kind)
	if err != nil {
		return err
	}
	if *f.Port != "" {
		a.Cfg.SetSerialPort(kind.Tag, *f.Port)
	}

	switch {
	case f.isPassed("flash"):
		return a.FlashFirmware(ctx, kind, *f.Flash)
	case *f.InitData:
		return a.FlashInitData(ctx, kind)
	case *f.ChipID:
		return a.ChipID(ctx, kind)
	case *f.Boot:
		return a.Boot(ctx, kind)
	case *f.Info:
		return a.Info(ctx, kind)
	case *f.SaveConf:
		return a.SaveConf(ctx, kind)
	case *f.TestVDC:
		return a.TestVDC(ctx, kind)
	case *f.Log:
		return a.Log(ctx, kind)
	default:
		return ErrNoAction
	}
}

func (a *App) device(kind device.Kind, rawLog bool) *device.Conn {
	cfg := device.Config{
		Port:           a.Cfg.SerialPort(kind.Tag),
		Baud:           a.Cfg.SerialBaud(),
		ReadTimeout:    a.Cfg.ReadTimeout(),
		RequestTimeout: a.Cfg.RequestTimeout(),
		BootTimeout:    a.Cfg.BootTimeout(),
		RawLog:         rawLog,
	}
	return device.New(kind, cfg,
		device.WithPortFactory(a.Factory),
		device.WithPortLister(a.Lister),
		device.WithPrinter(a.Printer),
		device.WithLogger(helpers.DeviceLogger(kind.Tag)),
	)
}

func closeConn(conn *device.Conn) {
	if err := conn.Close(); err != nil {
		log.Warn().Err(err).Str("device", conn.Kind().Tag).Msg("failed to close device")
	}
}

func (a *App) printInfo(kind device.Kind, info device.Info) {
	a.Printer.Tagged(kind.Tag, console.Green, fmt.Sprintf("name: %s, version: %s", info.Name, info.Version))
}

// Info attaches without rebooting and prints the device identity.
func (a *App) Info(ctx context.Context, kind device.Kind) error {
	conn := a.device(kind, false)
	defer closeConn(conn)

	if err := conn.Connect(ctx, false); err != nil {
		return err
	}
	info, err := conn.ValidateFirmware(ctx)
	if err != nil {
		return err
	}
	a.printInfo(kind, info)
	return nil
}

// Boot reboots the device, waits for it to come up and checks its firmware.
func (a *App) Boot(ctx context.Context, kind device.Kind) error {
	conn := a.device(kind, false)
	defer closeConn(conn)

	if err := conn.Connect(ctx, true); err != nil {
		return err
	}
	if err := conn.WaitBoot(ctx); err != nil {
		return err
	}
	info, err := conn.ValidateFirmware(ctx)
	if err != nil {
		return err
	}
	a.printInfo(kind, info)
	return nil
}

// SaveConf persists the device configuration.
func (a *App) SaveConf(ctx context.Context, kind device.Kind) error {
	conn := a.device(kind, false)
	defer closeConn(conn)

	if err := conn.Connect(ctx, false); err != nil {
		return err
	}
	if err := conn.SetDevMode(ctx); err != nil {
		return err
	}
	if err := conn.SaveConf(ctx); err != nil {
		return err
	}
	a.Printer.Tagged(kind.Tag, console.Green, "configuration saved")
	return nil
}

// Log shows the device output and forwards typed lines until "q".
func (a *App) Log(ctx context.Context, kind device.Kind) error {
	conn := a.device(kind, true)
	defer closeConn(conn)

	if err := conn.Connect(ctx, false); err != nil {
		return err
	}
	session, err := console.NewLogSession(kind.Tag, conn, a.Printer, a.Readline)
	if err != nil {
		return fmt.Errorf("failed to start log console: %w", err)
	}
	return session.Run(ctx)
}

func (a *App) portFor(kind device.Kind) (string, error) {
	if p := a.Cfg.SerialPort(kind.Tag); p != "" {
		return p, nil
	}
	p, err := serialport.Detect(a.Lister, kind.Bridge)
	if err != nil {
		return "", fmt.Errorf("detect %s port: %w", kind.Tag, err)
	}
	return p, nil
}

func (a *App) flasher() *flash.Flasher {
	return flash.New(a.Exec, a.Fs, a.Cfg.Flash(), a.Printer, a.ToolOut, helpers.DeviceLogger(flash.Tag))
}

// FlashFirmware writes the firmware built in dir, or in the configured
// image directory of kind when dir is empty.
func (a *App) FlashFirmware(ctx context.Context, kind device.Kind, dir string) error {
	if dir == "" {
		dir = a.Cfg.ImageDir(kind.Tag)
	}
	if dir == "" {
		return fmt.Errorf("%w for %s", ErrNoImageDir, kind.Tag)
	}
	port, err := a.portFor(kind)
	if err != nil {
		return err
	}
	return a.flasher().Firmware(ctx, port, dir)
}

// FlashInitData writes the ESP init data and blank images.
func (a *App) FlashInitData(ctx context.Context, kind device.Kind) error {
	port, err := a.portFor(kind)
	if err != nil {
		return err
	}
	return a.flasher().InitData(ctx, port)
}

// ChipID prints the ESP chip id of the device.
func (a *App) ChipID(ctx context.Context, kind device.Kind) error {
	port, err := a.portFor(kind)
	if err != nil {
		return err
	}
	id, err := a.flasher().ChipID(ctx, port)
	if err != nil {
		return err
	}
	a.Printer.Tagged(flash.Tag, console.Green, "chip id: "+id)
	return nil
}

// TestVDC runs the DC voltage scenario of kind: the multimeter input test
// or the power source output test.
func (a *App) TestVDC(ctx context.Context, kind device.Kind) error {
	var s scenario.Scenario
	switch kind.Tag {
	case device.KindMultimeter.Tag:
		s = scenario.NewMMTestVDC()
	case device.KindPowerSource.Tag:
		s = scenario.NewPSTestVDC()
	default:
		return fmt.Errorf("%w: %s", ErrNoScenario, kind.Tag)
	}
	_, err := scenario.Run(ctx, a.Env(), s)
	return err
}

// Env builds a scenario environment from the config.
func (a *App) Env() *scenario.Env {
	a.defaults()
	inst := a.Cfg.Instruments()
	timeout := a.Cfg.InstrumentTimeout()
	pacing := a.Cfg.InstrumentPacing()
	return scenario.NewEnv(scenario.EnvConfig{
		NewDevice: func(kind device.Kind) *device.Conn {
			return a.device(kind, false)
		},
		OpenInstrument: func(tag, path string, opts ...instruments.Option) (instruments.Instrument, error) {
			opts = append([]instruments.Option{
				instruments.WithPrinter(a.Printer),
				instruments.WithLogger(helpers.DeviceLogger(tag)),
				instruments.WithTimeout(timeout),
				instruments.WithPacing(pacing),
			}, opts...)
			si, err := instruments.Open(a.Factory, tag, path, inst.Baud, opts...)
			if err != nil {
				return nil, err
			}
			return si, nil
		},
		Ports: scenario.InstrumentPorts{
			Meter:     inst.MeterPort,
			Power:     inst.PowerPort,
			Generator: inst.GeneratorPort,
		},
		Printer:   a.Printer,
		Fs:        a.Fs,
		Log:       log.Logger,
		ReportDir: a.Cfg.ReportDir(),
	})
}
