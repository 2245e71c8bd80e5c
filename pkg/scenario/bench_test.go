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

package scenario

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amperia/edpro-tools/pkg/console"
	"github.com/amperia/edpro-tools/pkg/device"
	"github.com/amperia/edpro-tools/pkg/helpers/syncutil"
	"github.com/amperia/edpro-tools/pkg/instruments"
	"github.com/amperia/edpro-tools/pkg/serialport"
	"github.com/amperia/edpro-tools/pkg/serialport/testutils"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.bug.st/serial"
)

type syncBuffer struct {
	buf bytes.Buffer
	mu  syncutil.Mutex
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	//nolint:wrapcheck // test buffer
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// bench simulates a multimeter under test wired to a bench supply and a
// reference meter. The device reads the supply voltage times gain.
type bench struct {
	devices map[string]*testutils.MockSerialPort
	meter   *testutils.MockSerialPort
	power   *testutils.MockSerialPort
	out     *syncBuffer
	fs      afero.Fs
	clock   *clockwork.FakeClock
	mode    string
	volts   float64
	gain    float64
	stuck   bool
	mu      syncutil.Mutex
}

func newBench() *bench {
	b := &bench{
		devices: map[string]*testutils.MockSerialPort{
			device.KindMultimeter.Tag:  testutils.NewMockSerialPort(),
			device.KindPowerSource.Tag: testutils.NewMockSerialPort(),
			device.KindDevBoard.Tag:    testutils.NewMockSerialPort(),
		},
		meter: testutils.NewMockSerialPort(),
		power: testutils.NewMockSerialPort(),
		out:   &syncBuffer{},
		fs:    afero.NewMemMapFs(),
		clock: clockwork.NewFakeClockAt(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)),
		mode:  "VDC",
		gain:  1.001,
	}
	b.devices[device.KindMultimeter.Tag].Responder = b.firmware(device.KindMultimeter)
	b.devices[device.KindPowerSource.Tag].Responder = b.firmware(device.KindPowerSource)
	b.devices[device.KindDevBoard.Tag].Responder = b.firmware(device.KindDevBoard)
	b.meter.Responder = b.referenceMeter
	b.power.Responder = b.supply
	return b
}

// firmware answers like a device of the given kind. A power source drives
// the bench voltage itself and reads it back times gain.
func (b *bench) firmware(kind device.Kind) func(string) []string {
	return func(line string) []string {
		b.mu.Lock()
		defer b.mu.Unlock()
		if level, ok := strings.CutPrefix(line, "set l "); ok && kind == device.KindPowerSource {
			if n, err := strconv.Atoi(level); err == nil && !b.stuck {
				b.volts = float64(n) / 10
			}
			return []string{":success=1"}
		}
		if strings.HasPrefix(line, "set ") {
			return []string{":success=1"}
		}
		if line == "v" && kind == device.KindPowerSource {
			return []string{fmt.Sprintf(":success=1 U=%g I=0", b.volts*b.gain)}
		}
		switch line {
		case "devmode":
			return []string{":devmode=1"}
		case "i":
			return []string{fmt.Sprintf(":name=%s version=%s", kind.Name, kind.MinVersion)}
		case "mode dc":
			return []string{":success=1"}
		case "mode":
			return []string{":mode=" + b.mode}
		case "v":
			return []string{fmt.Sprintf(":mode=%s rdiv=0 gain=1 finit=1 value=%g", b.mode, b.volts*b.gain)}
		}
		return nil
	}
}

func (b *bench) referenceMeter(line string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch line {
	case "*IDN?":
		return []string{"Rigol Technologies,DM3058,DM3L000000001,01.01.00.01.08\r"}
	case ":MEASure:VOLTage:DC?":
		return []string{fmt.Sprintf("%E\r", b.volts)}
	}
	return nil
}

func (b *bench) supply(line string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if line == "*IDN?" {
		return []string{"RIGOL TECHNOLOGIES,DP832,DP8C000000001,00.01.14\r"}
	}
	if v, ok := strings.CutPrefix(line, ":VOLTage "); ok && !b.stuck {
		b.volts, _ = strconv.ParseFloat(v, 64)
	}
	return nil
}

// booting opens the mock and queues the boot announcement the firmware
// prints after a reset.
func booting(mock *testutils.MockSerialPort) serialport.Factory {
	open := mock.Factory()
	return func(path string, mode *serial.Mode) (serialport.Port, error) {
		p, err := open(path, mode)
		if err == nil {
			mock.FeedLine("ets Jan  8 2013,rst cause:2, boot mode:(3,6)")
			mock.FeedLine(":init=1")
		}
		return p, err
	}
}

func (b *bench) env() *Env {
	return NewEnv(EnvConfig{
		NewDevice: func(kind device.Kind) *device.Conn {
			cfg := device.Config{
				Port:           "/dev/ttyUSB-" + kind.Tag,
				ReadTimeout:    20 * time.Millisecond,
				RequestTimeout: time.Second,
				BootTimeout:    time.Second,
			}
			return device.New(kind, cfg,
				device.WithPortFactory(booting(b.devices[kind.Tag])),
				device.WithPrinter(console.NewPrinter(b.out, false)))
		},
		OpenInstrument: func(tag, path string, opts ...instruments.Option) (instruments.Instrument, error) {
			mock := b.meter
			if tag == "power" {
				mock = b.power
			}
			opts = append(opts, instruments.WithTimeout(time.Second))
			inst, err := instruments.Open(mock.Factory(), tag, path, 9600, opts...)
			if err != nil {
				return nil, err
			}
			return inst, nil
		},
		Ports: InstrumentPorts{
			Meter: "/dev/ttyACM0",
			Power: "/dev/ttyACM1",
		},
		Printer:   console.NewPrinter(b.out, false),
		Clock:     b.clock,
		Fs:        b.fs,
		ReportDir: "reports",
	})
}

func (b *bench) mm() *testutils.MockSerialPort {
	return b.devices[device.KindMultimeter.Tag]
}

func (b *bench) ps() *testutils.MockSerialPort {
	return b.devices[device.KindPowerSource.Tag]
}

func (b *bench) db() *testutils.MockSerialPort {
	return b.devices[device.KindDevBoard.Tag]
}
