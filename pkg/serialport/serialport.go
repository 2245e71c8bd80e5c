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

// Package serialport wraps go.bug.st/serial behind a small interface so the
// device core and instrument drivers can be tested against mock ports.
package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	// ConsoleBaud is the ESP8266 boot ROM rate the firmware keeps for its
	// console, so boot messages and protocol traffic share one setting.
	ConsoleBaud = 74880
	// DefaultReadTimeout bounds each blocking read so reader loops can
	// observe their stop signal even on an idle line.
	DefaultReadTimeout = 1 * time.Second
)

// Port defines the serial port operations used by this module (for mocking in tests).
type Port interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Drain() error
	ResetInputBuffer() error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Factory creates a serial port connection.
type Factory func(path string, mode *serial.Mode) (Port, error)

// DefaultFactory is the default factory that opens real serial ports.
func DefaultFactory(path string, mode *serial.Mode) (Port, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// ConsoleMode returns the device console line settings: 8 data bits, no
// parity, 1 stop bit, no flow control. The modem lines are driven to their
// pre-reset state at open time when reboot is set (DTR low, RTS high),
// otherwise both are held inactive so a running device is left alone.
func ConsoleMode(baud int, reboot bool) *serial.Mode {
	if baud <= 0 {
		baud = ConsoleBaud
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
		InitialStatusBits: &serial.ModemOutputBits{
			DTR: false,
			RTS: reboot,
		},
	}
}

// InstrumentMode returns plain 8N1 settings for SCPI instruments.
func InstrumentMode(baud int) *serial.Mode {
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}
