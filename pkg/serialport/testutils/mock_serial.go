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

// Package testutils provides a mock serial port for device and instrument tests.
package testutils

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/amperia/edpro-tools/pkg/helpers/syncutil"
	"github.com/amperia/edpro-tools/pkg/serialport"
	"go.bug.st/serial"
)

// ErrPortClosed is returned by reads and writes after Close.
var ErrPortClosed = errors.New("port closed")

// Event records a control-line change or flush on the mock port.
type Event struct {
	At    time.Time
	Name  string
	Value bool
}

// MockSerialPort is a mock implementation of serialport.Port for testing.
// Data queued with Feed is returned by Read; everything written is recorded
// and, when Responder is set, each complete written line is answered.
type MockSerialPort struct {
	ReadError  error
	WriteError error
	CloseError error
	TimeoutErr error
	// Responder simulates firmware: it is called with every complete line
	// written to the port and its results are fed back as received lines.
	Responder func(line string) []string
	closed    chan struct{}
	rx        chan []byte
	Mode      *serial.Mode
	Path      string
	pendingRx []byte
	written   []byte
	lines     []string
	events    []Event
	timeout   time.Duration
	closeOnce sync.Once
	mu        syncutil.Mutex // protects all recorded state
}

// NewMockSerialPort creates a new mock serial port with a short read timeout.
func NewMockSerialPort() *MockSerialPort {
	return &MockSerialPort{
		rx:      make(chan []byte, 256),
		closed:  make(chan struct{}),
		timeout: 20 * time.Millisecond,
	}
}

// Factory returns a serialport.Factory handing out this mock. The initial
// modem bits requested in the mode are recorded as the first events.
func (m *MockSerialPort) Factory() serialport.Factory {
	return func(path string, mode *serial.Mode) (serialport.Port, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.Path = path
		m.Mode = mode
		now := time.Now()
		m.events = append(m.events, Event{Name: "open", Value: true, At: now})
		if mode != nil && mode.InitialStatusBits != nil {
			m.events = append(m.events,
				Event{Name: "dtr", Value: mode.InitialStatusBits.DTR, At: now},
				Event{Name: "rts", Value: mode.InitialStatusBits.RTS, At: now},
			)
		}
		return m, nil
	}
}

// Feed queues data to be returned by subsequent reads.
func (m *MockSerialPort) Feed(data string) {
	m.rx <- []byte(data)
}

// FeedLine queues a newline-terminated line.
func (m *MockSerialPort) FeedLine(line string) {
	m.Feed(line + "\n")
}

// SetReadError makes subsequent reads fail with err. Safe to call while a
// reader is running.
func (m *MockSerialPort) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadError = err
}

// Read returns queued data, or 0 bytes once the read timeout elapses.
func (m *MockSerialPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.ReadError != nil {
		err := m.ReadError
		m.mu.Unlock()
		return 0, err
	}
	if len(m.pendingRx) > 0 {
		n := copy(p, m.pendingRx)
		m.pendingRx = m.pendingRx[n:]
		m.mu.Unlock()
		return n, nil
	}
	timeout := m.timeout
	m.mu.Unlock()

	select {
	case <-m.closed:
		return 0, ErrPortClosed
	case data := <-m.rx:
		n := copy(p, data)
		if n < len(data) {
			m.mu.Lock()
			m.pendingRx = append(m.pendingRx, data[n:]...)
			m.mu.Unlock()
		}
		return n, nil
	case <-time.After(timeout):
		return 0, nil
	}
}

// Write records data and answers complete lines through Responder.
func (m *MockSerialPort) Write(p []byte) (int, error) {
	select {
	case <-m.closed:
		return 0, ErrPortClosed
	default:
	}

	m.mu.Lock()
	if m.WriteError != nil {
		err := m.WriteError
		m.mu.Unlock()
		return 0, err
	}
	m.written = append(m.written, p...)
	var complete []string
	for {
		idx := strings.IndexByte(string(m.written), '\n')
		if idx < 0 {
			break
		}
		line := string(m.written[:idx])
		m.written = m.written[idx+1:]
		m.lines = append(m.lines, line)
		complete = append(complete, line)
	}
	responder := m.Responder
	m.mu.Unlock()

	if responder != nil {
		for _, line := range complete {
			for _, reply := range responder(line) {
				m.FeedLine(reply)
			}
		}
	}
	return len(p), nil
}

// Drain records a flush.
func (m *MockSerialPort) Drain() error {
	m.record("drain", true)
	return nil
}

// ResetInputBuffer discards everything queued for reading and records a
// reset_input event.
func (m *MockSerialPort) ResetInputBuffer() error {
	m.mu.Lock()
	m.pendingRx = nil
	m.mu.Unlock()
	for {
		select {
		case <-m.rx:
		default:
			m.record("reset_input", true)
			return nil
		}
	}
}

// SetDTR records a DTR change.
func (m *MockSerialPort) SetDTR(dtr bool) error {
	m.record("dtr", dtr)
	return nil
}

// SetRTS records an RTS change.
func (m *MockSerialPort) SetRTS(rts bool) error {
	m.record("rts", rts)
	return nil
}

// SetReadTimeout implements the SetReadTimeout method for serial ports.
func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TimeoutErr != nil {
		return m.TimeoutErr
	}
	m.timeout = t
	return nil
}

// Close implements the Close method for serial ports.
func (m *MockSerialPort) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
	})
	m.record("close", true)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CloseError
}

// IsClosed returns true if the port has been closed (thread-safe).
func (m *MockSerialPort) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// Lines returns every complete line written so far, including blank ones.
func (m *MockSerialPort) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lines...)
}

// Commands returns the non-blank lines written so far.
func (m *MockSerialPort) Commands() []string {
	var cmds []string
	for _, l := range m.Lines() {
		if l != "" {
			cmds = append(cmds, l)
		}
	}
	return cmds
}

// Events returns the recorded control-line and flush events in order.
func (m *MockSerialPort) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// ControlEvents returns only the DTR and RTS events.
func (m *MockSerialPort) ControlEvents() []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Name == "dtr" || e.Name == "rts" {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockSerialPort) record(name string, value bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{Name: name, Value: value, At: time.Now()})
}
