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

// Package device implements the host side of the EdPro device protocol: a
// line-oriented serial console carrying both free-form log output and
// structured ":key=value" replies to commands.
package device

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/amperia/edpro-tools/pkg/console"
	"github.com/amperia/edpro-tools/pkg/helpers/syncutil"
	"github.com/amperia/edpro-tools/pkg/serialport"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

const (
	DefaultRequestTimeout = 4 * time.Second
	DefaultBootTimeout    = 4 * time.Second
	DefaultJoinTimeout    = 2 * time.Second
	// ResetHold is how long each reboot handshake step is held.
	ResetHold = 100 * time.Millisecond
	// PrimeLines is the number of bare newlines written before the first
	// command after open. The firmware swallows the first bytes it receives
	// after boot.
	PrimeLines = 8

	maxLineLength = 4096
	readChunkSize = 256
)

// Config holds connection settings.
type Config struct {
	// Port is the serial device path. Empty means detect it by the kind's
	// USB bridge.
	Port           string
	Baud           int
	ReadTimeout    time.Duration
	RequestTimeout time.Duration
	BootTimeout    time.Duration
	JoinTimeout    time.Duration
	// RawLog strips severity prefixes from device log lines and colours
	// them by severity, for interactive console viewing.
	RawLog bool
}

// DefaultConfig returns the settings the firmware expects.
func DefaultConfig() Config {
	return Config{
		Baud:           serialport.ConsoleBaud,
		ReadTimeout:    serialport.DefaultReadTimeout,
		RequestTimeout: DefaultRequestTimeout,
		BootTimeout:    DefaultBootTimeout,
		JoinTimeout:    DefaultJoinTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Baud <= 0 {
		c.Baud = d.Baud
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.BootTimeout <= 0 {
		c.BootTimeout = d.BootTimeout
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = d.JoinTimeout
	}
	return c
}

// Option configures a Conn.
type Option func(*Conn)

// WithPortFactory sets the function used to open the serial port.
func WithPortFactory(f serialport.Factory) Option {
	return func(c *Conn) {
		c.factory = f
	}
}

// WithPortLister sets the port enumerator used when no port is configured.
func WithPortLister(l serialport.PortLister) Option {
	return func(c *Conn) {
		c.lister = l
	}
}

// WithClock sets the clock used for timeouts and the reset pulse.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Conn) {
		c.clock = clock
	}
}

// WithPrinter sets where device lines and traces are shown.
func WithPrinter(p *console.Printer) Option {
	return func(c *Conn) {
		c.printer = p
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Conn) {
		c.log = logger
	}
}

// Conn is a connection to one EdPro device. A background reader owns all
// reads from the port; callers write commands and pick up the replies the
// reader leaves in the mailbox. Only one request may be outstanding.
type Conn struct {
	clock   clockwork.Clock
	factory serialport.Factory
	lister  serialport.PortLister
	printer *console.Printer
	box     *mailbox
	port    serialport.Port
	stop    chan struct{}
	done    chan struct{}
	errs    chan error
	kind    Kind
	path    string
	log     zerolog.Logger
	cfg     Config
	mu      syncutil.Mutex // protects port, stop, done, path and primed
	alive   atomic.Bool
	busy    atomic.Bool
	primed  bool
}

// New returns an unconnected Conn for the given device kind.
func New(kind Kind, cfg Config, opts ...Option) *Conn {
	c := &Conn{
		kind:    kind,
		cfg:     cfg.withDefaults(),
		clock:   clockwork.NewRealClock(),
		factory: serialport.DefaultFactory,
		lister:  serialport.DefaultPortLister,
		printer: console.Discard(),
		log:     zerolog.Nop(),
		box:     newMailbox(),
		errs:    make(chan error, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind returns the device kind this connection was created for.
func (c *Conn) Kind() Kind {
	return c.kind
}

// Path returns the port the connection was opened on.
func (c *Conn) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Alive reports whether the reader is running without error.
func (c *Conn) Alive() bool {
	return c.alive.Load()
}

// Err delivers the I/O error that stopped the reader, if any.
func (c *Conn) Err() <-chan error {
	return c.errs
}

// Connect opens the port and starts the reader. With reboot set the device
// is put through its reset sequence: the port opens with DTR low and RTS
// high, then DTR is raised and RTS released with ResetHold between steps.
// Without reboot both lines stay inactive and a running device is attached
// to as is. An already open connection is closed first.
func (c *Conn) Connect(ctx context.Context, reboot bool) error {
	if err := c.Close(); err != nil {
		c.log.Warn().Err(err).Msg("failed to close previous connection")
	}

	c.info("connect")
	path, err := c.resolvePort()
	if err != nil {
		return c.fail(fmt.Errorf("%w: %w", ErrPortOpenFailed, err))
	}

	port, err := c.factory(path, serialport.ConsoleMode(c.cfg.Baud, reboot))
	if err != nil {
		return c.fail(fmt.Errorf("%w: %s: %w", ErrPortOpenFailed, path, err))
	}
	if err := port.SetReadTimeout(c.cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return c.fail(fmt.Errorf("%w: %s: failed to set read timeout: %w", ErrPortOpenFailed, path, err))
	}

	if reboot {
		if err := c.resetPulse(ctx, port); err != nil {
			_ = port.Close()
			return fmt.Errorf("reset %s: %w", path, err)
		}
	}

	c.log.Info().Str("port", path).Bool("reboot", reboot).Msg("device port opened")
	c.start(port, path)
	return nil
}

func (c *Conn) resolvePort() (string, error) {
	if c.cfg.Port != "" {
		return c.cfg.Port, nil
	}
	path, err := serialport.Detect(c.lister, c.kind.Bridge)
	if err != nil {
		return "", fmt.Errorf("detect %s port: %w", c.kind.Bridge.Name, err)
	}
	return path, nil
}

func (c *Conn) resetPulse(ctx context.Context, port serialport.Port) error {
	if err := c.sleep(ctx, ResetHold); err != nil {
		return err
	}
	if err := port.SetDTR(true); err != nil {
		return fmt.Errorf("failed to set DTR: %w", err)
	}
	if err := c.sleep(ctx, ResetHold); err != nil {
		return err
	}
	if err := port.SetRTS(false); err != nil {
		return fmt.Errorf("failed to release RTS: %w", err)
	}
	return nil
}

func (c *Conn) sleep(ctx context.Context, d time.Duration) error {
	t := c.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) start(port serialport.Port, path string) {
	stop := make(chan struct{})
	done := make(chan struct{})

	c.mu.Lock()
	c.port = port
	c.path = path
	c.stop = stop
	c.done = done
	c.primed = false
	c.mu.Unlock()

	c.box.clear()
	select {
	case <-c.errs:
	default:
	}
	c.alive.Store(true)
	go c.readLoop(port, stop, done)
}

// Close stops the reader, waiting at most JoinTimeout for it, and then
// closes the port. Closing a closed connection does nothing.
func (c *Conn) Close() error {
	c.mu.Lock()
	port, stop, done := c.port, c.stop, c.done
	c.port, c.stop, c.done = nil, nil, nil
	c.mu.Unlock()

	if port == nil {
		return nil
	}

	c.log.Debug().Msg("disconnect")
	close(stop)
	select {
	case <-done:
	case <-c.clock.After(c.cfg.JoinTimeout):
		c.log.Warn().Dur("timeout", c.cfg.JoinTimeout).Msg("reader did not stop in time")
	}
	c.alive.Store(false)

	if err := port.Close(); err != nil {
		return fmt.Errorf("failed to close port: %w", err)
	}
	return nil
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

func (c *Conn) readLoop(port serialport.Port, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	buf := make([]byte, readChunkSize)
	var pending []byte
	for {
		if stopped(stop) {
			return
		}
		n, err := port.Read(buf)
		if stopped(stop) {
			return
		}
		if err != nil {
			c.alive.Store(false)
			c.log.Error().Err(err).Msg("device read failed")
			c.printer.Error(c.kind.Tag, fmt.Errorf("read failed: %w", err))
			select {
			case c.errs <- err:
			default:
			}
			return
		}
		if n == 0 {
			continue
		}

		pending = append(pending, buf[:n]...)
		for {
			idx := bytes.IndexByte(pending, '\n')
			if idx < 0 {
				break
			}
			c.handleLine(pending[:idx])
			pending = pending[idx+1:]
		}
		if len(pending) > maxLineLength {
			c.handleLine(pending)
			pending = nil
		}
	}
}

func (c *Conn) handleLine(raw []byte) {
	line, ok := Classify(DecodeLine(raw), c.cfg.RawLog)
	if !ok {
		return
	}
	c.printer.DeviceLine(c.kind.Tag, line.Color, line.Text)
	if line.Kind == KindResponse {
		c.log.Debug().Str("line", line.Raw).Msg("response received")
		c.box.put(line.Raw)
	}
}

// fail logs err, shows it on the console and returns it.
func (c *Conn) fail(err error) error {
	c.log.Error().Err(err).Send()
	c.printer.Error(c.kind.Tag, err)
	return err
}

func (c *Conn) info(msg string) {
	c.printer.Tagged(c.kind.Tag, console.LightBlue, msg)
}

func (c *Conn) trace(msg string) {
	c.printer.Tagged(c.kind.Tag, console.Gray, msg)
}
