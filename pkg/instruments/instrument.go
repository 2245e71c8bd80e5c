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

// Package instruments drives the reference lab equipment used to check EdPro
// devices: a bench multimeter, a programmable power supply and a waveform
// generator. All of them speak line-based SCPI.
package instruments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amperia/edpro-tools/pkg/console"
	"github.com/amperia/edpro-tools/pkg/helpers/syncutil"
	"github.com/amperia/edpro-tools/pkg/serialport"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds how long Ask waits for a reply line.
const DefaultTimeout = 5 * time.Second

var (
	ErrTimeout = errors.New("instrument reply timeout")
	ErrClosed  = errors.New("instrument closed")
)

// Instrument is a synchronous SCPI endpoint.
type Instrument interface {
	Write(ctx context.Context, cmd string) error
	Ask(ctx context.Context, cmd string) (string, error)
	Close() error
}

// Option configures a SerialInstrument.
type Option func(*SerialInstrument)

func WithClock(clock clockwork.Clock) Option {
	return func(s *SerialInstrument) {
		s.clock = clock
	}
}

func WithPrinter(p *console.Printer) Option {
	return func(s *SerialInstrument) {
		s.printer = p
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *SerialInstrument) {
		s.log = logger
	}
}

// WithTimeout sets how long Ask waits for a reply.
func WithTimeout(d time.Duration) Option {
	return func(s *SerialInstrument) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPrompt strips a trailing prompt some instruments append to replies.
func WithPrompt(prompt string) Option {
	return func(s *SerialInstrument) {
		s.prompt = prompt
	}
}

// WithPacing keeps at least d between consecutive commands. Some bench
// meters silently drop a command sent right after another.
func WithPacing(d time.Duration) Option {
	return func(s *SerialInstrument) {
		if d > 0 {
			s.pace = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// SerialInstrument speaks SCPI over a serial (or USB CDC) port.
type SerialInstrument struct {
	clock   clockwork.Clock
	port    serialport.Port
	printer *console.Printer
	pace    *rate.Limiter
	tag     string
	prompt  string
	pending []byte
	log     zerolog.Logger
	timeout time.Duration
	mu      syncutil.Mutex // serializes exchanges and protects port and pending
}

// Open opens an instrument on path. tag prefixes its console traces.
func Open(factory serialport.Factory, tag, path string, baud int, opts ...Option) (*SerialInstrument, error) {
	s := &SerialInstrument{
		tag:     tag,
		clock:   clockwork.NewRealClock(),
		printer: console.Discard(),
		log:     zerolog.Nop(),
		timeout: DefaultTimeout,
		pace:    rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.printer.Tagged(tag, console.LightBlue, "connect")
	if factory == nil {
		factory = serialport.DefaultFactory
	}
	port, err := factory(path, serialport.InstrumentMode(baud))
	if err != nil {
		err = fmt.Errorf("cannot open %s on %s: %w", tag, path, err)
		s.printer.Error(tag, err)
		return nil, err
	}
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	s.port = port
	return s, nil
}

// Write sends cmd without waiting for a reply.
func (s *SerialInstrument) Write(ctx context.Context, cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, cmd)
}

func (s *SerialInstrument) write(ctx context.Context, cmd string) error {
	if s.port == nil {
		return ErrClosed
	}
	if err := s.pace.Wait(ctx); err != nil {
		return fmt.Errorf("%s %q: %w", s.tag, cmd, err)
	}
	s.printer.Tagged(s.tag, console.Gray, "<- "+cmd)
	s.log.Debug().Str("instrument", s.tag).Str("cmd", cmd).Msg("scpi write")
	if _, err := s.port.Write([]byte(cmd + "\n")); err != nil {
		err = fmt.Errorf("failed to write %q: %w", cmd, err)
		s.printer.Error(s.tag, err)
		return err
	}
	return nil
}

// Ask sends cmd and returns the reply line without its terminator. Input
// left over from an earlier exchange, such as a reply that arrived after its
// query timed out, is discarded before cmd is sent.
func (s *SerialInstrument) Ask(ctx context.Context, cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.discardStale(); err != nil {
		return "", err
	}
	if err := s.write(ctx, cmd); err != nil {
		return "", err
	}
	line, err := s.readLine(ctx)
	if err != nil {
		err = fmt.Errorf("%s %q: %w", s.tag, cmd, err)
		s.printer.Error(s.tag, err)
		return "", err
	}

	reply := strings.TrimSpace(line)
	if s.prompt != "" {
		reply = strings.TrimSpace(strings.TrimSuffix(reply, s.prompt))
	}
	s.printer.Tagged(s.tag, console.Gray, "-> "+reply)
	return reply, nil
}

func (s *SerialInstrument) discardStale() error {
	if s.port == nil {
		return ErrClosed
	}
	if len(s.pending) > 0 {
		s.log.Debug().Str("instrument", s.tag).Int("bytes", len(s.pending)).Msg("dropping stale input")
	}
	s.pending = nil
	if err := s.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("%s: failed to reset input: %w", s.tag, err)
	}
	return nil
}

func (s *SerialInstrument) readLine(ctx context.Context) (string, error) {
	deadline := s.clock.Now().Add(s.timeout)
	buf := make([]byte, 256)
	for {
		if idx := bytes.IndexByte(s.pending, '\n'); idx >= 0 {
			line := string(s.pending[:idx])
			s.pending = s.pending[idx+1:]
			return line, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if !s.clock.Now().Before(deadline) {
			return "", ErrTimeout
		}
		n, err := s.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("read failed: %w", err)
		}
		s.pending = append(s.pending, buf[:n]...)
	}
}

// Close releases the port. Closing twice is a no-op.
func (s *SerialInstrument) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	s.printer.Tagged(s.tag, console.LightBlue, "disconnect")
	port := s.port
	s.port = nil
	if err := port.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", s.tag, err)
	}
	return nil
}

// Identify returns the *IDN? reply.
func Identify(ctx context.Context, inst Instrument) (string, error) {
	return inst.Ask(ctx, "*IDN?")
}
