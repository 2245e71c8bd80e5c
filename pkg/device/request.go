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

package device

import (
	"context"
	"fmt"
	"strings"
)

type requestOptions struct {
	wait  bool
	trace bool
}

// RequestOption adjusts a single request.
type RequestOption func(*requestOptions)

// NoWait sends the command without waiting for a reply. The request then
// returns an empty response as soon as the command is written.
func NoWait() RequestOption {
	return func(o *requestOptions) {
		o.wait = false
	}
}

// Trace controls whether the command and its reply are shown on the console.
func Trace(on bool) RequestOption {
	return func(o *requestOptions) {
		o.trace = on
	}
}

// Request writes command and waits up to RequestTimeout for the next
// structured reply. A reply left over from before the command is discarded.
// Overlapping calls are rejected with ErrRequestInProgress instead of
// risking one caller receiving the other's reply.
func (c *Conn) Request(ctx context.Context, command string, opts ...RequestOption) (Response, error) {
	o := requestOptions{wait: true, trace: true}
	for _, opt := range opts {
		opt(&o)
	}

	if !c.busy.CompareAndSwap(false, true) {
		return Response{}, c.fail(fmt.Errorf("%w: %q", ErrRequestInProgress, command))
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	port := c.port
	prime := port != nil && !c.primed
	if prime {
		c.primed = true
	}
	c.mu.Unlock()

	if port == nil {
		return Response{}, c.fail(fmt.Errorf("%w: %q", ErrNotConnected, command))
	}

	if o.trace {
		c.trace(fmt.Sprintf("<- '%s'", command))
	}
	c.log.Debug().Str("cmd", command).Bool("wait", o.wait).Msg("request")

	c.box.clear()
	if prime {
		if _, err := port.Write([]byte(strings.Repeat("\n", PrimeLines))); err != nil {
			return Response{}, fmt.Errorf("failed to prime uart: %w", err)
		}
	}
	if _, err := port.Write([]byte(command + "\n")); err != nil {
		return Response{}, fmt.Errorf("failed to write %q: %w", command, err)
	}
	if err := port.Drain(); err != nil {
		return Response{}, fmt.Errorf("failed to flush %q: %w", command, err)
	}

	if !o.wait {
		return Response{}, nil
	}

	timer := c.clock.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	line, ok, err := c.box.wait(ctx, timer.Chan())
	if err != nil {
		return Response{}, fmt.Errorf("request %q: %w", command, err)
	}
	if !ok {
		return Response{}, c.fail(fmt.Errorf("%w: %q after %s", ErrRequestTimeout, command, c.cfg.RequestTimeout))
	}

	resp := ParseResponse(line)
	if o.trace {
		c.trace("-> " + resp.String())
	}
	return resp, nil
}

// Cmd is Request for commands that acknowledge with success=1. Any other
// reply, including a missing success key, fails with ErrCommandFailed.
func (c *Conn) Cmd(ctx context.Context, command string) (Response, error) {
	resp, err := c.Request(ctx, command)
	if err != nil {
		return resp, err
	}
	if !resp.Success() {
		return resp, c.fail(fmt.Errorf("%w: %q replied %s", ErrCommandFailed, command, resp))
	}
	return resp, nil
}

// Send writes command without waiting or tracing. It is what the
// interactive log console uses to pass typed lines through.
func (c *Conn) Send(ctx context.Context, command string) error {
	_, err := c.Request(ctx, command, NoWait(), Trace(false))
	return err
}

// SetDevMode switches the firmware into development mode.
func (c *Conn) SetDevMode(ctx context.Context) error {
	_, err := c.Request(ctx, "devmode")
	return err
}

// SaveConf persists the device configuration to flash.
func (c *Conn) SaveConf(ctx context.Context) error {
	_, err := c.Cmd(ctx, "conf s")
	return err
}
