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
)

// BootState is the progress of waiting for a device to finish booting.
type BootState int

const (
	BootWaiting BootState = iota
	BootReady
	BootFailed
)

func (s BootState) String() string {
	switch s {
	case BootReady:
		return "ready"
	case BootFailed:
		return "failed"
	default:
		return "waiting"
	}
}

// nextBootState applies one unsolicited response to the boot state. Only
// responses carrying init move it on.
func nextBootState(resp Response) BootState {
	ready, present := resp.Init()
	switch {
	case !present:
		return BootWaiting
	case ready:
		return BootReady
	default:
		return BootFailed
	}
}

// WaitBoot waits for the one-off init announcement a device makes at the
// end of its boot. init=1 means ready, init=0 fails with ErrBootInitFailed
// and no announcement within BootTimeout fails with ErrBootTimeout. Other
// responses seen meanwhile are traced and skipped.
func (c *Conn) WaitBoot(ctx context.Context) error {
	if !c.busy.CompareAndSwap(false, true) {
		return c.fail(fmt.Errorf("%w: boot wait", ErrRequestInProgress))
	}
	defer c.busy.Store(false)

	c.mu.Lock()
	open := c.port != nil
	c.mu.Unlock()
	if !open {
		return c.fail(fmt.Errorf("%w: boot wait", ErrNotConnected))
	}

	c.info("waiting for boot complete...")
	timer := c.clock.NewTimer(c.cfg.BootTimeout)
	defer timer.Stop()

	for {
		line, ok, err := c.box.wait(ctx, timer.Chan())
		if err != nil {
			return fmt.Errorf("boot wait: %w", err)
		}
		if !ok {
			return c.fail(fmt.Errorf("%w: no init after %s", ErrBootTimeout, c.cfg.BootTimeout))
		}

		resp := ParseResponse(line)
		c.trace("-> " + resp.String())
		switch nextBootState(resp) {
		case BootReady:
			c.info("ready")
			return nil
		case BootFailed:
			return c.fail(ErrBootInitFailed)
		case BootWaiting:
		}
	}
}
