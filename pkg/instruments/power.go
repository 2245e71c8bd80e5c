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

package instruments

import (
	"context"
	"strconv"
)

// PowerSupply drives an OWON ODP3031 class programmable supply.
type PowerSupply struct {
	inst Instrument
}

func NewPowerSupply(inst Instrument) *PowerSupply {
	return &PowerSupply{inst: inst}
}

func (p *PowerSupply) Close() error {
	return p.inst.Close()
}

func (p *PowerSupply) Identify(ctx context.Context) (string, error) {
	return Identify(ctx, p.inst)
}

// SetVolt sets the output voltage.
func (p *PowerSupply) SetVolt(ctx context.Context, volts float64) error {
	return p.inst.Write(ctx, ":VOLTage "+strconv.FormatFloat(volts, 'f', -1, 64))
}

// SetCurrent sets the current limit.
func (p *PowerSupply) SetCurrent(ctx context.Context, amps float64) error {
	return p.inst.Write(ctx, ":CURRent "+strconv.FormatFloat(amps, 'f', -1, 64))
}

// Output switches the output on or off.
func (p *PowerSupply) Output(ctx context.Context, on bool) error {
	if on {
		return p.inst.Write(ctx, ":OUTPut ON")
	}
	return p.inst.Write(ctx, ":OUTPut OFF")
}
