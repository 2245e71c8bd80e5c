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

// GeneratorPrompt terminates every reply of the OWON AG series.
const GeneratorPrompt = "->"

// dcWaveform is the index of the flat DC waveform among the built-in
// arbitrary waveforms.
const dcWaveform = 39

// Generator drives an OWON AG051 class waveform generator. The generator
// answers every command, so each one is sent with Ask to keep replies in
// step.
type Generator struct {
	inst Instrument
}

func NewGenerator(inst Instrument) *Generator {
	return &Generator{inst: inst}
}

func (g *Generator) Close() error {
	return g.inst.Close()
}

func (g *Generator) Identify(ctx context.Context) (string, error) {
	return Identify(ctx, g.inst)
}

func (g *Generator) exec(ctx context.Context, cmd string) error {
	_, err := g.inst.Ask(ctx, cmd)
	return err
}

// SetAC outputs a sine of the given amplitude and frequency.
func (g *Generator) SetAC(ctx context.Context, amplitude float64, hz int) error {
	if err := g.exec(ctx, ":FUNC:SINE:FREQ "+strconv.Itoa(hz)); err != nil {
		return err
	}
	return g.exec(ctx, ":FUNC:SINE:AMPL "+strconv.FormatFloat(amplitude, 'f', -1, 64))
}

// SetDC outputs a constant voltage using the flat built-in waveform.
func (g *Generator) SetDC(ctx context.Context, volts float64) error {
	if err := g.exec(ctx, ":FUNCtion:ARB:BUILtinwform "+strconv.Itoa(dcWaveform)); err != nil {
		return err
	}
	return g.exec(ctx, ":FUNCtion:ARB:offset "+strconv.FormatFloat(volts, 'f', -1, 64))
}

// Output switches channel 1 on or off.
func (g *Generator) Output(ctx context.Context, on bool) error {
	if on {
		return g.exec(ctx, ":CHANnel:CH1 ON")
	}
	return g.exec(ctx, ":CHANnel:CH1 OFF")
}

// Reset restores factory settings.
func (g *Generator) Reset(ctx context.Context) error {
	return g.exec(ctx, "*RST")
}
