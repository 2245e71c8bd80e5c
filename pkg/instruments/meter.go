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
	"fmt"
	"strconv"
)

// MeterMode is a function and range command for the bench multimeter.
type MeterMode string

const (
	MeterVDC200m MeterMode = ":MEASure:VOLTage:DC 0"
	MeterVDC2    MeterMode = ":MEASure:VOLTage:DC 1"
	MeterVDC20   MeterMode = ":MEASure:VOLTage:DC 2"
	MeterVDC200  MeterMode = ":MEASure:VOLTage:DC 3"
	MeterVAC200m MeterMode = ":MEASure:VOLTage:AC 0"
	MeterVAC2    MeterMode = ":MEASure:VOLTage:AC 1"
	MeterVAC20   MeterMode = ":MEASure:VOLTage:AC 2"
	MeterVAC200  MeterMode = ":MEASure:VOLTage:AC 3"
	MeterFreq20  MeterMode = ":MEASure:FREQuency 2"
)

// VDCRange picks the smallest DC voltage range that holds volts.
func VDCRange(volts float64) MeterMode {
	switch {
	case volts <= 0.1:
		return MeterVDC200m
	case volts <= 1.0:
		return MeterVDC2
	case volts <= 10.0:
		return MeterVDC20
	default:
		return MeterVDC200
	}
}

// Meter drives a Rigol DM3058 class bench multimeter.
type Meter struct {
	inst Instrument
}

func NewMeter(inst Instrument) *Meter {
	return &Meter{inst: inst}
}

func (m *Meter) Close() error {
	return m.inst.Close()
}

func (m *Meter) Identify(ctx context.Context) (string, error) {
	return Identify(ctx, m.inst)
}

func (m *Meter) SetMode(ctx context.Context, mode MeterMode) error {
	return m.inst.Write(ctx, string(mode))
}

func (m *Meter) MeasureVDC(ctx context.Context) (float64, error) {
	return m.measure(ctx, ":MEASure:VOLTage:DC?")
}

func (m *Meter) MeasureVAC(ctx context.Context) (float64, error) {
	return m.measure(ctx, ":MEASure:VOLTage:AC?")
}

func (m *Meter) MeasureFreq(ctx context.Context) (float64, error) {
	return m.measure(ctx, ":MEASure:FREQuency?")
}

func (m *Meter) measure(ctx context.Context, query string) (float64, error) {
	reply, err := m.inst.Ask(ctx, query)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected reply to %s: %q: %w", query, reply, err)
	}
	return v, nil
}
