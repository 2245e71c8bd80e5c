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
	"context"
	"fmt"
	"math"
	"time"

	"github.com/amperia/edpro-tools/pkg/device"
	"github.com/amperia/edpro-tools/pkg/instruments"
)

// DefaultPSVDCPoints are the output levels the power source DC test steps
// through. The trailing swings check the output follows a full-range change
// within one settle time.
var DefaultPSVDCPoints = []float64{0, 0.1, 0.2, 0.4, 0.6, 0.8, 1, 2, 3, 4, 5, 0, 5, 0}

const (
	psVDCSetup = time.Second
	psVDCStep  = 500 * time.Millisecond
	// psVDCSourceTol is how far the reference reading may be from the
	// requested level before the output is considered wrong.
	psVDCSourceTol = 0.06
	psVDCAbsTol    = 0.04
	psVDCRelTol    = 0.02
)

// PSTestVDC checks the power source DC output measurement against the bench
// meter. The dev board routes the output to the meter.
type PSTestVDC struct {
	Points []float64
	// Setup is the pause after routing, Settle the pause after each level
	// change. Zero means none.
	Setup  time.Duration
	Settle time.Duration
}

func NewPSTestVDC() PSTestVDC {
	return PSTestVDC{Points: DefaultPSVDCPoints, Setup: psVDCSetup, Settle: psVDCStep}
}

func (PSTestVDC) Name() string {
	return "ps_test_vdc"
}

func (s PSTestVDC) Run(ctx context.Context, env *Env) error {
	if err := env.Devices(ctx, device.KindDevBoard, device.KindPowerSource); err != nil {
		return err
	}
	dbConn, err := env.Device(ctx, device.KindDevBoard)
	if err != nil {
		return err
	}
	psConn, err := env.Device(ctx, device.KindPowerSource)
	if err != nil {
		return err
	}
	meter, err := env.Meter(ctx)
	if err != nil {
		return err
	}

	board := device.NewDevBoard(dbConn)
	ps := device.NewPowerSource(psConn)

	if err := board.Off(ctx); err != nil {
		return fmt.Errorf("release relays: %w", err)
	}
	if err := ps.SetMode(ctx, "dc"); err != nil {
		return fmt.Errorf("set dc mode: %w", err)
	}
	if err := ps.SetVolt(ctx, 0); err != nil {
		return fmt.Errorf("reset output: %w", err)
	}
	if err := meter.SetMode(ctx, instruments.MeterVDC20); err != nil {
		return fmt.Errorf("set meter range: %w", err)
	}
	if err := board.MeasV(ctx); err != nil {
		return fmt.Errorf("route voltage probe: %w", err)
	}
	if err := env.Wait(ctx, s.Setup); err != nil {
		return err
	}

	r := env.Reporter(device.KindPowerSource.Tag)
	for _, v := range s.Points {
		if err := ps.SetVolt(ctx, v); err != nil {
			return fmt.Errorf("set output %gV: %w", v, err)
		}
		if err := env.Wait(ctx, s.Settle); err != nil {
			return err
		}

		expected, err := meter.MeasureVDC(ctx)
		if err != nil {
			return fmt.Errorf("reference reading: %w", err)
		}
		if err := env.Check(math.Abs(v-expected) < psVDCSourceTol,
			fmt.Sprintf("Required voltage does not match: v=%g, reference=%0.6f", v, expected)); err != nil {
			return err
		}
		values, err := ps.Values(ctx)
		if err != nil {
			return fmt.Errorf("device reading: %w", err)
		}

		r.SetStep(fmt.Sprintf("%gV", v))
		r.Trace(fmt.Sprintf("volt: %gV | expected: %0.6f | actual: %0.6f | abs: %0.6f | rel: %0.2f%%",
			v, expected, values.U, Eabs(expected, values.U), Erel(expected, values.U)*100))
		r.ExpectAbsRel(expected, values.U, psVDCAbsTol, psVDCRelTol)
	}

	if err := ps.SetVolt(ctx, 0); err != nil {
		return fmt.Errorf("reset output: %w", err)
	}
	if err := board.Off(ctx); err != nil {
		return fmt.Errorf("release relays: %w", err)
	}
	r.PrintResult()
	return nil
}
