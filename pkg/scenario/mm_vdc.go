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

// DefaultVDCPoints are the voltages the multimeter DC test steps through.
var DefaultVDCPoints = []float64{0.001, 0.010, 0.100, 1.0, 1.1, 10.0, 20.0, 30.0}

const (
	vdcSettle = time.Second
	// vdcSourceTol is how far the reference reading may be from the set
	// point before the source is considered broken.
	vdcSourceTol = 0.1
	vdcAbsTol    = 0.01
	vdcRelTol    = 0.02
)

// MMTestVDC checks the multimeter DC voltage range against the bench meter
// while the bench supply steps through Points.
type MMTestVDC struct {
	Points []float64
	// Settle is the pause after each supply change. Zero means none.
	Settle time.Duration
}

// NewMMTestVDC returns the test with its default points and settle time.
func NewMMTestVDC() MMTestVDC {
	return MMTestVDC{Points: DefaultVDCPoints, Settle: vdcSettle}
}

func (MMTestVDC) Name() string {
	return "mm_test_vdc"
}

func (s MMTestVDC) Run(ctx context.Context, env *Env) error {
	conn, err := env.Device(ctx, device.KindMultimeter)
	if err != nil {
		return err
	}
	meter, err := env.Meter(ctx)
	if err != nil {
		return err
	}
	power, err := env.Power(ctx)
	if err != nil {
		return err
	}

	mm := device.NewMultimeter(conn)
	if err := mm.SetMode(ctx, "dc"); err != nil {
		return fmt.Errorf("set dc mode: %w", err)
	}
	mode, err := mm.Mode(ctx)
	if err != nil {
		return fmt.Errorf("read mode: %w", err)
	}
	if err := env.CheckStr(mode, "VDC", "Invalid device mode!"); err != nil {
		return err
	}

	rng := instruments.MeterVDC200m
	if err := meter.SetMode(ctx, rng); err != nil {
		return fmt.Errorf("set meter range: %w", err)
	}
	if err := power.SetVolt(ctx, 0); err != nil {
		return fmt.Errorf("reset supply: %w", err)
	}
	if err := env.Wait(ctx, s.Settle); err != nil {
		return err
	}

	r := env.Reporter(device.KindMultimeter.Tag)
	for _, v := range s.Points {
		if want := instruments.VDCRange(v); want != rng {
			rng = want
			if err := meter.SetMode(ctx, rng); err != nil {
				return fmt.Errorf("set meter range: %w", err)
			}
		}
		if err := power.SetVolt(ctx, v); err != nil {
			return fmt.Errorf("set supply %gV: %w", v, err)
		}
		if err := env.Wait(ctx, s.Settle); err != nil {
			return err
		}

		// first reading after a change is unreliable
		if _, err := meter.MeasureVDC(ctx); err != nil {
			return fmt.Errorf("reference reading: %w", err)
		}
		expected, err := meter.MeasureVDC(ctx)
		if err != nil {
			return fmt.Errorf("reference reading: %w", err)
		}
		actual, err := mm.Value(ctx)
		if err != nil {
			return fmt.Errorf("device reading: %w", err)
		}

		if err := env.Check(math.Abs(v-expected) < vdcSourceTol,
			fmt.Sprintf("Cannot set voltage: v=%g, reference=%0.6f", v, expected)); err != nil {
			return err
		}

		r.SetStep(fmt.Sprintf("%gV", v))
		r.Trace(fmt.Sprintf("v: %gV | expected: %0.6f | actual: %0.6f | abs: %0.6f | rel: %0.2f%%",
			v, expected, actual, Eabs(expected, actual), Erel(expected, actual)*100))
		r.ExpectAbsRel(expected, actual, vdcAbsTol, vdcRelTol)
	}

	if err := power.SetVolt(ctx, 0); err != nil {
		return fmt.Errorf("reset supply: %w", err)
	}
	r.PrintResult()
	return nil
}
