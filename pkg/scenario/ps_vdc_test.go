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
	"testing"

	"github.com/amperia/edpro-tools/pkg/instruments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runPSVDC(t *testing.T, b *bench) (Result, error) {
	t.Helper()
	s := NewPSTestVDC()
	s.Setup, s.Settle = 0, 0
	return Run(context.Background(), b.env(), s)
}

func TestPSTestVDC_Passes(t *testing.T) {
	t.Parallel()

	b := newBench()

	res, err := runPSVDC(t, b)

	require.NoError(t, err)
	require.Len(t, res.Measurements, len(DefaultPSVDCPoints))
	for _, m := range res.Measurements {
		assert.True(t, m.Passed, m.Step)
	}

	out := b.out.String()
	assert.Contains(t, out, "[ps_test_vdc] begin")
	assert.Contains(t, out, "[ps] volt: 5V | expected: 5.000000 | actual: 5.005000 | abs: 0.005000 | rel: 0.10%")
	assert.Contains(t, out, "[ps_test_vdc] OK")

	assert.Equal(t, []string{"devmode", "i", "set off", "set meas_v"}, b.db().Commands()[:4])
	assert.Equal(t, "set off", b.db().Commands()[len(b.db().Commands())-1])
	ps := b.ps().Commands()
	assert.Equal(t, []string{"devmode", "i", "mode dc", "set l 0", "set l 0", "v", "set l 1", "v"}, ps[:8])
	assert.Equal(t, "set l 0", ps[len(ps)-1])
	assert.Contains(t, b.meter.Lines(), string(instruments.MeterVDC20))
	assert.Empty(t, b.mm().Lines())

	assert.True(t, b.ps().IsClosed())
	assert.True(t, b.db().IsClosed())
	assert.True(t, b.meter.IsClosed())
	assert.NotEmpty(t, res.ReportPath)
}

func TestPSTestVDC_ReadbackOutOfTolerance(t *testing.T) {
	t.Parallel()

	b := newBench()
	b.gain = 1.05

	res, err := runPSVDC(t, b)

	require.ErrorIs(t, err, ErrChecksFailed)
	require.Len(t, res.Measurements, len(DefaultPSVDCPoints))
	assert.True(t, res.Measurements[0].Passed)
	assert.False(t, res.Measurements[10].Passed, res.Measurements[10].Step)
	assert.Contains(t, b.out.String(), "[ps_test_vdc] Scenario FAILED")
}

func TestPSTestVDC_OutputNotFollowing(t *testing.T) {
	t.Parallel()

	b := newBench()
	b.stuck = true

	res, err := runPSVDC(t, b)

	require.ErrorIs(t, err, ErrCheckFailed)
	assert.Contains(t, err.Error(), "Required voltage does not match: v=0.1,")
	assert.Len(t, res.Measurements, 1)
	assert.True(t, b.ps().IsClosed())
}
