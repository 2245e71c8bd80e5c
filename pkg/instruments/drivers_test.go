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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockInstrument struct {
	mock.Mock
}

func (m *mockInstrument) Write(ctx context.Context, cmd string) error {
	args := m.Called(ctx, cmd)
	//nolint:wrapcheck // mock
	return args.Error(0)
}

func (m *mockInstrument) Ask(ctx context.Context, cmd string) (string, error) {
	args := m.Called(ctx, cmd)
	//nolint:wrapcheck // mock
	return args.String(0), args.Error(1)
}

func (m *mockInstrument) Close() error {
	args := m.Called()
	//nolint:wrapcheck // mock
	return args.Error(0)
}

var _ Instrument = (*SerialInstrument)(nil)

func TestMeter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inst := &mockInstrument{}
	inst.On("Write", ctx, ":MEASure:VOLTage:DC 0").Return(nil)
	inst.On("Ask", ctx, ":MEASure:VOLTage:DC?").Return("9.87654E-03", nil)
	inst.On("Ask", ctx, ":MEASure:VOLTage:AC?").Return("1.000000E+00", nil)
	inst.On("Ask", ctx, ":MEASure:FREQuency?").Return("overload", nil)
	inst.On("Close").Return(nil)
	m := NewMeter(inst)

	require.NoError(t, m.SetMode(ctx, MeterVDC200m))

	vdc, err := m.MeasureVDC(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.00987654, vdc, 1e-12)

	vac, err := m.MeasureVAC(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vac, 1e-12)

	_, err = m.MeasureFreq(ctx)
	require.Error(t, err)

	require.NoError(t, m.Close())
	inst.AssertExpectations(t)
}

func TestPowerSupply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inst := &mockInstrument{}
	inst.On("Ask", ctx, "*IDN?").Return("OWON,ODP3031,2203001,FV:V1.3.0", nil)
	inst.On("Write", ctx, ":VOLTage 1.1").Return(nil)
	inst.On("Write", ctx, ":VOLTage 0").Return(nil)
	inst.On("Write", ctx, ":CURRent 0.5").Return(nil)
	inst.On("Write", ctx, ":OUTPut ON").Return(nil)
	inst.On("Write", ctx, ":OUTPut OFF").Return(nil)
	p := NewPowerSupply(inst)

	id, err := p.Identify(ctx)
	require.NoError(t, err)
	assert.Contains(t, id, "ODP3031")
	require.NoError(t, p.SetVolt(ctx, 1.1))
	require.NoError(t, p.SetVolt(ctx, 0))
	require.NoError(t, p.SetCurrent(ctx, 0.5))
	require.NoError(t, p.Output(ctx, true))
	require.NoError(t, p.Output(ctx, false))
	inst.AssertExpectations(t)
}

func TestGenerator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inst := &mockInstrument{}
	for _, cmd := range []string{
		":FUNC:SINE:FREQ 500",
		":FUNC:SINE:AMPL 2",
		":FUNCtion:ARB:BUILtinwform 39",
		":FUNCtion:ARB:offset 3",
		":CHANnel:CH1 ON",
		":CHANnel:CH1 OFF",
		"*RST",
	} {
		inst.On("Ask", ctx, cmd).Return("", nil).Once()
	}
	g := NewGenerator(inst)

	require.NoError(t, g.SetAC(ctx, 2, 500))
	require.NoError(t, g.SetDC(ctx, 3))
	require.NoError(t, g.Output(ctx, true))
	require.NoError(t, g.Output(ctx, false))
	require.NoError(t, g.Reset(ctx))
	inst.AssertExpectations(t)
}

func TestGenerator_StopsOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inst := &mockInstrument{}
	inst.On("Ask", ctx, ":FUNC:SINE:FREQ 50").Return("", ErrTimeout)
	g := NewGenerator(inst)

	err := g.SetAC(ctx, 1, 50)

	require.ErrorIs(t, err, ErrTimeout)
	inst.AssertNotCalled(t, "Ask", ctx, ":FUNC:SINE:AMPL 1")
}
