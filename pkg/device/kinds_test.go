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
	"testing"

	"github.com/amperia/edpro-tools/pkg/serialport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRequester struct {
	mock.Mock
}

func (m *mockRequester) Request(ctx context.Context, command string, _ ...RequestOption) (Response, error) {
	args := m.Called(ctx, command)
	resp, _ := args.Get(0).(Response)
	//nolint:wrapcheck // mock
	return resp, args.Error(1)
}

func (m *mockRequester) Cmd(ctx context.Context, command string) (Response, error) {
	args := m.Called(ctx, command)
	resp, _ := args.Get(0).(Response)
	//nolint:wrapcheck // mock
	return resp, args.Error(1)
}

var _ Requester = (*Conn)(nil)

func TestKindByTag(t *testing.T) {
	t.Parallel()

	k, err := KindByTag("mm")
	require.NoError(t, err)
	assert.Equal(t, "Multimeter", k.Name)
	assert.Equal(t, "0.37", k.MinVersion)
	assert.Equal(t, serialport.BridgeCP210x, k.Bridge)

	k, err = KindByTag("ps")
	require.NoError(t, err)
	assert.Equal(t, "Powersource", k.Name)

	k, err = KindByTag("db")
	require.NoError(t, err)
	assert.Equal(t, serialport.BridgeCH340, k.Bridge)

	_, err = KindByTag("xx")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestMultimeter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("values", func(t *testing.T) {
		t.Parallel()

		r := &mockRequester{}
		r.On("Request", ctx, "v").
			Return(ParseResponse(":mode=VDC rdiv=1 gain=3 finit=1 value=0.0123"), nil)

		v, err := NewMultimeter(r).Values(ctx)

		require.NoError(t, err)
		assert.Equal(t, MultimeterValues{Mode: "VDC", RDiv: 1, Gain: 3, FInit: true, Value: 0.0123}, v)
	})

	t.Run("values missing field", func(t *testing.T) {
		t.Parallel()

		r := &mockRequester{}
		r.On("Request", ctx, "v").Return(ParseResponse(":mode=VDC rdiv=1"), nil)

		_, err := NewMultimeter(r).Values(ctx)

		require.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("mode and value", func(t *testing.T) {
		t.Parallel()

		r := &mockRequester{}
		r.On("Request", ctx, "mode").Return(ParseResponse(":mode=VAC"), nil)
		r.On("Request", ctx, "v").Return(ParseResponse(":mode=VAC value=2.5"), nil)
		r.On("Cmd", ctx, "mode dc").Return(ParseResponse(":success=1"), nil)
		mm := NewMultimeter(r)

		mode, err := mm.Mode(ctx)
		require.NoError(t, err)
		assert.Equal(t, "VAC", mode)

		value, err := mm.Value(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 2.5, value, 1e-9)

		require.NoError(t, mm.SetMode(ctx, "dc"))
		r.AssertExpectations(t)
	})
}

func TestPowerSource(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ok := ParseResponse(":success=1")

	r := &mockRequester{}
	r.On("Cmd", ctx, "v").Return(ParseResponse(":success=1 U=5.02 I=0.1"), nil)
	r.On("Cmd", ctx, "mode dc").Return(ok, nil)
	r.On("Cmd", ctx, "set l 12").Return(ok, nil)
	r.On("Cmd", ctx, "set l 0").Return(ok, nil)
	r.On("Cmd", ctx, "set f 50").Return(ok, nil)
	ps := NewPowerSource(r)

	v, err := ps.Values(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 5.02, v.U, 1e-9)
	assert.InDelta(t, 0.1, v.I, 1e-9)

	require.NoError(t, ps.SetMode(ctx, "dc"))
	require.NoError(t, ps.SetVolt(ctx, 1.2))
	require.NoError(t, ps.SetVolt(ctx, 0.001))
	require.NoError(t, ps.SetFreq(ctx, 50))
	r.AssertExpectations(t)
}

func TestPowerSource_ValuesFailed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := &mockRequester{}
	r.On("Cmd", ctx, "v").Return(ParseResponse(":success=0"), ErrCommandFailed)

	_, err := NewPowerSource(r).Values(ctx)

	require.ErrorIs(t, err, ErrCommandFailed)
}

func TestDevBoard(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		call func(*DevBoard) error
		want string
	}{
		{func(d *DevBoard) error { return d.Off(ctx) }, "set off"},
		{func(d *DevBoard) error { return d.MMVGen(ctx, ProbeNone) }, "set mm_vgen"},
		{func(d *DevBoard) error { return d.MMVGen(ctx, ProbeV) }, "set mm_vgen meas_v"},
		{func(d *DevBoard) error { return d.MMVPow(ctx, ProbeV|ProbeI) }, "set mm_vpow meas_v"},
		{func(d *DevBoard) error { return d.MMVPowRev(ctx, ProbeNone) }, "set mm_vpow_rev"},
		{func(d *DevBoard) error { return d.MMVGnd(ctx, ProbeV) }, "set mm_vgnd meas_v"},
		{func(d *DevBoard) error { return d.MMIGen(ctx, ProbeI) }, "set mm_igen meas_i"},
		{func(d *DevBoard) error { return d.MMIPow(ctx, ProbeV) }, "set mm_ipow"},
		{func(d *DevBoard) error { return d.MMIPowRev(ctx, ProbeI) }, "set mm_ipow_rev meas_i"},
		{func(d *DevBoard) error { return d.MMRGnd(ctx) }, "set mm_rgnd"},
		{func(d *DevBoard) error { return d.MMRSel(ctx, 1) }, "set mm_rsel 1"},
		{func(d *DevBoard) error { return d.MMRSel(ctx, 1, 2, 3, 4) }, "set mm_rsel 1 2 3"},
		{func(d *DevBoard) error { return d.PPLoad(ctx, 2, ProbeI|ProbeV) }, "set pp_load 2 meas_i meas_v"},
		{func(d *DevBoard) error { return d.PPLoad(ctx, 0, ProbeNone) }, "set pp_load 0"},
		{func(d *DevBoard) error { return d.MeasV(ctx) }, "set meas_v"},
		{func(d *DevBoard) error { return d.MeasI(ctx) }, "set meas_i"},
		{func(d *DevBoard) error { return d.MeasR(ctx, 5, 6) }, "set meas_r 5 6"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			r := &mockRequester{}
			r.On("Cmd", ctx, tt.want).Return(ParseResponse(":success=1"), nil)

			require.NoError(t, tt.call(NewDevBoard(r)))
			r.AssertExpectations(t)
		})
	}
}
