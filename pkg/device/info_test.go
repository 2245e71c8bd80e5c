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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Version
		number  int
		wantErr bool
	}{
		{in: "0.37", want: Version{0, 37}, number: 37},
		{in: "0.30", want: Version{0, 30}, number: 30},
		{in: "1.2", want: Version{1, 2}, number: 1002},
		{in: " 0.1 ", want: Version{0, 1}, number: 1},
		{in: "1", wantErr: true},
		{in: "a.b", wantErr: true},
		{in: "1.x", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			v, err := ParseVersion(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.number, v.Number())
		})
	}
}

func TestVersion_Compare(t *testing.T) {
	t.Parallel()

	v := func(s string) Version {
		parsed, err := ParseVersion(s)
		require.NoError(t, err)
		return parsed
	}

	assert.True(t, v("0.37").AtLeast(v("0.30")))
	assert.False(t, v("0.30").AtLeast(v("0.37")))
	assert.True(t, v("0.30").AtLeast(v("0.30")))
	assert.True(t, v("0.10").AtLeast(v("0.9")), "minor compares numerically")
	assert.False(t, v("0.9").AtLeast(v("0.10")))
	assert.True(t, v("1.0").AtLeast(v("0.999")))
	// Minor numbers past 999 spill into the major part.
	assert.Equal(t, v("1.0").Number(), v("0.1000").Number())
	assert.Equal(t, "0.37", v("0.37").String())
}

func TestCheckInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		info    Info
		kind    Kind
	}{
		{name: "exact", kind: KindMultimeter, info: Info{Name: "Multimeter", Version: "0.37"}},
		{name: "newer", kind: KindPowerSource, info: Info{Name: "Powersource", Version: "0.41"}},
		{name: "newer major", kind: KindDevBoard, info: Info{Name: "Calibrator", Version: "1.0"}},
		{name: "older", kind: KindMultimeter, info: Info{Name: "Multimeter", Version: "0.36"}, wantErr: ErrIdentityMismatch},
		{name: "wrong name", kind: KindMultimeter, info: Info{Name: "Powersource", Version: "0.37"}, wantErr: ErrIdentityMismatch},
		{name: "bad version", kind: KindMultimeter, info: Info{Name: "Multimeter", Version: "beta"}, wantErr: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckInfo(tt.kind, tt.info)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestReadInfo(t *testing.T) {
	t.Parallel()

	t.Run("identity", func(t *testing.T) {
		t.Parallel()

		r := &mockRequester{}
		r.On("Request", context.Background(), "i").
			Return(ParseResponse(":name=Multimeter version=0.37"), nil)

		info, err := ReadInfo(context.Background(), r)

		require.NoError(t, err)
		assert.Equal(t, Info{Name: "Multimeter", Version: "0.37"}, info)
		r.AssertExpectations(t)
	})

	t.Run("missing version", func(t *testing.T) {
		t.Parallel()

		r := &mockRequester{}
		r.On("Request", context.Background(), "i").
			Return(ParseResponse(":name=Multimeter"), nil)

		_, err := ReadInfo(context.Background(), r)

		require.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("request error", func(t *testing.T) {
		t.Parallel()

		r := &mockRequester{}
		r.On("Request", context.Background(), "i").Return(Response{}, ErrRequestTimeout)

		_, err := ReadInfo(context.Background(), r)

		require.ErrorIs(t, err, ErrRequestTimeout)
	})
}
