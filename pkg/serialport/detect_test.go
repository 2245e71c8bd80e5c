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

package serialport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

func lister(ports ...*enumerator.PortDetails) PortLister {
	return func() ([]*enumerator.PortDetails, error) {
		return ports, nil
	}
}

func TestBridgeMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		port   *enumerator.PortDetails
		name   string
		bridge Bridge
		want   bool
	}{
		{
			name:   "cp210x by vid",
			bridge: BridgeCP210x,
			port:   &enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10C4", PID: "EA60"},
			want:   true,
		},
		{
			name:   "ch340 by product name",
			bridge: BridgeCH340,
			port:   &enumerator.PortDetails{Name: "COM4", IsUSB: true, VID: "FFFF", Product: "USB-SERIAL CH340"},
			want:   true,
		},
		{
			name:   "other bridge",
			bridge: BridgeCP210x,
			port:   &enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86"},
			want:   false,
		},
		{
			name:   "not usb",
			bridge: BridgeCP210x,
			port:   &enumerator.PortDetails{Name: "/dev/ttyS0", IsUSB: false, VID: "10c4"},
			want:   false,
		},
		{
			name:   "nil details",
			bridge: BridgeCP210x,
			port:   nil,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.bridge.Matches(tt.port))
		})
	}
}

func TestDetect_SingleMatch(t *testing.T) {
	t.Parallel()

	path, err := Detect(lister(
		&enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86"},
		&enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10c4"},
	), BridgeCP210x)

	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", path)
}

func TestDetect_NoMatch(t *testing.T) {
	t.Parallel()

	_, err := Detect(lister(
		&enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86"},
	), BridgeCP210x)

	require.ErrorIs(t, err, ErrNoDevice)
	assert.Contains(t, err.Error(), "CP210x")
}

func TestDetect_TooMany(t *testing.T) {
	t.Parallel()

	_, err := Detect(lister(
		&enumerator.PortDetails{Name: "COM5", IsUSB: true, VID: "10c4"},
		&enumerator.PortDetails{Name: "COM3", IsUSB: true, VID: "10c4"},
	), BridgeCP210x)

	require.ErrorIs(t, err, ErrTooManyDevices)
	assert.Contains(t, err.Error(), "COM3, COM5")
}

func TestDetect_ListerError(t *testing.T) {
	t.Parallel()

	_, err := Detect(func() ([]*enumerator.PortDetails, error) {
		return nil, errors.New("enumeration failed")
	}, BridgeCH340)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "enumeration failed")
}
