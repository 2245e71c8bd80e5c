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
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
)

var (
	// ErrNoDevice is returned when no port matches the requested bridge.
	ErrNoDevice = errors.New("device not found")
	// ErrTooManyDevices is returned when more than one port matches.
	ErrTooManyDevices = errors.New("too many ports found: only one device should be connected")
)

// Bridge identifies the USB-UART chip a device kind is attached through.
type Bridge struct {
	Name string
	VID  string
}

var (
	// BridgeCP210x is the Silicon Labs bridge used by the multimeter and power source.
	BridgeCP210x = Bridge{Name: "CP210x", VID: "10c4"}
	// BridgeCH340 is the WCH bridge used by the calibration board.
	BridgeCH340 = Bridge{Name: "CH340", VID: "1a86"}
)

// PortLister returns the detailed list of serial ports on the host.
type PortLister func() ([]*enumerator.PortDetails, error)

// DefaultPortLister lists ports using the go.bug.st enumerator.
func DefaultPortLister() ([]*enumerator.PortDetails, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Matches reports whether the port details belong to the bridge.
func (b Bridge) Matches(p *enumerator.PortDetails) bool {
	if p == nil || !p.IsUSB {
		return false
	}
	if b.VID != "" && strings.EqualFold(p.VID, b.VID) {
		return true
	}
	return b.Name != "" && strings.Contains(p.Product, b.Name)
}

// Detect returns the single port attached through the given bridge. It
// fails when none or more than one port matches.
func Detect(list PortLister, bridge Bridge) (string, error) {
	if list == nil {
		list = DefaultPortLister
	}

	ports, err := list()
	if err != nil {
		return "", err
	}

	sort.Slice(ports, func(i, j int) bool {
		return ports[i].Name < ports[j].Name
	})

	var found []string
	for _, p := range ports {
		if !bridge.Matches(p) {
			continue
		}
		log.Debug().
			Str("port", p.Name).
			Str("vid", p.VID).
			Str("pid", p.PID).
			Str("product", p.Product).
			Msg("found candidate port")
		found = append(found, p.Name)
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: no %s port", ErrNoDevice, bridge.Name)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrTooManyDevices, strings.Join(found, ", "))
	}
}
