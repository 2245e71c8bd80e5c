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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/amperia/edpro-tools/pkg/serialport"
)

// Requester is the command surface device capabilities are built on. Conn
// implements it.
type Requester interface {
	Request(ctx context.Context, command string, opts ...RequestOption) (Response, error)
	Cmd(ctx context.Context, command string) (Response, error)
}

// Kind describes one member of the device family.
type Kind struct {
	Bridge serialport.Bridge
	// Tag prefixes console output and selects the kind on the command line.
	Tag string
	// Name is what the firmware reports for "i".
	Name       string
	MinVersion string
}

var (
	KindMultimeter  = Kind{Tag: "mm", Name: "Multimeter", MinVersion: "0.37", Bridge: serialport.BridgeCP210x}
	KindPowerSource = Kind{Tag: "ps", Name: "Powersource", MinVersion: "0.30", Bridge: serialport.BridgeCP210x}
	KindDevBoard    = Kind{Tag: "db", Name: "Calibrator", MinVersion: "0.1", Bridge: serialport.BridgeCH340}
)

// ErrUnknownKind is returned by KindByTag for tags outside the family.
var ErrUnknownKind = errors.New("unknown device kind")

// Kinds lists the device family.
func Kinds() []Kind {
	return []Kind{KindMultimeter, KindPowerSource, KindDevBoard}
}

// KindByTag looks up a kind by its short tag.
func KindByTag(tag string) (Kind, error) {
	for _, k := range Kinds() {
		if k.Tag == tag {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("%w: %q", ErrUnknownKind, tag)
}

// MultimeterValues is a full multimeter reading.
type MultimeterValues struct {
	Mode  string
	RDiv  int
	Gain  int
	FInit bool
	Value float64
}

// Multimeter wraps the multimeter commands.
type Multimeter struct {
	r Requester
}

func NewMultimeter(r Requester) *Multimeter {
	return &Multimeter{r: r}
}

// Mode returns the current measurement mode, e.g. "VDC".
func (m *Multimeter) Mode(ctx context.Context) (string, error) {
	resp, err := m.r.Request(ctx, "mode")
	if err != nil {
		return "", err
	}
	return resp.Str(KeyMode)
}

// SetMode switches the measurement mode ("dc", "ac", ...).
func (m *Multimeter) SetMode(ctx context.Context, mode string) error {
	_, err := m.r.Cmd(ctx, "mode "+mode)
	return err
}

// Values returns the current reading along with the range settings.
func (m *Multimeter) Values(ctx context.Context) (MultimeterValues, error) {
	resp, err := m.r.Request(ctx, "v")
	if err != nil {
		return MultimeterValues{}, err
	}

	var v MultimeterValues
	if v.Mode, err = resp.Str(KeyMode); err != nil {
		return MultimeterValues{}, err
	}
	if v.RDiv, err = resp.Int("rdiv"); err != nil {
		return MultimeterValues{}, err
	}
	if v.Gain, err = resp.Int("gain"); err != nil {
		return MultimeterValues{}, err
	}
	if v.FInit, err = resp.Bool("finit"); err != nil {
		return MultimeterValues{}, err
	}
	if v.Value, err = resp.Float(KeyValue); err != nil {
		return MultimeterValues{}, err
	}
	return v, nil
}

// Value returns only the measured value.
func (m *Multimeter) Value(ctx context.Context) (float64, error) {
	resp, err := m.r.Request(ctx, "v")
	if err != nil {
		return 0, err
	}
	return resp.Float(KeyValue)
}

// PowerSourceValues is the measured output of the power source.
type PowerSourceValues struct {
	U float64
	I float64
}

// PowerSource wraps the power source commands.
type PowerSource struct {
	r Requester
}

func NewPowerSource(r Requester) *PowerSource {
	return &PowerSource{r: r}
}

// Values returns the measured output voltage and current.
func (p *PowerSource) Values(ctx context.Context) (PowerSourceValues, error) {
	resp, err := p.r.Cmd(ctx, "v")
	if err != nil {
		return PowerSourceValues{}, err
	}

	var v PowerSourceValues
	if v.U, err = resp.Float("U"); err != nil {
		return PowerSourceValues{}, err
	}
	if v.I, err = resp.Float("I"); err != nil {
		return PowerSourceValues{}, err
	}
	return v, nil
}

// SetMode selects the output mode ("dc", "ac", ...).
func (p *PowerSource) SetMode(ctx context.Context, mode string) error {
	_, err := p.r.Cmd(ctx, "mode "+mode)
	return err
}

// SetVolt sets the output level in volts. The firmware takes tenths of a
// volt.
func (p *PowerSource) SetVolt(ctx context.Context, volts float64) error {
	level := int(math.Round(volts * 10))
	_, err := p.r.Cmd(ctx, "set l "+strconv.Itoa(level))
	return err
}

// SetFreq sets the output frequency in Hz for AC modes.
func (p *PowerSource) SetFreq(ctx context.Context, hz int) error {
	_, err := p.r.Cmd(ctx, "set f "+strconv.Itoa(hz))
	return err
}

// Probe selects which quantity the dev board routes to its measurement
// output alongside a relay setting.
type Probe int

const (
	ProbeV Probe = 1 << iota
	ProbeI

	ProbeNone Probe = 0
)

func (p Probe) suffix() string {
	var sb strings.Builder
	if p&ProbeI != 0 {
		sb.WriteString(" meas_i")
	}
	if p&ProbeV != 0 {
		sb.WriteString(" meas_v")
	}
	return sb.String()
}

// DevBoard wraps the relay routing commands of the calibration board.
type DevBoard struct {
	r Requester
}

func NewDevBoard(r Requester) *DevBoard {
	return &DevBoard{r: r}
}

func (d *DevBoard) set(ctx context.Context, args string) error {
	_, err := d.r.Cmd(ctx, "set "+args)
	return err
}

func joinInts(first int, rest []int) string {
	parts := []string{strconv.Itoa(first)}
	for i, n := range rest {
		if i == 2 {
			break
		}
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, " ")
}

// Off opens every relay.
func (d *DevBoard) Off(ctx context.Context) error {
	return d.set(ctx, "off")
}

// MMVGen routes the generator to the multimeter voltage input.
func (d *DevBoard) MMVGen(ctx context.Context, probe Probe) error {
	return d.set(ctx, "mm_vgen"+(probe&ProbeV).suffix())
}

// MMVPow routes the power source to the multimeter voltage input.
func (d *DevBoard) MMVPow(ctx context.Context, probe Probe) error {
	return d.set(ctx, "mm_vpow"+(probe&ProbeV).suffix())
}

// MMVPowRev is MMVPow with reversed polarity.
func (d *DevBoard) MMVPowRev(ctx context.Context, probe Probe) error {
	return d.set(ctx, "mm_vpow_rev"+(probe&ProbeV).suffix())
}

// MMVGnd shorts the multimeter voltage input to ground.
func (d *DevBoard) MMVGnd(ctx context.Context, probe Probe) error {
	return d.set(ctx, "mm_vgnd"+(probe&ProbeV).suffix())
}

// MMIGen routes the generator to the multimeter current input.
func (d *DevBoard) MMIGen(ctx context.Context, probe Probe) error {
	return d.set(ctx, "mm_igen"+(probe&ProbeI).suffix())
}

// MMIPow routes the power source to the multimeter current input.
func (d *DevBoard) MMIPow(ctx context.Context, probe Probe) error {
	return d.set(ctx, "mm_ipow"+(probe&ProbeI).suffix())
}

// MMIPowRev is MMIPow with reversed polarity.
func (d *DevBoard) MMIPowRev(ctx context.Context, probe Probe) error {
	return d.set(ctx, "mm_ipow_rev"+(probe&ProbeI).suffix())
}

// MMRGnd shorts the multimeter resistance input to ground.
func (d *DevBoard) MMRGnd(ctx context.Context) error {
	return d.set(ctx, "mm_rgnd")
}

// MMRSel connects up to three reference resistors to the multimeter.
// Extra resistors beyond three are ignored.
func (d *DevBoard) MMRSel(ctx context.Context, n1 int, more ...int) error {
	return d.set(ctx, "mm_rsel "+joinInts(n1, more))
}

// PPLoad connects load n to the power source output.
func (d *DevBoard) PPLoad(ctx context.Context, n int, probe Probe) error {
	return d.set(ctx, "pp_load "+strconv.Itoa(n)+probe.suffix())
}

// MeasV routes the board's voltage probe.
func (d *DevBoard) MeasV(ctx context.Context) error {
	return d.set(ctx, "meas_v")
}

// MeasI routes the board's current probe.
func (d *DevBoard) MeasI(ctx context.Context) error {
	return d.set(ctx, "meas_i")
}

// MeasR measures up to three reference resistors.
func (d *DevBoard) MeasR(ctx context.Context, n1 int, more ...int) error {
	return d.set(ctx, "meas_r "+joinInts(n1, more))
}
