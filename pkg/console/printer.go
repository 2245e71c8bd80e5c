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

package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/amperia/edpro-tools/pkg/helpers/syncutil"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// DeviceMark separates the device tag from the device's own text.
const DeviceMark = "░"

// Printer writes tagged, optionally coloured lines. It is safe for use by
// the device reader goroutine and the caller at the same time.
type Printer struct {
	out   io.Writer
	color bool
	mu    syncutil.Mutex // protects out
}

// NewPrinter returns a printer writing to out. Colour escapes are only
// emitted when color is set.
func NewPrinter(out io.Writer, color bool) *Printer {
	return &Printer{out: out, color: color}
}

// Init prepares the process stdout for ANSI output and returns a printer
// for it. Call it once at process start; on Windows the colorable writer
// translates escapes for legacy consoles.
func Init() *Printer {
	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	return NewPrinter(colorable.NewColorableStdout(), color)
}

// Discard returns a printer that drops everything.
func Discard() *Printer {
	return NewPrinter(io.Discard, false)
}

// SetOutput swaps the destination, e.g. to a readline-managed stdout while
// an interactive session owns the terminal.
func (p *Printer) SetOutput(out io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = out
}

// Output returns the current destination.
func (p *Printer) Output() io.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}

// Print writes one line in the given colour.
func (p *Printer) Print(c Color, text string) {
	p.write(c, text)
}

// Printf formats and writes one line in the given colour.
func (p *Printer) Printf(c Color, format string, args ...any) {
	p.write(c, fmt.Sprintf(format, args...))
}

// Tagged writes "[tag] text" in the given colour.
func (p *Printer) Tagged(tag string, c Color, text string) {
	p.write(c, "["+tag+"] "+text)
}

// DeviceLine writes a line received from a device: "[tag] ░ text" with
// only the device text coloured.
func (p *Printer) DeviceLine(tag string, c Color, text string) {
	text = strings.TrimSpace(text)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.color {
		_, _ = fmt.Fprintf(p.out, "[%s] %s%s %s%s\n", tag, c, DeviceMark, text, Reset)
		return
	}
	_, _ = fmt.Fprintf(p.out, "[%s] %s %s\n", tag, DeviceMark, text)
}

// Error writes a clearly marked error line.
func (p *Printer) Error(tag string, err error) {
	p.write(LightRed, "["+tag+"] Error: "+err.Error())
}

func (p *Printer) write(c Color, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.color {
		_, _ = fmt.Fprintf(p.out, "%s%s%s\n", c, text, Reset)
		return
	}
	_, _ = fmt.Fprintln(p.out, text)
}
