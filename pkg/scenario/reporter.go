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
	"fmt"
	"math"

	"github.com/amperia/edpro-tools/pkg/console"
)

// Eabs is the absolute error between expected and actual.
func Eabs(expected, actual float64) float64 {
	return math.Abs(expected - actual)
}

// Erel is the error relative to the larger magnitude of the two values.
// Two zeros have no error.
func Erel(expected, actual float64) float64 {
	if expected == 0 && actual == 0 {
		return 0
	}
	return math.Abs(expected-actual) / math.Max(math.Abs(expected), math.Abs(actual))
}

type recordKind int

const (
	recordTrace recordKind = iota
	recordError
)

type record struct {
	text string
	kind recordKind
}

// Measurement is one tolerance check, kept for the CSV report.
type Measurement struct {
	Step     string
	Check    string
	Expected float64
	Actual   float64
	AbsErr   float64
	RelErr   float64
	AbsTol   float64
	RelTol   float64
	Passed   bool
}

// Reporter collects tolerance checks for one test. Failed checks are shown
// immediately and do not stop the test; Success reports the overall verdict.
type Reporter struct {
	printer      *console.Printer
	tag          string
	step         string
	records      []record
	measurements []Measurement
	success      bool
}

func NewReporter(tag string, printer *console.Printer) *Reporter {
	printer.Tagged(tag, console.LightBlue, "begin test")
	return &Reporter{tag: tag, printer: printer, success: true}
}

// Success reports whether every check so far passed.
func (r *Reporter) Success() bool {
	return r.success
}

// Measurements returns the checks made so far.
func (r *Reporter) Measurements() []Measurement {
	return append([]Measurement(nil), r.measurements...)
}

// SetStep labels the following checks in the report.
func (r *Reporter) SetStep(step string) {
	r.step = step
}

// Trace records an informational line.
func (r *Reporter) Trace(text string) {
	r.records = append(r.records, record{kind: recordTrace, text: text})
	r.printer.Tagged(r.tag, console.Green, text)
}

func (r *Reporter) errorLine(text string) {
	r.records = append(r.records, record{kind: recordError, text: text})
	r.printer.Tagged(r.tag, console.LightRed, text)
}

func (r *Reporter) fail(what string, e, limit, expected, actual float64) {
	r.success = false
	r.errorLine(fmt.Sprintf("Error: %s error (%0.6f) must be less than %0.6f", what, e, limit))
	r.errorLine(fmt.Sprintf("    expected: %0.6f", expected))
	r.errorLine(fmt.Sprintf("    actual:   %0.6f", actual))
}

func (r *Reporter) measure(check string, expected, actual, absTol, relTol float64, passed bool) {
	r.measurements = append(r.measurements, Measurement{
		Step:     r.step,
		Check:    check,
		Expected: expected,
		Actual:   actual,
		AbsErr:   Eabs(expected, actual),
		RelErr:   Erel(expected, actual),
		AbsTol:   absTol,
		RelTol:   relTol,
		Passed:   passed,
	})
}

// ExpectAbsRel passes when either the absolute error is within absTol or
// the relative error is within relTol.
func (r *Reporter) ExpectAbsRel(expected, actual, absTol, relTol float64) bool {
	ea := Eabs(expected, actual)
	er := Erel(expected, actual)
	passed := ea <= absTol || er <= relTol
	r.measure("abs_rel", expected, actual, absTol, relTol, passed)
	if passed {
		return true
	}
	if ea > absTol {
		r.fail("absolute", ea, absTol, expected, actual)
	} else {
		r.fail("relative", er, relTol, expected, actual)
	}
	return false
}

// ExpectAbs passes when the absolute error is within tol.
func (r *Reporter) ExpectAbs(expected, actual, tol float64) bool {
	e := Eabs(expected, actual)
	passed := e <= tol
	r.measure("abs", expected, actual, tol, 0, passed)
	if !passed {
		r.fail("absolute", e, tol, expected, actual)
	}
	return passed
}

// ExpectRel passes when the relative error is within tol.
func (r *Reporter) ExpectRel(expected, actual, tol float64) bool {
	e := Erel(expected, actual)
	passed := e <= tol
	r.measure("rel", expected, actual, 0, tol, passed)
	if !passed {
		r.fail("relative", e, tol, expected, actual)
	}
	return passed
}

// PrintResult replays the collected lines as a summary.
func (r *Reporter) PrintResult() {
	r.printer.Tagged(r.tag, console.LightBlue, "result:")
	for _, rec := range r.records {
		c := console.Gray
		if rec.kind == recordError {
			c = console.LightRed
		}
		r.printer.Tagged(r.tag, c, rec.text)
	}
}
