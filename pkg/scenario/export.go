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
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/spf13/afero"
)

// Row is one line of the exported result file.
type Row struct {
	RunID    string  `csv:"run_id"`
	Scenario string  `csv:"scenario"`
	Time     string  `csv:"time"`
	Step     string  `csv:"step"`
	Check    string  `csv:"check"`
	Expected float64 `csv:"expected"`
	Actual   float64 `csv:"actual"`
	AbsErr   float64 `csv:"abs_err"`
	RelErr   float64 `csv:"rel_err"`
	AbsTol   float64 `csv:"abs_tol"`
	RelTol   float64 `csv:"rel_tol"`
	Passed   bool    `csv:"passed"`
}

// Rows flattens measurements into report rows.
func Rows(runID, scenario string, at time.Time, ms []Measurement) []*Row {
	rows := make([]*Row, 0, len(ms))
	stamp := at.UTC().Format(time.RFC3339)
	for _, m := range ms {
		rows = append(rows, &Row{
			RunID:    runID,
			Scenario: scenario,
			Time:     stamp,
			Step:     m.Step,
			Check:    m.Check,
			Expected: m.Expected,
			Actual:   m.Actual,
			AbsErr:   m.AbsErr,
			RelErr:   m.RelErr,
			AbsTol:   m.AbsTol,
			RelTol:   m.RelTol,
			Passed:   m.Passed,
		})
	}
	return rows
}

// ReportName is the file name of a run's result file.
func ReportName(scenario, runID string, at time.Time) string {
	id := runID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s-%s.csv", scenario, at.UTC().Format("20060102-150405"), id)
}

// Export writes the rows to dir and returns the file path.
func Export(fs afero.Fs, dir, scenario, runID string, at time.Time, ms []Measurement) (string, error) {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, ReportName(scenario, runID, at))
	f, err := fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}

	if err := gocsv.Marshal(Rows(runID, scenario, at, ms), f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close report: %w", err)
	}
	return path, nil
}
