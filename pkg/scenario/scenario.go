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
	"fmt"

	"github.com/amperia/edpro-tools/pkg/console"
	"github.com/google/uuid"
)

// Scenario is one runnable hardware test.
type Scenario interface {
	Name() string
	Run(ctx context.Context, env *Env) error
}

// Result is the outcome of a run.
type Result struct {
	RunID        string
	ReportPath   string
	Measurements []Measurement
}

// Run executes s, releases the environment and exports its measurements.
// The run fails when s returns an error or any reporter recorded a failed
// check.
func Run(ctx context.Context, env *Env, s Scenario) (Result, error) {
	name := s.Name()
	res := Result{RunID: uuid.NewString()}
	p := env.Printer()
	log := env.cfg.Log.With().Str("scenario", name).Str("run", res.RunID).Logger()

	p.Tagged(name, console.Green, "begin")
	log.Info().Msg("scenario started")
	err := s.Run(ctx, env)
	env.Dispose()

	ok, ms := env.results()
	res.Measurements = ms
	if err == nil && !ok {
		err = ErrChecksFailed
	}

	if env.cfg.ReportDir != "" && len(ms) > 0 {
		path, exportErr := Export(env.cfg.Fs, env.cfg.ReportDir, name, res.RunID, env.cfg.Clock.Now(), ms)
		if exportErr != nil {
			log.Error().Err(exportErr).Msg("failed to export results")
		} else {
			res.ReportPath = path
			log.Info().Str("path", path).Msg("results exported")
		}
	}

	if err != nil {
		log.Error().Err(err).Msg("scenario failed")
		p.Error(name, err)
		p.Tagged(name, console.LightRed, "Scenario FAILED")
		return res, fmt.Errorf("scenario %s: %w", name, err)
	}
	log.Info().Msg("scenario passed")
	p.Tagged(name, console.Green, "OK")
	return res, nil
}
