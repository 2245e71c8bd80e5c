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

// Package cli holds the command line front end shared by the edpro binary:
// flag definitions, process setup and the actions behind each flag.
package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"runtime"

	"github.com/amperia/edpro-tools/pkg/config"
	"github.com/amperia/edpro-tools/pkg/helpers"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

var ErrNoAction = errors.New("no action given")

type Flags struct {
	set      *flag.FlagSet
	Kind     *string
	Port     *string
	Flash    *string
	Log      *bool
	Info     *bool
	Boot     *bool
	InitData *bool
	ChipID   *bool
	SaveConf *bool
	TestVDC  *bool
	Version  *bool
	Debug    *bool
}

// SetupFlags defines all CLI flags on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		set: fs,
		Kind: fs.String(
			"kind",
			"mm",
			"device kind: mm, ps or db",
		),
		Port: fs.String(
			"port",
			"",
			"serial port of the device, detected when empty",
		),
		Flash: fs.String(
			"flash",
			"",
			"flash firmware built in DIR (configured image dir when empty)",
		),
		Log: fs.Bool(
			"log",
			false,
			"attach to the device and show its log interactively",
		),
		Info: fs.Bool(
			"info",
			false,
			"print device name and firmware version",
		),
		Boot: fs.Bool(
			"boot",
			false,
			"reboot the device and wait until it is ready",
		),
		InitData: fs.Bool(
			"init-data",
			false,
			"flash the ESP init data and blank images",
		),
		ChipID: fs.Bool(
			"chip-id",
			false,
			"print the ESP chip id",
		),
		SaveConf: fs.Bool(
			"save-conf",
			false,
			"persist the device configuration to its flash",
		),
		TestVDC: fs.Bool(
			"test-vdc",
			false,
			"run the DC voltage test of the device kind (mm or ps) against the bench instruments",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Debug: fs.Bool(
			"debug",
			false,
			"enable debug logging",
		),
	}
}

func (f *Flags) isPassed(name string) bool {
	found := false
	f.set.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// Pre parses args and handles the flags that need no setup. It reports
// whether the process is done.
func (f *Flags) Pre(args []string, out io.Writer) (bool, error) {
	if err := f.set.Parse(args); err != nil {
		return true, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *f.Version {
		_, _ = fmt.Fprintf(out, "%s v%s (%s/%s)\n", config.AppName, config.AppVersion, runtime.GOOS, runtime.GOARCH)
		return true, nil
	}
	return false, nil
}

// Setup initializes logging and loads the user config from configDir.
//
//nolint:gocritic // config struct copied for immutability
func Setup(
	fs afero.Fs,
	configDir string,
	defaults config.Values,
	writers []io.Writer,
	debug bool,
) (*config.Instance, error) {
	if err := helpers.InitLogging(configDir, writers, debug); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(fs, configDir, defaults)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if debug {
		cfg.SetDebugLogging(true)
	} else {
		cfg.SetDebugLogging(cfg.DebugLogging())
	}

	log.Info().Str("version", config.AppVersion).Str("config", cfg.Path()).Msg("edpro started")
	return cfg, nil
}
