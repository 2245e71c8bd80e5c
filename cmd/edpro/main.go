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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/amperia/edpro-tools/pkg/cli"
	"github.com/amperia/edpro-tools/pkg/config"
	"github.com/amperia/edpro-tools/pkg/console"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to find config directory: %w", err)
	}
	return filepath.Join(dir, config.AppName), nil
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)
	done, err := flags.Pre(os.Args[1:], os.Stdout)
	if done || err != nil {
		return err
	}

	dir, err := configDir()
	if err != nil {
		return err
	}

	var logWriters []io.Writer
	if *flags.Debug {
		logWriters = []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	}

	cfg, err := cli.Setup(afero.NewOsFs(), dir, config.BaseDefaults, logWriters, *flags.Debug)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Cfg:     cfg,
		Printer: console.Init(),
		ToolOut: os.Stdout,
	}
	err = app.Post(ctx, flags)
	if errors.Is(err, cli.ErrNoAction) {
		flag.Usage()
		return nil
	}
	if err != nil {
		log.Error().Err(err).Msg("action failed")
		return err
	}
	return nil
}
