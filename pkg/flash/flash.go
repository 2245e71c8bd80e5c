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

// Package flash writes firmware to the ESP8266 in a device through esptool,
// run as an external process.
package flash

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/amperia/edpro-tools/pkg/config"
	"github.com/amperia/edpro-tools/pkg/console"
	"github.com/amperia/edpro-tools/pkg/helpers/command"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	// Tag prefixes flashing output.
	Tag = "esp"

	// Flash offsets of the two application images produced by elf2image.
	AppOffset   = "0x00000"
	IROMOffset  = "0x20000"
	InitOffset  = "0x3fc000"
	BlankOffset = "0x7E000"

	InitDataFile = "esp_init_data_default.bin"
	BlankFile    = "blank.bin"
)

var (
	ErrNoImage       = errors.New("elf file not found")
	ErrTooManyImages = errors.New("more than one elf file found")
	ErrToolFailed    = errors.New("command execution failed")
	ErrNoChipID      = errors.New("chip id not found in esptool output")
)

var chipIDRe = regexp.MustCompile(`Chip ID:\s*(0x[0-9a-fA-F]+)`)

// Flasher runs esptool.
type Flasher struct {
	exec     command.Executor
	fs       afero.Fs
	out      io.Writer
	printer  *console.Printer
	log      zerolog.Logger
	settings config.Flash
}

// New returns a Flasher. Tool output is streamed to out.
//
//nolint:gocritic // settings copied so later config changes do not apply mid-flash
func New(
	exec command.Executor,
	fs afero.Fs,
	settings config.Flash,
	printer *console.Printer,
	out io.Writer,
	logger zerolog.Logger,
) *Flasher {
	if out == nil {
		out = io.Discard
	}
	return &Flasher{
		exec:     exec,
		fs:       fs,
		settings: settings,
		printer:  printer,
		out:      out,
		log:      logger,
	}
}

// FindELF returns the single .elf file in dir.
func (f *Flasher) FindELF(dir string) (string, error) {
	found, err := afero.Glob(f.fs, filepath.Join(dir, "*.elf"))
	if err != nil {
		return "", fmt.Errorf("failed to search %s: %w", dir, err)
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w in '%s'", ErrNoImage, dir)
	case 1:
		elf := filepath.Clean(found[0])
		f.printer.Tagged(Tag, console.Gray, "elf_file: "+elf)
		return elf, nil
	default:
		return "", fmt.Errorf("%w in %s", ErrTooManyImages, dir)
	}
}

func (f *Flasher) deleteBins(dir string) error {
	bins, err := afero.Glob(f.fs, filepath.Join(dir, "*.bin"))
	if err != nil {
		return fmt.Errorf("failed to search %s: %w", dir, err)
	}
	for _, bin := range bins {
		if err := f.fs.Remove(bin); err != nil {
			return fmt.Errorf("failed to remove %s: %w", bin, err)
		}
		f.log.Debug().Str("file", bin).Msg("removed stale image")
	}
	return nil
}

func (f *Flasher) writeFlashArgs(port string) []string {
	return []string{
		"--port", port,
		"--baud", strconv.Itoa(f.settings.Baud),
		"--chip", f.settings.Chip,
		"write_flash",
		"--flash_freq", f.settings.FlashFreq,
		"--flash_mode", f.settings.FlashMode,
		"--flash_size", f.settings.FlashSize,
	}
}

// Firmware converts the build output in dir to flash images and writes
// them through port. Stale images in dir are removed first.
func (f *Flasher) Firmware(ctx context.Context, port, dir string) error {
	err := f.firmware(ctx, port, dir)
	if err != nil {
		f.printer.Error(Tag, err)
		return err
	}
	f.printer.Tagged(Tag, console.Green, "OK")
	return nil
}

func (f *Flasher) firmware(ctx context.Context, port, dir string) error {
	elf, err := f.FindELF(dir)
	if err != nil {
		return err
	}
	if err := f.deleteBins(dir); err != nil {
		return err
	}
	if err := f.run(ctx, "elf2image", elf); err != nil {
		return err
	}
	app := elf + "-" + AppOffset + ".bin"
	irom := elf + "-" + IROMOffset + ".bin"
	if err := f.run(ctx, "image_info", app); err != nil {
		return err
	}
	args := append(f.writeFlashArgs(port), AppOffset, app, IROMOffset, irom)
	return f.run(ctx, args...)
}

// InitData writes the RF calibration defaults and blanks the system
// parameter area, as needed once on a fresh module.
func (f *Flasher) InitData(ctx context.Context, port string) error {
	dir := f.settings.InitDataDir
	args := append(f.writeFlashArgs(port),
		InitOffset, filepath.Join(dir, InitDataFile),
		BlankOffset, filepath.Join(dir, BlankFile),
	)
	if err := f.run(ctx, args...); err != nil {
		f.printer.Error(Tag, err)
		return err
	}
	f.printer.Tagged(Tag, console.Green, "OK")
	return nil
}

// ChipID reads the ESP8266 chip id through the ROM loader.
func (f *Flasher) ChipID(ctx context.Context, port string) (string, error) {
	name, args := f.commandLine("--port", port, "--chip", f.settings.Chip, "--no-stub", "chip_id")
	f.printer.Tagged(Tag, console.LightBlue, strings.Join(append([]string{name}, args...), " "))

	out, err := f.exec.Output(ctx, name, args...)
	if err != nil {
		return "", f.toolError(err)
	}
	_, _ = io.Copy(f.out, bytes.NewReader(out))

	m := chipIDRe.FindSubmatch(out)
	if m == nil {
		return "", ErrNoChipID
	}
	return string(m[1]), nil
}

func (f *Flasher) commandLine(args ...string) (name string, full []string) {
	cmd := f.settings.Command
	if len(cmd) == 0 {
		cmd = []string{"esptool.py"}
	}
	full = append(append([]string{}, cmd[1:]...), args...)
	return cmd[0], full
}

func (f *Flasher) run(ctx context.Context, args ...string) error {
	name, full := f.commandLine(args...)
	f.printer.Tagged(Tag, console.LightBlue, strings.Join(append([]string{name}, full...), " "))
	f.log.Info().Str("cmd", name).Strs("args", full).Msg("running esptool")

	err := f.exec.Run(ctx, command.RunOptions{Stdout: f.out, Stderr: f.out}, name, full...)
	if err != nil {
		return f.toolError(err)
	}
	return nil
}

func (f *Flasher) toolError(err error) error {
	if code := command.ExitCode(err); code >= 0 {
		return fmt.Errorf("%w, exit code: %d", ErrToolFailed, code)
	}
	return fmt.Errorf("%w: %w", ErrToolFailed, err)
}
