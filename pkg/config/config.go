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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/amperia/edpro-tools/pkg/helpers/syncutil"
	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	SchemaVersion = 1
	CfgEnv        = "EDPRO_CFG"
)

var ErrSchemaMismatch = errors.New("schema version mismatch")

type Values struct {
	Serial       Serial      `toml:"serial"`
	Flash        Flash       `toml:"flash"`
	Report       Report      `toml:"report"`
	Instruments  Instruments `toml:"instruments"`
	Request      Request     `toml:"request"`
	ConfigSchema int         `toml:"config_schema"`
	DebugLogging bool        `toml:"debug_logging"`
}

// Serial configures the device console ports. Ports maps a device tag
// (mm, ps, db) to its serial path; tags left out are detected by their USB
// bridge.
type Serial struct {
	Ports         map[string]string `toml:"ports,omitempty" validate:"dive,keys,oneof=mm ps db,endkeys,required"`
	Baud          int               `toml:"baud" validate:"gte=0"`
	ReadTimeoutMS int               `toml:"read_timeout_ms" validate:"gte=0"`
}

type Request struct {
	TimeoutMS     int `toml:"timeout_ms" validate:"gte=0"`
	BootTimeoutMS int `toml:"boot_timeout_ms" validate:"gte=0"`
}

// Flash configures the external flashing tool. Command is the argv prefix
// used to run it, e.g. ["python3", "-m", "esptool"].
type Flash struct {
	ImageDirs   map[string]string `toml:"image_dirs,omitempty"`
	Chip        string            `toml:"chip" validate:"required"`
	FlashFreq   string            `toml:"flash_freq" validate:"required"`
	FlashMode   string            `toml:"flash_mode" validate:"required,oneof=qio qout dio dout"`
	FlashSize   string            `toml:"flash_size" validate:"required"`
	InitDataDir string            `toml:"init_data_dir"`
	Command     []string          `toml:"command" validate:"min=1,dive,required"`
	Baud        int               `toml:"baud" validate:"gt=0"`
}

// Instruments configures the SCPI lab equipment. Empty ports disable the
// instrument.
type Instruments struct {
	MeterPort     string `toml:"meter_port,omitempty"`
	PowerPort     string `toml:"power_port,omitempty"`
	GeneratorPort string `toml:"generator_port,omitempty"`
	Baud          int    `toml:"baud" validate:"gt=0"`
	TimeoutMS     int    `toml:"timeout_ms" validate:"gt=0"`
	// PacingMS is the minimum gap between commands to one instrument.
	PacingMS      int    `toml:"pacing_ms" validate:"gte=0"`
}

type Report struct {
	Dir string `toml:"dir"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Serial: Serial{
		Baud:          74880,
		ReadTimeoutMS: 1000,
	},
	Request: Request{
		TimeoutMS:     4000,
		BootTimeoutMS: 4000,
	},
	Flash: Flash{
		Command:     []string{"python3", "-m", "esptool"},
		Chip:        "esp8266",
		Baud:        921600,
		FlashFreq:   "40m",
		FlashMode:   "qio",
		FlashSize:   "4MB",
		InitDataDir: "images/esp",
	},
	Instruments: Instruments{
		Baud:      9600,
		TimeoutMS: 5000,
	},
	Report: Report{
		Dir: "reports",
	},
}

type Instance struct {
	fs       afero.Fs
	validate *validator.Validate
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

// NewConfig loads the config file at $EDPRO_CFG, or configDir/edpro.toml
// when unset, writing defaults there first if it does not exist.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(fs afero.Fs, configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		fs:       fs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfgPath:  cfgPath,
		vals:     cloneValues(defaults),
		defaults: cloneValues(defaults),
	}

	exists, err := afero.Exists(fs, cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !exists {
		log.Info().Msg("saving new default config to disk")

		if err := fs.MkdirAll(filepath.Dir(cfgPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// cloneValues copies v so decoding into the copy cannot write through to
// slices or maps shared with v.
//
//nolint:gocritic // config struct copied for immutability
func cloneValues(v Values) Values {
	v.Serial.Ports = cloneMap(v.Serial.Ports)
	v.Flash.ImageDirs = cloneMap(v.Flash.ImageDirs)
	v.Flash.Command = append([]string(nil), v.Flash.Command...)
	return v
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Path returns the config file location.
func (c *Instance) Path() string {
	return c.cfgPath
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := afero.ReadFile(c.fs, c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Fields missing from the file keep their defaults.
	newVals := cloneValues(c.defaults)
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return ErrSchemaMismatch
	}

	if err := c.validate.Struct(newVals); err != nil {
		return fmt.Errorf("invalid config %s: %w", c.cfgPath, err)
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(c.fs, c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SerialPort returns the configured port for a device tag, or "" to detect it.
func (c *Instance) SerialPort(tag string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.Ports[tag]
}

func (c *Instance) SetSerialPort(tag, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vals.Serial.Ports == nil {
		c.vals.Serial.Ports = make(map[string]string)
	}
	if path == "" {
		delete(c.vals.Serial.Ports, tag)
		return
	}
	c.vals.Serial.Ports[tag] = path
}

func (c *Instance) SerialBaud() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.Baud
}

func (c *Instance) ReadTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Serial.ReadTimeoutMS) * time.Millisecond
}

func (c *Instance) RequestTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Request.TimeoutMS) * time.Millisecond
}

func (c *Instance) BootTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Request.BootTimeoutMS) * time.Millisecond
}

// Flash returns a copy of the flashing settings.
func (c *Instance) Flash() Flash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f := c.vals.Flash
	f.Command = append([]string(nil), f.Command...)
	f.ImageDirs = cloneMap(f.ImageDirs)
	return f
}

// ImageDir returns the firmware build directory for a device tag.
func (c *Instance) ImageDir(tag string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Flash.ImageDirs[tag]
}

func (c *Instance) Instruments() Instruments {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Instruments
}

func (c *Instance) InstrumentTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Instruments.TimeoutMS) * time.Millisecond
}

func (c *Instance) InstrumentPacing() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Instruments.PacingMS) * time.Millisecond
}

func (c *Instance) ReportDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Report.Dir
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
