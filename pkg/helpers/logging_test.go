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

package helpers

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureLogDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		setupDirs bool
	}{
		{name: "creates nested directory", setupDirs: false},
		{name: "works when directory already exists", setupDirs: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logDir := filepath.Join(t.TempDir(), "logs", "nested")
			if tt.setupDirs {
				require.NoError(t, os.MkdirAll(logDir, 0o750))
			}

			err := EnsureLogDir(logDir)
			require.NoError(t, err)

			info, err := os.Stat(logDir)
			require.NoError(t, err, "log dir should exist")
			assert.True(t, info.IsDir())

			if runtime.GOOS != "windows" {
				assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
			}
		})
	}
}

func TestEnsureLogDir_InvalidPath(t *testing.T) {
	t.Parallel()

	err := EnsureLogDir("/proc/invalid\x00path")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create log directory")
}

func TestInitLogging(t *testing.T) {
	// Note: Cannot use t.Parallel() because InitLogging modifies global log.Logger
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	t.Run("writes to extra writers", func(t *testing.T) {
		var buf bytes.Buffer

		err := InitLogging(t.TempDir(), []io.Writer{&buf}, false)
		require.NoError(t, err)

		log.Info().Msg("connect")
		assert.Contains(t, buf.String(), "connect")
	})

	t.Run("debug level is gated by flag", func(t *testing.T) {
		var buf bytes.Buffer

		err := InitLogging(t.TempDir(), []io.Writer{&buf}, false)
		require.NoError(t, err)
		log.Debug().Msg("hidden trace")
		assert.NotContains(t, buf.String(), "hidden trace")

		err = InitLogging(t.TempDir(), []io.Writer{&buf}, true)
		require.NoError(t, err)
		log.Debug().Msg("visible trace")
		assert.Contains(t, buf.String(), "visible trace")
	})

	t.Run("device logger carries tag", func(t *testing.T) {
		var buf bytes.Buffer

		err := InitLogging(t.TempDir(), []io.Writer{&buf}, false)
		require.NoError(t, err)

		logger := DeviceLogger("mm")
		logger.Info().Msg("ready")
		assert.Contains(t, buf.String(), `"device":"mm"`)
	})
}
