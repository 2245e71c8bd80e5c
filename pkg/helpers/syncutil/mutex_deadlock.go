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

//go:build deadlock

// Package syncutil provides the mutexes used across edpro. Building with
// -tags=deadlock swaps in go-deadlock, which reports lock waits longer than
// LockTimeout through the global logger and exits.
package syncutil

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	deadlock "github.com/sasha-s/go-deadlock"
)

// Detecting is true when built with the deadlock detector.
const Detecting = true

// LockTimeout is the longest a lock may be waited on. No lock is held
// across device or instrument I/O.
const LockTimeout = 10 * time.Second

type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	if msg := strings.TrimSpace(string(p)); msg != "" {
		log.Error().Str("component", "syncutil").Msg(msg)
	}
	return len(p), nil
}

func init() {
	deadlock.Opts.DeadlockTimeout = LockTimeout
	deadlock.Opts.LogBuf = logWriter{}
}

type Mutex struct {
	deadlock.Mutex
}

type RWMutex struct {
	deadlock.RWMutex
}
