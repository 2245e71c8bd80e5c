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

package device

import "errors"

// Failures local to one calibration or test step. Callers match them with
// errors.Is and decide whether to abort the scenario, retry or move on.
var (
	ErrPortOpenFailed    = errors.New("failed to open device port")
	ErrNotConnected      = errors.New("device not connected")
	ErrRequestTimeout    = errors.New("request timeout")
	ErrRequestInProgress = errors.New("another request is in progress")
	ErrCommandFailed     = errors.New("command failed")
	ErrBootInitFailed    = errors.New("device init failed")
	ErrBootTimeout       = errors.New("boot wait timeout")
	ErrIdentityMismatch  = errors.New("device identity mismatch")
	ErrMalformedResponse = errors.New("malformed response")
)
