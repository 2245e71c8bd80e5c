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

// Package console prints colour-coded device and report lines to the
// operator's terminal and hosts the interactive device log session.
package console

// Color is an ANSI SGR escape sequence.
type Color string

const (
	Gray       Color = "\033[37m"
	Red        Color = "\033[31m"
	Green      Color = "\033[32m"
	Yellow     Color = "\033[33m"
	Cyan       Color = "\033[36m"
	LightRed   Color = "\033[91m"
	LightGreen Color = "\033[92m"
	LightBlue  Color = "\033[94m"
	RedBg      Color = "\033[1;41m"
	Reset      Color = "\033[0m"
)
