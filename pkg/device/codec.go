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

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
)

// DecodeLine turns one raw line from the wire into text. Every CR and LF
// byte is dropped. Bytes that are not valid UTF-8 (line noise, the ROM boot
// banner at the wrong baud) are replaced rather than rejected, so decoding
// never fails.
func DecodeLine(raw []byte) string {
	raw = bytes.ReplaceAll(raw, []byte{'\r'}, nil)
	raw = bytes.ReplaceAll(raw, []byte{'\n'}, nil)

	text, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return string(bytes.ToValidUTF8(raw, []byte("\uFFFD")))
	}
	return string(text)
}
