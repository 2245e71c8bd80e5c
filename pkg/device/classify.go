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
	"strings"

	"github.com/amperia/edpro-tools/pkg/console"
)

// ResponseSentinel marks a structured protocol reply.
const ResponseSentinel = ':'

// Severity of a device log line, taken from its two-character prefix.
type Severity int

const (
	SeverityPlain Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "plain"
	}
}

// LineKind tells responses apart from log output.
type LineKind int

const (
	KindLog LineKind = iota
	KindResponse
)

// Line is a classified device line.
type Line struct {
	// Raw is the decoded line as received.
	Raw string
	// Text is what gets displayed; in raw-log mode the severity prefix is stripped.
	Text     string
	Color    console.Color
	Kind     LineKind
	Severity Severity
}

var prefixes = []struct {
	prefix   string
	severity Severity
	color    console.Color
}{
	{"D ", SeverityDebug, console.Gray},
	{"I ", SeverityInfo, console.LightBlue},
	{"W ", SeverityWarn, console.Yellow},
	{"E ", SeverityError, console.Red},
}

// Classify categorizes a decoded line. Empty lines yield ok == false.
//
// In raw-log mode, used when watching a device console interactively, a
// recognized severity prefix is stripped and picks the colour. Otherwise
// lines stay gray and only warnings and errors are highlighted, with the
// prefix left in place so automated runs still show what is alarming.
func Classify(raw string, rawLog bool) (Line, bool) {
	if raw == "" {
		return Line{}, false
	}

	l := Line{
		Raw:   raw,
		Text:  raw,
		Color: console.Gray,
		Kind:  KindLog,
	}

	if raw[0] == ResponseSentinel {
		l.Kind = KindResponse
		return l, true
	}

	for _, p := range prefixes {
		if !strings.HasPrefix(raw, p.prefix) {
			continue
		}
		l.Severity = p.severity
		if rawLog {
			l.Text = raw[len(p.prefix):]
			l.Color = p.color
		} else if p.severity == SeverityWarn || p.severity == SeverityError {
			l.Color = p.color
		}
		break
	}

	return l, true
}
