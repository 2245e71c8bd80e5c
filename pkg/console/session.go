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

package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// QuitCommand ends an interactive log session.
const QuitCommand = "q"

// Sender writes a raw command line to a device without waiting for a reply.
type Sender interface {
	Send(ctx context.Context, command string) error
}

// LogSession is an interactive device console: device output keeps
// streaming through the printer while the operator types commands that are
// forwarded to the device verbatim.
type LogSession struct {
	rl      *readline.Instance
	printer *Printer
	sender  Sender
	prevOut io.Writer
	tag     string
}

// NewLogSession takes over the terminal with readline and redirects the
// printer through it so incoming device lines don't garble the prompt. A
// nil cfg uses an empty prompt on the process terminal.
func NewLogSession(tag string, sender Sender, printer *Printer, cfg *readline.Config) (*LogSession, error) {
	if cfg == nil {
		cfg = &readline.Config{
			Prompt:          "",
			InterruptPrompt: "^C",
			EOFPrompt:       QuitCommand,
		}
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := &LogSession{
		rl:      rl,
		printer: printer,
		sender:  sender,
		tag:     tag,
		prevOut: printer.Output(),
	}
	printer.SetOutput(rl.Stdout())
	return s, nil
}

// Run reads operator input until "q", EOF, Ctrl-C or ctx cancellation.
// Send failures are reported and the session continues.
func (s *LogSession) Run(ctx context.Context) error {
	defer s.close()
	stop := context.AfterFunc(ctx, func() {
		_ = s.rl.Close()
	})
	defer stop()

	s.printer.Print(Green, "\n<?> - help, <"+QuitCommand+"> - exit")

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := s.rl.Readline()
		if ctx.Err() != nil || errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case QuitCommand:
			return nil
		}

		if err := s.sender.Send(ctx, line); err != nil {
			s.printer.Error(s.tag, err)
		}
	}
}

func (s *LogSession) close() {
	s.printer.SetOutput(s.prevOut)
	_ = s.rl.Close()
}
