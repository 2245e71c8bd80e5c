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
	"context"
	"time"

	"github.com/amperia/edpro-tools/pkg/helpers/syncutil"
)

// mailbox hands the most recent structured response from the reader to the
// waiting caller. It holds at most one unread line; a newer line replaces an
// unread older one.
type mailbox struct {
	slot chan string
	mu   syncutil.Mutex // serializes put and clear
}

func newMailbox() *mailbox {
	return &mailbox{slot: make(chan string, 1)}
}

// put stores line, replacing any unread value. It never blocks.
func (m *mailbox) put(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.slot:
	default:
	}
	m.slot <- line
}

// clear drops any unread value.
func (m *mailbox) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.slot:
	default:
	}
}

// wait takes the next value, giving up when expired fires or ctx is done.
// ok is false when no value arrived.
func (m *mailbox) wait(ctx context.Context, expired <-chan time.Time) (line string, ok bool, err error) {
	select {
	case line = <-m.slot:
		return line, true, nil
	case <-expired:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}
