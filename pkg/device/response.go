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
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Keys the firmware uses across device kinds.
const (
	KeySuccess = "success"
	KeyName    = "name"
	KeyVersion = "version"
	KeyInit    = "init"
	KeyMode    = "mode"
	KeyValue   = "value"
)

// Response is a parsed structured reply: ":k1=v1 k2=v2 ...". The zero
// value is an empty response.
type Response struct {
	fields map[string]string
}

// ParseResponse parses a response line. The leading sentinel is optional.
// Tokens are separated by spaces; a token is kept only when it holds
// exactly one '=' and a non-empty key, anything else is dropped without
// affecting the rest of the line. A repeated key keeps its last value.
func ParseResponse(line string) Response {
	line = strings.TrimPrefix(line, string(ResponseSentinel))

	r := Response{fields: make(map[string]string)}
	for _, token := range strings.Split(line, " ") {
		parts := strings.Split(token, "=")
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		r.fields[parts[0]] = parts[1]
	}
	return r
}

// NewResponse builds a response from key/value pairs, mainly for tests and
// simulated devices.
func NewResponse(fields map[string]string) Response {
	r := Response{fields: make(map[string]string, len(fields))}
	for k, v := range fields {
		r.fields[k] = v
	}
	return r
}

// Len returns the number of fields.
func (r Response) Len() int {
	return len(r.fields)
}

// Get returns the raw value of key.
func (r Response) Get(key string) (string, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Has reports whether key is present.
func (r Response) Has(key string) bool {
	_, ok := r.fields[key]
	return ok
}

// Keys returns the field names in sorted order.
func (r Response) Keys() []string {
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Map returns a copy of the fields.
func (r Response) Map() map[string]string {
	m := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		m[k] = v
	}
	return m
}

// Success reports whether the device acknowledged the command. Only the
// literal "1" counts.
func (r Response) Success() bool {
	return r.fields[KeySuccess] == "1"
}

// Name returns the device name reported by "i".
func (r Response) Name() (string, error) {
	return r.Str(KeyName)
}

// Version returns the firmware version reported by "i".
func (r Response) Version() (string, error) {
	return r.Str(KeyVersion)
}

// Init returns the boot status: ready is true for init=1. present is false
// when the response carries no init key at all.
func (r Response) Init() (ready, present bool) {
	v, ok := r.fields[KeyInit]
	if !ok {
		return false, false
	}
	return v == "1", true
}

// Str returns a required string field.
func (r Response) Str(key string) (string, error) {
	v, ok := r.fields[key]
	if !ok {
		return "", fmt.Errorf("%w: missing key %q", ErrMalformedResponse, key)
	}
	return v, nil
}

// Float returns a required numeric field.
func (r Response) Float(key string) (float64, error) {
	v, err := r.Str(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: key %q: %w", ErrMalformedResponse, key, err)
	}
	return f, nil
}

// Int returns a required integer field.
func (r Response) Int(key string) (int, error) {
	v, err := r.Str(key)
	if err != nil {
		return 0, err
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: key %q: %w", ErrMalformedResponse, key, err)
	}
	return i, nil
}

// Bool returns a required flag field, true only for "1".
func (r Response) Bool(key string) (bool, error) {
	v, err := r.Str(key)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// String serializes the response back to wire form with sorted keys.
func (r Response) String() string {
	var sb strings.Builder
	sb.WriteByte(ResponseSentinel)
	for i, k := range r.Keys() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(r.fields[k])
	}
	return sb.String()
}
