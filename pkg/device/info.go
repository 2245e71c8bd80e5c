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
	"fmt"
	"strconv"
	"strings"
)

// Info is what a device reports about itself in reply to "i".
type Info struct {
	Name    string
	Version string
}

// Version is a "major.minor" firmware version.
type Version struct {
	Major int
	Minor int
}

// ParseVersion parses "major.minor".
func ParseVersion(s string) (Version, error) {
	major, minor, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Version{}, fmt.Errorf("%w: version %q is not major.minor", ErrMalformedResponse, s)
	}
	maj, err := strconv.Atoi(major)
	if err != nil {
		return Version{}, fmt.Errorf("%w: version %q: %w", ErrMalformedResponse, s, err)
	}
	mnr, err := strconv.Atoi(minor)
	if err != nil {
		return Version{}, fmt.Errorf("%w: version %q: %w", ErrMalformedResponse, s, err)
	}
	return Version{Major: maj, Minor: mnr}, nil
}

// Number encodes the version as major*1000+minor so versions compare as
// integers: "0.9" is 9 and "0.10" is 10. Minor numbers of 1000 and above
// spill into the major part and no longer compare correctly.
func (v Version) Number() int {
	return v.Major*1000 + v.Minor
}

// AtLeast reports whether v is the same as or newer than min.
func (v Version) AtLeast(minimum Version) bool {
	return v.Number() >= minimum.Number()
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// InfoFromResponse extracts name and version from an "i" reply.
func InfoFromResponse(resp Response) (Info, error) {
	name, err := resp.Name()
	if err != nil {
		return Info{}, err
	}
	version, err := resp.Version()
	if err != nil {
		return Info{}, err
	}
	return Info{Name: name, Version: version}, nil
}

// ReadInfo asks the device to identify itself.
func ReadInfo(ctx context.Context, r Requester) (Info, error) {
	resp, err := r.Request(ctx, "i")
	if err != nil {
		return Info{}, err
	}
	return InfoFromResponse(resp)
}

// CheckInfo compares a device identity against what kind expects: the
// name must match and the version must be at least the kind's minimum.
func CheckInfo(kind Kind, info Info) error {
	if info.Name != kind.Name {
		return fmt.Errorf("%w: device name does not match\n\texpect: %s\n\tactual: %s",
			ErrIdentityMismatch, kind.Name, info.Name)
	}
	want, err := ParseVersion(kind.MinVersion)
	if err != nil {
		return err
	}
	got, err := ParseVersion(info.Version)
	if err != nil {
		return err
	}
	if !got.AtLeast(want) {
		return fmt.Errorf("%w: device version is too old\n\texpect: %s\n\tactual: %s",
			ErrIdentityMismatch, kind.MinVersion, info.Version)
	}
	return nil
}

// Info asks the device to identify itself.
func (c *Conn) Info(ctx context.Context) (Info, error) {
	info, err := ReadInfo(ctx, c)
	if err != nil {
		return Info{}, err
	}
	c.log.Info().Str("name", info.Name).Str("version", info.Version).Msg("device identified")
	return info, nil
}

// ValidateFirmware checks that the attached device runs the firmware this
// connection's kind expects.
func (c *Conn) ValidateFirmware(ctx context.Context) (Info, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return Info{}, err
	}
	if err := CheckInfo(c.kind, info); err != nil {
		return info, c.fail(err)
	}
	return info, nil
}
