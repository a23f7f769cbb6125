// Bucketdrive
// Copyright (c) 2026 The Bucketdrive Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Bucketdrive.
//
// Bucketdrive is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Bucketdrive is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Bucketdrive.  If not, see <http://www.gnu.org/licenses/>.

package procprobe

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bucketdrive/bucketdrive/pkg/drives"
)

// ProcessInfo is what the probe knows about one candidate process.
type ProcessInfo struct {
	Name    string
	Cmdline string
	PID     int32
}

// Matcher decides whether a process is relevant.
type Matcher interface {
	Match(proc ProcessInfo) bool
}

// MatcherFunc is a function adapter for Matcher.
type MatcherFunc func(proc ProcessInfo) bool

func (f MatcherFunc) Match(proc ProcessInfo) bool {
	return f(proc)
}

// ImageMatcher matches the executable image name, case-insensitively and
// with or without the .exe suffix.
type ImageMatcher struct {
	name string
}

func NewImageMatcher(name string) *ImageMatcher {
	return &ImageMatcher{name: normalizeImage(name)}
}

func (m *ImageMatcher) Match(proc ProcessInfo) bool {
	return normalizeImage(proc.Name) == m.name
}

func normalizeImage(name string) string {
	name = strings.ToLower(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	return strings.TrimSuffix(name, ".exe")
}

// LetterArgMatcher matches a process whose command line carries "<L>:" as
// its own token: preceded by start, whitespace, a quote or '=', and followed
// by end, whitespace, a quote or a path separator. "C:\Program Files" does
// not match C because the token continues after the separator.
type LetterArgMatcher struct {
	re     *regexp.Regexp
	letter drives.Letter
}

func NewLetterArgMatcher(l drives.Letter) *LetterArgMatcher {
	return &LetterArgMatcher{
		letter: l,
		re:     letterTokenRe(l),
	}
}

func letterTokenRe(l drives.Letter) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[\s"'=])` + l.String() + `:(?:[\\/]?)(?:$|[\s"'])`)
}

func (m *LetterArgMatcher) Match(proc ProcessInfo) bool {
	return m.re.MatchString(proc.Cmdline)
}

// Letter returns the letter this matcher looks for.
func (m *LetterArgMatcher) Letter() drives.Letter {
	return m.letter
}

// AndMatcher requires every sub-matcher to match.
type AndMatcher struct {
	matchers []Matcher
}

func NewAndMatcher(matchers ...Matcher) *AndMatcher {
	return &AndMatcher{matchers: matchers}
}

func (m *AndMatcher) Match(proc ProcessInfo) bool {
	for _, matcher := range m.matchers {
		if !matcher.Match(proc) {
			return false
		}
	}
	return true
}

// LabelMatcher reports whether a volume label contains one of a set of
// keywords, case-insensitively.
type LabelMatcher struct {
	keywords []string
}

func NewLabelMatcher(keywords []string) *LabelMatcher {
	m := &LabelMatcher{keywords: make([]string, 0, len(keywords))}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			m.keywords = append(m.keywords, k)
		}
	}
	return m
}

func (m *LabelMatcher) MatchLabel(label string) bool {
	label = strings.ToLower(label)
	if label == "" {
		return false
	}
	for _, k := range m.keywords {
		if strings.Contains(label, k) {
			return true
		}
	}
	return false
}
