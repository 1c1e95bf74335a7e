// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/unigate/unigate/providers"
)

// MaxQueryLength is the hard input cap. Longer payloads are rejected,
// not truncated, so the caller learns about the problem.
const MaxQueryLength = 4096

// tagEscaper neutralizes markup injection while leaving quotes and
// apostrophes alone; the classifier relies on those for entity
// extraction.
var tagEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// Sanitize normalizes user input before it enters the pipeline:
// control characters are stripped, angle brackets escaped, and
// surrounding whitespace trimmed. Empty, oversized, or non-UTF-8
// input fails with ErrInputInvalid.
func Sanitize(raw string) (string, error) {
	if len(raw) > MaxQueryLength {
		return "", fmt.Errorf("%w: input exceeds %d bytes", providers.ErrInputInvalid, MaxQueryLength)
	}
	if !utf8.ValidString(raw) {
		return "", fmt.Errorf("%w: input is not valid UTF-8", providers.ErrInputInvalid)
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r == '\n' || r == '\t' {
			b.WriteRune(' ')
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}

	cleaned := strings.TrimSpace(tagEscaper.Replace(b.String()))
	if cleaned == "" {
		return "", fmt.Errorf("%w: input is empty", providers.ErrInputInvalid)
	}
	return cleaned, nil
}
