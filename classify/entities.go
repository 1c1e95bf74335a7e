// Copyright 2025 Unigate
// SPDX-License-Identifier: Apache-2.0

package classify

import "strings"

// extractEntities pulls lookup keys from the raw query: coin names,
// $TICKER symbols, quoted phrases, coordinates and capitalized place
// names after "in"/"en". Order is deterministic; duplicates removed.
func extractEntities(text string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if !seen[key] {
			seen[key] = true
			out = append(out, v)
		}
	}

	for _, m := range coinPattern.FindAllString(text, -1) {
		add(strings.ToLower(m))
	}
	for _, m := range tickerPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range coordPattern.FindAllString(text, -1) {
		add(m)
	}
	for _, m := range placePattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	return out
}
