// SPDX-License-Identifier: MPL-2.0

package interpreter

import (
	"slices"
	"strconv"
	"strings"
)

// sortVersionsDesc orders dotted version strings ("3.9", "3.12", "3.13t")
// newest first. Entries without a leading number sort last.
func sortVersionsDesc(versions []string) []string {
	out := slices.Clone(versions)
	slices.SortStableFunc(out, func(a, b string) int {
		return compareVersions(b, a)
	})
	return out
}

func compareVersions(a, b string) int {
	pa, pb := versionParts(a), versionParts(b)
	for i := range max(len(pa), len(pb)) {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		if x != y {
			return x - y
		}
	}
	return 0
}

// versionParts parses the leading digits of each dot-separated component.
// A missing number is -1 so malformed names lose to real versions.
func versionParts(v string) []int {
	var parts []int
	for field := range strings.SplitSeq(v, ".") {
		end := 0
		for end < len(field) && field[end] >= '0' && field[end] <= '9' {
			end++
		}
		n, err := strconv.Atoi(field[:end])
		if err != nil {
			n = -1
		}
		parts = append(parts, n)
	}
	return parts
}
