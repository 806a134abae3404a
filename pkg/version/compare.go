// pkg/version/compare.go - ordering of software version strings.

package version

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Parse parses a dotted version string such as "2.47.1.1" or "1.2.3-beta".
func Parse(raw string) (*goversion.Version, error) {
	return goversion.NewVersion(strings.TrimSpace(raw))
}

// Compare returns -1, 0 or 1 when a is lower than, equal to or higher than b.
// Unparsable input yields an error.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// DesiredSatisfied reports whether the observed versions satisfy desired.
//
// With exactMatch the desired version must be present (segment-wise equal, so
// "1.2" matches "1.2.0"); otherwise one observed version must be greater than
// or equal to it. An empty desired version accepts any observed version.
// Strings that cannot be parsed never match.
func DesiredSatisfied(desired string, observed []string, exactMatch bool) bool {
	if len(observed) == 0 {
		return false
	}
	if strings.TrimSpace(desired) == "" {
		for _, o := range observed {
			if strings.TrimSpace(o) != "" {
				return true
			}
		}
		return false
	}

	want, err := Parse(desired)
	if err != nil {
		return false
	}
	for _, o := range observed {
		have, err := Parse(o)
		if err != nil {
			continue
		}
		if exactMatch {
			if have.Equal(want) {
				return true
			}
			continue
		}
		if have.GreaterThanOrEqual(want) {
			return true
		}
	}
	return false
}

// AllOlder reports whether every observed version is strictly lower than desired.
// It is false for an empty observation or when any string fails to parse.
func AllOlder(observed []string, desired string) bool {
	if len(observed) == 0 {
		return false
	}
	want, err := Parse(desired)
	if err != nil {
		return false
	}
	for _, o := range observed {
		have, err := Parse(o)
		if err != nil || !have.LessThan(want) {
			return false
		}
	}
	return true
}
