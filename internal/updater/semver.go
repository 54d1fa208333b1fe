package updater

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// releaseVersion is a parsed vMAJOR.MINOR.PATCH[-PRERELEASE][+BUILD] tag.
// Build metadata is dropped; it never affects ordering.
type releaseVersion struct {
	core [3]int
	pre  []string
}

func NormalizeVersionTag(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "v") {
		return raw
	}
	return "v" + raw
}

// IsNewerVersion reports candidate > current. Non-semver input (e.g. "dev")
// is an error.
func IsNewerVersion(candidate, current string) (bool, error) {
	a, err := parseReleaseVersion(candidate)
	if err != nil {
		return false, err
	}
	b, err := parseReleaseVersion(current)
	if err != nil {
		return false, err
	}
	return a.compare(b) > 0, nil
}

func parseReleaseVersion(raw string) (releaseVersion, error) {
	tag := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	tag, _, _ = strings.Cut(tag, "+")
	if tag == "" {
		return releaseVersion{}, fmt.Errorf("invalid version %q", raw)
	}

	coreText, preText, hasPre := strings.Cut(tag, "-")
	fields := strings.Split(coreText, ".")
	if len(fields) != 3 {
		return releaseVersion{}, fmt.Errorf("version %q must have major.minor.patch", raw)
	}
	var v releaseVersion
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return releaseVersion{}, fmt.Errorf("version %q: bad number %q", raw, f)
		}
		v.core[i] = n
	}
	if hasPre {
		if preText == "" {
			return releaseVersion{}, fmt.Errorf("version %q: empty prerelease", raw)
		}
		v.pre = strings.Split(preText, ".")
	}
	return v, nil
}

// compare orders versions by semver precedence: a release outranks its
// prereleases, and prerelease identifiers compare numerically when both are
// numbers.
func (v releaseVersion) compare(o releaseVersion) int {
	for i := range v.core {
		if c := cmp.Compare(v.core[i], o.core[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(v.pre) == 0 && len(o.pre) == 0:
		return 0
	case len(v.pre) == 0:
		return 1
	case len(o.pre) == 0:
		return -1
	}
	for i := 0; i < len(v.pre) && i < len(o.pre); i++ {
		if c := comparePrereleaseID(v.pre[i], o.pre[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(v.pre), len(o.pre))
}

func comparePrereleaseID(a, b string) int {
	an, aErr := strconv.Atoi(a)
	bn, bErr := strconv.Atoi(b)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(an, bn)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
