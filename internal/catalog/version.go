package catalog

import (
	"sort"
	"strconv"
	"strings"
)

// CompareVersions orders dotted version ids segment by segment, comparing the
// leading digits of each segment numerically ("3.10.0" > "3.9.5"). Whatever
// follows the digits breaks ties lexically. A missing segment sorts lower.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}

	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func compareSegment(a, b string) int {
	an, arest := splitDigits(a)
	bn, brest := splitDigits(b)

	switch {
	case an >= 0 && bn >= 0:
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	case an >= 0:
		return 1
	case bn >= 0:
		return -1
	}
	return strings.Compare(arest, brest)
}

// splitDigits returns the numeric value of s's leading digits (-1 if none) and the rest.
func splitDigits(s string) (int, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return -1, s
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return -1, s
	}
	return n, s[i:]
}

// SortDescending sorts version ids in place, highest first.
func SortDescending(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return CompareVersions(versions[i], versions[j]) > 0
	})
}

// GroupKey returns the "major.minor" prefix of a version id.
func GroupKey(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}
