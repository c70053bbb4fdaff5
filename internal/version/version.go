package version

import (
	"strconv"
	"strings"

	semver "github.com/Masterminds/semver/v3"
)

// AtLeast reports whether v is greater than or equal to minimum. Missing
// components count as zero and unparsable versions as 0.0.0, so "1.2" equals
// "1.2.0".
func AtLeast(v, minimum string) bool {
	return parse(v).Compare(parse(minimum)) >= 0
}

func parse(raw string) *semver.Version {
	raw = strings.TrimSpace(raw)
	if v, err := semver.NewVersion(raw); err == nil {
		return v
	}

	// fall back to a numeric, dot separated reading
	var parts [3]uint64
	for i, p := range strings.SplitN(strings.TrimPrefix(raw, "v"), ".", 3) {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			break
		}
		parts[i] = n
	}
	return semver.New(parts[0], parts[1], parts[2], "", "")
}
