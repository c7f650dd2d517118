package resource

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

type microversion struct {
	major int
	minor int
}

func parseMicroversion(value string) (microversion, error) {
	majorStr, minorStr, ok := strings.Cut(strings.TrimSpace(value), ".")
	if !ok {
		return microversion{}, fmt.Errorf("%w: %q", ErrInvalidMicroversion, value)
	}

	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return microversion{}, fmt.Errorf("%w: %q", ErrInvalidMicroversion, value)
	}

	minor, err := strconv.Atoi(minorStr)
	if err != nil {
		return microversion{}, fmt.Errorf("%w: %q", ErrInvalidMicroversion, value)
	}

	return microversion{major: major, minor: minor}, nil
}

// ValidMicroversion reports whether value has the "major.minor" form.
func ValidMicroversion(value string) bool {
	_, err := parseMicroversion(value)

	return err == nil
}

// CompareMicroversions compares two "major.minor" versions numerically, so
// "2.10" sorts after "2.9". Unparsable versions sort first.
func CompareMicroversions(a, b string) int {
	left, errA := parseMicroversion(a)
	right, errB := parseMicroversion(b)

	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}

	if left.major != right.major {
		return cmp.Compare(left.major, right.major)
	}

	return cmp.Compare(left.minor, right.minor)
}

// NegotiateMicroversion caps the session's requested version by the schema's
// maximum. A schema without a maximum does not take part in microversioning.
func NegotiateMicroversion(requested, schemaMax string) string {
	if schemaMax == "" {
		return ""
	}

	if requested == "" || CompareMicroversions(requested, schemaMax) > 0 {
		return schemaMax
	}

	return requested
}
