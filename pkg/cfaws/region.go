package cfaws

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultRegion is used when no region is specified.
const DefaultRegion = "us-east-1"

// region majors keyed by their one or two letter shorthand. Two letter
// forms are tried first so "ug" resolves to us-gov rather than us.
var regionMajors = []struct {
	short string
	major string
}{
	{"ug", "us-gov"},
	{"us", "us"},
	{"eu", "eu"},
	{"af", "af"},
	{"ap", "ap"},
	{"cn", "cn"},
	{"ca", "ca"},
	{"me", "me"},
	{"sa", "sa"},
	{"u", "us"},
	{"e", "eu"},
	{"a", "ap"},
	{"c", "ca"},
	{"m", "me"},
	{"s", "sa"},
}

var regionMinors = []struct {
	short string
	minor string
}{
	{"nw", "northwest"},
	{"ne", "northeast"},
	{"sw", "southwest"},
	{"se", "southeast"},
	{"n", "north"},
	{"s", "south"},
	{"e", "east"},
	{"w", "west"},
	{"c", "central"},
}

// ExpandRegion turns a shorthand region such as "ue1" or "apse2" into the
// full region name. Fully qualified regions are returned unchanged and an
// empty region expands to DefaultRegion.
func ExpandRegion(region string) (string, error) {
	if region == "" {
		return DefaultRegion, nil
	}
	if strings.Contains(region, "-") {
		return region, nil
	}
	if len(region) < 2 {
		return "", fmt.Errorf("region too short, needs at least two characters (eg ue)")
	}

	var major string
	rest := region
	for _, m := range regionMajors {
		if strings.HasPrefix(rest, m.short) {
			major = m.major
			rest = rest[len(m.short):]
			break
		}
	}
	if major == "" {
		return "", fmt.Errorf("unknown region major (hint: try using the first letter of the region)")
	}
	if rest == "" {
		return "", fmt.Errorf("missing region minor in %s (found major: %s)", region, major)
	}

	var minor string
	for _, m := range regionMinors {
		if strings.HasPrefix(rest, m.short) {
			minor = m.minor
			rest = rest[len(m.short):]
			break
		}
	}
	if minor == "" {
		return "", fmt.Errorf("unknown region minor in %s (found major: %s)", rest, major)
	}

	num := "1"
	if rest != "" {
		if _, err := strconv.Atoi(rest); err != nil {
			return "", fmt.Errorf("unknown region number in %s (found major: %s, minor: %s)", rest, major, minor)
		}
		num = rest
	}
	return fmt.Sprintf("%s-%s-%s", major, minor, num), nil
}
