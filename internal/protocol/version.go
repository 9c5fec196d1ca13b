package protocol

import (
	"strconv"
	"strings"
)

// Compatibility between a client version tag and the server's.
type Compatibility string

const (
	// CompatNone means the client must be disconnected after the version reply.
	CompatNone Compatibility = "none"
	// CompatOutdated means the patch levels differ; the connection proceeds.
	CompatOutdated Compatibility = "ok_outdated"
	CompatFully    Compatibility = "fully"
)

// IsCompatible reports whether the connection may continue.
func (c Compatibility) IsCompatible() bool { return c != CompatNone }

// CheckVersion compares two dotted major.minor.patch tags. Major or minor
// mismatch is fatal; a patch-only mismatch is tolerated with a warning.
func CheckVersion(client, server string) Compatibility {
	cMajor, cMinor, cPatch, ok := parseVersion(client)
	if !ok {
		return CompatNone
	}
	sMajor, sMinor, sPatch, ok := parseVersion(server)
	if !ok {
		return CompatNone
	}
	if cMajor != sMajor || cMinor != sMinor {
		return CompatNone
	}
	if cPatch != sPatch {
		return CompatOutdated
	}
	return CompatFully
}

func parseVersion(tag string) (major, minor, patch int, ok bool) {
	parts := strings.Split(tag, ".")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], true
}
