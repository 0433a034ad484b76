// Package naming holds the ENTSO-E boundary file naming conventions.
//
// A boundary container is named <effectiveDateTime>__ENTSOE_BD_<fileVersion>.zip where
// effectiveDateTime is an UTC date-time (YYYYMMDDTHHmmZ) and fileVersion a three characters
// long positive integer between 001 and 999. Its members of interest carry the
// __ENTSOE_EQBD_ (equipment boundary) or __ENTSOE_TPBD_ (topology boundary) token.
package naming

import (
	"regexp"
	"strings"
)

const (
	MemberIgnored MemberKind = iota
	MemberEquipmentBoundary
	MemberTopologyBoundary

	ContainerExtension = "zip"

	versionLength   = 3
	nameSegments    = 5
	dotSeparator    = "."
	underscoreToken = "_"
	entsoeToken     = "ENTSOE"
	boundaryToken   = "BD"
)

var (
	EquipmentBoundaryRegexp = regexp.MustCompile(`^(.*?(__ENTSOE_EQBD_).*(.xml))$`)
	TopologyBoundaryRegexp  = regexp.MustCompile(`^(.*?(__ENTSOE_TPBD_).*(.xml))$`)
)

type MemberKind int

func (k MemberKind) String() string {
	return [...]string{"Ignored", "EQBD", "TPBD"}[k]
}

// IsValidArchiveName reports whether filename follows the boundary container convention.
func IsValidArchiveName(filename string) bool {
	parts := strings.Split(filename, dotSeparator)
	if len(parts) != 2 || parts[1] != ContainerExtension {
		return false
	}

	segments := strings.Split(parts[0], underscoreToken)
	if len(segments) != nameSegments {
		return false
	}

	return segments[1] == "" &&
		segments[2] == entsoeToken &&
		segments[3] == boundaryToken &&
		isValidFileVersion(segments[4])
}

func isValidFileVersion(version string) bool {
	if len(version) != versionLength {
		return false
	}

	v := 0
	for i := 0; i < len(version); i++ {
		c := version[i]
		if c < '0' || c > '9' {
			return false
		}
		v = v*10 + int(c-'0')
	}

	return v > 0
}

// ClassifyMember tells which boundary role a member base name denotes.
func ClassifyMember(baseName string) MemberKind {
	switch {
	case baseName == "":
		return MemberIgnored
	case EquipmentBoundaryRegexp.MatchString(baseName):
		return MemberEquipmentBoundary
	case TopologyBoundaryRegexp.MatchString(baseName):
		return MemberTopologyBoundary
	}

	return MemberIgnored
}

// BaseName strips the directory part of an archive entry name. Both separators are honored.
func BaseName(entryName string) string {
	if i := strings.LastIndexAny(entryName, `/\`); i >= 0 {
		return entryName[i+1:]
	}

	return entryName
}
