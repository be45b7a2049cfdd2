package enums

import "fmt"

// RoleType represents the journal-wide permission level granted to a username.
type RoleType string

const (
	RoleTypeAdmin     RoleType = "admin"
	RoleTypePublisher RoleType = "publisher"
	RoleTypeViewer    RoleType = "viewer"
)

var validRoleTypes = []RoleType{
	RoleTypeAdmin,
	RoleTypePublisher,
	RoleTypeViewer,
}

// String implements fmt.Stringer.
func (r RoleType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RoleType.
func (r RoleType) IsValid() bool {
	for _, candidate := range validRoleTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRoleType converts raw input into a RoleType.
func ParseRoleType(value string) (RoleType, error) {
	for _, candidate := range validRoleTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role type %q", value)
}
