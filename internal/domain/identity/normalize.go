package identity

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var upper = cases.Upper(language.Und)

// Normalize produces the lookup form of a user name, role name or e-mail.
// Lookups and unique indexes use the normalized column so that comparisons
// do not depend on the column collation.
func Normalize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return upper.String(value)
}

// NewStamp returns a fresh opaque concurrency or security stamp
func NewStamp() string {
	return uuid.NewString()
}

// NewID returns a new string identifier for users and roles
func NewID() string {
	return uuid.NewString()
}
