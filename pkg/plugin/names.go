package plugin

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PrefixedName joins a prefix and an original tag or filter name.
func PrefixedName(prefix, name string) string {
	return prefix + "_" + name
}

// ValidatePrefix reports whether prefix can be used as a namespace. Prefixes
// end up inside tag and function names, so they follow pongo2 identifier rules.
func ValidatePrefix(prefix string) error {
	if !identifierRe.MatchString(prefix) {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return nil
}

func validateName(name string) error {
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// isPublicMethod mirrors exported-ness for filter modules: helpers whose name
// starts with an underscore are never exposed under a prefix.
func isPublicMethod(name string) bool {
	return name != "" && !strings.HasPrefix(name, "_") && identifierRe.MatchString(name)
}
