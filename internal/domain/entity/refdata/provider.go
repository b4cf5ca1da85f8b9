package refdata

import (
	"fmt"
	"regexp"
)

var providerNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

// ValidateProviderName accepts names that are safe to embed in table
// names: a letter followed by letters or digits.
func ValidateProviderName(name string) error {
	if !providerNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidProvider, name)
	}
	return nil
}
