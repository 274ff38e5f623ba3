// Package workid normalises and validates the numeric identifiers that name
// remote works.
package workid

import (
	"fmt"
	"strings"

	"folio/internal/services"
)

// ID is a normalised work identifier: a non-empty string of ASCII digits.
type ID string

// String returns the identifier text.
func (id ID) String() string {
	return string(id)
}

// Parse trims leading and trailing whitespace from raw and requires the
// remainder to be ASCII digits. Prefixes and interior whitespace are rejected.
func Parse(raw string) (ID, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", services.Wrap(services.ErrInvalidIdentifier, "workid", "parse", "identifier is empty", nil)
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return "", services.Wrap(
				services.ErrInvalidIdentifier,
				"workid",
				"parse",
				fmt.Sprintf("identifier %q must contain digits only", value),
				nil,
			)
		}
	}
	return ID(value), nil
}
