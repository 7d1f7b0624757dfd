package storage

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeKey converts a configured key to the canonical form every backend
// stores it under: surrounding whitespace removed. It rejects keys that are
// empty after trimming or contain control characters, since those cannot be
// represented in every backend (file names, SQL NVARCHAR keys).
func NormalizeKey(key string) (string, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return "", fmt.Errorf("storage: empty key")
	}
	for _, r := range k {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("storage: key %q contains control characters", k)
		}
	}
	return k, nil
}
