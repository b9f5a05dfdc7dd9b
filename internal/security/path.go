package security

import (
	"fmt"
	"strings"
)

// ValidateFilePath rejects empty paths, NUL bytes and any ".." segment.
// Absolute paths are allowed; operators choose where the database and config live.
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.ContainsRune(path, '\x00') {
		return fmt.Errorf("path contains NUL byte")
	}
	// Both separators are split so Windows-style paths are checked on every host
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' })
	for _, part := range parts {
		if part == ".." {
			return fmt.Errorf("path contains directory traversal: %s", path)
		}
	}
	return nil
}
