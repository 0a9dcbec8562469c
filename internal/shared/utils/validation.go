package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Payload size limits (in bytes)
const (
	MaxPayloadSize  = 64 * 1024 * 1024 // 64MB - maximum bundle save request
	MaxMetadataSize = 1 * 1024 * 1024  // 1MB - metadata and config records
)

// String length limits
const (
	MaxVersionIDLength   = 128
	MaxNodeNameLength    = 255
	MaxDescriptionLength = 2048
)

// VersionIDPattern allows alphanumeric, dots, hyphens, underscores and plus
var VersionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._+-]+$`)

// ValidateVersionID checks that id can name a directory under the bundle root.
func ValidateVersionID(id string) error {
	if id == "" {
		return fmt.Errorf("version is required")
	}
	if len(id) > MaxVersionIDLength {
		return fmt.Errorf("version must be at most %d characters", MaxVersionIDLength)
	}
	if !VersionIDPattern.MatchString(id) {
		return fmt.Errorf("version contains invalid characters")
	}
	// Dot-prefixed names are reserved for store bookkeeping.
	if strings.HasPrefix(id, ".") {
		return fmt.Errorf("version must not start with a dot")
	}
	return nil
}

// ValidateNodeName checks a single payload tree entry name.
func ValidateNodeName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("name must be valid UTF-8")
	}
	if len(name) > MaxNodeNameLength {
		return fmt.Errorf("name must be at most %d bytes", MaxNodeNameLength)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("name %q is not allowed", name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("name %q must not contain path separators", name)
	}
	return nil
}

// ValidateDescription checks the optional free-text description.
func ValidateDescription(description string) error {
	if !utf8.ValidString(description) {
		return fmt.Errorf("description must be valid UTF-8")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("description must be at most %d characters", MaxDescriptionLength)
	}
	return nil
}
