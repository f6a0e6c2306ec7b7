package api

import (
	"fmt"
	"strings"
)

// ValidateTopicName enforces the bit-exact topic_name rule: 1..255 chars,
// and alphanumeric once '-' and '_' are stripped.
func ValidateTopicName(name string) error {
	if len(name) < 1 || len(name) > 255 {
		return fmt.Errorf("topic_name must be 1..255 characters")
	}
	stripped := strings.NewReplacer("-", "", "_", "").Replace(name)
	for _, r := range stripped {
		if !isAlphanumeric(r) {
			return fmt.Errorf("topic_name must be alphanumeric (hyphens and underscores allowed)")
		}
	}
	return nil
}

// ValidateUsername enforces 3..50 characters.
func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 50 {
		return fmt.Errorf("username must be 3..50 characters")
	}
	return nil
}

// ValidatePassword enforces a minimum length of 8.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

// ValidateBulkSize enforces the 1..100 message bulk-publish limit.
func ValidateBulkSize(n int) error {
	if n < 1 || n > 100 {
		return fmt.Errorf("bulk request must contain 1..100 messages")
	}
	return nil
}

// ClampLimit clamps a requested page size into [1,100], defaulting to def
// when requested is 0.
func ClampLimit(requested, def int) int {
	if requested <= 0 {
		return def
	}
	if requested > 100 {
		return 100
	}
	return requested
}

func isAlphanumeric(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
