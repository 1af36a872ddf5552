package signaling

import (
	"fmt"
	"strings"
)

const (
	maxUsernameLen = 32
	maxPasswordLen = 64
)

// ValidateUsername enforces a non-empty, alphanumeric-or-underscore
// username of at most maxUsernameLen characters.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("signaling: empty username")
	}
	if len(username) > maxUsernameLen {
		return fmt.Errorf("signaling: username too long (max %d)", maxUsernameLen)
	}
	for _, c := range username {
		if !isAlphanumeric(c) && c != '_' {
			return fmt.Errorf("signaling: invalid username: only letters, digits, or '_'")
		}
	}
	return nil
}

// ValidatePassword enforces a non-empty password of at most maxPasswordLen
// characters that avoids the protocol's own delimiters.
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("signaling: empty password")
	}
	if len(password) > maxPasswordLen {
		return fmt.Errorf("signaling: password too long (max %d)", maxPasswordLen)
	}
	if strings.ContainsAny(password, ":|\n\r") {
		return fmt.Errorf("signaling: invalid password: must not contain ':', '|', or a newline")
	}
	return nil
}

func isAlphanumeric(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
