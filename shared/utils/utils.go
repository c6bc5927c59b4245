package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	apperrors "arbor/internal/errors"
)

// HashContent returns the lowercase hex SHA-256 of content.
func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// ValidChecksum reports whether s looks like a checksum produced by HashContent.
func ValidChecksum(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil && strings.ToLower(s) == s
}

// AppIDFromRef extracts the application id from a ref of the form
// kind/app-id/arch/branch, e.g. "app/org.example.App/x86_64/stable".
func AppIDFromRef(ref string) (string, error) {
	parts := strings.Split(ref, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", apperrors.ValidationError("ref has no application id", ref)
	}
	return parts[1], nil
}
