package platform

import (
	"github.com/google/uuid"
)

// NewID returns a random (v4) UUID in canonical string form.
func NewID() string {
	return uuid.New().String()
}

// ParseID normalises s to the canonical lower-case UUID form. Only the
// 36-character hyphenated encoding is accepted; uuid.Parse also allows
// urn and braced forms, which never appear in our URLs or tokens.
func ParseID(s string) (string, bool) {
	if len(s) != 36 {
		return "", false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
