package model

import (
	"strings"

	"github.com/google/uuid"
)

// SessionIDPrefix marks ids handed out by NewSessionID.
const SessionIDPrefix = "sess_"

// NewSessionID returns a fresh session id: the prefix followed by 24 hex digits.
func NewSessionID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return SessionIDPrefix + hex[:24]
}
