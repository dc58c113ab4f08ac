package types

import (
	"time"

	"github.com/google/uuid"
)

// NewMessageID generates a UUIDv7 identifier for a stored score row.
// Time-ordered IDs keep sequential inserts clustered in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewMessageID() MessageID {
	return MessageID(uuid.Must(uuid.NewV7()).String())
}

// NewAPIKeyID generates a UUIDv7 API key identifier.
func NewAPIKeyID() APIKeyID {
	return APIKeyID(uuid.Must(uuid.NewV7()).String())
}

// ParseMessageID validates and converts a string to MessageID.
func ParseMessageID(s string) (MessageID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return MessageID(s), nil
}

// MessageIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func MessageIDTime(id MessageID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
