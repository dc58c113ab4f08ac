package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/solatis/mailscore/internal/types"
)

// APIKey is a stored API key. The key itself is never stored, only its
// HMAC.
type APIKey struct {
	APIKeyID   types.APIKeyID `db:"api_key_id"`
	Name       string         `db:"name"`
	SecretID   string         `db:"secret_id"`
	CreatedAt  time.Time      `db:"created_at"`
	LastUsedAt sql.NullTime   `db:"last_used_at"`
	RevokedAt  sql.NullTime   `db:"revoked_at"`
}

// CreateAPIKey stores the hash of a new key issued to name.
func (q *Queries) CreateAPIKey(name, secretID string, hash []byte) (types.APIKeyID, error) {
	id := types.NewAPIKeyID()
	if _, err := q.Exec("insert-api-key", string(id), name, secretID, hash, time.Now().UTC()); err != nil {
		return "", fmt.Errorf("failed to create API key: %w", err)
	}
	return id, nil
}

// RevokeAPIKey marks a key revoked. Revoking an unknown or already revoked
// key returns ErrNotFound.
func (q *Queries) RevokeAPIKey(id types.APIKeyID) error {
	res, err := q.Exec("revoke-api-key", time.Now().UTC(), string(id))
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAPIKeys returns every key in creation order.
func (q *Queries) ListAPIKeys() ([]APIKey, error) {
	var keys []APIKey
	if err := q.Select("list-api-keys", &keys); err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	return keys, nil
}
