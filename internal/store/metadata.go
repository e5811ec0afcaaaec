package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// Metadata keys.
const (
	MetaSchemaVersion  = "schema_version"
	MetaLastStartedAt  = "last_started_at"
	MetaLastRecoveries = "last_recovered_sessions"
)

// SetMetadata upserts a key-value pair in the server_metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO server_metadata (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM server_metadata WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// RecordStartup stores the startup time and how many interrupted sessions
// were failed during recovery.
func (s *Store) RecordStartup(ctx context.Context, at time.Time, recovered int64) error {
	if err := s.SetMetadata(ctx, MetaLastStartedAt, at.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return s.SetMetadata(ctx, MetaLastRecoveries, strconv.FormatInt(recovered, 10))
}
