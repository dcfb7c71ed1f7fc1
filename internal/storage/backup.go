package storage

import (
	"context"
	"fmt"

	"acars_hub/internal/message"
)

// Backup is a secondary message archive. Writes to it are independent of the
// primary SQLite transaction: a backup failure never rolls back or blocks the
// primary write.
type Backup interface {
	WriteMessage(ctx context.Context, m *message.Stored) error
	Close() error
}

// BackupConfig holds the connection settings for the configured backup store.
type BackupConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// OpenBackup opens the backup store named by kind: "clickhouse", "postgres",
// or "" for none (returns nil).
func OpenBackup(ctx context.Context, kind string, cfg BackupConfig) (Backup, error) {
	switch kind {
	case "":
		return nil, nil
	case "clickhouse":
		return OpenClickHouse(ctx, cfg)
	case "postgres":
		return OpenPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown backup store %q", kind)
	}
}
