package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"acars_hub/internal/message"
)

// PostgresBackup archives messages to a PostgreSQL table.
type PostgresBackup struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL and ensures the archive
// table exists.
func OpenPostgres(ctx context.Context, cfg BackupConfig) (*PostgresBackup, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	b := &PostgresBackup{pool: pool}
	if err := b.createSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the PostgreSQL connection pool.
func (b *PostgresBackup) Close() error {
	b.pool.Close()
	return nil
}

func (b *PostgresBackup) createSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		uid             TEXT PRIMARY KEY,
		message_type    TEXT NOT NULL,
		msg_time        DOUBLE PRECISION NOT NULL,
		station_id      TEXT NOT NULL DEFAULT '',
		toaddr          TEXT NOT NULL DEFAULT '',
		fromaddr        TEXT NOT NULL DEFAULT '',
		depa            TEXT NOT NULL DEFAULT '',
		dsta            TEXT NOT NULL DEFAULT '',
		eta             TEXT NOT NULL DEFAULT '',
		gtout           TEXT NOT NULL DEFAULT '',
		gtin            TEXT NOT NULL DEFAULT '',
		wloff           TEXT NOT NULL DEFAULT '',
		wlin            TEXT NOT NULL DEFAULT '',
		lat             TEXT NOT NULL DEFAULT '',
		lon             TEXT NOT NULL DEFAULT '',
		alt             TEXT NOT NULL DEFAULT '',
		msg_text        TEXT NOT NULL DEFAULT '',
		tail            TEXT NOT NULL DEFAULT '',
		flight          TEXT NOT NULL DEFAULT '',
		icao            TEXT NOT NULL DEFAULT '',
		freq            TEXT NOT NULL DEFAULT '',
		ack             TEXT NOT NULL DEFAULT '',
		mode            TEXT NOT NULL DEFAULT '',
		label           TEXT NOT NULL DEFAULT '',
		block_id        TEXT NOT NULL DEFAULT '',
		msgno           TEXT NOT NULL DEFAULT '',
		is_response     TEXT NOT NULL DEFAULT '',
		is_onground     TEXT NOT NULL DEFAULT '',
		error           INTEGER NOT NULL DEFAULT 0,
		libacars        TEXT NOT NULL DEFAULT '',
		level           TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_messages_time ON messages(msg_time);
	CREATE INDEX IF NOT EXISTS idx_messages_icao ON messages(icao);
	CREATE INDEX IF NOT EXISTS idx_messages_tail ON messages(tail);
	`
	if _, err := b.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// WriteMessage appends one stored message to the archive.
func (b *PostgresBackup) WriteMessage(ctx context.Context, m *message.Stored) error {
	_, err := b.pool.Exec(ctx, `INSERT INTO messages (
			uid, message_type, msg_time, station_id, toaddr, fromaddr,
			depa, dsta, eta, gtout, gtin, wloff, wlin, lat, lon, alt,
			msg_text, tail, flight, icao, freq, ack, mode, label,
			block_id, msgno, is_response, is_onground, error, libacars, level
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31)
		ON CONFLICT (uid) DO NOTHING`,
		m.UID, string(m.MessageType), m.Time, m.StationID, m.ToAddr, m.FromAddr,
		m.Depa, m.Dsta, m.Eta, m.GateOut, m.GateIn, m.WheelsOff, m.WheelsIn, m.Lat, m.Lon, m.Alt,
		m.Text, m.Tail, m.Flight, m.ICAO, m.Freq, m.Ack, m.Mode, m.Label,
		m.BlockID, m.MsgNo, m.IsResponse, m.IsOnGround, m.Error, m.Libacars, m.Level)
	if err != nil {
		return fmt.Errorf("insert backup message: %w", err)
	}
	return nil
}
