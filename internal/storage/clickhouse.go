package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"acars_hub/internal/message"
)

// ClickHouseBackup archives messages to a ClickHouse MergeTree table.
type ClickHouseBackup struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse and ensures the archive
// table exists.
func OpenClickHouse(ctx context.Context, cfg BackupConfig) (*ClickHouseBackup, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	b := &ClickHouseBackup{conn: conn}
	if err := b.createSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the ClickHouse connection.
func (b *ClickHouseBackup) Close() error {
	return b.conn.Close()
}

func (b *ClickHouseBackup) createSchema(ctx context.Context) error {
	err := b.conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS messages (
		uid             String,
		message_type    LowCardinality(String),
		msg_time        Float64,
		station_id      LowCardinality(String),
		toaddr          String,
		fromaddr        String,
		depa            LowCardinality(String),
		dsta            LowCardinality(String),
		eta             String,
		gtout           String,
		gtin            String,
		wloff           String,
		wlin            String,
		lat             String,
		lon             String,
		alt             String,
		msg_text        String,
		tail            LowCardinality(String),
		flight          LowCardinality(String),
		icao            String,
		freq            LowCardinality(String),
		ack             String,
		mode            LowCardinality(String),
		label           LowCardinality(String),
		block_id        String,
		msgno           String,
		is_response     String,
		is_onground     String,
		error           Int32,
		libacars        String,
		level           String,
		created_at      DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(toDateTime(msg_time))
	ORDER BY (message_type, msg_time, uid)
	SETTINGS index_granularity = 8192`)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	// Bloom filter index for token search over message text (ignore error if
	// already exists).
	_ = b.conn.Exec(ctx, `ALTER TABLE messages ADD INDEX IF NOT EXISTS idx_msg_text_bloom msg_text TYPE tokenbf_v1(32768, 3, 0) GRANULARITY 1`)

	return nil
}

// WriteMessage appends one stored message to the archive.
func (b *ClickHouseBackup) WriteMessage(ctx context.Context, m *message.Stored) error {
	err := b.conn.Exec(ctx, `INSERT INTO messages (
			uid, message_type, msg_time, station_id, toaddr, fromaddr,
			depa, dsta, eta, gtout, gtin, wloff, wlin, lat, lon, alt,
			msg_text, tail, flight, icao, freq, ack, mode, label,
			block_id, msgno, is_response, is_onground, error, libacars, level
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.UID, string(m.MessageType), m.Time, m.StationID, m.ToAddr, m.FromAddr,
		m.Depa, m.Dsta, m.Eta, m.GateOut, m.GateIn, m.WheelsOff, m.WheelsIn, m.Lat, m.Lon, m.Alt,
		m.Text, m.Tail, m.Flight, m.ICAO, m.Freq, m.Ack, m.Mode, m.Label,
		m.BlockID, m.MsgNo, m.IsResponse, m.IsOnGround, int32(m.Error), m.Libacars, m.Level)
	if err != nil {
		return fmt.Errorf("insert backup message: %w", err)
	}
	return nil
}
