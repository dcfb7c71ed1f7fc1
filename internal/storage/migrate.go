package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// migration is one step in the linear schema chain. Up and Down run outside
// an enclosing transaction because several steps need VACUUM or virtual-table
// DDL; each step is written to be idempotent (check-before-create) so a crash
// mid-step is recoverable by re-running.
type migration struct {
	id     string
	parent string
	up     func(db *sql.DB) error
	down   func(db *sql.DB) error
}

// messageColumns is the full messages column list in table order, shared by
// the insert, scan, and migration code.
const messageColumns = `id, uid, message_type, msg_time, station_id, toaddr, fromaddr,
	depa, dsta, eta, gtout, gtin, wloff, wlin, lat, lon, alt,
	msg_text, tail, flight, icao, freq, ack, mode, label,
	block_id, msgno, is_response, is_onground, error, libacars, level`

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	message_type TEXT NOT NULL DEFAULT '',
	msg_time REAL NOT NULL DEFAULT 0,
	station_id TEXT NOT NULL DEFAULT '',
	toaddr TEXT NOT NULL DEFAULT '',
	fromaddr TEXT NOT NULL DEFAULT '',
	depa TEXT NOT NULL DEFAULT '',
	dsta TEXT NOT NULL DEFAULT '',
	eta TEXT NOT NULL DEFAULT '',
	gtout TEXT NOT NULL DEFAULT '',
	gtin TEXT NOT NULL DEFAULT '',
	wloff TEXT NOT NULL DEFAULT '',
	wlin TEXT NOT NULL DEFAULT '',
	lat TEXT NOT NULL DEFAULT '',
	lon TEXT NOT NULL DEFAULT '',
	alt TEXT NOT NULL DEFAULT '',
	msg_text TEXT NOT NULL DEFAULT '',
	tail TEXT NOT NULL DEFAULT '',
	flight TEXT NOT NULL DEFAULT '',
	icao TEXT NOT NULL DEFAULT '',
	freq TEXT NOT NULL DEFAULT '',
	ack TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL DEFAULT '',
	label TEXT NOT NULL DEFAULT '',
	block_id TEXT NOT NULL DEFAULT '',
	msgno TEXT NOT NULL DEFAULT '',
	is_response TEXT NOT NULL DEFAULT '',
	is_onground TEXT NOT NULL DEFAULT '',
	error INTEGER NOT NULL DEFAULT 0,
	libacars TEXT NOT NULL DEFAULT '',
	level TEXT NOT NULL DEFAULT ''
)`

// sourceSuffixes are the per-decoder table suffixes for the split frequency
// and level tables.
var sourceSuffixes = []string{"acars", "vdlm2", "hfdl", "imsl", "irdm"}

var migrations = []migration{
	{
		id: "0001_baseline",
		up: func(db *sql.DB) error {
			stmts := []string{
				fmt.Sprintf(createMessagesTable, "messages"),
				fmt.Sprintf(createMessagesTable, "messages_saved"),
				`CREATE TABLE IF NOT EXISTS freqs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					freq_type TEXT NOT NULL,
					freq TEXT NOT NULL,
					count INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS level (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					level TEXT NOT NULL,
					count INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS count (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					total INTEGER NOT NULL DEFAULT 0,
					errors INTEGER NOT NULL DEFAULT 0,
					good INTEGER NOT NULL DEFAULT 0
				)`,
				`INSERT OR IGNORE INTO count (id, total, errors, good) VALUES (1, 0, 0, 0)`,
				`CREATE TABLE IF NOT EXISTS nonlogged_count (
					id INTEGER PRIMARY KEY CHECK (id = 1),
					errors INTEGER NOT NULL DEFAULT 0,
					good INTEGER NOT NULL DEFAULT 0
				)`,
				`INSERT OR IGNORE INTO nonlogged_count (id, errors, good) VALUES (1, 0, 0)`,
				`CREATE TABLE IF NOT EXISTS alert_stats (
					term TEXT PRIMARY KEY,
					count INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS ignore_alert_terms (
					term TEXT PRIMARY KEY
				)`,
			}
			return execAll(db, stmts)
		},
		down: func(db *sql.DB) error {
			return execAll(db, []string{
				`DROP TABLE IF EXISTS messages`,
				`DROP TABLE IF EXISTS messages_saved`,
				`DROP TABLE IF EXISTS freqs`,
				`DROP TABLE IF EXISTS level`,
				`DROP TABLE IF EXISTS count`,
				`DROP TABLE IF EXISTS nonlogged_count`,
				`DROP TABLE IF EXISTS alert_stats`,
				`DROP TABLE IF EXISTS ignore_alert_terms`,
			})
		},
	},
	{
		id:     "0002_split_levels",
		parent: "0001_baseline",
		up: func(db *sql.DB) error {
			var stmts []string
			for _, suffix := range sourceSuffixes {
				stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS level_%s (
					level TEXT PRIMARY KEY,
					count INTEGER NOT NULL DEFAULT 0
				)`, suffix))
			}
			// The legacy table never recorded the decoder type, so its rows
			// cannot be attributed and are not carried forward.
			stmts = append(stmts, `DROP TABLE IF EXISTS level`)
			return execAll(db, stmts)
		},
		down: func(db *sql.DB) error {
			stmts := []string{`CREATE TABLE IF NOT EXISTS level (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				level TEXT NOT NULL,
				count INTEGER NOT NULL DEFAULT 0
			)`}
			for _, suffix := range sourceSuffixes {
				stmts = append(stmts, fmt.Sprintf(`DROP TABLE IF EXISTS level_%s`, suffix))
			}
			return execAll(db, stmts)
		},
	},
	{
		id:     "0003_split_freqs",
		parent: "0002_split_levels",
		up: func(db *sql.DB) error {
			for _, suffix := range sourceSuffixes {
				if _, err := db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS freqs_%s (
					freq TEXT PRIMARY KEY,
					count INTEGER NOT NULL DEFAULT 0
				)`, suffix)); err != nil {
					return err
				}
				if _, err := db.Exec(fmt.Sprintf(
					`INSERT OR IGNORE INTO freqs_%s (freq, count)
					 SELECT freq, count FROM freqs WHERE UPPER(freq_type) = ?`, suffix),
					strings.ToUpper(suffix)); err != nil {
					return err
				}
			}
			_, err := db.Exec(`DROP TABLE IF EXISTS freqs`)
			return err
		},
		down: func(db *sql.DB) error {
			if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS freqs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				freq_type TEXT NOT NULL,
				freq TEXT NOT NULL,
				count INTEGER NOT NULL DEFAULT 0
			)`); err != nil {
				return err
			}
			for _, suffix := range sourceSuffixes {
				if _, err := db.Exec(fmt.Sprintf(
					`INSERT INTO freqs (freq_type, freq, count)
					 SELECT ?, freq, count FROM freqs_%s`, suffix),
					strings.ToUpper(suffix)); err != nil {
					return err
				}
				if _, err := db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS freqs_%s`, suffix)); err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		id:     "0004_messages_fts",
		parent: "0003_split_freqs",
		up:     createFTS,
		down: func(db *sql.DB) error {
			return execAll(db, []string{
				`DROP TRIGGER IF EXISTS messages_fts_insert`,
				`DROP TRIGGER IF EXISTS messages_fts_delete`,
				`DROP TRIGGER IF EXISTS messages_fts_update`,
				`DROP TABLE IF EXISTS messages_fts`,
			})
		},
	},
	{
		id:     "0005_icao_hex",
		parent: "0004_messages_fts",
		up: func(db *sql.DB) error {
			// Legacy rows stored the aircraft address as decimal text. Only
			// pure-digit values are converted; anything carrying hex letters
			// already migrated. messages_saved may already be gone on a
			// database where a later revision dropped it.
			convert := `UPDATE %s SET icao = printf('%%06X', CAST(icao AS INTEGER))
				WHERE icao <> '' AND icao NOT GLOB '*[^0-9]*'`
			for _, table := range []string{"messages", "messages_saved"} {
				exists, err := tableExists(db, table)
				if err != nil {
					return err
				}
				if !exists {
					continue
				}
				if _, err := db.Exec(fmt.Sprintf(convert, table)); err != nil {
					return err
				}
			}
			return nil
		},
		down: func(db *sql.DB) error {
			// Hex back to decimal would be ambiguous for all-digit hex
			// values; the conversion is one-way.
			return nil
		},
	},
	{
		id:     "0006_message_uids",
		parent: "0005_icao_hex",
		up:     backfillUIDs,
		down: func(db *sql.DB) error {
			// SQLite cannot drop a column on old versions; clearing the
			// values is the practical inverse.
			return execAll(db, []string{
				`DROP INDEX IF EXISTS idx_messages_uid`,
				`UPDATE messages SET uid = ''`,
			})
		},
	},
	{
		id:     "0007_alert_matches",
		parent: "0006_message_uids",
		up: func(db *sql.DB) error {
			return execAll(db, []string{
				`CREATE TABLE IF NOT EXISTS alert_matches (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					message_uid TEXT NOT NULL,
					term TEXT NOT NULL,
					match_type TEXT NOT NULL,
					matched_at REAL NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_alert_matches_uid ON alert_matches(message_uid)`,
				`CREATE INDEX IF NOT EXISTS idx_alert_matches_term ON alert_matches(term)`,
				// The saved-messages side table is superseded by uid joins.
				`DROP TABLE IF EXISTS messages_saved`,
			})
		},
		down: func(db *sql.DB) error {
			return execAll(db, []string{
				fmt.Sprintf(createMessagesTable, "messages_saved"),
				`DROP TABLE IF EXISTS alert_matches`,
			})
		},
	},
	{
		id:     "0008_optimize",
		parent: "0007_alert_matches",
		up: func(db *sql.DB) error {
			return execAll(db, []string{
				`CREATE INDEX IF NOT EXISTS idx_messages_time_icao ON messages(msg_time, icao)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_tail_flight ON messages(tail, flight)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_airports ON messages(depa, dsta)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_type_time ON messages(message_type, msg_time)`,
				`CREATE INDEX IF NOT EXISTS idx_alert_matches_term_time ON alert_matches(term, matched_at)`,
				`ANALYZE`,
				`VACUUM`,
			})
		},
		down: func(db *sql.DB) error {
			// VACUUM is a one-way ratchet; only the indexes come back out.
			return execAll(db, []string{
				`DROP INDEX IF EXISTS idx_messages_time_icao`,
				`DROP INDEX IF EXISTS idx_messages_tail_flight`,
				`DROP INDEX IF EXISTS idx_messages_airports`,
				`DROP INDEX IF EXISTS idx_messages_type_time`,
				`DROP INDEX IF EXISTS idx_alert_matches_term_time`,
			})
		},
	},
}

// ftsColumns are the searchable columns mirrored into the full-text index.
var ftsColumns = []string{
	"msg_time", "depa", "dsta", "msg_text", "tail", "flight", "icao", "freq", "label",
}

func createFTS(db *sql.DB) error {
	exists, err := tableExists(db, "messages_fts")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	cols := strings.Join(ftsColumns, ", ")
	newCols := "new." + strings.Join(ftsColumns, ", new.")
	oldCols := "old." + strings.Join(ftsColumns, ", old.")

	stmts := []string{
		fmt.Sprintf(`CREATE VIRTUAL TABLE messages_fts USING fts5(
			%s,
			content='messages',
			content_rowid='id'
		)`, cols),
		fmt.Sprintf(`CREATE TRIGGER messages_fts_insert AFTER INSERT ON messages BEGIN
			INSERT INTO messages_fts(rowid, %s) VALUES (new.id, %s);
		END`, cols, newCols),
		fmt.Sprintf(`CREATE TRIGGER messages_fts_delete AFTER DELETE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, %s) VALUES('delete', old.id, %s);
		END`, cols, oldCols),
		fmt.Sprintf(`CREATE TRIGGER messages_fts_update AFTER UPDATE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, %s) VALUES('delete', old.id, %s);
			INSERT INTO messages_fts(rowid, %s) VALUES (new.id, %s);
		END`, cols, oldCols, cols, newCols),
		// Populate from the authoritative table.
		`INSERT INTO messages_fts(messages_fts) VALUES('rebuild')`,
	}
	return execAll(db, stmts)
}

// backfillUIDs adds the uid column and assigns one fresh identifier per
// existing row. A single bulk UPDATE with a uuid expression evaluates the
// expression once per statement on some engines, handing every row the same
// value, so the assignment is an explicit per-row loop.
func backfillUIDs(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('messages') WHERE name = 'uid'`).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		if _, err := db.Exec(`ALTER TABLE messages ADD COLUMN uid TEXT NOT NULL DEFAULT ''`); err != nil {
			return err
		}
	}

	rows, err := db.Query(`SELECT id FROM messages WHERE uid = ''`)
	if err != nil {
		return err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if _, err := db.Exec(`UPDATE messages SET uid = ? WHERE id = ?`, uuid.NewString(), id); err != nil {
			return fmt.Errorf("backfill uid for row %d: %w", id, err)
		}
	}

	_, err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_uid ON messages(uid)`)
	return err
}

// Migrate brings the schema up to the newest revision, recording each applied
// step in schema_revisions. Re-running against a current database is a no-op.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_revisions (
		id TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return fmt.Errorf("create schema_revisions: %w", err)
	}

	for _, m := range migrations {
		var applied int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_revisions WHERE id = ?`, m.id).Scan(&applied); err != nil {
			return fmt.Errorf("check revision %s: %w", m.id, err)
		}
		if applied > 0 {
			continue
		}

		s.log.Info("applying migration", zap.String("revision", m.id))
		if err := m.up(s.db); err != nil {
			return fmt.Errorf("migration %s: %w", m.id, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_revisions (id) VALUES (?)`, m.id); err != nil {
			return fmt.Errorf("record revision %s: %w", m.id, err)
		}
	}
	return nil
}

// Downgrade rolls back the newest applied revision. Used by operational
// tooling, never by the running hub.
func (s *Store) Downgrade() error {
	for i := len(migrations) - 1; i >= 0; i-- {
		m := migrations[i]
		var applied int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_revisions WHERE id = ?`, m.id).Scan(&applied); err != nil {
			return err
		}
		if applied == 0 {
			continue
		}
		s.log.Info("reverting migration", zap.String("revision", m.id))
		if err := m.down(s.db); err != nil {
			return fmt.Errorf("downgrade %s: %w", m.id, err)
		}
		_, err := s.db.Exec(`DELETE FROM schema_revisions WHERE id = ?`, m.id)
		return err
	}
	return nil
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var found string
	err := db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type='table' AND name = ?`, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func execAll(db *sql.DB, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%w (statement: %.60s)", err, stmt)
		}
	}
	return nil
}
