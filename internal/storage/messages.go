package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"acars_hub/internal/alerts"
	"acars_hub/internal/message"
)

// tableSuffix maps a decoder source to its per-source table suffix.
func tableSuffix(source message.SourceType) string {
	return strings.ToLower(string(source))
}

// AddMessage persists one normalized message as a single transaction: the
// frequency tally always, then either the full row with counters, level
// tally, and alert matches (store=true) or just the empty-message counters.
// Returns the stored row, or nil when only tallied.
func (s *Store) AddMessage(source message.SourceType, p message.Params, store bool, matches []alerts.Match) (*message.Stored, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	suffix := tableSuffix(source)

	if p.Freq != "" {
		if _, err := tx.Exec(fmt.Sprintf(
			`INSERT INTO freqs_%s (freq, count) VALUES (?, 1)
			 ON CONFLICT(freq) DO UPDATE SET count = count + 1`, suffix), p.Freq); err != nil {
			return nil, fmt.Errorf("freq count: %w", err)
		}
	}

	if !store {
		column := "good"
		if p.Error > 0 {
			column = "errors"
		}
		if _, err := tx.Exec(fmt.Sprintf(
			`UPDATE nonlogged_count SET %s = %s + 1 WHERE id = 1`, column, column)); err != nil {
			return nil, fmt.Errorf("nonlogged count: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return nil, nil
	}

	column := "good"
	if p.Error > 0 {
		column = "errors"
	}
	if _, err := tx.Exec(fmt.Sprintf(
		`UPDATE count SET total = total + 1, %s = %s + 1 WHERE id = 1`, column, column)); err != nil {
		return nil, fmt.Errorf("message count: %w", err)
	}

	if p.Level != "" {
		if _, err := tx.Exec(fmt.Sprintf(
			`INSERT INTO level_%s (level, count) VALUES (?, 1)
			 ON CONFLICT(level) DO UPDATE SET count = count + 1`, suffix), p.Level); err != nil {
			return nil, fmt.Errorf("level count: %w", err)
		}
	}

	uid := uuid.NewString()
	res, err := tx.Exec(`INSERT INTO messages (
			uid, message_type, msg_time, station_id, toaddr, fromaddr,
			depa, dsta, eta, gtout, gtin, wloff, wlin, lat, lon, alt,
			msg_text, tail, flight, icao, freq, ack, mode, label,
			block_id, msgno, is_response, is_onground, error, libacars, level
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uid, string(source), p.Time, p.StationID, p.ToAddr, p.FromAddr,
		p.Depa, p.Dsta, p.Eta, p.GateOut, p.GateIn, p.WheelsOff, p.WheelsIn, p.Lat, p.Lon, p.Alt,
		p.Text, p.Tail, p.Flight, p.ICAO, p.Freq, p.Ack, p.Mode, p.Label,
		p.BlockID, p.MsgNo, p.IsResponse, p.IsOnGround, p.Error, p.Libacars, p.Level)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, m := range matches {
		if _, err := tx.Exec(
			`INSERT INTO alert_matches (message_uid, term, match_type, matched_at) VALUES (?, ?, ?, ?)`,
			uid, m.Term, m.Type, p.Time); err != nil {
			return nil, fmt.Errorf("insert alert match: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO alert_stats (term, count) VALUES (?, 1)
			 ON CONFLICT(term) DO UPDATE SET count = count + 1`, m.Term); err != nil {
			return nil, fmt.Errorf("alert count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &message.Stored{ID: id, UID: uid, MessageType: source, Params: p}, nil
}

// scanMessage reads one full messages row in messageColumns order.
func scanMessage(rows *sql.Rows) (message.Stored, error) {
	var m message.Stored
	var typ string
	err := rows.Scan(&m.ID, &m.UID, &typ, &m.Time, &m.StationID, &m.ToAddr, &m.FromAddr,
		&m.Depa, &m.Dsta, &m.Eta, &m.GateOut, &m.GateIn, &m.WheelsOff, &m.WheelsIn,
		&m.Lat, &m.Lon, &m.Alt,
		&m.Text, &m.Tail, &m.Flight, &m.ICAO, &m.Freq, &m.Ack, &m.Mode, &m.Label,
		&m.BlockID, &m.MsgNo, &m.IsResponse, &m.IsOnGround, &m.Error, &m.Libacars, &m.Level)
	if err != nil {
		return m, fmt.Errorf("scan message: %w", err)
	}
	m.MessageType = message.SourceType(typ)
	return m, nil
}
