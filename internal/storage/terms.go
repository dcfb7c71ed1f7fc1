package storage

import (
	"fmt"
	"strings"
	"time"

	"acars_hub/internal/message"
)

// SetAlertTerms replaces the monitored term set wholesale: new terms start
// with a zero counter, retained terms keep their counts, and removed terms
// lose both their counter and their saved matches.
func (s *Store) SetAlertTerms(terms []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	keep := make(map[string]bool, len(terms))
	for _, term := range terms {
		term = strings.ToUpper(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		keep[term] = true
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO alert_stats (term, count) VALUES (?, 0)`, term); err != nil {
			return fmt.Errorf("insert term %q: %w", term, err)
		}
	}

	rows, err := tx.Query(`SELECT term FROM alert_stats`)
	if err != nil {
		return fmt.Errorf("list terms: %w", err)
	}
	var removed []string
	for rows.Next() {
		var term string
		if err := rows.Scan(&term); err != nil {
			_ = rows.Close()
			return err
		}
		if !keep[term] {
			removed = append(removed, term)
		}
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, term := range removed {
		if _, err := tx.Exec(`DELETE FROM alert_stats WHERE term = ?`, term); err != nil {
			return fmt.Errorf("delete term %q: %w", term, err)
		}
		if _, err := tx.Exec(`DELETE FROM alert_matches WHERE term = ?`, term); err != nil {
			return fmt.Errorf("delete matches for %q: %w", term, err)
		}
	}

	return tx.Commit()
}

// SetIgnoreTerms replaces the stored ignore-term set.
func (s *Store) SetIgnoreTerms(terms []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM ignore_alert_terms`); err != nil {
		return err
	}
	for _, term := range terms {
		term = strings.ToUpper(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO ignore_alert_terms (term) VALUES (?)`, term); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AlertCounts returns every monitored term with its match count.
func (s *Store) AlertCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT term, count FROM alert_stats ORDER BY term`)
	if err != nil {
		return nil, fmt.Errorf("alert counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var term string
		var count int
		if err := rows.Scan(&term, &count); err != nil {
			return nil, err
		}
		counts[term] = count
	}
	return counts, rows.Err()
}

// ResetAlertCounts zeroes every term counter without touching saved matches.
func (s *Store) ResetAlertCounts() error {
	_, err := s.db.Exec(`UPDATE alert_stats SET count = 0`)
	return err
}

// Counters are the running message totals, split into logged (full rows) and
// non-logged (tallied-only empty frames) buckets.
type Counters struct {
	Total           int `json:"total"`
	Errors          int `json:"errors"`
	Good            int `json:"good"`
	NonLoggedErrors int `json:"nonlogged_errors"`
	NonLoggedGood   int `json:"nonlogged_good"`
}

// GetCounters reads both counter buckets.
func (s *Store) GetCounters() (Counters, error) {
	var c Counters
	if err := s.db.QueryRow(
		`SELECT total, errors, good FROM count WHERE id = 1`).Scan(&c.Total, &c.Errors, &c.Good); err != nil {
		return c, fmt.Errorf("counters: %w", err)
	}
	if err := s.db.QueryRow(
		`SELECT errors, good FROM nonlogged_count WHERE id = 1`).Scan(&c.NonLoggedErrors, &c.NonLoggedGood); err != nil {
		return c, fmt.Errorf("nonlogged counters: %w", err)
	}
	return c, nil
}

// KeyCount is one aggregate tally row (a frequency or a signal level).
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// FrequencyCounts returns the per-source frequency tallies.
func (s *Store) FrequencyCounts() (map[message.SourceType][]KeyCount, error) {
	return s.keyCounts("freqs_%s", "freq")
}

// LevelCounts returns the per-source signal level tallies.
func (s *Store) LevelCounts() (map[message.SourceType][]KeyCount, error) {
	return s.keyCounts("level_%s", "level")
}

func (s *Store) keyCounts(tablePattern, keyColumn string) (map[message.SourceType][]KeyCount, error) {
	out := make(map[message.SourceType][]KeyCount, len(message.SourceTypes))
	for _, source := range message.SourceTypes {
		table := fmt.Sprintf(tablePattern, tableSuffix(source))
		rows, err := s.db.Query(fmt.Sprintf(
			`SELECT %s, count FROM %s ORDER BY %s`, keyColumn, table, keyColumn))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", table, err)
		}
		var counts []KeyCount
		for rows.Next() {
			var kc KeyCount
			if err := rows.Scan(&kc.Key, &kc.Count); err != nil {
				_ = rows.Close()
				return nil, err
			}
			counts = append(counts, kc)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		out[source] = counts
	}
	return out, nil
}

// Prune applies the retention policy: plain messages older than saveDays go;
// alert-matched messages survive until alertSaveDays, then go along with
// their match rows.
func (s *Store) Prune(now time.Time, saveDays, alertSaveDays int) (int64, error) {
	cutoff := float64(now.AddDate(0, 0, -saveDays).Unix())
	alertCutoff := float64(now.AddDate(0, 0, -alertSaveDays).Unix())

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(
		`DELETE FROM messages WHERE msg_time < ?
		 AND uid NOT IN (SELECT message_uid FROM alert_matches)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	pruned, _ := res.RowsAffected()

	res, err = tx.Exec(`DELETE FROM messages WHERE msg_time < ?`, alertCutoff)
	if err != nil {
		return 0, fmt.Errorf("prune alert messages: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		pruned += n
	}
	if _, err := tx.Exec(`DELETE FROM alert_matches WHERE matched_at < ?`, alertCutoff); err != nil {
		return 0, fmt.Errorf("prune alert matches: %w", err)
	}

	return pruned, tx.Commit()
}

// RowCount reports the current messages row count.
func (s *Store) RowCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// DatabaseSize reports the database file size in bytes.
func (s *Store) DatabaseSize() (int64, error) {
	var pages, pageSize int64
	if err := s.db.QueryRow(`PRAGMA page_count`).Scan(&pages); err != nil {
		return 0, err
	}
	if err := s.db.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err != nil {
		return 0, err
	}
	return pages * pageSize, nil
}
