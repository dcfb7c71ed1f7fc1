package storage

import (
	"fmt"
	"strings"

	"acars_hub/internal/message"
)

// PageSize is the fixed number of rows per search result page.
const PageSize = 50

// searchFields maps caller-facing field names to FTS columns, in the fixed
// order query clauses are emitted.
var searchFields = []struct {
	name   string
	column string
}{
	{"msg_time", "msg_time"},
	{"depa", "depa"},
	{"dsta", "dsta"},
	{"text", "msg_text"},
	{"msg_text", "msg_text"},
	{"tail", "tail"},
	{"flight", "flight"},
	{"icao", "icao"},
	{"freq", "freq"},
	{"label", "label"},
}

// sanitizeTerm makes a user-supplied value safe inside a quoted FTS5 string:
// embedded quotes are doubled and control characters stripped.
func sanitizeTerm(value string) string {
	value = strings.ReplaceAll(value, `"`, `""`)
	var b strings.Builder
	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// buildMatch emits `column:"value"*` prefix clauses for every non-empty
// field, joined by the given operator.
func buildMatch(fields map[string]string, op string) string {
	var clauses []string
	for _, f := range searchFields {
		value := strings.TrimSpace(fields[f.name])
		if value == "" {
			continue
		}
		clauses = append(clauses, fmt.Sprintf(`%s:"%s"*`, f.column, sanitizeTerm(value)))
	}
	return strings.Join(clauses, " "+op+" ")
}

// Search runs a paged full-text query over the message store. All non-empty
// fields must match (AND, prefix semantics). Rows come back in chronological
// order within the page; total is the full match count. An empty query or an
// empty result returns (nil, PageSize) so callers can distinguish "nothing to
// show" from a zero-row page of a real result set.
func (s *Store) Search(fields map[string]string, page int) ([]message.Stored, int, error) {
	match := buildMatch(fields, "AND")
	if match == "" {
		return nil, PageSize, nil
	}

	var total int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM messages_fts WHERE messages_fts MATCH ?`, match).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count search: %w", err)
	}
	if total == 0 {
		return nil, PageSize, nil
	}

	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT %s FROM messages WHERE id IN (
			SELECT rowid FROM messages_fts WHERE messages_fts MATCH ?
			ORDER BY rowid DESC LIMIT %d OFFSET %d
		) ORDER BY id DESC`, messageColumns, PageSize, page*PageSize), match)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []message.Stored
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Newest-first from the index, reversed to chronological for display.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, total, nil
}

// AlertHit is one message that matched the alert criteria, with the matched
// values grouped per match type.
type AlertHit struct {
	message.Stored
	MatchedText   []string `json:"matched_text"`
	MatchedICAO   []string `json:"matched_icao"`
	MatchedTail   []string `json:"matched_tail"`
	MatchedFlight []string `json:"matched_flight"`
}

// AlertQuery is the OR-of-terms alert search input: a message qualifies if
// any term in any list matches its corresponding field.
type AlertQuery struct {
	Text   []string
	ICAO   []string
	Tail   []string
	Flight []string
}

func (q AlertQuery) match() string {
	var clauses []string
	add := func(column string, values []string) {
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			clauses = append(clauses, fmt.Sprintf(`%s:"%s"*`, column, sanitizeTerm(v)))
		}
	}
	add("msg_text", q.Text)
	add("icao", q.ICAO)
	add("tail", q.Tail)
	add("flight", q.Flight)
	return strings.Join(clauses, " OR ")
}

// SearchAlerts pages through messages matching any of the query's terms,
// newest first, attaching the persisted per-type matched terms to each row.
func (s *Store) SearchAlerts(q AlertQuery, page int) ([]AlertHit, int, error) {
	match := q.match()
	if match == "" {
		return nil, PageSize, nil
	}

	var total int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM messages_fts WHERE messages_fts MATCH ?`, match).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alert search: %w", err)
	}
	if total == 0 {
		return nil, PageSize, nil
	}

	cols := prefixColumns(messageColumns, "m.")
	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT %s,
			GROUP_CONCAT(CASE WHEN am.match_type = 'text' THEN am.term END),
			GROUP_CONCAT(CASE WHEN am.match_type = 'icao' THEN am.term END),
			GROUP_CONCAT(CASE WHEN am.match_type = 'tail' THEN am.term END),
			GROUP_CONCAT(CASE WHEN am.match_type = 'flight' THEN am.term END)
		FROM messages m
		LEFT JOIN alert_matches am ON am.message_uid = m.uid
		WHERE m.id IN (SELECT rowid FROM messages_fts WHERE messages_fts MATCH ?)
		GROUP BY m.id
		ORDER BY m.msg_time DESC
		LIMIT %d OFFSET %d`, cols, PageSize, page*PageSize), match)
	if err != nil {
		return nil, 0, fmt.Errorf("alert search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []AlertHit
	for rows.Next() {
		var hit AlertHit
		var typ string
		var text, icao, tail, flight *string
		m := &hit.Stored
		err := rows.Scan(&m.ID, &m.UID, &typ, &m.Time, &m.StationID, &m.ToAddr, &m.FromAddr,
			&m.Depa, &m.Dsta, &m.Eta, &m.GateOut, &m.GateIn, &m.WheelsOff, &m.WheelsIn,
			&m.Lat, &m.Lon, &m.Alt,
			&m.Text, &m.Tail, &m.Flight, &m.ICAO, &m.Freq, &m.Ack, &m.Mode, &m.Label,
			&m.BlockID, &m.MsgNo, &m.IsResponse, &m.IsOnGround, &m.Error, &m.Libacars, &m.Level,
			&text, &icao, &tail, &flight)
		if err != nil {
			return nil, 0, fmt.Errorf("scan alert hit: %w", err)
		}
		m.MessageType = message.SourceType(typ)
		hit.MatchedText = splitConcat(text)
		hit.MatchedICAO = splitConcat(icao)
		hit.MatchedTail = splitConcat(tail)
		hit.MatchedFlight = splitConcat(flight)
		hits = append(hits, hit)
	}
	return hits, total, rows.Err()
}

// prefixColumns qualifies every column in a comma-separated list with a
// table alias.
func prefixColumns(columns, prefix string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// splitConcat parses a GROUP_CONCAT aggregate back into a list.
func splitConcat(joined *string) []string {
	if joined == nil || *joined == "" {
		return nil
	}
	return strings.Split(*joined, ",")
}
