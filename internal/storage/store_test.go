package storage

import (
	"testing"
	"time"

	"acars_hub/internal/alerts"
	"acars_hub/internal/message"
)

func TestAddMessageScenario(t *testing.T) {
	s := openTestStore(t)
	matcher := alerts.NewMatcher([]string{"mayday"}, nil)

	p := message.Params{
		Time:   1608428171.43,
		Freq:   "130.0250",
		Level:  "-22",
		Tail:   "N332FR",
		Flight: "F91275",
		Text:   "MAYDAY ENGINE FIRE",
	}
	matches := matcher.EvaluateText(p.Text)

	stored, err := s.AddMessage(message.SourceACARS, p, true, matches)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if stored == nil || stored.UID == "" {
		t.Fatal("stored message missing uid")
	}

	var freqCount int
	if err := s.db.QueryRow(
		`SELECT count FROM freqs_acars WHERE freq = '130.0250'`).Scan(&freqCount); err != nil {
		t.Fatalf("freq count: %v", err)
	}
	if freqCount != 1 {
		t.Errorf("freq count = %d, want 1", freqCount)
	}

	counts, err := s.AlertCounts()
	if err != nil {
		t.Fatalf("AlertCounts: %v", err)
	}
	if counts["MAYDAY"] != 1 {
		t.Errorf("MAYDAY count = %d, want 1", counts["MAYDAY"])
	}

	var matchCount int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM alert_matches WHERE message_uid = ? AND term = 'MAYDAY'`,
		stored.UID).Scan(&matchCount); err != nil {
		t.Fatalf("match count: %v", err)
	}
	if matchCount != 1 {
		t.Errorf("alert matches = %d, want exactly 1", matchCount)
	}

	c, err := s.GetCounters()
	if err != nil {
		t.Fatalf("GetCounters: %v", err)
	}
	if c.Total != 1 || c.Good != 1 || c.Errors != 0 {
		t.Errorf("counters = %+v, want total=1 good=1", c)
	}
}

func TestAddMessageIgnoreVeto(t *testing.T) {
	s := openTestStore(t)
	matcher := alerts.NewMatcher([]string{"mayday"}, []string{"fire"})

	p := message.Params{Time: 1608428171.43, Text: "MAYDAY ENGINE FIRE"}
	matches := matcher.EvaluateText(p.Text)

	stored, err := s.AddMessage(message.SourceACARS, p, true, matches)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if stored == nil {
		t.Fatal("message row should still be inserted")
	}

	var matchCount int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM alert_matches`).Scan(&matchCount); err != nil {
		t.Fatalf("match count: %v", err)
	}
	if matchCount != 0 {
		t.Errorf("alert matches = %d, want 0 after veto", matchCount)
	}
}

func TestAddMessageEmptyTalliedOnly(t *testing.T) {
	s := openTestStore(t)

	p := message.Params{Time: 1, Freq: "131.5500"}
	stored, err := s.AddMessage(message.SourceVDLM2, p, false, nil)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if stored != nil {
		t.Fatal("empty message should not produce a row")
	}

	n, err := s.RowCount()
	if err != nil {
		t.Fatalf("RowCount: %v", err)
	}
	if n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}

	// The frequency tally still advances for empty frames.
	var freqCount int
	if err := s.db.QueryRow(
		`SELECT count FROM freqs_vdlm2 WHERE freq = '131.5500'`).Scan(&freqCount); err != nil {
		t.Fatalf("freq count: %v", err)
	}
	if freqCount != 1 {
		t.Errorf("freq count = %d, want 1", freqCount)
	}

	c, err := s.GetCounters()
	if err != nil {
		t.Fatalf("GetCounters: %v", err)
	}
	if c.NonLoggedGood != 1 || c.Total != 0 {
		t.Errorf("counters = %+v, want nonlogged good=1, total=0", c)
	}
}

func TestSearchPrefixMatch(t *testing.T) {
	s := openTestStore(t)

	p := message.Params{Time: 1, ICAO: "ABF308", Text: "POSITION"}
	if _, err := s.AddMessage(message.SourceACARS, p, true, nil); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	rows, total, err := s.Search(map[string]string{"icao": "ABF"}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total < 1 {
		t.Fatalf("total = %d, want >= 1", total)
	}
	if len(rows) != 1 || rows[0].ICAO != "ABF308" {
		t.Errorf("rows = %+v, want the ABF308 message", rows)
	}
}

func TestSearchEmptyQuerySentinel(t *testing.T) {
	s := openTestStore(t)

	rows, total, err := s.Search(map[string]string{"icao": ""}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if rows != nil || total != PageSize {
		t.Errorf("empty query = (%v, %d), want (nil, %d)", rows, total, PageSize)
	}

	rows, total, err = s.Search(map[string]string{"icao": "NOSUCH"}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if rows != nil || total != PageSize {
		t.Errorf("no-hit query = (%v, %d), want (nil, %d)", rows, total, PageSize)
	}
}

func TestSearchChronologicalPage(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		p := message.Params{Time: float64(100 + i), Tail: "N123AB", Text: "REPORT"}
		if _, err := s.AddMessage(message.SourceACARS, p, true, nil); err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}

	rows, total, err := s.Search(map[string]string{"tail": "N123AB"}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	for i := 1; i < len(rows); i++ {
		if rows[i-1].Time > rows[i].Time {
			t.Errorf("rows not chronological: %v before %v", rows[i-1].Time, rows[i].Time)
		}
	}
}

func TestSearchSanitizesInput(t *testing.T) {
	s := openTestStore(t)

	// Hostile input must neither error nor match.
	_, _, err := s.Search(map[string]string{"text": `" OR "x"="x`}, 0)
	if err != nil {
		t.Fatalf("Search with quotes: %v", err)
	}
	_, _, err = s.Search(map[string]string{"text": "a\x00b\x1fc"}, 0)
	if err != nil {
		t.Fatalf("Search with control chars: %v", err)
	}
}

func TestSearchAlerts(t *testing.T) {
	s := openTestStore(t)
	matcher := alerts.NewMatcher([]string{"mayday", "fuel"}, nil)

	p := message.Params{Time: 50, Text: "MAYDAY LOW FUEL", Tail: "N1"}
	if _, err := s.AddMessage(message.SourceHFDL, p, true, matcher.EvaluateText(p.Text)); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	hits, total, err := s.SearchAlerts(AlertQuery{Text: []string{"MAYDAY", "FUEL"}}, 0)
	if err != nil {
		t.Fatalf("SearchAlerts: %v", err)
	}
	if total != 1 || len(hits) != 1 {
		t.Fatalf("hits = %d total = %d, want 1/1", len(hits), total)
	}
	if len(hits[0].MatchedText) != 2 {
		t.Errorf("MatchedText = %v, want both terms", hits[0].MatchedText)
	}
}

func TestSetAlertTermsReplacement(t *testing.T) {
	s := openTestStore(t)
	if err := s.SetAlertTerms([]string{"mayday", "fuel"}); err != nil {
		t.Fatalf("SetAlertTerms: %v", err)
	}

	matcher := alerts.NewMatcher([]string{"mayday"}, nil)
	p := message.Params{Time: 1, Text: "MAYDAY"}
	if _, err := s.AddMessage(message.SourceACARS, p, true, matcher.EvaluateText(p.Text)); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	// Replace: drop MAYDAY, keep FUEL, add DIVERT.
	if err := s.SetAlertTerms([]string{"fuel", "divert"}); err != nil {
		t.Fatalf("SetAlertTerms replace: %v", err)
	}

	counts, err := s.AlertCounts()
	if err != nil {
		t.Fatalf("AlertCounts: %v", err)
	}
	if _, ok := counts["MAYDAY"]; ok {
		t.Error("removed term MAYDAY still tracked")
	}
	if got, ok := counts["DIVERT"]; !ok || got != 0 {
		t.Errorf("new term DIVERT count = %d (present=%v), want 0", got, ok)
	}
	if _, ok := counts["FUEL"]; !ok {
		t.Error("retained term FUEL lost")
	}

	var matchCount int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM alert_matches WHERE term = 'MAYDAY'`).Scan(&matchCount); err != nil {
		t.Fatalf("match count: %v", err)
	}
	if matchCount != 0 {
		t.Errorf("matches for removed term = %d, want 0", matchCount)
	}
}

func TestResetAlertCounts(t *testing.T) {
	s := openTestStore(t)
	matcher := alerts.NewMatcher([]string{"mayday"}, nil)
	p := message.Params{Time: 1, Text: "MAYDAY"}
	if _, err := s.AddMessage(message.SourceACARS, p, true, matcher.EvaluateText(p.Text)); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	if err := s.ResetAlertCounts(); err != nil {
		t.Fatalf("ResetAlertCounts: %v", err)
	}
	counts, err := s.AlertCounts()
	if err != nil {
		t.Fatalf("AlertCounts: %v", err)
	}
	if counts["MAYDAY"] != 0 {
		t.Errorf("MAYDAY count after reset = %d, want 0", counts["MAYDAY"])
	}
}

func TestPruneRetention(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	old := float64(now.AddDate(0, 0, -10).Unix())
	veryOld := float64(now.AddDate(0, 0, -200).Unix())
	fresh := float64(now.Unix())

	matcher := alerts.NewMatcher([]string{"mayday"}, nil)

	// Old plain message: pruned at saveDays.
	if _, err := s.AddMessage(message.SourceACARS, message.Params{Time: old, Text: "OLD PLAIN"}, true, nil); err != nil {
		t.Fatal(err)
	}
	// Old alerted message: survives saveDays, pruned only at alertSaveDays.
	if _, err := s.AddMessage(message.SourceACARS, message.Params{Time: old, Text: "MAYDAY"}, true, matcher.EvaluateText("MAYDAY")); err != nil {
		t.Fatal(err)
	}
	// Ancient alerted message: past alertSaveDays.
	if _, err := s.AddMessage(message.SourceACARS, message.Params{Time: veryOld, Text: "MAYDAY"}, true, matcher.EvaluateText("MAYDAY")); err != nil {
		t.Fatal(err)
	}
	// Fresh message: kept.
	if _, err := s.AddMessage(message.SourceACARS, message.Params{Time: fresh, Text: "FRESH"}, true, nil); err != nil {
		t.Fatal(err)
	}

	pruned, err := s.Prune(now, 7, 120)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}

	n, err := s.RowCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("remaining rows = %d, want old alerted + fresh", n)
	}
}
