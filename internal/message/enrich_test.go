package message

import (
	"testing"

	"go.uber.org/zap"

	"acars_hub/internal/lookup"
)

func testEnricher(t *testing.T) *Enricher {
	t.Helper()
	tables := lookup.Load(t.TempDir(), "DL|DAL|Delta Air Lines", zap.NewNop())
	return NewEnricher(tables, "https://globe.example.com/?icao=", zap.NewNop())
}

func TestAddressHex(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		wantOK bool
	}{
		{name: "decimal", in: "10766364", want: "A4481C", wantOK: true},
		{name: "already hex", in: "a4481c", want: "A4481C", wantOK: true},
		{name: "empty", in: "", want: "", wantOK: false},
		{name: "garbage", in: "not-an-addr", want: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := AddressHex(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("AddressHex(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestEnrichDropsEmptyAndRenames(t *testing.T) {
	e := testEnricher(t)
	msg := e.Enrich(map[string]any{
		"msg_text": "HELLO",
		"time":     1690000000.0,
		"depa":     "",
		"dsta":     nil,
	})

	if msg["text"] != "HELLO" {
		t.Errorf("text = %v, want HELLO", msg["text"])
	}
	if msg["timestamp"] != 1690000000.0 {
		t.Errorf("timestamp = %v", msg["timestamp"])
	}
	if _, ok := msg["msg_text"]; ok {
		t.Error("msg_text should be renamed away")
	}
	if _, ok := msg["depa"]; ok {
		t.Error("empty depa should be dropped")
	}
	if _, ok := msg["dsta"]; ok {
		t.Error("nil dsta should be dropped")
	}
}

func TestEnrichFlightResolution(t *testing.T) {
	e := testEnricher(t)
	msg := e.Enrich(map[string]any{
		"flight": "DL1234",
		"icao":   "10766364",
	})

	if msg["flight"] != "DAL1234" {
		t.Errorf("flight = %v, want DAL1234", msg["flight"])
	}
	if msg["iata_flight"] != "DL1234" {
		t.Errorf("iata_flight = %v, want DL1234", msg["iata_flight"])
	}
	if msg["airline"] != "Delta Air Lines" {
		t.Errorf("airline = %v", msg["airline"])
	}
	if msg["icao_hex"] != "A4481C" {
		t.Errorf("icao_hex = %v, want A4481C", msg["icao_hex"])
	}
	if msg["flight_url"] != "https://globe.example.com/?icao=A4481C" {
		t.Errorf("flight_url = %v", msg["flight_url"])
	}
}

func TestEnrichICAOCallsignPassthrough(t *testing.T) {
	e := testEnricher(t)
	msg := e.Enrich(map[string]any{"flight": "DAL1234"})

	if msg["flight"] != "DAL1234" {
		t.Errorf("flight = %v, want DAL1234 preserved", msg["flight"])
	}
	if msg["iata_flight"] != "DL1234" {
		t.Errorf("iata_flight = %v, want DL1234 via override reverse lookup", msg["iata_flight"])
	}
}

func TestEnrichUnknownLabel(t *testing.T) {
	e := testEnricher(t)
	msg := e.Enrich(map[string]any{"label": "ZZ"})
	if msg["label_type"] != "Unknown Message Label" {
		t.Errorf("label_type = %v", msg["label_type"])
	}
}

func TestDeepCopyIsolation(t *testing.T) {
	orig := map[string]any{
		"text":   "A",
		"nested": map[string]any{"k": "v"},
		"list":   []any{float64(1), float64(2)},
	}

	cp := DeepCopy(orig)
	cp["text"] = "B"
	cp["nested"].(map[string]any)["k"] = "changed"
	cp["list"].([]any)[0] = float64(9)

	if orig["text"] != "A" {
		t.Error("copy mutation leaked into original text")
	}
	if orig["nested"].(map[string]any)["k"] != "v" {
		t.Error("copy mutation leaked into nested map")
	}
	if orig["list"].([]any)[0] != float64(1) {
		t.Error("copy mutation leaked into list")
	}
}
