package message

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"
)

func TestNormalizeFreqPadding(t *testing.T) {
	tests := []struct {
		name string
		freq any
		want string
	}{
		{name: "short freq padded", freq: 130.025, want: "130.0250"},
		{name: "three decimals padded", freq: "136.975", want: "136.9750"},
		{name: "very short freq", freq: "131.5", want: "131.5000"},
		{name: "already four decimals", freq: "130.0250", want: "130.0250"},
		{name: "no fractional part", freq: "131", want: "131"},
	}

	n := NewNormalizer(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(map[string]any{"freq": tt.freq})
			if got.Freq != tt.want {
				t.Errorf("Normalize freq = %q, want %q", got.Freq, tt.want)
			}
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	got := n.Normalize(map[string]any{})

	var want Params
	if got != want {
		t.Errorf("Normalize(empty) = %+v, want zero record", got)
	}
}

func TestNormalizeFullMessage(t *testing.T) {
	n := NewNormalizer(zap.NewNop())

	raw := map[string]any{
		"timestamp":   1690000000.25,
		"station_id":  "KE-KMHR1",
		"toaddr":      float64(10767388),
		"fromaddr":    float64(9999999),
		"text":        "MAYDAY MAYDAY MAYDAY",
		"tail":        "N123AB",
		"flight":      "DL1234",
		"icao":        "A1B2C3",
		"freq":        "130.025",
		"label":       "H1",
		"block_id":    "2",
		"msgno":       "M55A",
		"is_response": float64(0),
		"error":       float64(1),
		"level":       -22.5,
	}

	got := n.Normalize(raw)

	if got.Time != 1690000000.25 {
		t.Errorf("Time = %v, want 1690000000.25", got.Time)
	}
	if got.ToAddr != "10767388" {
		t.Errorf("ToAddr = %q, want %q", got.ToAddr, "10767388")
	}
	if got.Text != "MAYDAY MAYDAY MAYDAY" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Freq != "130.0250" {
		t.Errorf("Freq = %q, want %q", got.Freq, "130.0250")
	}
	if got.Error != 1 {
		t.Errorf("Error = %d, want 1", got.Error)
	}
	if got.Level != "-22.5" {
		t.Errorf("Level = %q, want %q", got.Level, "-22.5")
	}
}

func TestNormalizeICAOHexForm(t *testing.T) {
	n := NewNormalizer(zap.NewNop())

	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "decimal number", in: float64(10766364), want: "A4481C"},
		{name: "small address zero padded", in: float64(0xBEEF), want: "00BEEF"},
		{name: "hex string uppercased", in: "a4481c", want: "A4481C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(map[string]any{"icao": tt.in})
			if got.ICAO != tt.want {
				t.Errorf("ICAO = %q, want %q", got.ICAO, tt.want)
			}
		})
	}
}

func TestNormalizeDataAliasesText(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	got := n.Normalize(map[string]any{"data": "OFF REPORT"})
	if got.Text != "OFF REPORT" {
		t.Errorf("Text = %q, want %q", got.Text, "OFF REPORT")
	}
}

func TestNormalizeUnknownKeysTolerated(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	got := n.Normalize(map[string]any{
		"text":           "POSITION REPORT",
		"some_new_field": "whatever",
		"channel":        float64(2),
		"end":            true,
	})
	if got.Text != "POSITION REPORT" {
		t.Errorf("Text = %q, want %q", got.Text, "POSITION REPORT")
	}
}

func TestNormalizeLibacars(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	got := n.Normalize(map[string]any{
		"libacars": map[string]any{"arinc622": map[string]any{"msg_type": "cpdlc"}},
	})

	var decoded map[string]any
	if err := json.Unmarshal([]byte(got.Libacars), &decoded); err != nil {
		t.Fatalf("Libacars not valid JSON: %v", err)
	}
	if _, ok := decoded["arinc622"]; !ok {
		t.Errorf("Libacars = %q, want arinc622 key preserved", got.Libacars)
	}
}

func TestHasPayload(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want bool
	}{
		{name: "text only", raw: map[string]any{"text": "HELLO"}, want: true},
		{name: "position only", raw: map[string]any{"lat": 37.1, "lon": -121.9}, want: true},
		{name: "libacars only", raw: map[string]any{"libacars": map[string]any{}}, want: true},
		{name: "metadata only", raw: map[string]any{"timestamp": 1.0, "tail": "N1", "freq": "130.025"}, want: false},
		{name: "empty", raw: map[string]any{}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasPayload(tt.raw); got != tt.want {
				t.Errorf("HasPayload() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAsString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "string", in: "abc", want: "abc"},
		{name: "integral float", in: float64(42), want: "42"},
		{name: "fractional float", in: 1.5, want: "1.5"},
		{name: "bool true", in: true, want: "1"},
		{name: "bool false", in: false, want: "0"},
		{name: "nil", in: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asString(tt.in); got != tt.want {
				t.Errorf("asString(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
