package alerts

import (
	"testing"
)

func TestEvaluateTextWholeWord(t *testing.T) {
	tests := []struct {
		name    string
		terms   []string
		ignores []string
		text    string
		want    []string
	}{
		{
			name:  "single term match",
			terms: []string{"mayday"},
			text:  "MAYDAY ENGINE FIRE",
			want:  []string{"MAYDAY"},
		},
		{
			name:    "ignore term vetoes",
			terms:   []string{"mayday"},
			ignores: []string{"fire"},
			text:    "MAYDAY ENGINE FIRE",
			want:    nil,
		},
		{
			name:  "case insensitive",
			terms: []string{"MEDICAL"},
			text:  "requesting medical assistance",
			want:  []string{"MEDICAL"},
		},
		{
			name:  "word boundary prevents substring match",
			terms: []string{"fire"},
			text:  "CROSSING FIRENZE FIR",
			want:  nil,
		},
		{
			name:  "multiple terms all recorded",
			terms: []string{"mayday", "fuel", "divert"},
			text:  "MAYDAY LOW FUEL DIVERTING",
			want:  []string{"MAYDAY", "FUEL"},
		},
		{
			name:  "empty text never matches",
			terms: []string{"mayday"},
			text:  "",
			want:  nil,
		},
		{
			name:    "ignore term without any match is harmless",
			terms:   []string{"mayday"},
			ignores: []string{"test"},
			text:    "ROUTINE POSITION REPORT",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.terms, tt.ignores)
			got := m.EvaluateText(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("EvaluateText(%q) = %v, want terms %v", tt.text, got, tt.want)
			}
			for i, match := range got {
				if match.Term != tt.want[i] {
					t.Errorf("match[%d].Term = %q, want %q", i, match.Term, tt.want[i])
				}
				if match.Type != MatchText {
					t.Errorf("match[%d].Type = %q, want %q", i, match.Type, MatchText)
				}
			}
		})
	}
}

func TestSetTermsReplacesSet(t *testing.T) {
	m := NewMatcher([]string{"mayday"}, nil)
	if got := m.EvaluateText("MAYDAY"); len(got) != 1 {
		t.Fatalf("initial term did not match: %v", got)
	}

	m.SetTerms([]string{"fuel"}, nil)
	if got := m.EvaluateText("MAYDAY"); got != nil {
		t.Errorf("removed term still matches: %v", got)
	}
	if got := m.EvaluateText("MINIMUM FUEL"); len(got) != 1 || got[0].Term != "FUEL" {
		t.Errorf("replacement term did not match: %v", got)
	}
}

func TestTermsNormalized(t *testing.T) {
	m := NewMatcher([]string{" mayday ", "", "fuel"}, []string{"test"})

	terms := m.Terms()
	if len(terms) != 2 || terms[0] != "MAYDAY" || terms[1] != "FUEL" {
		t.Errorf("Terms() = %v, want [MAYDAY FUEL]", terms)
	}
	ignores := m.IgnoreTerms()
	if len(ignores) != 1 || ignores[0] != "TEST" {
		t.Errorf("IgnoreTerms() = %v, want [TEST]", ignores)
	}
}

func TestQuoteMetaInTerm(t *testing.T) {
	m := NewMatcher([]string{"7500"}, nil)
	if got := m.EvaluateText("SQUAWK 7500"); len(got) != 1 {
		t.Errorf("numeric term did not match: %v", got)
	}
	if got := m.EvaluateText("SQUAWK 75001"); got != nil {
		t.Errorf("numeric term matched inside longer token: %v", got)
	}
}
