// Package alerts evaluates normalized message fields against the configured
// alert terms and ignore terms.
package alerts

import (
	"regexp"
	"strings"
	"sync"
)

// MatchType identifies which normalized field a term matched against.
const (
	MatchText   = "text"
	MatchICAO   = "icao"
	MatchTail   = "tail"
	MatchFlight = "flight"
)

// Match is one surviving term match for a message.
type Match struct {
	Term string
	Type string
}

type compiledTerm struct {
	term string
	re   *regexp.Regexp
}

// Matcher holds the compiled term set. The set is replaceable at runtime, so
// the compiled state sits behind a lock.
type Matcher struct {
	mu      sync.RWMutex
	terms   []compiledTerm
	ignores []compiledTerm
}

// NewMatcher compiles the initial term and ignore-term sets. Terms are
// case-folded upper before compilation.
func NewMatcher(terms, ignoreTerms []string) *Matcher {
	m := &Matcher{}
	m.SetTerms(terms, ignoreTerms)
	return m
}

// SetTerms replaces both term sets atomically.
func (m *Matcher) SetTerms(terms, ignoreTerms []string) {
	compiled := compileTerms(terms)
	ignores := compileTerms(ignoreTerms)

	m.mu.Lock()
	m.terms = compiled
	m.ignores = ignores
	m.mu.Unlock()
}

// Terms returns the configured alert terms in configuration order.
func (m *Matcher) Terms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.terms))
	for i, t := range m.terms {
		out[i] = t.term
	}
	return out
}

// IgnoreTerms returns the configured ignore terms.
func (m *Matcher) IgnoreTerms() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.ignores))
	for i, t := range m.ignores {
		out[i] = t.term
	}
	return out
}

func compileTerms(terms []string) []compiledTerm {
	out := make([]compiledTerm, 0, len(terms))
	for _, term := range terms {
		term = strings.ToUpper(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		out = append(out, compiledTerm{term: term, re: re})
	}
	return out
}

// EvaluateText matches the message text against every configured term. A term
// match survives only if no ignore term also matches the text. Every term is
// evaluated; matches are independent, with no short-circuit after the first.
// Empty text never matches.
func (m *Matcher) EvaluateText(text string) []Match {
	if text == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Match
	for _, t := range m.terms {
		if !t.re.MatchString(text) {
			continue
		}
		vetoed := false
		for _, ig := range m.ignores {
			if ig.re.MatchString(text) {
				vetoed = true
				break
			}
		}
		if vetoed {
			continue
		}
		matches = append(matches, Match{Term: t.term, Type: MatchText})
	}
	return matches
}
