package services

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ParseKind tags the outcome of parsing a generator response. Success and
// Empty are both valid outcomes; Malformed means the response violated the
// contract and contributes zero candidates.
type ParseKind int

const (
	ParseSuccess ParseKind = iota
	ParseEmpty
	ParseMalformed
)

// Candidate is one suggested title lifted from a generator response. AppID
// is zero until resolution against the store or the external catalog.
type Candidate struct {
	Title  string
	Reason string
	AppID  int64
}

type ParseResult struct {
	Kind       ParseKind
	Candidates []Candidate
}

type rawCandidate struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
	AppID  int64  `json:"app_id"`
}

var (
	listPrefixRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
	citationRe   = regexp.MustCompile(`\s*(?:\[\d+\]|†\S*)\s*`)
)

// ParseSuggestionResponse extracts suggestion candidates from raw model
// output. The model is told to answer with a JSON array, but responses
// arrive wrapped in prose, fenced in markdown, numbered, or decorated with
// citation markers, so parsing slices out the outermost array and scrubs
// each entry instead of trusting the envelope. Anything without a usable
// title and reason is dropped; a response with no array at all is
// malformed, never a failure.
func ParseSuggestionResponse(raw string) ParseResult {
	rows, ok := decodeCandidateArray(raw)
	if !ok {
		return ParseResult{Kind: ParseMalformed}
	}

	var out []Candidate
	for _, row := range rows {
		title := cleanTitle(row.Title)
		reason := strings.TrimSpace(citationRe.ReplaceAllString(row.Reason, " "))
		if title == "" || reason == "" {
			continue
		}
		out = append(out, Candidate{Title: title, Reason: reason, AppID: row.AppID})
	}
	if len(out) == 0 {
		return ParseResult{Kind: ParseEmpty}
	}
	return ParseResult{Kind: ParseSuccess, Candidates: out}
}

// decodeCandidateArray finds the JSON array inside raw, which strips code
// fences and surrounding prose. Prose can itself contain brackets (citation
// markers), so each opening bracket is tried in turn until one decodes.
func decodeCandidateArray(raw string) ([]rawCandidate, bool) {
	for start := strings.Index(raw, "["); start >= 0; start = nextBracket(raw, start) {
		var rows []rawCandidate
		dec := json.NewDecoder(strings.NewReader(raw[start:]))
		if err := dec.Decode(&rows); err == nil {
			return rows, true
		}
	}
	return nil, false
}

func nextBracket(raw string, after int) int {
	rel := strings.Index(raw[after+1:], "[")
	if rel < 0 {
		return -1
	}
	return after + 1 + rel
}

func cleanTitle(s string) string {
	s = listPrefixRe.ReplaceAllString(s, "")
	s = citationRe.ReplaceAllString(s, " ")
	s = strings.Trim(s, `"' `)
	return strings.TrimSpace(s)
}
