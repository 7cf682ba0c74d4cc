// Package keyword decides whether package text describes advertising,
// media, or publication spend.
package keyword

import (
	"errors"
	"regexp"
	"strings"
)

// Vocabulary is the default term list. Multi-word terms match as phrases.
var Vocabulary = []string{
	"iklan", "surat kabar", "suratkabar", "koran", "media cetak", "majalah",
	"publikasi", "radio", "televisi", "tv", "media online", "siber",
	"talk show", "talkshow", "adlibs", "pariwara", "advertorial", "advertising",
	"ads", "adv", "advertiser", "kampanye", "campaign", "promosi", "diseminasi",
	"podcast", "media elektronik", "media lokal", "media nasional", "pemasaran",
	"advertisement", "media digital", "newspaper", "media tradisional",
	"media massa", "media", "media internasional", "press", "pers", "placement",
	"news paper", "penayangan", "pemuatan", "tabloid", "sponsorship", "sponsor",
	"media daring",
}

const nonWord = `[^\p{L}\p{N}_]`

// ErrEmptyVocabulary is returned by New when no usable term is given.
var ErrEmptyVocabulary = errors.New("keyword vocabulary is empty")

// Matcher tests text against a compiled whole-word, case-insensitive
// alternation of its terms. It is immutable and safe for concurrent use.
type Matcher struct {
	pattern *regexp.Regexp
	terms   []string
}

// New compiles a Matcher for terms. Blank terms are ignored.
func New(terms ...string) (*Matcher, error) {
	quoted := make([]string, 0, len(terms))
	kept := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		kept = append(kept, term)
		quoted = append(quoted, regexp.QuoteMeta(term))
	}
	if len(quoted) == 0 {
		return nil, ErrEmptyVocabulary
	}
	// \b is ASCII-only in RE2, so word boundaries are spelled out over
	// Unicode letters and digits.
	pattern, err := regexp.Compile(`(?i)(?:^|` + nonWord + `)(` + strings.Join(quoted, "|") + `)(?:` + nonWord + `|$)`)
	if err != nil {
		return nil, err
	}
	return &Matcher{pattern: pattern, terms: kept}, nil
}

var defaultMatcher = mustDefault()

func mustDefault() *Matcher {
	m, err := New(Vocabulary...)
	if err != nil {
		panic(err)
	}
	return m
}

// Default returns the Matcher built from Vocabulary.
func Default() *Matcher {
	return defaultMatcher
}

// Terms returns a copy of the matcher's vocabulary.
func (m *Matcher) Terms() []string {
	return append([]string(nil), m.terms...)
}

// Matches reports whether any term occurs in text as a whole word.
func (m *Matcher) Matches(text string) bool {
	return m.pattern.MatchString(text)
}

// FirstMatch returns the leftmost term occurrence in text.
func (m *Matcher) FirstMatch(text string) (string, bool) {
	loc := m.pattern.FindStringSubmatch(text)
	if loc == nil {
		return "", false
	}
	return loc[1], true
}

// Combine joins a package name and its detail into the lowercased text the
// matcher is applied to.
func Combine(name, detail string) string {
	return strings.ToLower(name + " " + detail)
}
