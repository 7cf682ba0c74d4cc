// Package extract pulls the work description out of a package detail page.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultLabel marks the table row holding the work description.
const DefaultLabel = "Uraian Pekerjaan"

// Extractor kinds accepted by New.
const (
	KindScan = "scan"
	KindDOM  = "dom"
)

// Extractor returns the labelled field of a detail document, or "" when the
// document does not contain it.
type Extractor interface {
	Extract(doc []byte) string
}

// New returns the extractor registered under kind ("" selects scan).
func New(kind, label string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindScan:
		return ScanExtractor{Label: label}, nil
	case KindDOM:
		return DOMExtractor{Label: label}, nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", kind)
	}
}

// ScanExtractor finds the label, then returns the raw contents of the next
// table cell, trimmed. Markup inside the cell is left untouched.
type ScanExtractor struct {
	Label string
}

// Extract implements Extractor.
func (s ScanExtractor) Extract(doc []byte) string {
	label := s.Label
	if label == "" {
		label = DefaultLabel
	}
	at := bytes.Index(doc, []byte(label))
	if at < 0 {
		return ""
	}
	rest := doc[at+len(label):]

	// "<td" must be the whole tag name, not a prefix of e.g. "<tdata".
	for {
		open := indexFold(rest, "<td")
		if open < 0 {
			return ""
		}
		rest = rest[open+len("<td"):]
		if len(rest) > 0 && (rest[0] == '>' || isSpace(rest[0]) || rest[0] == '/') {
			break
		}
	}
	gt := bytes.IndexByte(rest, '>')
	if gt < 0 {
		return ""
	}
	rest = rest[gt+1:]

	end := indexFold(rest, "</td>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(string(rest[:end]))
}

// DOMExtractor parses the document and returns the text of the first td
// following the cell whose text contains the label.
type DOMExtractor struct {
	Label string
}

// Extract implements Extractor.
func (d DOMExtractor) Extract(doc []byte) string {
	label := d.Label
	if label == "" {
		label = DefaultLabel
	}
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return ""
	}

	cells := parsed.Find("td, th")
	labelAt := -1
	cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if cell.Find("td, th").Length() > 0 {
			return true
		}
		if strings.Contains(cell.Text(), label) {
			labelAt = i
			return false
		}
		return true
	})
	if labelAt < 0 {
		return ""
	}

	value := ""
	cells.Slice(labelAt+1, cells.Length()).EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if goquery.NodeName(cell) != "td" {
			return true
		}
		value = strings.TrimSpace(cell.Text())
		return false
	})
	return value
}

func indexFold(haystack []byte, needle string) int {
	target := []byte(needle)
	n := len(target)
	for i := 0; i+n <= len(haystack); i++ {
		if bytes.EqualFold(haystack[i:i+n], target) {
			return i
		}
	}
	return -1
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}
