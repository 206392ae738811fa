// Package fields maps OCR text lines of an invoice's client block to the
// client name, address and tax id.
package fields

import (
	"regexp"
	"strings"

	"invoicescan/pkg/ocr"
)

// Field identifies one extracted value.
type Field int

const (
	ClientName Field = iota
	ClientAddress
	TaxID
	numFields
)

func (f Field) String() string {
	switch f {
	case ClientName:
		return "client_name"
	case ClientAddress:
		return "client_address"
	case TaxID:
		return "tax_id"
	}
	return "unknown"
}

// All lists the fields in output column order.
var All = []Field{ClientName, ClientAddress, TaxID}

// Fields holds the extracted values. Empty means not found.
type Fields struct {
	ClientName    string
	ClientAddress string
	TaxID         string
}

// Value returns the extracted value of f.
func (fs Fields) Value(f Field) string {
	switch f {
	case ClientName:
		return fs.ClientName
	case ClientAddress:
		return fs.ClientAddress
	case TaxID:
		return fs.TaxID
	}
	return ""
}

func (fs *Fields) set(f Field, v string) {
	switch f {
	case ClientName:
		fs.ClientName = v
	case ClientAddress:
		fs.ClientAddress = v
	case TaxID:
		fs.TaxID = v
	}
}

type label struct {
	field Field
	text  string
	re    *regexp.Regexp
}

// vocabulary lists the label tokens per field. Order does not matter: the
// leftmost label of a line wins, then the longest.
var vocabulary = map[Field][]string{
	ClientName:    {"bill to", "billed to", "invoice to", "sold to", "client name", "customer name", "client", "customer"},
	ClientAddress: {"client address", "billing address", "address"},
	TaxID:         {"tax id", "tax no", "tax number", "vat number", "vat no", "vat", "tin", "gst no", "gstin"},
}

var labels = compileLabels()

func compileLabels() []label {
	var out []label
	for f := ClientName; f < numFields; f++ {
		for _, text := range vocabulary[f] {
			words := strings.Fields(text)
			for i, w := range words {
				words[i] = regexp.QuoteMeta(w)
			}
			re := regexp.MustCompile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`)
			out = append(out, label{field: f, text: text, re: re})
		}
	}
	return out
}

// separators trimmed between a label and its value, e.g. "Tax ID: #XYZ".
const separators = " \t:;-#.="

type match struct {
	field Field
	value string // remainder of the line after the label
}

// matchLine returns the leftmost label found in line. Labels starting at the
// same offset are ranked by length so "Client Address" is an address and not
// a name, while the value after the first label may contain any words.
func matchLine(line string) (match, bool) {
	var best label
	bestStart, bestEnd := -1, 0
	for _, l := range labels {
		loc := l.re.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if bestStart < 0 || loc[0] < bestStart || (loc[0] == bestStart && len(l.text) > len(best.text)) {
			best, bestStart, bestEnd = l, loc[0], loc[1]
		}
	}
	if bestStart < 0 {
		return match{}, false
	}
	return match{field: best.field, value: strings.TrimSpace(strings.TrimLeft(line[bestEnd:], separators))}, true
}

// Extract scans lines for label tokens. A label's value is the rest of its
// line, or the next line when the rest is empty and the next line is not a
// label itself. The first label line per field wins. When no address label
// exists, the line right after the client name value is used as address.
// The result depends only on the input, never on map order or time.
func Extract(lines []ocr.TextLine) Fields {
	texts := ocr.Texts(lines)
	matches := make([]*match, len(texts))
	for i, t := range texts {
		if m, ok := matchLine(t); ok {
			matches[i] = &m
		}
	}

	var out Fields
	var filled [numFields]bool
	used := make([]bool, len(texts))
	nameLine := -1
	for i, m := range matches {
		if m == nil || filled[m.field] {
			continue
		}
		used[i] = true
		value, at := m.value, i
		if value == "" {
			next := i + 1
			if next >= len(texts) || matches[next] != nil || used[next] {
				continue
			}
			value, at = texts[next], next
			used[next] = true
		}
		out.set(m.field, value)
		filled[m.field] = true
		if m.field == ClientName {
			nameLine = at
		}
	}

	if !filled[ClientAddress] && nameLine >= 0 {
		next := nameLine + 1
		if next < len(texts) && matches[next] == nil && !used[next] {
			out.ClientAddress = texts[next]
		}
	}
	return out
}

// FromTexts is Extract for plain strings with full confidence.
func FromTexts(texts []string) Fields {
	lines := make([]ocr.TextLine, len(texts))
	for i, t := range texts {
		lines[i] = ocr.TextLine{Text: t, Confidence: 1}
	}
	return Extract(lines)
}
