package parser

import (
	"strconv"
	"strings"
	"unicode"
)

// LineClass is the classification of one input line in the multi-block
// format.
type LineClass int

const (
	LineBlank LineClass = iota
	LineMetadata
	LinePartName
	LineHeader
	LineData
	LineSummary
	LineUnknown
)

func (c LineClass) String() string {
	switch c {
	case LineBlank:
		return "blank"
	case LineMetadata:
		return "metadata"
	case LinePartName:
		return "part-name"
	case LineHeader:
		return "header"
	case LineData:
		return "data"
	case LineSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// Classifier holds the keyword and alias tables driving line classification.
// The tables are plain data so alternative vocabularies can be supplied in
// tests or configuration.
type Classifier struct {
	// HeaderKeywords mark a line as a column header when any token contains
	// one of them (case-insensitive).
	HeaderKeywords []string

	// SummaryKeywords mark trailing per-block statistics rows.
	SummaryKeywords []string

	// Aliases collapse raw header spellings to one canonical column name.
	Aliases map[string]string

	// PartNameMaxLen bounds how long a line can be and still count as a
	// block title.
	PartNameMaxLen int
}

// DefaultClassifier returns the classifier for the aerodynamic coefficient
// vocabulary the upstream tools emit.
func DefaultClassifier() *Classifier {
	return &Classifier{
		HeaderKeywords:  []string{"Alpha", "CL", "CD", "Cm", "Cx", "Cy", "Cz"},
		SummaryKeywords: []string{"CLa", "Cdmin", "CmCL", "Cm0", "Kmax", "Alpha"},
		Aliases: map[string]string{
			"Cz/FN": "Cz",
			"CZ":    "Cz",
			"CX":    "Cx",
			"CY":    "Cy",
			"CM":    "Cm",
		},
		PartNameMaxLen: 20,
	}
}

// Canonical normalizes a raw header token through the alias table.
func (c *Classifier) Canonical(name string) string {
	if canon, ok := c.Aliases[name]; ok {
		return canon
	}
	return name
}

// Classify labels one line given lookahead at the next non-blank line.
func (c *Classifier) Classify(line, next string) LineClass {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return LineBlank
	case c.IsMetadata(line):
		return LineMetadata
	case c.IsData(line):
		return LineData
	case c.IsSummary(line):
		return LineSummary
	case c.IsHeader(line):
		return LineHeader
	case c.IsPartName(line, next):
		return LinePartName
	default:
		return LineUnknown
	}
}

// IsMetadata reports whether the line is a descriptive header row rather
// than content: it carries a colon marker or reads as non-ASCII prose.
func (c *Classifier) IsMetadata(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if strings.ContainsRune(line, '：') {
		return true
	}
	// Only a colon followed by a space marks a key-value description; a
	// bare colon inside a token can belong to a part name like "Wing:1".
	if strings.Contains(line, ": ") && !unicode.IsDigit(rune(line[0])) {
		return true
	}

	// Prose in a non-ASCII script is a description unless it is a single
	// short token, which may still be a part name.
	if containsHan(line) {
		tokens := strings.Fields(line)
		if len(tokens) == 1 && len([]rune(line)) < c.PartNameMaxLen {
			return false
		}
		return true
	}

	return false
}

// IsData reports whether the line starts with a parseable float.
func (c *Classifier) IsData(line string) bool {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(tokens[0], 64)
	return err == nil
}

// IsSummary reports whether the line is a per-block statistics row: a
// non-numeric first token combined with a known summary keyword.
func (c *Classifier) IsSummary(line string) bool {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return false
	}
	if _, err := strconv.ParseFloat(tokens[0], 64); err == nil {
		return false
	}
	for _, kw := range c.SummaryKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

// IsHeader reports whether any token of the line contains a header keyword.
func (c *Classifier) IsHeader(line string) bool {
	return c.tokensLookLikeHeader(strings.Fields(line))
}

// IsPartName reports whether the line titles a data block. A short
// non-numeric line qualifies, and the decision is reinforced when the next
// line is a header.
func (c *Classifier) IsPartName(line, next string) bool {
	line = strings.TrimSpace(line)
	if line == "" || c.IsData(line) || c.IsSummary(line) {
		return false
	}

	if c.tokensLookLikeHeader(strings.Fields(line)) {
		return false
	}

	runeLen := len([]rune(line))
	if next != "" && c.tokensLookLikeHeader(strings.Fields(next)) {
		// A long prose description stays metadata even right above a header.
		if containsHan(line) && runeLen >= c.PartNameMaxLen {
			return false
		}
		return true
	}

	if runeLen < c.PartNameMaxLen {
		return true
	}
	return false
}

func (c *Classifier) tokensLookLikeHeader(tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, t := range tokens {
		tl := strings.ToLower(t)
		for _, kw := range c.HeaderKeywords {
			if strings.Contains(tl, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
