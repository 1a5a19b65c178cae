package parser

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	apperrors "github.com/least106/MomentTransfer/internal/errors"
)

// File extensions handled by the multi-block parser. Tabular extensions are
// always routed to the delimited reader instead.
const RecommendedExt = ".mtfmt"

var (
	specialExts = map[string]bool{".mtfmt": true, ".mtdata": true, ".txt": true, ".dat": true}
	tabularExts = map[string]bool{".csv": true, ".tsv": true, ".xlsx": true, ".xls": true, ".xlsm": true, ".xlsb": true}
)

// blockState is the position of the scanner inside one part block.
type blockState int

const (
	stateStart blockState = iota
	statePartName
	stateHeader
	stateData
	stateSummary
)

func (s blockState) String() string {
	switch s {
	case stateStart:
		return "start"
	case statePartName:
		return "part-name"
	case stateHeader:
		return "header"
	case stateData:
		return "data"
	case stateSummary:
		return "summary"
	default:
		return "invalid"
	}
}

// transitions declares, per state, which line classes advance the scanner and
// where they lead. Classes absent from a state's row are skipped in place.
// Blank and metadata lines are skippable everywhere and never appear here.
var transitions = map[blockState]map[LineClass]blockState{
	stateStart: {
		LinePartName: statePartName,
	},
	statePartName: {
		LineHeader:   stateHeader,
		LinePartName: statePartName,
	},
	stateHeader: {
		LineData:     stateData,
		LinePartName: statePartName,
	},
	stateData: {
		LineData:     stateData,
		LineSummary:  stateSummary,
		LinePartName: statePartName,
	},
	stateSummary: {
		LineSummary:  stateSummary,
		LinePartName: statePartName,
	},
}

// SpecialParser scans multi-block text files where each part's data sits
// under a bare part-name line followed by a header row.
type SpecialParser struct {
	classifier *Classifier
	logger     *slog.Logger
}

// NewSpecialParser builds a parser around the given classifier. A nil
// classifier uses the default vocabulary.
func NewSpecialParser(c *Classifier, logger *slog.Logger) *SpecialParser {
	if c == nil {
		c = DefaultClassifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SpecialParser{classifier: c, logger: logger}
}

// ParseFile decodes the file through the encoding fallback chain and parses
// every part block. Returns the per-part tables and the non-fatal warnings
// collected along the way.
func (p *SpecialParser) ParseFile(path string) (map[string]*Table, []string, error) {
	lines, enc, err := ReadLines(path, 0)
	if err != nil {
		return nil, nil, err
	}
	p.logger.Debug("decoded special format file",
		slog.String("file", path),
		slog.String("encoding", enc),
		slog.Int("lines", len(lines)))

	tables, warnings := p.Parse(lines)
	if len(tables) == 0 {
		return nil, warnings, apperrors.New(apperrors.CodeFormat,
			"no part blocks found in %s", path)
	}
	return tables, warnings, nil
}

// Parse runs the block state machine over the given lines.
func (p *SpecialParser) Parse(lines []string) (map[string]*Table, []string) {
	result := make(map[string]*Table)
	var warnings []string

	state := stateStart
	var part string
	var header []string
	var rows [][]string

	flush := func() {
		if part == "" || header == nil {
			return
		}
		if len(rows) == 0 {
			warnings = append(warnings, fmt.Sprintf("part %q has a header but no data rows", part))
			return
		}
		result[part] = &Table{Columns: header, Rows: rows}
		p.logger.Debug("parsed part block",
			slog.String("part", part), slog.Int("rows", len(rows)))
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		next := ""
		if i+1 < len(lines) {
			next = strings.TrimSpace(lines[i+1])
		}

		class := p.classify(line, next, state)
		if class == LineBlank || class == LineMetadata || class == LineUnknown {
			continue
		}

		to, ok := transitions[state][class]
		if !ok {
			// Legal line class in an illegal position, e.g. data before any
			// header. Skipped, the block structure stays intact.
			continue
		}

		switch class {
		case LinePartName:
			flush()
			part = line
			header = nil
			rows = nil
		case LineHeader:
			header = make([]string, 0, len(strings.Fields(line)))
			for _, tok := range strings.Fields(line) {
				header = append(header, p.classifier.Canonical(tok))
			}
		case LineData:
			tokens := strings.Fields(line)
			if len(tokens) != len(header) {
				warnings = append(warnings, fmt.Sprintf(
					"part %q: row with %d cells does not match header width %d, skipped",
					part, len(tokens), len(header)))
				continue
			}
			rows = append(rows, tokens)
		case LineSummary:
			// Block statistics, not data.
		}

		state = to
	}
	flush()

	return result, warnings
}

// classify resolves the header/summary keyword overlap by position: right
// after a part name the keywords announce a header, inside or after a data
// block they announce a summary row.
func (p *SpecialParser) classify(line, next string, state blockState) LineClass {
	c := p.classifier
	switch {
	case line == "":
		return LineBlank
	case c.IsMetadata(line):
		return LineMetadata
	case c.IsData(line):
		return LineData
	}

	isHeader := c.IsHeader(line)
	switch {
	case isHeader && state == statePartName:
		return LineHeader
	case c.IsSummary(line):
		return LineSummary
	case isHeader:
		return LineHeader
	case c.IsPartName(line, next):
		return LinePartName
	}
	return LineUnknown
}

// PartNames scans the lines and returns block titles without building tables.
func (p *SpecialParser) PartNames(lines []string) []string {
	var names []string
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		next := ""
		if i+1 < len(lines) {
			next = strings.TrimSpace(lines[i+1])
		}
		if p.classifier.Classify(line, next) == LinePartName {
			names = append(names, line)
		}
	}
	return names
}

// DetectSpecialFormat decides whether a file should go through the
// multi-block parser. Known tabular extensions never qualify; known special
// extensions always do; anything else is probed by content.
func DetectSpecialFormat(path string, c *Classifier, probeLines int) bool {
	if c == nil {
		c = DefaultClassifier()
	}
	ext := strings.ToLower(filepath.Ext(path))
	if tabularExts[ext] {
		return false
	}
	if specialExts[ext] {
		return true
	}

	if probeLines <= 0 {
		probeLines = 20
	}
	lines, _, err := ReadLines(path, probeLines)
	if err != nil {
		return false
	}

	sawKeyword := false
	for _, ln := range lines {
		if c.IsHeader(ln) {
			sawKeyword = true
			break
		}
	}
	if !sawKeyword {
		return false
	}
	for _, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln != "" && !c.IsMetadata(ln) && !c.IsData(ln) {
			return true
		}
	}
	return false
}
