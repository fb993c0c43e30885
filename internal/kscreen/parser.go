package kscreen

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kidoz/display-priority-manager/internal/display"
)

const (
	outputMarker   = "Output:"
	priorityMarker = "priority"
	escapeByte     = '\x1b'

	// DefaultMaxNameLength bounds output identifiers.
	DefaultMaxNameLength = 63
)

// Parser turns `kscreen-doctor -o` output into a display.Topology.
type Parser struct {
	Classifier    display.Classifier
	MaxNameLength int
}

// NewParser creates a parser with the given internal-panel patterns.
func NewParser(internalPatterns []string, maxNameLength int) *Parser {
	if maxNameLength <= 0 {
		maxNameLength = DefaultMaxNameLength
	}
	return &Parser{
		Classifier:    display.NewClassifier(internalPatterns),
		MaxNameLength: maxNameLength,
	}
}

// ParseTopology parses raw with the default classifier and name bound.
func ParseTopology(raw string) display.Topology {
	return NewParser(nil, DefaultMaxNameLength).Parse(raw)
}

// block accumulates one "Output:" section until it is committed.
type block struct {
	name     string
	priority int
}

// Parse scans the dump line by line; lines have no length limit. A block is
// committed when the next "Output:" line or the end of input is reached, and
// only if it has a name and a priority > 0. Outputs without a priority (disconnected) are dropped,
// as are repeats of an identifier already committed.
func (p *Parser) Parse(raw string) display.Topology {
	var (
		topo    display.Topology
		cur     block
		started bool
		seen    = make(map[string]bool)
	)

	commit := func() {
		if cur.name == "" || cur.priority <= 0 || seen[cur.name] {
			return
		}
		seen[cur.name] = true
		topo = append(topo, display.DisplayRecord{
			Name:           cur.name,
			Priority:       cur.priority,
			Classification: p.Classifier.Classify(cur.name),
		})
	}

	for _, line := range strings.Split(raw, "\n") {
		line = StripANSI(strings.TrimSuffix(line, "\r"))

		if idx := strings.Index(line, outputMarker); idx >= 0 {
			commit()
			rest := line[idx+len(outputMarker):]
			cur = block{name: p.outputName(rest), priority: -1}
			// Single-line dumps carry "priority N" on the Output line itself.
			if v, ok := priorityToken(strings.Fields(rest)); ok {
				cur.priority = v
			}
			started = true
			continue
		}

		if started && strings.Contains(line, priorityMarker) {
			if v, ok := parsePriority(line); ok {
				cur.priority = v
			}
		}
	}
	commit()

	return topo
}

// outputName extracts the identifier from the text after "Output:". The
// compositor prints "<id> <name>"; when the first field is not a numeric id
// it is taken as the name.
func (p *Parser) outputName(rest string) string {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	name := fields[0]
	if _, err := strconv.Atoi(fields[0]); err == nil {
		if len(fields) < 2 {
			return ""
		}
		name = fields[1]
	}
	return truncate(name, p.MaxNameLength)
}

// parsePriority returns the integer after the "priority" token, falling back
// to the last field of the line.
func parsePriority(line string) (int, bool) {
	fields := strings.Fields(line)
	if v, ok := priorityToken(fields); ok {
		return v, true
	}
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, false
	}
	return v, true
}

func priorityToken(fields []string) (int, bool) {
	for i, f := range fields {
		if f == priorityMarker && i+1 < len(fields) {
			if v, err := strconv.Atoi(fields[i+1]); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// StripANSI removes escape sequences that start with ESC and end with 'm'.
// An unterminated sequence swallows the rest of the line.
func StripANSI(line string) string {
	if strings.IndexByte(line, escapeByte) < 0 {
		return line
	}
	var b strings.Builder
	b.Grow(len(line))
	for i := 0; i < len(line); i++ {
		if line[i] != escapeByte {
			b.WriteByte(line[i])
			continue
		}
		for i < len(line) && line[i] != 'm' {
			i++
		}
	}
	return b.String()
}
