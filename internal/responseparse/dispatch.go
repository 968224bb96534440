package responseparse

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// lineSink receives classified lines from dispatch. enter is called for
// header lines and returns the section that becomes active; accept is called
// for content lines with their normalized body.
type lineSink interface {
	enter(section Section, line string) Section
	accept(section Section, line, body string)
}

func splitLines(text string) []string {
	text = norm.NFC.String(text)
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func dispatch(text string, rules []sectionRule, sink lineSink) {
	current := SectionIntro
	for _, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if section, ok := classify(rules, line); ok {
			current = sink.enter(section, line)
			continue
		}
		body := NormalizeLine(line)
		if body == "" {
			continue
		}
		sink.accept(current, line, body)
	}
}

// joinedText accumulates lines separated by single spaces and is trimmed
// once when read.
type joinedText struct {
	b strings.Builder
}

func (j *joinedText) add(s string) {
	j.b.WriteString(s)
	j.b.WriteByte(' ')
}

func (j *joinedText) String() string {
	return strings.TrimSpace(j.b.String())
}
