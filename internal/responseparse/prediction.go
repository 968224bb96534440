// Package responseparse turns loosely formatted generated text into
// structured prediction and report records.
//
// Parsing is line oriented: a header line switches the active section until
// the next header, content lines are normalized and appended to the active
// section's bucket, and lines before any header land in the intro. Parsing
// never fails; text without recognizable headers ends up entirely in the
// intro so callers can fall back to showing paragraphs.
package responseparse

import (
	"regexp"
	"strings"
)

// Confidence scores assigned from the qualitative label found in a
// condition line.
const (
	HighConfidenceScore   = 75
	MediumConfidenceScore = 55
	LowConfidenceScore    = 35

	// DefaultConfidenceScore applies when the label is missing or not
	// recognized. The value is an arbitrary heuristic, not a clinical figure.
	DefaultConfidenceScore = 60
)

type ConditionRecord struct {
	Title           string `json:"title"`
	Summary         string `json:"summary"`
	ConfidenceLabel string `json:"confidence_label"`
	ConfidenceScore int    `json:"confidence_score"`
}

type PredictionResult struct {
	IntroParagraphs []string          `json:"intro_paragraphs"`
	Conditions      []ConditionRecord `json:"conditions"`
	RedFlags        []string          `json:"red_flags"`
	SelfCare        []string          `json:"self_care"`
	Specialist      []string          `json:"specialist"`
	Disclaimer      string            `json:"disclaimer"`
}

// HasConditions reports whether a ranked layout can be shown.
func (r PredictionResult) HasConditions() bool {
	return len(r.Conditions) > 0
}

// ParsePrediction parses a symptom-prediction response.
func ParsePrediction(text string) PredictionResult {
	b := &predictionBuilder{
		result: PredictionResult{
			IntroParagraphs: []string{},
			Conditions:      []ConditionRecord{},
			RedFlags:        []string{},
			SelfCare:        []string{},
			Specialist:      []string{},
		},
	}
	dispatch(text, predictionRules, b)
	b.result.Disclaimer = b.disclaimer.String()
	return b.result
}

type predictionBuilder struct {
	result     PredictionResult
	disclaimer joinedText
}

func (b *predictionBuilder) enter(section Section, _ string) Section {
	return section
}

func (b *predictionBuilder) accept(section Section, line, body string) {
	switch section {
	case SectionConditions:
		// Prose ahead of the list (e.g. "Based on your symptoms:") is dropped.
		if !HasBulletPrefix(line) {
			return
		}
		if rec, ok := ParseConditionLine(line); ok {
			b.result.Conditions = append(b.result.Conditions, rec)
		}
	case SectionRedFlags:
		b.result.RedFlags = append(b.result.RedFlags, body)
	case SectionSelfCare:
		b.result.SelfCare = append(b.result.SelfCare, body)
	case SectionSpecialist:
		b.result.Specialist = append(b.result.Specialist, body)
	case SectionDisclaimer:
		b.disclaimer.add(body)
	default:
		b.result.IntroParagraphs = append(b.result.IntroParagraphs, body)
	}
}

var confidenceSpan = regexp.MustCompile(`\*\*(.*?)\*\*`)

const (
	titleSummarySep  = " - "
	leadingSeparator = ":-–— \t"
)

// ParseConditionLine extracts title, summary and confidence from a bulleted
// condition line such as "- **High**: Flu - fever and cough". It returns
// false when nothing but markers and separators remain.
func ParseConditionLine(line string) (ConditionRecord, bool) {
	body := NormalizeLine(line)

	var label string
	if loc := confidenceSpan.FindStringSubmatchIndex(body); loc != nil {
		label = strings.TrimSpace(body[loc[2]:loc[3]])
		label = strings.TrimSpace(strings.TrimSuffix(label, ":"))
		body = body[:loc[0]] + body[loc[1]:]
	}
	body = strings.TrimSpace(strings.TrimLeft(body, leadingSeparator))
	if body == "" {
		return ConditionRecord{}, false
	}

	title, summary := body, ""
	if parts := strings.Split(body, titleSummarySep); len(parts) > 1 {
		title = strings.TrimSpace(parts[0])
		summary = strings.TrimSpace(strings.Join(parts[1:], titleSummarySep))
	}
	return ConditionRecord{
		Title:           title,
		Summary:         summary,
		ConfidenceLabel: label,
		ConfidenceScore: ConfidenceScore(label),
	}, true
}

// ConfidenceScore maps a qualitative label to a percentage by substring:
// "high" wins over "medium"/"med", which wins over "low".
func ConfidenceScore(label string) int {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "high"):
		return HighConfidenceScore
	case strings.Contains(l, "med"):
		return MediumConfidenceScore
	case strings.Contains(l, "low"):
		return LowConfidenceScore
	default:
		return DefaultConfidenceScore
	}
}
