package responseparse

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Mode selects the section vocabulary used while dispatching lines.
type Mode int

const (
	ModePrediction Mode = iota
	ModeReport
)

func (m Mode) String() string {
	switch m {
	case ModePrediction:
		return "prediction"
	case ModeReport:
		return "report"
	default:
		return "unknown"
	}
}

// ParseMode maps "prediction" or "report" (any case) to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prediction", "predict", "":
		return ModePrediction, true
	case "report":
		return ModeReport, true
	}
	return ModePrediction, false
}

// Section is the logical bucket active while lines are scanned.
type Section int

const (
	SectionIntro Section = iota
	SectionConditions
	SectionRedFlags
	SectionSelfCare
	SectionSpecialist
	SectionDisclaimer
	SectionSummaryTitle
	SectionFindings
	SectionDiagnoses
	SectionMedications
	SectionFollowups
)

var sectionNames = map[Section]string{
	SectionIntro:        "intro",
	SectionConditions:   "conditions",
	SectionRedFlags:     "red_flags",
	SectionSelfCare:     "self_care",
	SectionSpecialist:   "specialist",
	SectionDisclaimer:   "disclaimer",
	SectionSummaryTitle: "summary_title",
	SectionFindings:     "findings",
	SectionDiagnoses:    "diagnoses",
	SectionMedications:  "medications",
	SectionFollowups:    "followups",
}

func (s Section) String() string {
	if name, ok := sectionNames[s]; ok {
		return name
	}
	return "unknown"
}

// sectionRule pairs a header predicate with the section it opens. The
// predicate receives the lowercased, trimmed line.
type sectionRule struct {
	match   func(lower string) bool
	section Section
}

func containsAny(needles ...string) func(string) bool {
	return func(lower string) bool {
		for _, n := range needles {
			if strings.Contains(lower, n) {
				return true
			}
		}
		return false
	}
}

var selfCarePattern = regexp.MustCompile(`self[- ]?(care|monitor)`)

// Rules are evaluated in order; the first match wins.
var predictionRules = []sectionRule{
	{match: containsAny("likely conditions"), section: SectionConditions},
	{match: containsAny("red flags"), section: SectionRedFlags},
	{match: selfCarePattern.MatchString, section: SectionSelfCare},
	{match: containsAny("specialist", "doctor", "clinician"), section: SectionSpecialist},
	{match: containsAny("disclaimer"), section: SectionDisclaimer},
}

var reportRules = []sectionRule{
	{match: func(lower string) bool { return strings.HasPrefix(lower, "**summary") }, section: SectionSummaryTitle},
	{match: containsAny("key findings", "impressions"), section: SectionFindings},
	{match: containsAny("diagnoses", "differential"), section: SectionDiagnoses},
	{match: containsAny("medications", "labs"), section: SectionMedications},
	{match: containsAny("follow-up", "follow up"), section: SectionFollowups},
	{match: containsAny("disclaimer"), section: SectionDisclaimer},
}

func rulesFor(mode Mode) []sectionRule {
	if mode == ModeReport {
		return reportRules
	}
	return predictionRules
}

// Classify returns the section a header line opens, or false when the line
// is content for the current section.
func Classify(mode Mode, line string) (Section, bool) {
	return classify(rulesFor(mode), line)
}

// classify matches on the NFKC form of the line so fullwidth and other
// compatibility characters fold onto the ASCII keywords. Content keeps its
// original form.
func classify(rules []sectionRule, line string) (Section, bool) {
	lower := strings.ToLower(strings.TrimSpace(norm.NFKC.String(line)))
	if lower == "" {
		return SectionIntro, false
	}
	for _, r := range rules {
		if r.match(lower) {
			return r.section, true
		}
	}
	return SectionIntro, false
}
