package responseparse

type ReportResult struct {
	SummaryTitle string   `json:"summary_title"`
	Intro        []string `json:"intro"`
	Findings     []string `json:"findings"`
	Diagnoses    []string `json:"diagnoses"`
	Medications  []string `json:"medications"`
	Followups    []string `json:"followups"`
	Disclaimer   string   `json:"disclaimer"`
}

// HasSections reports whether any structured section besides the intro was
// found.
func (r ReportResult) HasSections() bool {
	return len(r.Findings) > 0 || len(r.Diagnoses) > 0 || len(r.Medications) > 0 || len(r.Followups) > 0
}

// ParseReport parses a medical report summary response.
func ParseReport(text string) ReportResult {
	b := &reportBuilder{
		result: ReportResult{
			Intro:       []string{},
			Findings:    []string{},
			Diagnoses:   []string{},
			Medications: []string{},
			Followups:   []string{},
		},
	}
	dispatch(text, reportRules, b)
	b.result.Disclaimer = b.disclaimer.String()
	return b.result
}

type reportBuilder struct {
	result     ReportResult
	disclaimer joinedText
}

func (b *reportBuilder) enter(section Section, line string) Section {
	if section == SectionSummaryTitle {
		b.result.SummaryTitle = NormalizeLine(line)
		return SectionIntro
	}
	return section
}

func (b *reportBuilder) accept(section Section, _ string, body string) {
	switch section {
	case SectionFindings:
		b.result.Findings = append(b.result.Findings, body)
	case SectionDiagnoses:
		b.result.Diagnoses = append(b.result.Diagnoses, body)
	case SectionMedications:
		b.result.Medications = append(b.result.Medications, body)
	case SectionFollowups:
		b.result.Followups = append(b.result.Followups, body)
	case SectionDisclaimer:
		b.disclaimer.add(body)
	default:
		b.result.Intro = append(b.result.Intro, body)
	}
}
