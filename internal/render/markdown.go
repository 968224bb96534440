// Package render presents parsed responses as markdown, HTML and PDF.
package render

import (
	"fmt"
	"strings"

	"github.com/joelkehle/triage-assistant/internal/responseparse"
)

// Fallback copy used when the generated response omits a section.
const (
	DefaultRedFlags   = "No red flags were identified. Seek emergency care if symptoms suddenly worsen or new severe symptoms appear."
	DefaultSelfCare   = "Rest, stay hydrated and keep track of how your symptoms change over the next few days."
	DefaultSpecialist = "A general physician can assess your symptoms and refer you to a specialist if needed."
	DefaultDisclaimer = "This assessment is generated automatically and is not a medical diagnosis. Always consult a qualified healthcare professional."
	noneReported      = "None reported."
)

// PredictionMarkdown renders a symptom assessment. Conditions are listed in
// the order the response ranked them; without conditions only the intro
// paragraphs are shown.
func PredictionMarkdown(r responseparse.PredictionResult) string {
	var b strings.Builder
	b.WriteString("# Symptom Assessment\n\n")
	writeParagraphs(&b, r.IntroParagraphs)

	if r.HasConditions() {
		b.WriteString("## Likely Conditions\n\n")
		for i, c := range r.Conditions {
			fmt.Fprintf(&b, "%d. **%s**", i+1, c.Title)
			if c.ConfidenceLabel != "" {
				fmt.Fprintf(&b, " (%s, %d%%)", c.ConfidenceLabel, c.ConfidenceScore)
			} else {
				fmt.Fprintf(&b, " (%d%%)", c.ConfidenceScore)
			}
			if c.Summary != "" {
				fmt.Fprintf(&b, ": %s", c.Summary)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("## Red Flags\n\n")
	if len(r.RedFlags) == 0 {
		fmt.Fprintf(&b, "> %s\n\n", DefaultRedFlags)
	} else {
		for _, f := range r.RedFlags {
			fmt.Fprintf(&b, "> **Warning:** %s\n>\n", f)
		}
		b.WriteString("\n")
	}

	writeListOrDefault(&b, "Self-Care", r.SelfCare, DefaultSelfCare)
	writeListOrDefault(&b, "When to See a Specialist", r.Specialist, DefaultSpecialist)
	writeDisclaimer(&b, r.Disclaimer)
	return b.String()
}

// ReportMarkdown renders a medical report summary.
func ReportMarkdown(r responseparse.ReportResult) string {
	var b strings.Builder
	title := strings.TrimSpace(strings.ReplaceAll(r.SummaryTitle, "**", ""))
	if title == "" {
		title = "Report Summary"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	writeParagraphs(&b, r.Intro)
	writeListOrDefault(&b, "Key Findings", r.Findings, noneReported)
	writeListOrDefault(&b, "Possible Diagnoses", r.Diagnoses, noneReported)
	writeListOrDefault(&b, "Medications and Labs", r.Medications, noneReported)
	writeListOrDefault(&b, "Follow-up", r.Followups, noneReported)
	writeDisclaimer(&b, r.Disclaimer)
	return b.String()
}

func writeParagraphs(b *strings.Builder, paragraphs []string) {
	for _, p := range paragraphs {
		b.WriteString(p)
		b.WriteString("\n\n")
	}
}

func writeListOrDefault(b *strings.Builder, heading string, items []string, fallback string) {
	fmt.Fprintf(b, "## %s\n\n", heading)
	if len(items) == 0 {
		fmt.Fprintf(b, "%s\n\n", fallback)
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func writeDisclaimer(b *strings.Builder, disclaimer string) {
	if strings.TrimSpace(disclaimer) == "" {
		disclaimer = DefaultDisclaimer
	}
	fmt.Fprintf(b, "---\n\n_%s_\n", disclaimer)
}
