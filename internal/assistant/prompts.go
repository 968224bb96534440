package assistant

import (
	"fmt"
	"strings"
)

const systemPrompt = "You are a careful medical information assistant. You never claim to diagnose. " +
	"Answer in plain text using exactly the section headings you are asked for."

const predictionTemplate = `A user describes the following symptoms.

%s

Write a short, friendly opening paragraph, then these sections in order, each
heading on its own line:

Likely Conditions:
- one line per condition, most likely first, formatted as
  - **High|Medium|Low**: Condition name - one sentence on why it fits

Red Flags:
- warning signs that need urgent care

Self-Care:
- practical steps the user can take at home

Specialist:
- which kind of clinician to see and when

Disclaimer:
one or two sentences stating this is not a diagnosis.`

const reportTemplate = `Summarize the following medical report for a patient.

Report file: %s

----- REPORT TEXT -----
%s
----- END REPORT TEXT -----

Start with a line "**Summary:** <one line title>", then a short plain-language
overview paragraph, then these sections in order, each heading on its own line:

Key Findings:
- notable values or observations

Diagnoses:
- possible diagnoses mentioned or suggested

Medications:
- medications, labs or tests referenced

Follow-up:
- recommended next steps

Disclaimer:
one or two sentences stating this summary is not medical advice.`

func buildPredictionPrompt(in SymptomInput) string {
	var details strings.Builder
	fmt.Fprintf(&details, "Symptoms: %s\n", strings.TrimSpace(in.Symptoms))
	if in.Age > 0 {
		fmt.Fprintf(&details, "Age: %d\n", in.Age)
	}
	if s := strings.TrimSpace(in.Sex); s != "" {
		fmt.Fprintf(&details, "Sex: %s\n", s)
	}
	if d := strings.TrimSpace(in.Duration); d != "" {
		fmt.Fprintf(&details, "Duration: %s\n", d)
	}
	return fmt.Sprintf(predictionTemplate, strings.TrimSpace(details.String()))
}

func buildReportPrompt(filename, text string) string {
	if strings.TrimSpace(filename) == "" {
		filename = "(unnamed)"
	}
	return fmt.Sprintf(reportTemplate, filename, text)
}
