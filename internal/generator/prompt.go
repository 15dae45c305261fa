package generator

import (
	"fmt"
	"strings"
)

// systemPrompt is sent as the system message where the provider supports one.
const systemPrompt = "You are an experienced technical recruiter writing a concise, evidence-based " +
	"candidate trust report for a hiring manager. Reply with a single JSON object and nothing else."

// Section is one analysis section of the report. The order of Sections is
// part of the stored-report contract and must not change.
type Section struct {
	Key   string
	Title string
	Brief string
}

var Sections = []Section{
	{
		Key:   "whatYouSharedVsWhatCandidateBrings",
		Title: "What you shared vs what the candidate brings",
		Brief: "Pair each requirement or concern the hiring manager shared with the matching evidence from the candidate (youShared / candidateBrings).",
	},
	{
		Key:   "evidenceSummary",
		Title: "Evidence summary",
		Brief: "Concrete, verifiable facts that support the candidate's fit.",
	},
	{
		Key:   "considerationsAndWatchouts",
		Title: "Considerations and watchouts",
		Brief: "Risks, gaps or open questions the hiring manager should weigh.",
	},
	{
		Key:   "outcomesAndTrackRecord",
		Title: "Outcomes and track record",
		Brief: "Measurable results and scope the candidate has delivered.",
	},
	{
		Key:   "leadershipDataFraming",
		Title: "Leadership and data framing",
		Brief: "Where to focus the interview: leadership signals and how the candidate reasons with data.",
	},
}

// BuildPrompt renders the fixed report template for in.
func BuildPrompt(in Input) string {
	var b strings.Builder

	b.WriteString("Write a candidate trust report.\n\n")
	b.WriteString("## Context\n")
	fmt.Fprintf(&b, "Candidate: %s\n", strings.TrimSpace(in.CandidateName))
	fmt.Fprintf(&b, "Role: %s\n", strings.TrimSpace(in.RoleTitle))
	if c := strings.TrimSpace(in.CompanyName); c != "" {
		fmt.Fprintf(&b, "Company: %s\n", c)
	}
	writeBlock(&b, "Job description", in.JobDescription)
	writeBlock(&b, "Hiring manager notes", in.HMNotes)
	writeBlock(&b, "Recruiter notes", in.RecruiterNotes)

	b.WriteString("\n## Sections, in this order\n")
	for i, s := range Sections {
		fmt.Fprintf(&b, "%d. %s (%s): %s\n", i+1, s.Title, s.Key, s.Brief)
	}
	b.WriteString("Then a short resume note and two or three scheduling options (resumeNoteAndSchedulingOptions).\n")

	b.WriteString("\n## Output\n")
	b.WriteString("Return only a JSON object with exactly these keys:\n")
	b.WriteString(`{
  "candidateHeader": {"name": "", "role": "", "company": "", "headline": ""},
  "whatYouSharedVsWhatCandidateBrings": [{"youShared": "", "candidateBrings": ""}],
  "evidenceSummary": [""],
  "considerationsAndWatchouts": [""],
  "outcomesAndTrackRecord": [""],
  "leadershipDataFraming": [""],
  "resumeNoteAndSchedulingOptions": {"resumeNote": "", "schedulingOptions": [""]}
}
`)
	b.WriteString("Use only information from the context above. If something is unknown, leave the list empty rather than inventing it.\n")
	return b.String()
}

func writeBlock(b *strings.Builder, label, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	fmt.Fprintf(b, "\n%s:\n%s\n", label, text)
}
