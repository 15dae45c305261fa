package generator

import (
	"io"
	"log/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var validInput = Input{
	CandidateName:  "Ava Patel",
	RoleTitle:      "Data Engineer",
	CompanyName:    "Acme",
	JobDescription: "Own the batch and streaming pipelines.",
	HMNotes:        "Needs someone who has run Airflow at scale.",
}

const validReportJSON = `{
  "candidateHeader": {"name": "Ava Patel", "role": "Data Engineer", "company": "Acme", "headline": "Pipeline owner with Airflow depth"},
  "whatYouSharedVsWhatCandidateBrings": [{"youShared": "Airflow at scale", "candidateBrings": "Ran 400 DAGs at Globex"}],
  "evidenceSummary": ["Led migration to Airflow 2"],
  "considerationsAndWatchouts": ["Limited streaming experience"],
  "outcomesAndTrackRecord": ["Cut pipeline failures by 60%"],
  "leadershipDataFraming": ["Ask about on-call ownership"],
  "resumeNoteAndSchedulingOptions": {"resumeNote": "Resume attached", "schedulingOptions": ["Tue 10:00", "Wed 14:00"]}
}`
