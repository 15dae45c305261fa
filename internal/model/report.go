package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Report is the structured trust report returned by the completion API.
//
// Decoding is lenient on purpose: missing keys become empty values, unknown
// keys are ignored, and a scalar where a list is expected becomes a
// one-element list. Templates can range over every list without nil checks.
type Report struct {
	CandidateHeader                    CandidateHeader  `json:"candidateHeader"`
	WhatYouSharedVsWhatCandidateBrings []Comparison     `json:"whatYouSharedVsWhatCandidateBrings"`
	EvidenceSummary                    []string         `json:"evidenceSummary"`
	ConsiderationsAndWatchouts         []string         `json:"considerationsAndWatchouts"`
	OutcomesAndTrackRecord             []string         `json:"outcomesAndTrackRecord"`
	LeadershipDataFraming              []string         `json:"leadershipDataFraming"`
	ResumeNoteAndSchedulingOptions     ResumeScheduling `json:"resumeNoteAndSchedulingOptions"`
}

type CandidateHeader struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	Company  string `json:"company"`
	Headline string `json:"headline"`
}

// Comparison pairs one thing the hiring manager asked for with what the
// candidate actually brings.
type Comparison struct {
	YouShared       string `json:"youShared"`
	CandidateBrings string `json:"candidateBrings"`
}

type ResumeScheduling struct {
	ResumeNote        string   `json:"resumeNote"`
	SchedulingOptions []string `json:"schedulingOptions"`
}

// ReportKeys lists the top-level keys of the report object in prompt order.
var ReportKeys = []string{
	"candidateHeader",
	"whatYouSharedVsWhatCandidateBrings",
	"evidenceSummary",
	"considerationsAndWatchouts",
	"outcomesAndTrackRecord",
	"leadershipDataFraming",
	"resumeNoteAndSchedulingOptions",
}

// UnmarshalJSON requires a JSON object at the top level and decodes every
// field leniently.
func (r *Report) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = Report{
		CandidateHeader:                    decodeHeader(fields["candidateHeader"]),
		WhatYouSharedVsWhatCandidateBrings: decodeComparisons(fields["whatYouSharedVsWhatCandidateBrings"]),
		EvidenceSummary:                    decodeStrings(fields["evidenceSummary"]),
		ConsiderationsAndWatchouts:         decodeStrings(fields["considerationsAndWatchouts"]),
		OutcomesAndTrackRecord:             decodeStrings(fields["outcomesAndTrackRecord"]),
		LeadershipDataFraming:              decodeStrings(fields["leadershipDataFraming"]),
		ResumeNoteAndSchedulingOptions:     decodeResume(fields["resumeNoteAndSchedulingOptions"]),
	}
	r.Normalize()
	return nil
}

// Normalize replaces nil slices with empty ones.
func (r *Report) Normalize() {
	if r.WhatYouSharedVsWhatCandidateBrings == nil {
		r.WhatYouSharedVsWhatCandidateBrings = []Comparison{}
	}
	if r.EvidenceSummary == nil {
		r.EvidenceSummary = []string{}
	}
	if r.ConsiderationsAndWatchouts == nil {
		r.ConsiderationsAndWatchouts = []string{}
	}
	if r.OutcomesAndTrackRecord == nil {
		r.OutcomesAndTrackRecord = []string{}
	}
	if r.LeadershipDataFraming == nil {
		r.LeadershipDataFraming = []string{}
	}
	if r.ResumeNoteAndSchedulingOptions.SchedulingOptions == nil {
		r.ResumeNoteAndSchedulingOptions.SchedulingOptions = []string{}
	}
}

// IsEmpty reports whether the report carries no content at all.
func (r *Report) IsEmpty() bool {
	if r == nil {
		return true
	}
	h := r.CandidateHeader
	return h.Name == "" && h.Role == "" && h.Company == "" && h.Headline == "" &&
		len(r.WhatYouSharedVsWhatCandidateBrings) == 0 &&
		len(r.EvidenceSummary) == 0 &&
		len(r.ConsiderationsAndWatchouts) == 0 &&
		len(r.OutcomesAndTrackRecord) == 0 &&
		len(r.LeadershipDataFraming) == 0 &&
		r.ResumeNoteAndSchedulingOptions.ResumeNote == "" &&
		len(r.ResumeNoteAndSchedulingOptions.SchedulingOptions) == 0
}

func isAbsent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// scalarText renders a JSON scalar as text. Strings are unquoted; numbers and
// booleans keep their literal form; objects and arrays are compacted.
func scalarText(raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return buf.String()
}

func decodeStrings(raw json.RawMessage) []string {
	if isAbsent(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s := scalarText(raw); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := scalarText(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func decodeComparisons(raw json.RawMessage) []Comparison {
	if isAbsent(raw) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		items = []json.RawMessage{raw}
	}
	out := make([]Comparison, 0, len(items))
	for _, item := range items {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err == nil {
			c := Comparison{
				YouShared:       scalarText(obj["youShared"]),
				CandidateBrings: scalarText(obj["candidateBrings"]),
			}
			if c.YouShared != "" || c.CandidateBrings != "" {
				out = append(out, c)
			}
			continue
		}
		if s := scalarText(item); s != "" {
			out = append(out, Comparison{CandidateBrings: s})
		}
	}
	return out
}

func decodeHeader(raw json.RawMessage) CandidateHeader {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return CandidateHeader{Headline: scalarText(raw)}
	}
	return CandidateHeader{
		Name:     scalarText(obj["name"]),
		Role:     scalarText(obj["role"]),
		Company:  scalarText(obj["company"]),
		Headline: scalarText(obj["headline"]),
	}
}

func decodeResume(raw json.RawMessage) ResumeScheduling {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ResumeScheduling{ResumeNote: scalarText(raw)}
	}
	return ResumeScheduling{
		ResumeNote:        scalarText(obj["resumeNote"]),
		SchedulingOptions: decodeStrings(obj["schedulingOptions"]),
	}
}
