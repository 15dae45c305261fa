package generator

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/sakif/aligned/internal/model"
)

// ParseReport extracts the report object from a completion reply.
//
// Markdown code fences and prose around the object are tolerated. Anything
// that is not a JSON object, or an object with none of the report keys, is a
// *ParseError carrying raw.
func ParseReport(raw string) (*model.Report, error) {
	text := stripFences(strings.TrimSpace(raw))

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, &ParseError{Raw: raw, Err: errors.New("reply is not a JSON object")}
	}

	var report model.Report
	if err := json.Unmarshal([]byte(text[start:end+1]), &report); err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	if report.IsEmpty() {
		return nil, &ParseError{Raw: raw, Err: errors.New("reply contained none of the report sections")}
	}
	return &report, nil
}

// stripFences removes a surrounding ``` or ```json fence.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
