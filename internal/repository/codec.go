package repository

import (
	"encoding/json"
	"fmt"

	"github.com/sakif/aligned/internal/model"
)

// EncodeReport serialises a report for a TEXT/JSONB column. A nil report is
// stored as NULL.
func EncodeReport(r *model.Report) (*string, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	s := string(b)
	return &s, nil
}

// DecodeReport is the inverse of EncodeReport.
func DecodeReport(s *string) (*model.Report, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	var r model.Report
	if err := json.Unmarshal([]byte(*s), &r); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &r, nil
}

// NullableToken maps the empty share token to NULL so the UNIQUE index only
// covers shared rows.
func NullableToken(token string) *string {
	if token == "" {
		return nil
	}
	return &token
}

// ClampList applies the default and maximum page size.
func ClampList(opts ListOptions) ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	return opts
}
