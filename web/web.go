// Package web holds the server-rendered HTML templates, embedded into the
// binary so deployments ship a single file.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS
