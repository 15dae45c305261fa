package generator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/aligned/internal/model"
)

// DefaultTimeout bounds a single generation.
const DefaultTimeout = 60 * time.Second

// Result is a successful generation.
type Result struct {
	Report *model.Report
	Raw    string
}

// Generator validates input, prompts the completer and parses the reply.
type Generator struct {
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger
}

func New(completer Completer, timeout time.Duration, logger *slog.Logger) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{completer: completer, timeout: timeout, logger: logger}
}

// Generate produces a report for in. Invalid input fails before any upstream
// call. The completion call is cut off after the configured timeout and
// reported as ErrTimeout.
func (g *Generator) Generate(ctx context.Context, in Input) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	raw, err := g.completer.Complete(ctx, BuildPrompt(in))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.logger.Warn("completion timed out", "timeout", g.timeout)
			return nil, ErrTimeout
		}
		return nil, err
	}

	report, err := ParseReport(raw)
	if err != nil {
		g.logger.Warn("completion reply could not be parsed", "error", err, "raw_len", len(raw))
		return nil, err
	}

	g.logger.Info("report generated", "duration", time.Since(start))
	return &Result{Report: report, Raw: raw}, nil
}
