package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/pavelanni/quizflow/internal/metrics"
)

// LoggingProvider logs every LLM call and records it in the metrics registry.
type LoggingProvider struct {
	inner  Provider
	logger *slog.Logger
}

// WithLogging wraps a Provider with request logging.
func WithLogging(p Provider, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingProvider{inner: p, logger: logger}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)
	elapsed := time.Since(start)

	var in, out int
	model := l.inner.ModelID()
	if resp != nil {
		in, out = resp.Usage.InputTokens, resp.Usage.OutputTokens
		if resp.Model != "" {
			model = resp.Model
		}
	}
	metrics.LLMRequest(l.inner.ModelID(), purpose, elapsed, in, out, err)

	if err != nil {
		l.logger.Warn("LLM request failed",
			"model", model,
			"purpose", purpose,
			"latency_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return nil, err
	}
	l.logger.Debug("LLM request",
		"model", model,
		"purpose", purpose,
		"latency_ms", elapsed.Milliseconds(),
		"input_tokens", in,
		"output_tokens", out,
		"raw", string(resp.Content),
	)
	return resp, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
