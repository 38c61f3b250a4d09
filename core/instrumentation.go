package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-voice/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	staleEvents, _ = meter.Int64Counter("orchestration.stale_events",
		metric.WithDescription("Number of collaborator results dropped because their turn or capture session was superseded"))
	synthesisFailures, _ = meter.Int64Counter("orchestration.synthesis_failures",
		metric.WithDescription("Number of sentences that failed to synthesize or play"))
)
