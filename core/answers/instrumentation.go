package answers

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-voice/core/answers"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	skippedLines, _ = meter.Int64Counter("answers.stream.skipped_lines",
		metric.WithDescription("Number of payload lines that could not be decoded"))
)
