package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
)

// OTelHook forwards zerolog messages to an OpenTelemetry logger so they are
// exported next to traces and metrics. Only the message and level are sent;
// structured fields stay in the local log output.
type OTelHook struct {
	logger otellog.Logger
}

// NewOTelHook creates a hook emitting to provider
func NewOTelHook(provider otellog.LoggerProvider) OTelHook {
	return OTelHook{logger: provider.Logger(instrumentationName)}
}

// Run implements zerolog.Hook
func (h OTelHook) Run(e *zerolog.Event, level zerolog.Level, message string) {
	severity, ok := otelSeverity(level)
	if !ok {
		return
	}

	var record otellog.Record
	record.SetTimestamp(time.Now())
	record.SetSeverity(severity)
	record.SetSeverityText(level.String())
	record.SetBody(otellog.StringValue(message))
	h.logger.Emit(context.Background(), record)
}

func otelSeverity(level zerolog.Level) (otellog.Severity, bool) {
	switch level {
	case zerolog.TraceLevel:
		return otellog.SeverityTrace, true
	case zerolog.DebugLevel:
		return otellog.SeverityDebug, true
	case zerolog.InfoLevel:
		return otellog.SeverityInfo, true
	case zerolog.WarnLevel:
		return otellog.SeverityWarn, true
	case zerolog.ErrorLevel:
		return otellog.SeverityError, true
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return otellog.SeverityFatal, true
	default:
		return otellog.SeverityUndefined, false
	}
}
