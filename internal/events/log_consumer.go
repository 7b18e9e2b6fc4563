package events

import (
	"github.com/adamidy7424/GeneNFT-Z/internal/logger"
)

// LogConsumer writes every status notification and published error to a logger
type LogConsumer struct {
	logger logger.Logger
}

// NewLogConsumer creates a consumer logging under the "status" module
func NewLogConsumer(log logger.Logger) *LogConsumer {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &LogConsumer{logger: log.Module("status")}
}

func (c *LogConsumer) Name() string { return "log" }

// ProcessStatus logs pending and success at info and errors at warn
func (c *LogConsumer) ProcessStatus(event StatusEvent) error {
	fields := []logger.Field{
		logger.String("operation", event.Operation),
		logger.String("status", string(event.Status)),
	}
	if event.RecordKey != "" {
		fields = append(fields, logger.String("record_key", event.RecordKey))
	}
	if event.Class != ClassNone {
		fields = append(fields, logger.String("class", string(event.Class)))
	}
	if event.TraceID != "" {
		fields = append(fields, logger.String("trace_id", event.TraceID))
	}

	if event.Status == StatusError {
		c.logger.Warn(event.Message, fields...)
	} else {
		c.logger.Info(event.Message, fields...)
	}
	return nil
}

// ProcessError logs an enhanced error once
func (c *LogConsumer) ProcessError(event ErrorEvent) error {
	c.logger.Debug("error reported",
		logger.String("component", event.GetComponent()),
		logger.String("category", event.GetCategory()),
		logger.String("message", logger.RedactSensitiveData(event.GetMessage())))
	return nil
}
