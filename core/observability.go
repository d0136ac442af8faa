package core

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"
)

const metricPrefix = "accessproxy"

// NopMetricsRecorder discards every observation. It is the default recorder.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// operationReport is the outcome of one service operation as it is logged
// and counted.
type operationReport struct {
	name     string
	failed   bool
	duration time.Duration
	fields   map[string]any
}

func newOperationReport(name string, startedAt time.Time, err error, fields map[string]any) operationReport {
	name = strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(name)))
	if name == "" {
		name = "unknown"
	}
	report := operationReport{
		name:     name,
		failed:   err != nil,
		duration: time.Since(startedAt),
		fields:   cloneFields(fields),
	}
	report.fields["event_type"] = report.name
	report.fields["status"] = report.status()
	report.fields["duration_ms"] = report.duration.Milliseconds()
	if err != nil {
		report.fields["error"] = err.Error()
	}
	return report
}

func (r operationReport) status() string {
	if r.failed {
		return "failure"
	}
	return "success"
}

func (r operationReport) message() string {
	if r.failed {
		return r.name + " failed"
	}
	return r.name + " succeeded"
}

// tags keeps metric cardinality bounded: only the operation, its status and
// the identity or request type it acted on.
func (r operationReport) tags() map[string]string {
	tags := map[string]string{
		"operation": r.name,
		"status":    r.status(),
	}
	for _, key := range []string{"identity_id", "request_type"} {
		value, ok := r.fields[key].(string)
		if !ok {
			if stringer, isStringer := r.fields[key].(interface{ String() string }); isStringer {
				value = stringer.String()
			}
		}
		if value = strings.TrimSpace(value); value != "" {
			tags[key] = value
		}
	}
	return tags
}

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	report := newOperationReport(operation, startedAt, err, fields)

	if s.metricsRecorder != nil {
		tags := report.tags()
		s.metricsRecorder.IncCounter(ctx, metricPrefix+"."+report.name+".total", 1, tags)
		s.metricsRecorder.ObserveHistogram(ctx, metricPrefix+"."+report.name+".duration_ms",
			float64(report.duration.Milliseconds()), cloneTags(tags))
	}

	logger := s.operationLogger(ctx, report.fields)
	if logger == nil {
		return
	}
	if report.failed {
		logger.Error(report.message(), flattenFields(report.fields)...)
		return
	}
	logger.Info(report.message(), flattenFields(report.fields)...)
}

// operationLogger scopes the service logger to ctx and, when supported,
// attaches fields as structured context.
func (s *Service) operationLogger(ctx context.Context, fields map[string]any) Logger {
	if s.logger == nil {
		return nil
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	return logger
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return maps.Clone(fields)
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	return maps.Clone(tags)
}

// flattenFields renders fields as sorted key/value pairs for loggers without
// structured field support.
func flattenFields(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}
