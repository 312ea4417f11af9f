// Package telemetry reports recovered errors from the shell's boundaries.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
)

// Reporter receives errors recovered by the app's boundaries and other
// best-effort failures worth surfacing.
type Reporter interface {
	ReportError(ctx context.Context, err error, fields map[string]string)
}

// SlogReporter writes reports to the structured log.
type SlogReporter struct{}

func (SlogReporter) ReportError(ctx context.Context, err error, fields map[string]string) {
	attrs := make([]any, 0, 2+2*len(fields))
	attrs = append(attrs, "error", err)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	slog.Error("Recovered error reported", attrs...)
}

// MockReporter records reports for tests.
type MockReporter struct {
	mu sync.Mutex

	// Reports holds every received report in order.
	Reports []Report
}

// Report is one recorded ReportError call.
type Report struct {
	Err    error
	Fields map[string]string
}

func (m *MockReporter) ReportError(ctx context.Context, err error, fields map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reports = append(m.Reports, Report{Err: err, Fields: fields})
}

// Count returns the number of recorded reports.
func (m *MockReporter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Reports)
}
