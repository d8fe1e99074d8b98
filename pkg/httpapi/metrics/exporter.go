// Package metrics exposes per-workload governor state as OpenMetrics text,
// in the same hand-rolled exposition format the rest of this codebase's
// HTTP surfaces use instead of pulling in a metrics client library.
package metrics

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
)

const contentType = "application/openmetrics-text; version=1.0.0; charset=utf-8"

var errNilWriter = errors.New("metrics: writer is nil")

// workloadMetrics is the latest decision snapshot for one workload.
type workloadMetrics struct {
	mode        string
	debtUS      int64
	quotaUS     int64
	usageUS     int64
	windowIndex int64
}

// Exporter tracks the latest decision for every registered workload and
// renders them as OpenMetrics text.
type Exporter struct {
	mu        sync.RWMutex
	workloads map[string]workloadMetrics
}

// NewExporter constructs an empty Exporter.
func NewExporter() *Exporter {
	return &Exporter{workloads: make(map[string]workloadMetrics)}
}

// RegisterWorkload ensures id appears in the exposition even before its
// first decision, so governor_registered_workloads reflects admission
// immediately.
func (e *Exporter) RegisterWorkload(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.workloads[id]; !ok {
		e.workloads[id] = workloadMetrics{mode: "NORMAL"}
	}
}

// RecordDecision stores the latest decision snapshot for id.
func (e *Exporter) RecordDecision(id, mode string, debtUS, quotaUS, usageUS, windowIndex int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.workloads[id] = workloadMetrics{
		mode:        mode,
		debtUS:      debtUS,
		quotaUS:     quotaUS,
		usageUS:     usageUS,
		windowIndex: windowIndex,
	}
}

// ServeHTTP implements http.Handler for the metrics exporter.
func (e *Exporter) ServeHTTP(writer http.ResponseWriter, _ *http.Request) {
	data, err := e.Render()
	if err != nil {
		http.Error(writer, err.Error(), http.StatusInternalServerError)

		return
	}

	writer.Header().Set("Content-Type", contentType)
	_, _ = writer.Write(data)
}

// Render returns the current metrics snapshot encoded as OpenMetrics text.
func (e *Exporter) Render() ([]byte, error) {
	var buffer bytes.Buffer

	if _, err := e.WriteTo(&buffer); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

// WriteTo writes the current metrics snapshot to dst. Workload ids are
// sorted so the exposition is stable between scrapes with no state change.
func (e *Exporter) WriteTo(dst io.Writer) (int64, error) {
	if dst == nil {
		return 0, errNilWriter
	}

	ids, snapshots := e.snapshot()

	lines := []string{
		"# HELP governor_debt_us Outstanding CPU debt for the workload, in microseconds.\n",
		"# TYPE governor_debt_us gauge\n",
	}
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("governor_debt_us{workload_id=\"%s\"} %d\n", id, snapshots[id].debtUS))
	}

	lines = append(lines,
		"# HELP governor_quota_us CPU quota enforced for the workload's current window, in microseconds.\n",
		"# TYPE governor_quota_us gauge\n",
	)
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("governor_quota_us{workload_id=\"%s\"} %d\n", id, snapshots[id].quotaUS))
	}

	lines = append(lines,
		"# HELP governor_usage_us CPU usage observed for the workload's last window, in microseconds.\n",
		"# TYPE governor_usage_us gauge\n",
	)
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("governor_usage_us{workload_id=\"%s\"} %d\n", id, snapshots[id].usageUS))
	}

	lines = append(lines,
		"# HELP governor_state Workload policy state (value set to 1 for the active mode).\n",
		"# TYPE governor_state gauge\n",
	)
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf(
			"governor_state{workload_id=\"%s\",mode=\"%s\"} 1\n", id, snapshots[id].mode,
		))
	}

	lines = append(lines,
		"# HELP governor_window_index Monotonic window counter for the workload.\n",
		"# TYPE governor_window_index counter\n",
	)
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("governor_window_index{workload_id=\"%s\"} %d\n", id, snapshots[id].windowIndex))
	}

	lines = append(lines,
		"# HELP governor_registered_workloads Number of workloads currently under governance.\n",
		"# TYPE governor_registered_workloads gauge\n",
		fmt.Sprintf("governor_registered_workloads %d\n", len(ids)),
		"# EOF\n",
	)

	var total int64

	for _, line := range lines {
		n, err := io.WriteString(dst, line)

		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("write metrics: %w", err)
		}
	}

	return total, nil
}

func (e *Exporter) snapshot() ([]string, map[string]workloadMetrics) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]string, 0, len(e.workloads))
	snapshots := make(map[string]workloadMetrics, len(e.workloads))

	for id, m := range e.workloads {
		ids = append(ids, id)
		snapshots[id] = m
	}

	sort.Strings(ids)

	return ids, snapshots
}
