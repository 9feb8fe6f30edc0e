package crawl

import (
	"sort"
	"sync"
	"time"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Report summarises one run.
type Report struct {
	BatchID      string     `json:"batch_id"`
	Query        string     `json:"query"`
	Status       string     `json:"status"`
	Emitted      int        `json:"emitted"`
	DetailLinks  int        `json:"detail_links"`
	DetailFailed int        `json:"detail_failed"`
	Ingested     int        `json:"ingested"`
	IngestFailed int        `json:"ingest_failed"`
	Diagnostics  int        `json:"diagnostics"`
	Error        string     `json:"error,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Registry keeps the reports of recent runs in memory. Once more than limit
// reports are held, the oldest finished ones are evicted.
type Registry struct {
	mu      sync.RWMutex
	reports map[string]*Report
	limit   int
}

// NewRegistry returns a registry holding up to limit reports; zero means 500.
func NewRegistry(limit int) *Registry {
	if limit <= 0 {
		limit = 500
	}
	return &Registry{reports: make(map[string]*Report), limit: limit}
}

func (r *Registry) begin(report Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.BatchID] = &report
	r.evictLocked()
}

func (r *Registry) update(batchID string, fn func(*Report)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if report, ok := r.reports[batchID]; ok {
		fn(report)
	}
}

// Get returns a copy of the report for batchID.
func (r *Registry) Get(batchID string) (Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report, ok := r.reports[batchID]
	if !ok {
		return Report{}, false
	}
	return *report, true
}

func (r *Registry) evictLocked() {
	excess := len(r.reports) - r.limit
	if excess <= 0 {
		return
	}
	finished := make([]*Report, 0, len(r.reports))
	for _, report := range r.reports {
		if report.FinishedAt != nil {
			finished = append(finished, report)
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].FinishedAt.Before(*finished[j].FinishedAt) })
	for i := 0; i < excess && i < len(finished); i++ {
		delete(r.reports, finished[i].BatchID)
	}
}
