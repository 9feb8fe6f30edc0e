package crawl

import (
	"testing"
	"time"
)

func TestRegistryEvictsOldestFinished(t *testing.T) {
	reg := NewRegistry(2)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b"} {
		finished := base.Add(time.Duration(i) * time.Minute)
		reg.begin(Report{BatchID: id, Status: StatusCompleted, FinishedAt: &finished})
	}
	reg.begin(Report{BatchID: "c", Status: StatusRunning})

	if _, ok := reg.Get("a"); ok {
		t.Fatalf("expected oldest finished report to be evicted")
	}
	for _, id := range []string{"b", "c"} {
		if _, ok := reg.Get(id); !ok {
			t.Fatalf("expected %s to remain", id)
		}
	}
}

func TestRegistryKeepsRunningReports(t *testing.T) {
	reg := NewRegistry(1)
	reg.begin(Report{BatchID: "a", Status: StatusRunning})
	reg.begin(Report{BatchID: "b", Status: StatusRunning})

	if _, ok := reg.Get("a"); !ok {
		t.Fatalf("running reports must never be evicted")
	}
	reg.update("a", func(r *Report) { r.Ingested = 3 })
	if got, _ := reg.Get("a"); got.Ingested != 3 {
		t.Fatalf("expected update to apply, got %+v", got)
	}
}
