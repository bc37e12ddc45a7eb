package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewRun(t *testing.T) {
	t.Parallel()

	a := NewRun("https://example.com/", "example", "/tmp/example")
	b := NewRun("https://example.com/", "example", "/tmp/example")

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct run ids, got %q and %q", a.ID, b.ID)
	}
	if a.StartedAt.IsZero() {
		t.Error("expected start time to be set")
	}
	if len(a.Entries) != 0 {
		t.Errorf("expected no entries, got %d", len(a.Entries))
	}
}

func TestRecordConcurrent(t *testing.T) {
	t.Parallel()

	run := NewRun("https://example.com/", "example", "/tmp/example")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run.Record(Entry{URL: fmt.Sprintf("https://example.com/%d", i), Kind: "generic"})
		}(i)
	}
	wg.Wait()

	entries := run.Snapshot()
	if len(entries) != 50 {
		t.Fatalf("expected 50 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Time.IsZero() {
			t.Errorf("expected time to be stamped for %s", e.URL)
		}
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	run := NewRun("https://example.com/", "example", "/tmp/example")
	run.Record(Entry{URL: "https://example.com/", Kind: "html", Status: StatusSaved, Bytes: 100})
	run.Record(Entry{URL: "https://example.com/a.css", Kind: "css", Status: StatusSaved, Bytes: 50})
	run.Record(Entry{URL: "https://example.com/z.png", Kind: "generic", Status: StatusFailed, Error: "boom"})
	run.Record(Entry{URL: "https://example.com/b.png", Kind: "generic", Status: StatusPlaceholder, Bytes: 10})
	run.Record(Entry{URL: "https://example.com/c.png", Kind: "generic", Status: StatusCached})
	run.Finish(errors.New("root failed"))

	s := run.Summarize()

	if s.Total != 5 {
		t.Errorf("expected 5 entries, got %d", s.Total)
	}
	if s.Bytes != 160 {
		t.Errorf("expected 160 bytes, got %d", s.Bytes)
	}
	if s.Count(StatusSaved) != 2 || s.Count(StatusCached) != 1 || s.Count(StatusDenied) != 0 {
		t.Errorf("unexpected counts: %v", s.Counts)
	}
	if s.Kinds["generic"] != 3 {
		t.Errorf("expected 3 generic entries, got %d", s.Kinds["generic"])
	}
	if len(s.Problems) != 2 || s.Problems[0].URL != "https://example.com/b.png" {
		t.Errorf("expected problems sorted by url, got %+v", s.Problems)
	}
	if s.OK() || s.Error != "root failed" {
		t.Errorf("expected root failure, got %q", s.Error)
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	run := NewRun("https://example.com/", "example", "/tmp/example")
	run.StartedAt = time.Now().Add(-time.Minute)
	run.Finish(nil)

	if d := run.Duration(); d < time.Minute || d > 2*time.Minute {
		t.Errorf("unexpected duration %v", d)
	}
	if run.Error != "" {
		t.Errorf("expected no error, got %q", run.Error)
	}
}

func TestStatusText(t *testing.T) {
	t.Parallel()

	for _, st := range AllStatuses {
		text, err := st.MarshalText()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got Status
		if err := got.UnmarshalText(text); err != nil || got != st {
			t.Errorf("%s: expected round trip, got %v (%v)", st, got, err)
		}
	}

	var s Status
	if err := s.UnmarshalText([]byte("exploded")); err == nil {
		t.Error("expected error for unknown status")
	}
	if Status(99).String() != "unknown" {
		t.Errorf("expected unknown, got %s", Status(99))
	}
}

func TestEntryJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Entry{URL: "https://example.com/", Kind: "html", Status: StatusDenied})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(data); !strings.Contains(got, `"status":"denied"`) {
		t.Errorf("expected status by name, got %s", got)
	}
	if !StatusDenied.IsProblem() || StatusSkipped.IsProblem() {
		t.Error("unexpected IsProblem result")
	}
}
