package detective

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/forensiq/tribunal/internal/domain/audit"
	"github.com/forensiq/tribunal/internal/domain/rubric"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRubric() *rubric.Rubric {
	return &rubric.Rubric{Criteria: []rubric.Criterion{
		{Key: "git_history", Label: "Git History", TargetArtifact: ArtifactRepo},
		{Key: "tool_safety", Label: "Tool Safety", TargetArtifact: ArtifactRepo, Critical: true},
		{Key: "report_accuracy", Label: "Report Accuracy", TargetArtifact: ArtifactDoc, Critical: true},
		{Key: "architecture_diagram", Label: "Architecture Diagram", TargetArtifact: ArtifactImages},
	}}
}

// fakeProducer drives the harness in tests.
type fakeProducer struct {
	name string
	fn   func(ctx context.Context, in Input) (audit.EvidenceSet, error)
}

func (f *fakeProducer) Name() string { return f.name }
func (f *fakeProducer) Produce(ctx context.Context, in Input) (audit.EvidenceSet, error) {
	return f.fn(ctx, in)
}

func evidenceFor(keys ...string) audit.EvidenceSet {
	set := make(audit.EvidenceSet)
	for _, k := range keys {
		set[k] = audit.Evidence{CriterionKey: k, Summary: "finding for " + k, Confidence: 0.8}
	}
	return set
}

func TestRunAll_AllSucceed(t *testing.T) {
	in := Input{RunID: "r1", Rubric: testRubric()}
	results := RunAll(context.Background(), testLogger(), time.Second, in,
		&fakeProducer{name: "a", fn: func(context.Context, Input) (audit.EvidenceSet, error) {
			return evidenceFor("git_history"), nil
		}},
		&fakeProducer{name: "b", fn: func(context.Context, Input) (audit.EvidenceSet, error) {
			return evidenceFor("report_accuracy"), nil
		}},
	)

	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("detective %s: unexpected error %v", r.Name, r.Err)
		}
		if len(r.Evidence) != 1 {
			t.Errorf("detective %s: evidence = %d, want 1", r.Name, len(r.Evidence))
		}
	}
}

func TestRunAll_PanicIsolated(t *testing.T) {
	in := Input{RunID: "r1", Rubric: testRubric()}
	results := RunAll(context.Background(), testLogger(), time.Second, in,
		&fakeProducer{name: "panics", fn: func(context.Context, Input) (audit.EvidenceSet, error) {
			panic("boom")
		}},
		&fakeProducer{name: "fine", fn: func(context.Context, Input) (audit.EvidenceSet, error) {
			return evidenceFor("git_history"), nil
		}},
	)

	if results[0].Err == nil {
		t.Error("expected panic converted to error")
	}
	if results[1].Err != nil {
		t.Errorf("sibling detective affected by panic: %v", results[1].Err)
	}
}

func TestRunAll_TimeoutDoesNotStallBarrier(t *testing.T) {
	in := Input{RunID: "r1", Rubric: testRubric()}
	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	results := RunAll(context.Background(), testLogger(), 50*time.Millisecond, in,
		&fakeProducer{name: "hung", fn: func(ctx context.Context, _ Input) (audit.EvidenceSet, error) {
			<-block // ignores ctx entirely
			return nil, nil
		}},
	)

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("barrier stalled for %s", elapsed)
	}
	if results[0].Err == nil {
		t.Error("expected timeout error")
	}
}

func TestRunAll_ErrorDoesNotCancelSiblings(t *testing.T) {
	in := Input{RunID: "r1", Rubric: testRubric()}
	results := RunAll(context.Background(), testLogger(), time.Second, in,
		&fakeProducer{name: "fails", fn: func(context.Context, Input) (audit.EvidenceSet, error) {
			return nil, fmt.Errorf("network down")
		}},
		&fakeProducer{name: "slow-ok", fn: func(context.Context, Input) (audit.EvidenceSet, error) {
			time.Sleep(20 * time.Millisecond)
			return evidenceFor("tool_safety"), nil
		}},
	)

	if results[0].Err == nil {
		t.Error("expected error from failing detective")
	}
	if results[1].Err != nil {
		t.Errorf("sibling cancelled: %v", results[1].Err)
	}
}

func TestParseEvidence(t *testing.T) {
	owned := map[string]bool{"git_history": true, "tool_safety": true}
	content := "```json\n" + `{"evidence":[
		{"criterion_key":"git_history","summary":"42 commits","confidence":0.9,"cited_locators":["abc123"]},
		{"criterion_key":"not_owned","summary":"ignored","confidence":0.5},
		{"criterion_key":"tool_safety","summary":"subprocess calls use argument vectors","confidence":1.7}
	]}` + "\n```"

	set, err := parseEvidence(content, owned)
	if err != nil {
		t.Fatalf("parseEvidence: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("set size = %d, want 2 (namespace filtering)", len(set))
	}
	if set["tool_safety"].Confidence != 1 {
		t.Errorf("confidence not clamped: %f", set["tool_safety"].Confidence)
	}
	if set["git_history"].Locators[0] != "abc123" {
		t.Errorf("locators not carried: %v", set["git_history"].Locators)
	}
}

func TestParseEvidence_Malformed(t *testing.T) {
	if _, err := parseEvidence("not json at all", map[string]bool{"a": true}); err == nil {
		t.Error("expected parse error")
	}
}
