package detective

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forensiq/tribunal/internal/port/llm"
)

type stubLLM struct {
	resp string
	err  error
	last llm.Request
}

func (s *stubLLM) ChatCompletion(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.resp}, nil
}

func TestFindImages(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "report.md")
	for _, name := range []string{"report.md", "diagram.png", "photo.jpg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	sub := filepath.Join(dir, "images")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "flow.jpeg"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	urls, names := findImages(docPath)

	if len(urls) != 3 || len(names) != 3 {
		t.Fatalf("found %d images, want 3 (%v)", len(urls), names)
	}
	for _, u := range urls {
		if !strings.HasPrefix(u, "data:image/") {
			t.Errorf("not a data URL: %.40s", u)
		}
	}
}

func TestFindImages_NoDoc(t *testing.T) {
	urls, names := findImages("")
	if urls != nil || names != nil {
		t.Error("expected nothing without a document path")
	}
}

func TestVisionProduce_NoImages(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "report.md")
	if err := os.WriteFile(docPath, []byte("no diagrams here"), 0o644); err != nil {
		t.Fatal(err)
	}

	stub := &stubLLM{}
	d := NewVisionInspector(stub, testLogger(), "vision-model")

	set, err := d.Produce(context.Background(), Input{
		RunID: "r1", DocPath: docPath, Rubric: testRubric(),
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}

	ev, ok := set["architecture_diagram"]
	if !ok {
		t.Fatal("expected explicit evidence for the diagram criterion")
	}
	if !ev.Missing {
		t.Error("absent images should be marked missing, not omitted")
	}
	if stub.last.Model != "" {
		t.Error("vision model should not be called when no images exist")
	}
}

func TestVisionProduce_WithImages(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "report.md")
	if err := os.WriteFile(docPath, []byte("see diagram"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "arch.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644); err != nil {
		t.Fatal(err)
	}

	stub := &stubLLM{resp: `{"evidence":[{"criterion_key":"architecture_diagram","summary":"three-stage pipeline depicted","confidence":0.8,"cited_locators":["arch.png"]}]}`}
	d := NewVisionInspector(stub, testLogger(), "vision-model")

	set, err := d.Produce(context.Background(), Input{
		RunID: "r1", DocPath: docPath, Rubric: testRubric(),
	})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}

	if len(stub.last.Messages) == 0 || len(stub.last.Messages[1].Images) != 1 {
		t.Fatal("image not attached to vision request")
	}
	if set["architecture_diagram"].Summary == "" {
		t.Error("expected parsed evidence")
	}
}
