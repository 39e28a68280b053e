package diagnose

import (
	"context"
	"testing"
	"time"

	"github.com/senseihq/sensei-go/pkg/core"
	"github.com/senseihq/sensei-go/pkg/core/types"
)

const sampleResponse = `{
	"mode": "EXAM",
	"stepByStepLogic": {
		"steps": ["x^2 + 6x + 5 = 0", "Factors of 5 are 2 and 3", "(x+2)(x+3) = 0", "x = -2, -3"],
		"incorrectStepIndex": 1,
		"criticalDeviationType": "Calculation"
	},
	"errorBoundingBox": {"box_2d": [200, 300, 400, 700], "label": "Factoring Error"},
	"correctSolution": "(x+5)(x+1)",
	"finalAnswer": "x = -5, -1",
	"thinkingReplay": {
		"header": "Mental Fatigue",
		"moments": ["You reached for 2 and 3 because they add to 5, not multiply to 5."]
	},
	"shortcutMethod": "Use the 'X' method: Top (multiply), Bottom (add)."
}`

type cannedGenerator struct {
	raw     string
	sources []types.GroundingSource
	err     error
	last    Request
}

func (g *cannedGenerator) Generate(ctx context.Context, req Request) (string, []types.GroundingSource, error) {
	g.last = req
	return g.raw, g.sources, g.err
}

type captureRecorder struct {
	recs []*types.Analysis
	err  error
}

func (r *captureRecorder) Record(ctx context.Context, rec *types.Analysis) error {
	r.recs = append(r.recs, rec)
	return r.err
}

func newTestAnalyzer(t *testing.T, gen Generator, rec Recorder) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(gen, AnalyzerOptions{Recorder: rec})
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	a.now = func() time.Time { return time.UnixMilli(1756600000000) }
	a.newID = func() string { return "fixed-id" }
	return a
}

func TestAnalyzeParsesResponse(t *testing.T) {
	rec := &captureRecorder{}
	a := newTestAnalyzer(t, &cannedGenerator{raw: sampleResponse}, rec)

	analysis, err := a.Analyze(context.Background(), Request{
		Mode: types.ModeExam,
		Text: "x^2+6x+5=0, I factored it as (x+2)(x+3)",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.ID != "fixed-id" || analysis.Timestamp != 1756600000000 {
		t.Fatalf("identity fields: id=%q ts=%d", analysis.ID, analysis.Timestamp)
	}
	if analysis.StepByStepLogic.IncorrectStepIndex != 1 {
		t.Fatalf("incorrectStepIndex = %d", analysis.StepByStepLogic.IncorrectStepIndex)
	}
	if analysis.ErrorBox == nil || len(analysis.ErrorBox.Box2D) != 4 || analysis.ErrorBox.Box2D[0] != 200 {
		t.Fatalf("bounding box = %+v", analysis.ErrorBox)
	}
	if len(rec.recs) != 1 || rec.recs[0].ID != "fixed-id" {
		t.Fatalf("history received %d records", len(rec.recs))
	}
}

func TestAnalyzeClampsStepIndex(t *testing.T) {
	raw := `{"stepByStepLogic":{"steps":["a","b"],"incorrectStepIndex":7,"criticalDeviationType":"Logic"},` +
		`"correctSolution":"x","finalAnswer":"y","thinkingReplay":{"header":"h","moments":["m"]}}`
	a := newTestAnalyzer(t, &cannedGenerator{raw: raw}, nil)

	analysis, err := a.Analyze(context.Background(), Request{Mode: types.ModeCognitive, Text: "work"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.StepByStepLogic.IncorrectStepIndex != 1 {
		t.Fatalf("clamped index = %d, want 1", analysis.StepByStepLogic.IncorrectStepIndex)
	}
}

func TestAnalyzeMalformedJSON(t *testing.T) {
	a := newTestAnalyzer(t, &cannedGenerator{raw: "not json at all"}, nil)
	_, err := a.Analyze(context.Background(), Request{Mode: types.ModeExam, Text: "work"})
	if !core.IsMalformedResponse(err) {
		t.Fatalf("err = %v, want malformed response", err)
	}
}

func TestAnalyzeEmptySteps(t *testing.T) {
	raw := `{"stepByStepLogic":{"steps":[],"incorrectStepIndex":0},"correctSolution":"x","finalAnswer":"y"}`
	a := newTestAnalyzer(t, &cannedGenerator{raw: raw}, nil)
	_, err := a.Analyze(context.Background(), Request{Mode: types.ModeExam, Text: "work"})
	if !core.IsMalformedResponse(err) {
		t.Fatalf("err = %v, want malformed response", err)
	}
}

func TestAnalyzeQuotaDistinct(t *testing.T) {
	quota := core.NewRateLimitError("diagnosis quota exceeded", 0)
	a := newTestAnalyzer(t, &cannedGenerator{err: quota}, nil)

	_, err := a.Analyze(context.Background(), Request{Mode: types.ModeExam, Text: "work"})
	if !core.IsQuotaExceeded(err) {
		t.Fatalf("err = %v, want quota exceeded", err)
	}
	if core.IsAuthInvalidated(err) {
		t.Fatal("quota error also classified as auth")
	}
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	a := newTestAnalyzer(t, &cannedGenerator{raw: sampleResponse}, nil)

	if _, err := a.Analyze(context.Background(), Request{Mode: "WRONG", Text: "x"}); err == nil {
		t.Fatal("unknown mode accepted")
	}
	if _, err := a.Analyze(context.Background(), Request{Mode: types.ModeExam, Text: "   "}); err == nil {
		t.Fatal("empty request accepted")
	}
}

func TestAnalyzeRecorderFailureNotFatal(t *testing.T) {
	rec := &captureRecorder{err: core.NewStorageError("disk gone")}
	a := newTestAnalyzer(t, &cannedGenerator{raw: sampleResponse}, rec)

	analysis, err := a.Analyze(context.Background(), Request{Mode: types.ModeExam, Text: "work"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis == nil {
		t.Fatal("analysis dropped because history write failed")
	}
}

func TestAnalyzeAttachesGrounding(t *testing.T) {
	sources := []types.GroundingSource{{Title: "Factoring quadratics", URI: "https://example.com/factoring"}}
	a := newTestAnalyzer(t, &cannedGenerator{raw: sampleResponse, sources: sources}, nil)

	analysis, err := a.Analyze(context.Background(), Request{Mode: types.ModeExam, Text: "work"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(analysis.GroundingSources) != 1 || analysis.GroundingSources[0].URI != sources[0].URI {
		t.Fatalf("grounding sources = %+v", analysis.GroundingSources)
	}
}

func TestPromptShape(t *testing.T) {
	got := Prompt(Request{Mode: types.ModeCoach, Text: "my work"})
	want := "Analysis Request [Mode: COACH]: my work"
	if got != want {
		t.Fatalf("Prompt = %q, want %q", got, want)
	}
}
