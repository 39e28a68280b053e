// Package diagnose runs the unary cognitive-diagnosis request: it sends
// the learner's worked solution to the generative backend and parses the
// structured analysis out of the response.
package diagnose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/senseihq/sensei-go/pkg/core"
	"github.com/senseihq/sensei-go/pkg/core/types"
)

// DefaultModel is the text-diagnosis model.
const DefaultModel = "gemini-3-flash-preview"

// ThinkingBudget caps the model's internal reasoning tokens per request.
const ThinkingBudget = 4000

const systemInstruction = `YOU ARE GEMINI SENSEI. Focus on WHY student logic fails, not just the correct answer.
Analyze the provided work (text, image, or PDF) to identify the EXACT moment of cognitive deviation.

MODES:
- EXAM: Focus on syllabus specific traps, scoring criteria, and high-pressure mistakes.
- COACH: Focus on tactical shortcuts, efficiency, and speed-oriented logic.
- COGNITIVE: Focus on the underlying mental model, conceptual misunderstandings, and "loops" in thinking.

Return the response strictly as structured JSON matching the provided schema.`

// Attachment is an optional image or PDF of the learner's work.
type Attachment struct {
	Data     []byte
	MIMEType string
}

// Request is one diagnosis request.
type Request struct {
	Mode       types.Mode
	Text       string
	Attachment *Attachment
}

// Generator produces the raw JSON analysis text for a request. The
// production implementation talks to the Gemini API; tests substitute a
// canned one.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, []types.GroundingSource, error)
}

// Recorder receives each completed analysis. *profile.Aggregator
// satisfies it.
type Recorder interface {
	Record(ctx context.Context, rec *types.Analysis) error
}

// Analyzer assembles requests, parses responses into Analysis records,
// and files each completed record into the history log.
type Analyzer struct {
	gen      Generator
	recorder Recorder
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

// AnalyzerOptions tune an Analyzer.
type AnalyzerOptions struct {
	// Recorder, when set, receives every completed analysis.
	Recorder Recorder
	Logger   *slog.Logger
}

func NewAnalyzer(gen Generator, opts AnalyzerOptions) (*Analyzer, error) {
	if gen == nil {
		return nil, fmt.Errorf("generator must not be nil")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Analyzer{
		gen:      gen,
		recorder: opts.Recorder,
		log:      opts.Logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Analyze runs one diagnosis round trip. Errors are classified into the
// taxonomy in core before they reach the caller: quota exhaustion,
// invalidated credentials, and malformed responses are each distinct.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*types.Analysis, error) {
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}
	if strings.TrimSpace(req.Text) == "" && req.Attachment == nil {
		return nil, fmt.Errorf("nothing to analyze: no text and no attachment")
	}

	raw, sources, err := a.gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	var analysis types.Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, core.NewMalformedResponseError(fmt.Sprintf("parse analysis: %v", err))
	}
	analysis.ClampStepIndex()
	if err := analysis.Validate(); err != nil {
		return nil, core.NewMalformedResponseError(err.Error())
	}

	analysis.ID = a.newID()
	analysis.Timestamp = a.now().UnixMilli()
	analysis.Mode = req.Mode
	analysis.GroundingSources = sources

	if a.recorder != nil {
		if err := a.recorder.Record(ctx, &analysis); err != nil {
			// History is a convenience, not part of the answer.
			a.log.Warn("record analysis in history", "err", err)
		}
	}
	return &analysis, nil
}

// Prompt renders the user-visible part of the request the way the
// backend expects it.
func Prompt(req Request) string {
	return fmt.Sprintf("Analysis Request [Mode: %s]: %s", req.Mode, req.Text)
}

// SystemInstruction returns the mentor persona prompt.
func SystemInstruction() string { return systemInstruction }
