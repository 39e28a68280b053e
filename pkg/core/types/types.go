// Package types defines the data model shared between the diagnosis
// request path, the realtime session, and the local history log.
package types

import "fmt"

// Mode selects the framing the mentor applies to a diagnosis.
type Mode string

const (
	// ModeExam focuses on syllabus traps, scoring criteria, and
	// high-pressure mistakes.
	ModeExam Mode = "EXAM"
	// ModeCoach focuses on tactical shortcuts and speed-oriented logic.
	ModeCoach Mode = "COACH"
	// ModeCognitive focuses on the underlying mental model and loops in
	// thinking.
	ModeCognitive Mode = "COGNITIVE"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeExam, ModeCoach, ModeCognitive:
		return true
	}
	return false
}

// StepLogic is the reconstructed chain of the learner's reasoning and the
// point where it deviated.
type StepLogic struct {
	Steps []string `json:"steps"`
	// IncorrectStepIndex indexes into Steps. Always validate bounds
	// before indexing; the remote model produces this value.
	IncorrectStepIndex    int    `json:"incorrectStepIndex"`
	CriticalDeviationType string `json:"criticalDeviationType,omitempty"`
}

// BoundingBox marks the region of the learner's uploaded work where the
// deviation happened. Box2D is [ymin, xmin, ymax, xmax] normalized to
// 0-1000; the core passes the four numbers through unchanged and leaves
// pixel mapping to the presentation layer.
type BoundingBox struct {
	Box2D []float64 `json:"box_2d"`
	Label string    `json:"label"`
}

// ThinkingReplay narrates the learner's cognitive trajectory.
type ThinkingReplay struct {
	Header           string   `json:"header"`
	Moments          []string `json:"moments"`
	AdditionalNote   string   `json:"additionalNote,omitempty"`
	CognitiveInsight string   `json:"cognitiveInsight,omitempty"`
}

// VideoRecommendation points the learner at remedial material.
type VideoRecommendation struct {
	Title       string `json:"title"`
	Explanation string `json:"explanation"`
	Link        string `json:"link"`
}

// GroundingSource is a citation attached by the remote model.
type GroundingSource struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
}

// Analysis is one completed cognitive diagnosis. ID and Timestamp are
// assigned locally when the remote response is parsed; the record is
// immutable afterwards.
type Analysis struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	Mode      Mode   `json:"mode"`

	StepByStepLogic StepLogic    `json:"stepByStepLogic"`
	ErrorBox        *BoundingBox `json:"errorBoundingBox,omitempty"`

	CorrectSolution string `json:"correctSolution"`
	FinalAnswer     string `json:"finalAnswer"`

	ExamTrapAlert  string         `json:"examTrapAlert,omitempty"`
	ThinkingReplay ThinkingReplay `json:"thinkingReplay"`
	ShortcutMethod string         `json:"shortcutMethod,omitempty"`

	CognitiveInsights   []string             `json:"cognitiveInsights,omitempty"`
	VideoRecommendation *VideoRecommendation `json:"videoRecommendation,omitempty"`
	ModeSummaryFooter   string               `json:"modeSummaryFooter,omitempty"`
	GroundingSources    []GroundingSource    `json:"groundingSources,omitempty"`
}

// Validate checks the invariants a record must satisfy before it is
// displayed or persisted.
func (a *Analysis) Validate() error {
	if a == nil {
		return fmt.Errorf("analysis must not be nil")
	}
	if len(a.StepByStepLogic.Steps) == 0 {
		return fmt.Errorf("analysis has no reasoning steps")
	}
	if idx := a.StepByStepLogic.IncorrectStepIndex; idx < 0 || idx >= len(a.StepByStepLogic.Steps) {
		return fmt.Errorf("incorrectStepIndex %d out of range [0,%d)", idx, len(a.StepByStepLogic.Steps))
	}
	if a.ErrorBox != nil && len(a.ErrorBox.Box2D) != 4 {
		return fmt.Errorf("errorBoundingBox.box_2d has %d coordinates, want 4", len(a.ErrorBox.Box2D))
	}
	return nil
}

// ClampStepIndex forces IncorrectStepIndex into range so a record with a
// slightly off index can still be shown instead of being dropped.
func (a *Analysis) ClampStepIndex() {
	if a == nil || len(a.StepByStepLogic.Steps) == 0 {
		return
	}
	if a.StepByStepLogic.IncorrectStepIndex < 0 {
		a.StepByStepLogic.IncorrectStepIndex = 0
	}
	if max := len(a.StepByStepLogic.Steps) - 1; a.StepByStepLogic.IncorrectStepIndex > max {
		a.StepByStepLogic.IncorrectStepIndex = max
	}
}

// CognitiveProfile is derived from the history log on every read. It has
// no independent lifecycle and is never stored.
type CognitiveProfile struct {
	TotalSessions int            `json:"totalSessions"`
	TopErrorTypes map[string]int `json:"topErrorTypes"`
	Strengths     []string       `json:"strengths"`
	GrowthAdvice  string         `json:"growthAdvice"`
}
